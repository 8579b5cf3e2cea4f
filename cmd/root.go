package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	app, err := wireApp()
	return buildRootCmd(app, err)
}

func buildRootCmd(app *app, wireErr error) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "devops-cli",
		Short:         "Digitalworks2020 DevOps CLI: Jira and AWS queries from one menu",
		Long:          "devops-cli keeps named Jira Cloud, Jira Server and AWS SSO accounts and runs read-only sprint, issue, cost and instance queries from an interactive menu. Type 'exit' at any prompt to quit.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newVersionCmd(), newSettingsCmd(app))

	if wireErr != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return wireErr
		}
		return rootCmd
	}

	rootCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runSession(cmd.Context(), app, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	}
	rootCmd.AddCommand(
		newToolsCmd(app),
		newAccountCmd(app),
	)

	return rootCmd
}
