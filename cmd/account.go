package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/digitalworks2020/devops-cli/internal/domain"
)

func newAccountCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Inspect configured accounts",
	}

	cmd.AddCommand(
		newAccountListCmd(app),
		newAccountShowCmd(app),
	)

	return cmd
}

func newAccountListCmd(app *app) *cobra.Command {
	var tool string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tools := app.registry.IDs()
			if tool != "" {
				id, err := parseToolFlag(app, tool)
				if err != nil {
					return err
				}
				tools = []domain.ToolID{id}
			}

			doc, err := app.store.Load(cmd.Context())
			if err != nil {
				return err
			}

			for _, id := range tools {
				for _, name := range doc.AccountNames(id) {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id, name)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&tool, "tool", "", "Only list accounts of this tool")
	return cmd
}

func newAccountShowCmd(app *app) *cobra.Command {
	var tool string
	var name string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one account with secure fields hidden",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseToolFlag(app, tool)
			if err != nil {
				return err
			}

			doc, err := app.store.Load(cmd.Context())
			if err != nil {
				return err
			}

			creds, ok := doc.Account(id, name)
			if !ok {
				return fmt.Errorf("%w: %s/%s", domain.ErrAccountNotFound, id, name)
			}

			schema, _ := app.registry.Schema(id)
			masked := app.registry.Mask(id, creds)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), app.renderer.AccountDetails(schema, name, masked, app.registry.SortedKeys(id, masked)))
			return err
		},
	}

	cmd.Flags().StringVar(&tool, "tool", "", "Tool id (see 'devops-cli tools')")
	cmd.Flags().StringVar(&name, "name", "", "Account name")
	_ = cmd.MarkFlagRequired("tool")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func parseToolFlag(app *app, raw string) (domain.ToolID, error) {
	id, ok := app.registry.ParseTool(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownTool, raw)
	}
	return id, nil
}
