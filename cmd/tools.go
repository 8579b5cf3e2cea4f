package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newToolsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List supported tools with their fields and operations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), app.renderer.ToolCatalog(app.registry.Tools()))
			return err
		},
	}
}
