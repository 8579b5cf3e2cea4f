package application

import (
	"fmt"
	"strings"

	"github.com/digitalworks2020/devops-cli/internal/domain"
)

// PlainRenderer draws menus without styling. It is the flow's default.
type PlainRenderer struct{}

func (PlainRenderer) ToolMenu(tools []domain.ToolSchema) string {
	var b strings.Builder
	b.WriteString("Available tools:\n")
	for _, tool := range tools {
		fmt.Fprintf(&b, "  %s (%s)\n", tool.ID, tool.Title())
	}
	return b.String()
}

func (PlainRenderer) AccountList(tool domain.ToolSchema, names []string) string {
	if len(names) == 0 {
		return "No accounts found.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Existing %s accounts:\n", tool.Title())
	for _, name := range names {
		fmt.Fprintf(&b, "  - %s\n", name)
	}
	return b.String()
}
