package ports

import "github.com/digitalworks2020/devops-cli/internal/domain"

type MenuRenderer interface {
	ToolMenu(tools []domain.ToolSchema) string
	AccountList(tool domain.ToolSchema, names []string) string
}
