package ports

import (
	"context"

	"github.com/digitalworks2020/devops-cli/internal/domain"
)

type ConfigStore interface {
	Load(ctx context.Context) (*domain.Document, error)
	Save(ctx context.Context, doc *domain.Document) error
	Path() string
}
