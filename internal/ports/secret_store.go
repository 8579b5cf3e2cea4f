package ports

import "context"

// SecretStore keeps secure credential values outside the config document.
// Keys look like "devops-cli/<tool>/<account>/<field>".
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
