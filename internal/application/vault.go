package application

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/digitalworks2020/devops-cli/internal/domain"
	"github.com/digitalworks2020/devops-cli/internal/ports"
)

const secretRefPrefix = "secret://"

// CredentialVault moves secure field values between the config document and
// an optional secret store. With no store every value stays inline.
type CredentialVault struct {
	store    ports.SecretStore
	registry domain.Registry
}

func NewCredentialVault(store ports.SecretStore, registry domain.Registry) *CredentialVault {
	return &CredentialVault{store: store, registry: registry}
}

// SecretKey escapes every segment so no account name can address another
// tool's or account's secret.
func SecretKey(tool domain.ToolID, account, field string) string {
	return fmt.Sprintf("devops-cli/%s/%s/%s", url.PathEscape(string(tool)), url.PathEscape(account), url.PathEscape(field))
}

func IsSecretRef(value string) bool {
	return strings.HasPrefix(value, secretRefPrefix)
}

func (v *CredentialVault) inline() bool {
	return v == nil || v.store == nil
}

// Seal stores secure values and returns the bundle to persist, where those
// values are replaced by secret references. Partially stored secrets are
// removed again when a later put fails.
func (v *CredentialVault) Seal(ctx context.Context, tool domain.ToolID, account string, creds domain.Credentials) (domain.Credentials, error) {
	sealed := creds.Clone()
	if v.inline() {
		return sealed, nil
	}

	schema, ok := v.registry.Schema(tool)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTool, tool)
	}
	if err := domain.ValidateAccountName(account); err != nil {
		return nil, err
	}

	stored := make([]string, 0, len(schema.Fields))
	for _, field := range schema.Fields {
		if !field.Secure {
			continue
		}
		value, ok := creds[field.Name]
		if !ok {
			continue
		}

		key := SecretKey(tool, account, field.Name)
		if err := v.store.Put(ctx, key, value); err != nil {
			var rollbackErr error
			for _, storedKey := range stored {
				if deleteErr := v.store.Delete(ctx, storedKey); deleteErr != nil {
					rollbackErr = errors.Join(rollbackErr, deleteErr)
				}
			}
			if rollbackErr != nil {
				return nil, fmt.Errorf("store secret %s and rollback stored secrets: %w", field.Name, errors.Join(err, rollbackErr))
			}
			return nil, fmt.Errorf("store secret %s: %w", field.Name, err)
		}

		stored = append(stored, key)
		sealed[field.Name] = secretRefPrefix + key
	}

	return sealed, nil
}

// Open resolves secret references back into plain values.
func (v *CredentialVault) Open(ctx context.Context, creds domain.Credentials) (domain.Credentials, error) {
	opened := creds.Clone()
	for field, value := range creds {
		if !IsSecretRef(value) {
			continue
		}
		if v.inline() {
			return nil, fmt.Errorf("field %s references a secret store but none is configured", field)
		}

		secret, err := v.store.Get(ctx, strings.TrimPrefix(value, secretRefPrefix))
		if err != nil {
			return nil, fmt.Errorf("load secret %s: %w", field, err)
		}
		opened[field] = secret
	}

	return opened, nil
}

// Purge deletes every secret referenced by creds.
func (v *CredentialVault) Purge(ctx context.Context, creds domain.Credentials) error {
	if v.inline() {
		return nil
	}

	var purgeErr error
	for field, value := range creds {
		if !IsSecretRef(value) {
			continue
		}
		if err := v.store.Delete(ctx, strings.TrimPrefix(value, secretRefPrefix)); err != nil {
			purgeErr = errors.Join(purgeErr, fmt.Errorf("delete secret %s: %w", field, err))
		}
	}

	return purgeErr
}
