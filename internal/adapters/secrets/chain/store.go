package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/digitalworks2020/devops-cli/internal/adapters/secrets/file"
	keyringstore "github.com/digitalworks2020/devops-cli/internal/adapters/secrets/keyring"
	passstore "github.com/digitalworks2020/devops-cli/internal/adapters/secrets/pass"
	"github.com/digitalworks2020/devops-cli/internal/ports"
)

// Store tries its backends in order. Writes land in the first backend that
// accepts them, reads return the first hit and deletes reach every backend.
type Store struct {
	backends []ports.SecretStore
}

var _ ports.SecretStore = (*Store)(nil)

var errNoBackends = errors.New("secret chain needs at least one backend")

func NewStore(backends ...ports.SecretStore) (*Store, error) {
	if len(backends) == 0 {
		return nil, errNoBackends
	}
	for i, backend := range backends {
		if backend == nil {
			return nil, fmt.Errorf("secret chain backend %d is nil", i)
		}
	}

	return &Store{backends: backends}, nil
}

// NewDefault chains pass, the OS keyring and a file store rooted at fileRoot.
func NewDefault(fileRoot string, passOpts ...passstore.Option) (*Store, error) {
	return NewStore(
		passstore.NewStore(passOpts...),
		keyringstore.NewStore(keyringstore.DefaultService),
		filestore.NewStore(fileRoot),
	)
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	var errs []error
	for i, backend := range s.backends {
		err := backend.Put(ctx, key, value)
		if err == nil {
			return nil
		}
		if isContextErr(err) {
			return err
		}
		errs = append(errs, fmt.Errorf("backend %d put: %w", i, err))
	}

	return errors.Join(errs...)
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var errs []error
	for i, backend := range s.backends {
		value, err := backend.Get(ctx, key)
		if err == nil {
			return value, nil
		}
		if isContextErr(err) {
			return "", err
		}
		errs = append(errs, fmt.Errorf("backend %d get: %w", i, err))
	}

	return "", errors.Join(errs...)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	var errs []error
	for i, backend := range s.backends {
		err := backend.Delete(ctx, key)
		if err == nil {
			continue
		}
		if isContextErr(err) {
			return err
		}
		errs = append(errs, fmt.Errorf("backend %d delete: %w", i, err))
	}

	return errors.Join(errs...)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
