package pass

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/digitalworks2020/devops-cli/internal/domain"
	"github.com/digitalworks2020/devops-cli/internal/ports"
)

var ErrUnavailable = errors.New("pass command unavailable")

const notInStoreMarker = "is not in the password store"

// invocation is one pass(1) run. Env holds only the variables added on top of
// the process environment.
type invocation struct {
	Env   []string
	Stdin string
	Args  []string
}

type runFunc func(ctx context.Context, inv invocation) (stdout string, stderr string, err error)

// CommandError is a pass run that exited with an error other than a missing
// entry.
type CommandError struct {
	Op     string
	Key    string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("pass %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("pass %s %q: %v: %s", e.Op, e.Key, e.Err, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Store keeps account secrets as pass(1) entries named after their secret
// key. Values go through stdin so they never show up in process arguments.
type Store struct {
	dir string
	run runFunc
}

var _ ports.SecretStore = (*Store)(nil)

type Option func(*Store)

// WithStoreDir points pass at a password store other than the user's
// default. An empty dir keeps the default.
func WithStoreDir(dir string) Option {
	return func(s *Store) {
		s.dir = dir
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{run: runPass}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	_, err := s.exec(ctx, "insert", key, value+"\n", "--multiline", "--force")
	return err
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	stdout, err := s.exec(ctx, "show", key, "")
	if err != nil {
		return "", err
	}

	return strings.TrimRight(stdout, "\r\n"), nil
}

// Delete treats an entry that is already gone as removed.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.exec(ctx, "rm", key, "", "--force")
	if errors.Is(err, domain.ErrSecretNotFound) {
		return nil
	}
	return err
}

func (s *Store) exec(ctx context.Context, op string, key string, stdin string, flags ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	args := append([]string{op}, flags...)
	args = append(args, key)

	stdout, stderr, err := s.run(ctx, invocation{Env: s.env(), Stdin: stdin, Args: args})
	switch {
	case err == nil:
		return stdout, nil
	case errors.Is(err, ErrUnavailable):
		return "", err
	case strings.Contains(stderr, notInStoreMarker):
		return "", fmt.Errorf("pass %s %q: %w", op, key, domain.ErrSecretNotFound)
	default:
		return "", &CommandError{Op: op, Key: key, Stderr: stderr, Err: err}
	}
}

func (s *Store) env() []string {
	if s.dir == "" {
		return nil
	}
	return []string{"PASSWORD_STORE_DIR=" + s.dir}
}

func runPass(ctx context.Context, inv invocation) (string, string, error) {
	path, err := exec.LookPath("pass")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", ErrUnavailable
		}
		return "", "", fmt.Errorf("locate pass: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, inv.Args...)
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	if inv.Stdin != "" {
		cmd.Stdin = strings.NewReader(inv.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}
