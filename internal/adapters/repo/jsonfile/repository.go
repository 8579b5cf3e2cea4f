package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/digitalworks2020/devops-cli/internal/domain"
	"github.com/digitalworks2020/devops-cli/internal/ports"
	"github.com/phuslu/log"
)

const (
	documentFileMode = 0o600
	documentDirMode  = 0o700
	tempFilePattern  = ".devops-cli-*.json.tmp"
)

// Repository persists the config document as indented JSON. Writes go to a
// temp file in the target directory and are renamed over the target.
//
// Access is serialised per path inside one process only; two processes
// writing the same file race and the last rename wins.
type Repository struct {
	path     string
	registry domain.Registry
	mu       *sync.RWMutex
	logger   *log.Logger
	rename   func(oldpath, newpath string) error
}

type Option func(*Repository)

func WithLogger(logger *log.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.ConfigStore = (*Repository)(nil)

func NewRepository(path string, registry domain.Registry, opts ...Option) (*Repository, error) {
	if path == "" {
		return nil, errors.New("config document path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config document path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	repo := &Repository{
		path:     absPath,
		registry: registry,
		mu:       lockForPath(absPath),
		logger:   &log.Logger{Writer: &log.IOWriter{Writer: io.Discard}},
		rename:   os.Rename,
	}
	for _, opt := range opts {
		opt(repo)
	}

	return repo, nil
}

func (r *Repository) Path() string {
	return r.path
}

// Load returns the persisted document reconciled against the supported tools.
// A missing file yields the default document; an unparsable one yields a
// *domain.ConfigCorruptionError.
func (r *Repository) Load(ctx context.Context) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Info().Str("path", r.path).Msg("config document not found, starting with defaults")
			return domain.DefaultDocument(r.registry.IDs()), nil
		}
		return nil, fmt.Errorf("read config document: %w", err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, &domain.ConfigCorruptionError{Path: r.path, Err: err}
	}

	before := len(doc.Tools())
	domain.ReconcileSupportedTools(doc, r.registry.IDs())
	if added := len(doc.Tools()) - before; added > 0 {
		r.logger.Info().Str("path", r.path).Int("added_sections", added).Msg("reconciled supported tools")
	}

	r.logger.Debug().Str("path", r.path).Int("sections", len(doc.Tools())).Msg("config document loaded")
	return doc, nil
}

func (r *Repository) Save(ctx context.Context, doc *domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil {
		return &domain.PersistenceError{Op: "encode", Path: r.path, Err: errors.New("document is nil")}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &domain.PersistenceError{Op: "encode", Path: r.path, Err: err}
	}
	data = append(data, '\n')

	if err := r.writeAtomic(data); err != nil {
		r.logger.Error().Err(err).Str("path", r.path).Msg("config document not saved")
		return err
	}

	r.logger.Debug().Str("path", r.path).Int("bytes", len(data)).Msg("config document saved")
	return nil
}

func decodeDocument(data []byte) (*domain.Document, error) {
	if !json.Valid(data) {
		var probe any
		if err := json.Unmarshal(data, &probe); err != nil {
			return nil, fmt.Errorf("decode config document: %w", err)
		}
		return nil, errors.New("decode config document: invalid JSON")
	}

	doc := domain.NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode config document: %w", err)
	}

	return doc, nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeAtomic(data []byte) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, documentDirMode); err != nil {
		return &domain.PersistenceError{Op: "create directory", Path: r.path, Err: err}
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return &domain.PersistenceError{Op: "create temp file", Path: r.path, Err: err}
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return &domain.PersistenceError{Op: "write temp file", Path: r.path, Err: err}
	}

	if err := tempFile.Chmod(documentFileMode); err != nil {
		_ = tempFile.Close()
		return &domain.PersistenceError{Op: "chmod temp file", Path: r.path, Err: err}
	}

	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return &domain.PersistenceError{Op: "sync temp file", Path: r.path, Err: err}
	}

	if err := tempFile.Close(); err != nil {
		return &domain.PersistenceError{Op: "close temp file", Path: r.path, Err: err}
	}

	if err := r.rename(tempName, r.path); err != nil {
		return &domain.PersistenceError{Op: "replace document", Path: r.path, Err: err}
	}

	cleanup = false
	return nil
}
