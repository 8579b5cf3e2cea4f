package jsonfile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/digitalworks2020/devops-cli/internal/domain"
	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T, path string) *Repository {
	t.Helper()

	repo, err := NewRepository(path, domain.DefaultRegistry())
	require.NoError(t, err)
	return repo
}

func TestRepositoryLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "config.json")
	repo := newTestRepo(t, path)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRegistry().IDs(), doc.Tools())

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "load must not create the file")
}

func TestRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	repo := newTestRepo(t, path)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, doc.AddAccount(domain.ToolJiraCloud, "teamA", domain.Credentials{
		"url":       "https://x.atlassian.net",
		"username":  "bob",
		"api_token": "secret",
	}))
	require.NoError(t, doc.AddAccount(domain.ToolJiraCloud, "alpha", domain.Credentials{"url": "https://a"}))
	require.NoError(t, repo.Save(context.Background(), doc))

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"teamA", "alpha"}, loaded.AccountNames(domain.ToolJiraCloud))

	creds, ok := loaded.Account(domain.ToolJiraCloud, "teamA")
	require.True(t, ok)
	assert.Equal(t, domain.Credentials{"url": "https://x.atlassian.net", "username": "bob", "api_token": "secret"}, creds)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRepositoryLoadReconcilesMissingToolsAndKeepsUnknown(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "jira_server": {"accounts": {"opsA": {"url": "https://jira.local", "api_token": "t"}}},
  "retired_tool": {"accounts": {}}
}`), 0o600))

	repo := newTestRepo(t, path)
	doc, err := repo.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.ToolID{domain.ToolJiraServer, "retired_tool", domain.ToolJiraCloud, domain.ToolAWSSSO}, doc.Tools())
	assert.Equal(t, []string{"opsA"}, doc.AccountNames(domain.ToolJiraServer))
}

func TestRepositoryLoadMalformedDocumentIsCorruption(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "truncated", body: `{"jira_cloud": {"accounts": {`},
		{name: "empty file", body: ``},
		{name: "array root", body: `[]`},
		{name: "non string credential", body: `{"jira_cloud": {"accounts": {"a": {"url": 5}}}}`},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o600))

			_, err := newTestRepo(t, path).Load(context.Background())
			require.Error(t, err)

			var corruption *domain.ConfigCorruptionError
			require.ErrorAs(t, err, &corruption)
			assert.Equal(t, path, corruption.Path)

			data, readErr := os.ReadFile(path)
			require.NoError(t, readErr)
			assert.Equal(t, tc.body, string(data), "corrupt documents are never rewritten")
		})
	}
}

func TestRepositorySaveRenameFailureKeepsPreviousDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	repo := newTestRepo(t, path)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, doc.AddAccount(domain.ToolJiraServer, "opsA", domain.Credentials{"url": "u", "api_token": "t"}))
	require.NoError(t, repo.Save(context.Background(), doc))

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	repo.rename = func(_, _ string) error {
		return errors.New("simulated crash before rename")
	}

	require.NoError(t, doc.AddAccount(domain.ToolJiraServer, "opsB", domain.Credentials{"url": "u2", "api_token": "t2"}))
	err = repo.Save(context.Background(), doc)
	require.Error(t, err)

	var persistence *domain.PersistenceError
	require.ErrorAs(t, err, &persistence)
	assert.Equal(t, "replace document", persistence.Op)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must be cleaned up")
	assert.Equal(t, "config.json", entries[0].Name())

	repo.rename = os.Rename
	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"opsA"}, loaded.AccountNames(domain.ToolJiraServer))
}

func TestRepositorySaveUnwritableDirectoryReturnsPersistenceError(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o600))

	repo := newTestRepo(t, filepath.Join(blocker, "config.json"))
	err := repo.Save(context.Background(), domain.DefaultDocument(domain.DefaultRegistry().IDs()))

	var persistence *domain.PersistenceError
	require.ErrorAs(t, err, &persistence)
}

func TestRepositorySaveCanceledContextReturnsContextError(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t, filepath.Join(t.TempDir(), "config.json"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Save(ctx, domain.NewDocument())
	require.ErrorIs(t, err, context.Canceled)
}

func TestRepositorySaveWritesIndentedJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	repo := newTestRepo(t, path)
	require.NoError(t, repo.Save(context.Background(), domain.DefaultDocument(domain.DefaultRegistry().IDs())))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"jira_cloud\": {\n    \"accounts\": {}\n  },\n  \"jira_server\": {\n    \"accounts\": {}\n  },\n  \"aws_sso\": {\n    \"accounts\": {}\n  }\n}\n", string(data))
}

func TestRepositoryLogsNeverContainCredentialValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := &log.Logger{Level: log.TraceLevel, Writer: &log.IOWriter{Writer: &buf}}

	repo, err := NewRepository(filepath.Join(t.TempDir(), "config.json"), domain.DefaultRegistry(), WithLogger(logger))
	require.NoError(t, err)

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, doc.AddAccount(domain.ToolJiraCloud, "teamA", domain.Credentials{"api_token": "super-secret-token"}))
	require.NoError(t, repo.Save(context.Background(), doc))

	assert.NotEmpty(t, buf.String())
	assert.NotContains(t, buf.String(), "super-secret-token")
}

func TestRepositoryConcurrentSavesWithinProcessNeverTearFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	repoA := newTestRepo(t, path)
	repoB := newTestRepo(t, path)

	var wg sync.WaitGroup
	errCh := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errCh <- repoA.Save(context.Background(), domain.DefaultDocument(domain.DefaultRegistry().IDs()))
		}()
		go func() {
			defer wg.Done()
			_, err := repoB.Load(context.Background())
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}
}
