package terminal

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalworks2020/devops-cli/internal/domain"
)

func TestReadLineWritesPromptAndStripsNewline(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	source := NewReaderSource(strings.NewReader("jira_cloud\r\nsecond\n"), &out)

	first, err := source.ReadLine("Select a tool by name: ")
	require.NoError(t, err)
	assert.Equal(t, "jira_cloud", first)

	second, err := source.ReadLine("Next: ")
	require.NoError(t, err)
	assert.Equal(t, "second", second)
	assert.Equal(t, "Select a tool by name: Next: ", out.String())
}

func TestReadLineLastLineWithoutNewline(t *testing.T) {
	t.Parallel()

	source := NewReaderSource(strings.NewReader("tail"), nil)

	got, err := source.ReadLine("")
	require.NoError(t, err)
	assert.Equal(t, "tail", got)

	_, err = source.ReadLine("")
	require.ErrorIs(t, err, domain.ErrExitRequested)
}

func TestExitSentinelAtAnyPrompt(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"exit\n", "  EXIT \n", "Exit"} {
		source := NewReaderSource(strings.NewReader(input), nil)

		_, err := source.ReadLine("prompt: ")
		require.ErrorIs(t, err, domain.ErrExitRequested, input)

		source = NewReaderSource(strings.NewReader(input), nil)
		_, err = source.ReadSecret("secret: ")
		require.ErrorIs(t, err, domain.ErrExitRequested, input)
	}
}

func TestReadSecretUsesPasswordReaderOnTerminal(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	source := NewReaderSource(strings.NewReader("should-not-be-read\n"), &out)
	source.fd = 7
	source.isTerminal = func(fd int) bool { return fd == 7 }
	source.readPassword = func(fd int) ([]byte, error) {
		assert.Equal(t, 7, fd)
		return []byte("hunter2"), nil
	}

	got, err := source.ReadSecret("Enter Cloud API token for 'teamA': ")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
	assert.Equal(t, "Enter Cloud API token for 'teamA': \n", out.String())
	assert.NotContains(t, out.String(), "hunter2")
}

func TestReadSecretPasswordReaderFailure(t *testing.T) {
	t.Parallel()

	source := NewReaderSource(strings.NewReader(""), nil)
	source.isTerminal = func(int) bool { return true }
	source.readPassword = func(int) ([]byte, error) {
		return nil, errors.New("inappropriate ioctl")
	}

	_, err := source.ReadSecret("token: ")
	require.Error(t, err)
	assert.ErrorContains(t, err, "read secret input")
}

func TestReadSecretFallsBackToLineWhenPiped(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	source := NewReaderSource(strings.NewReader("piped-token\n"), &out)

	got, err := source.ReadSecret("token: ")
	require.NoError(t, err)
	assert.Equal(t, "piped-token", got)
	assert.Equal(t, "token: ", out.String())
}

func TestReadSecretConsumesTypedAheadLinesInOrder(t *testing.T) {
	t.Parallel()

	source := NewReaderSource(strings.NewReader("teamA\nhunter2\nafter\n"), nil)
	source.fd = 7
	source.isTerminal = func(int) bool { return true }
	source.readPassword = func(int) ([]byte, error) {
		t.Fatal("buffered input must be read before the terminal")
		return nil, nil
	}

	name, err := source.ReadLine("Enter a unique Jira Cloud account name: ")
	require.NoError(t, err)
	assert.Equal(t, "teamA", name)

	secret, err := source.ReadSecret("Enter Cloud API token for 'teamA': ")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret)

	next, err := source.ReadLine("")
	require.NoError(t, err)
	assert.Equal(t, "after", next)
}
