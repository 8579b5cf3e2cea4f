package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)

	script := strings.Join([]string{
		"aws_sso",
		"add",
		"dev",
		"dev-profile",
		"eu-west-1",
		"delete",
		"dev",
		"yes",
		"exit",
	}, "\n") + "\n"

	stdout, stderr, err := runCLI(t, binaryPath, home, script)
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "Welcome to Digitalworks2020 DevOps CLI!")
	assert.Contains(t, stdout, "Warning: profile 'dev-profile' is not configured in the AWS CLI yet.")
	assert.Contains(t, stdout, "Account 'dev' added.")
	assert.Contains(t, stdout, "Account 'dev' deleted.")
	assert.Contains(t, stdout, "Exiting Digitalworks2020 DevOps CLI. Goodbye!")

	data, err := os.ReadFile(filepath.Join(home, ".digitalworks_devops_cli_config.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jira_cloud":{"accounts":{}},"jira_server":{"accounts":{}},"aws_sso":{"accounts":{}}}`, string(data))

	stdout, stderr, err = runCLI(t, binaryPath, home, "", "account", "list")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Empty(t, stdout)
}

func TestSmokeCorruptDocumentExitsNonZero(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".digitalworks_devops_cli_config.json"), []byte("[]"), 0o600))

	_, stderr, err := runCLI(t, binaryPath, home, "exit\n")
	require.Error(t, err)
	assert.Contains(t, stderr, "is corrupt")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "devops-cli-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/devops-cli")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build devops-cli binary: %s", string(output))
	return binaryPath
}

func runCLI(t *testing.T, binaryPath, home, stdin string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home, "AWS_CONFIG_FILE="+filepath.Join(home, "aws-config"), "AWS_SHARED_CREDENTIALS_FILE="+filepath.Join(home, "aws-credentials"))
	cmd.Stdin = strings.NewReader(stdin)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
