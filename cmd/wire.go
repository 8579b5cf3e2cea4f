package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/viper"

	awsadapter "github.com/digitalworks2020/devops-cli/internal/adapters/aws"
	jiraadapter "github.com/digitalworks2020/devops-cli/internal/adapters/jira"
	"github.com/digitalworks2020/devops-cli/internal/adapters/render/menu"
	"github.com/digitalworks2020/devops-cli/internal/adapters/repo/jsonfile"
	chainstore "github.com/digitalworks2020/devops-cli/internal/adapters/secrets/chain"
	filestore "github.com/digitalworks2020/devops-cli/internal/adapters/secrets/file"
	keyringstore "github.com/digitalworks2020/devops-cli/internal/adapters/secrets/keyring"
	passstore "github.com/digitalworks2020/devops-cli/internal/adapters/secrets/pass"
	"github.com/digitalworks2020/devops-cli/internal/application"
	"github.com/digitalworks2020/devops-cli/internal/config"
	"github.com/digitalworks2020/devops-cli/internal/domain"
	"github.com/digitalworks2020/devops-cli/internal/ports"
)

type jiraQueries interface {
	CurrentSprintName(ctx context.Context, project, board string) (string, error)
	MyIssuesInCurrentSprint(ctx context.Context, board string) ([]domain.Issue, error)
	SprintStoryPointStats(ctx context.Context, board string, n int) ([]domain.SprintStat, error)
}

type awsQueries interface {
	CheckCredentials(ctx context.Context) error
	MonthCost(ctx context.Context, year int, month time.Month) (domain.MonthCost, error)
	ListInstances(ctx context.Context, state string) ([]domain.Instance, error)
}

type app struct {
	settings config.Settings
	logger   *log.Logger
	registry domain.Registry
	store    ports.ConfigStore
	vault    *application.CredentialVault
	renderer menu.Renderer
	profiles ports.ProfileLister

	newJira  func(tool domain.ToolID, creds domain.Credentials) (jiraQueries, error)
	newAWS   func(ctx context.Context, profile, region string) (awsQueries, error)
	ssoLogin func(ctx context.Context, profile string, in io.Reader, out io.Writer) error
	clock    ports.Clock
}

func wireApp() (*app, error) {
	settings, err := config.Load(viper.New())
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	logger := newLogger(settings.Log.Level, os.Stderr)
	registry := domain.DefaultRegistry()

	repo, err := jsonfile.NewRepository(settings.Config.Path, registry, jsonfile.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("wire config store: %w", err)
	}

	secrets, err := newSecretStore(settings.Secrets)
	if err != nil {
		return nil, fmt.Errorf("wire secret store: %w", err)
	}

	return &app{
		settings: settings,
		logger:   logger,
		registry: registry,
		store:    repo,
		vault:    application.NewCredentialVault(secrets, registry),
		renderer: menu.NewRenderer(),
		profiles: awsadapter.NewProfileStore(),
		newJira:  newJiraClient(settings.Jira),
		newAWS: func(ctx context.Context, profile, region string) (awsQueries, error) {
			return awsadapter.NewClient(ctx, profile, region)
		},
		ssoLogin: func(ctx context.Context, profile string, in io.Reader, out io.Writer) error {
			return awsadapter.SSOLogin(ctx, awsadapter.ExecRunner, profile, in, out)
		},
		clock: ports.SystemClock{},
	}, nil
}

func newLogger(level string, w io.Writer) *log.Logger {
	return &log.Logger{
		Level:  log.ParseLevel(level),
		Writer: &log.ConsoleWriter{Writer: w, QuoteString: true},
	}
}

// newSecretStore returns nil for the inline backend: secure values then stay
// in the document.
func newSecretStore(settings config.SecretSettings) (ports.SecretStore, error) {
	switch settings.Backend {
	case config.SecretBackendInline:
		return nil, nil
	case config.SecretBackendFile:
		return filestore.NewStore(settings.Path), nil
	case config.SecretBackendPass:
		return passstore.NewStore(passstore.WithStoreDir(settings.PassDir)), nil
	case config.SecretBackendKeyring:
		return keyringstore.NewStore(keyringstore.DefaultService), nil
	case config.SecretBackendChain:
		store, err := chainstore.NewDefault(settings.Path, passstore.WithStoreDir(settings.PassDir))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported secret backend %q", settings.Backend)
	}
}

func newJiraClient(settings config.JiraSettings) func(domain.ToolID, domain.Credentials) (jiraQueries, error) {
	return func(tool domain.ToolID, creds domain.Credentials) (jiraQueries, error) {
		opt := jiraadapter.WithStoryPointsField(settings.StoryPointsField)
		switch tool {
		case domain.ToolJiraCloud:
			return jiraadapter.NewCloudClient(creds["url"], creds["username"], creds["api_token"], opt)
		case domain.ToolJiraServer:
			return jiraadapter.NewServerClient(creds["url"], creds["api_token"], opt)
		default:
			return nil, fmt.Errorf("%w: %q is not a Jira tool", domain.ErrUnknownTool, tool)
		}
	}
}
