package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	settingsName = "settings"
	settingsType = "toml"
	settingsDir  = ".config/devops-cli"
	envPrefix    = "DEVOPS_CLI"

	defaultDocumentFile = ".digitalworks_devops_cli_config.json"
	settingsFileMode    = 0o600
	settingsDirMode     = 0o700
)

const (
	SecretBackendInline  = "inline"
	SecretBackendFile    = "file"
	SecretBackendPass    = "pass"
	SecretBackendKeyring = "keyring"
	SecretBackendChain   = "chain"
)

type Settings struct {
	Config  DocumentSettings `mapstructure:"config" toml:"config"`
	Secrets SecretSettings   `mapstructure:"secrets" toml:"secrets"`
	Log     LogSettings      `mapstructure:"log" toml:"log"`
	Jira    JiraSettings     `mapstructure:"jira" toml:"jira"`
	AWS     AWSSettings      `mapstructure:"aws" toml:"aws"`
}

type DocumentSettings struct {
	Path string `mapstructure:"path" toml:"path" validate:"required"`
}

type SecretSettings struct {
	Backend string `mapstructure:"backend" toml:"backend" validate:"required,oneof=inline file pass keyring chain"`
	Path    string `mapstructure:"path" toml:"path" validate:"required"`
	// PassDir overrides PASSWORD_STORE_DIR for the pass backend.
	PassDir string `mapstructure:"pass_dir" toml:"pass_dir,omitempty"`
}

type LogSettings struct {
	Level string `mapstructure:"level" toml:"level" validate:"required,oneof=trace debug info warn error"`
}

type JiraSettings struct {
	StoryPointsField string `mapstructure:"story_points_field" toml:"story_points_field" validate:"required"`
	SprintHistory    int    `mapstructure:"sprint_history" toml:"sprint_history" validate:"min=1,max=20"`
}

type AWSSettings struct {
	Region string `mapstructure:"region" toml:"region"`
}

// Load reads ~/.config/devops-cli/settings.toml when present, then applies
// DEVOPS_CLI_* environment overrides (e.g. DEVOPS_CLI_CONFIG_PATH).
func Load(v *viper.Viper) (Settings, error) {
	if v == nil {
		v = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Settings{}, fmt.Errorf("resolve home directory: %w", err)
	}

	v.SetConfigName(settingsName)
	v.SetConfigType(settingsType)
	v.AddConfigPath(filepath.Join(homeDir, settingsDir))
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, homeDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read settings file: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}

	settings.Config.Path = expandHome(settings.Config.Path, homeDir)
	settings.Secrets.Path = expandHome(settings.Secrets.Path, homeDir)
	settings.Secrets.PassDir = expandHome(settings.Secrets.PassDir, homeDir)
	settings.Secrets.Backend = strings.ToLower(strings.TrimSpace(settings.Secrets.Backend))
	settings.Log.Level = strings.ToLower(strings.TrimSpace(settings.Log.Level))

	if err := Validate(settings); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

func Defaults(homeDir string) Settings {
	return Settings{
		Config:  DocumentSettings{Path: filepath.Join(homeDir, defaultDocumentFile)},
		Secrets: SecretSettings{Backend: SecretBackendInline, Path: filepath.Join(homeDir, settingsDir, "secrets")},
		Log:     LogSettings{Level: "warn"},
		Jira:    JiraSettings{StoryPointsField: "customfield_10016", SprintHistory: 3},
	}
}

func setDefaults(v *viper.Viper, homeDir string) {
	defaults := Defaults(homeDir)
	v.SetDefault("config.path", defaults.Config.Path)
	v.SetDefault("secrets.backend", defaults.Secrets.Backend)
	v.SetDefault("secrets.path", defaults.Secrets.Path)
	v.SetDefault("secrets.pass_dir", defaults.Secrets.PassDir)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("jira.story_points_field", defaults.Jira.StoryPointsField)
	v.SetDefault("jira.sprint_history", defaults.Jira.SprintHistory)
	v.SetDefault("aws.region", defaults.AWS.Region)
}

func Validate(settings Settings) error {
	if err := validator.New().Struct(settings); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			fields := make([]string, 0, len(invalid))
			for _, fieldErr := range invalid {
				fields = append(fields, fmt.Sprintf("%s (%s)", fieldErr.Namespace(), fieldErr.Tag()))
			}
			return fmt.Errorf("invalid settings: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("validate settings: %w", err)
	}
	return nil
}

func SettingsPath(homeDir string) string {
	return filepath.Join(homeDir, settingsDir, settingsName+"."+settingsType)
}

func Encode(settings Settings) ([]byte, error) {
	data, err := toml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return data, nil
}

// WriteFile writes settings as TOML. An existing file is only replaced when
// force is set.
func WriteFile(path string, settings Settings, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("settings file %s already exists", path)
		}
	}

	data, err := Encode(settings)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), settingsDirMode); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	if err := os.WriteFile(path, data, settingsFileMode); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}

	return nil
}

func expandHome(path string, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
