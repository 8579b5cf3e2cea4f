package aws

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"gopkg.in/ini.v1"

	"github.com/digitalworks2020/devops-cli/internal/ports"
)

// ProfileStore lists the named profiles of the local AWS CLI.
type ProfileStore struct {
	ConfigPath      string
	CredentialsPath string
}

var _ ports.ProfileLister = ProfileStore{}

// NewProfileStore honours AWS_CONFIG_FILE and AWS_SHARED_CREDENTIALS_FILE
// like the AWS CLI does.
func NewProfileStore() ProfileStore {
	store := ProfileStore{
		ConfigPath:      config.DefaultSharedConfigFilename(),
		CredentialsPath: config.DefaultSharedCredentialsFilename(),
	}
	if path := os.Getenv("AWS_CONFIG_FILE"); path != "" {
		store.ConfigPath = path
	}
	if path := os.Getenv("AWS_SHARED_CREDENTIALS_FILE"); path != "" {
		store.CredentialsPath = path
	}
	return store
}

// ListProfiles merges config ("profile x" and "default") and credentials
// sections, deduplicated and sorted. Missing files are skipped.
func (s ProfileStore) ListProfiles() ([]string, error) {
	seen := map[string]struct{}{}

	configSections, err := sectionNames(s.ConfigPath)
	if err != nil {
		return nil, err
	}
	for _, name := range configSections {
		switch {
		case name == "default":
			seen[name] = struct{}{}
		case strings.HasPrefix(name, "profile "):
			seen[strings.TrimSpace(strings.TrimPrefix(name, "profile "))] = struct{}{}
		}
	}

	credentialSections, err := sectionNames(s.CredentialsPath)
	if err != nil {
		return nil, err
	}
	for _, name := range credentialSections {
		seen[name] = struct{}{}
	}

	profiles := make([]string, 0, len(seen))
	for name := range seen {
		if name != "" {
			profiles = append(profiles, name)
		}
	}
	sort.Strings(profiles)
	return profiles, nil
}

func sectionNames(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("read aws profiles from %s: %w", path, err)
	}

	names := make([]string, 0, len(file.Sections()))
	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		names = append(names, strings.TrimSpace(section.Name()))
	}
	return names, nil
}
