package application

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/digitalworks2020/devops-cli/internal/domain"
	"github.com/digitalworks2020/devops-cli/internal/ports"
)

// PostCollector adds optional, tool-specific keys to a bundle after the
// schema fields are collected and before it is stored.
type PostCollector interface {
	PostCollect(ctx context.Context, in ports.InputSource, out io.Writer, creds domain.Credentials) error
}

// PostCollectorFor selects the strategy for a tool.
func PostCollectorFor(tool domain.ToolID, profiles ports.ProfileLister) PostCollector {
	switch tool {
	case domain.ToolJiraCloud, domain.ToolJiraServer:
		return jiraDefaultsCollector{}
	case domain.ToolAWSSSO:
		return awsDefaultsCollector{profiles: profiles}
	default:
		return noopCollector{}
	}
}

type noopCollector struct{}

func (noopCollector) PostCollect(context.Context, ports.InputSource, io.Writer, domain.Credentials) error {
	return nil
}

type jiraDefaultsCollector struct{}

func (jiraDefaultsCollector) PostCollect(_ context.Context, in ports.InputSource, _ io.Writer, creds domain.Credentials) error {
	if err := optionalField(in, creds, "default_project", "Enter default Jira project key (or leave blank to skip): "); err != nil {
		return err
	}
	return optionalField(in, creds, "default_board", "Enter default Jira board name (or leave blank to skip): ")
}

type awsDefaultsCollector struct {
	profiles ports.ProfileLister
}

func (c awsDefaultsCollector) PostCollect(_ context.Context, in ports.InputSource, out io.Writer, creds domain.Credentials) error {
	if c.profiles != nil {
		profiles, err := c.profiles.ListProfiles()
		if err != nil {
			_, _ = fmt.Fprintf(out, "Could not read AWS CLI profiles: %v\n", err)
		} else if !slices.Contains(profiles, creds["profile"]) {
			_, _ = fmt.Fprintf(out, "Warning: profile '%s' is not configured in the AWS CLI yet.\n", creds["profile"])
		}
	}

	return optionalField(in, creds, "region", "Enter default AWS region (or leave blank to skip): ")
}

func optionalField(in ports.InputSource, creds domain.Credentials, key, prompt string) error {
	value, err := in.ReadLine(prompt)
	if err != nil {
		return err
	}
	if value = strings.TrimSpace(value); value != "" {
		creds[key] = value
	}
	return nil
}
