package aws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/ssocreds"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	cetypes "github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/digitalworks2020/devops-cli/internal/domain"
)

const (
	costExplorerRegion = "us-east-1"
	costMetric         = "UnblendedCost"
	dateLayout         = "2006-01-02"
)

var ErrSessionExpired = errors.New("aws session expired")

type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// Client runs read-only cost and inventory queries for one CLI profile.
type Client struct {
	profile string
	sts     STSAPI
	costs   CostExplorerAPI
	ec2     ec2.DescribeInstancesAPIClient
}

// NewClient loads the shared config for profile. An empty region falls back
// to the profile's own region.
func NewClient(ctx context.Context, profile, region string) (*Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithSharedConfigProfile(profile)}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config for profile %s: %w", profile, err)
	}

	return NewClientWithAPIs(
		profile,
		sts.NewFromConfig(cfg),
		costexplorer.NewFromConfig(cfg, func(o *costexplorer.Options) {
			o.Region = costExplorerRegion
		}),
		ec2.NewFromConfig(cfg),
	), nil
}

func NewClientWithAPIs(profile string, stsAPI STSAPI, costs CostExplorerAPI, ec2API ec2.DescribeInstancesAPIClient) *Client {
	return &Client{profile: profile, sts: stsAPI, costs: costs, ec2: ec2API}
}

func (c *Client) Profile() string {
	return c.profile
}

// CheckCredentials returns ErrSessionExpired when the SSO session must be
// refreshed. Any other STS failure is returned as is.
func (c *Client) CheckCredentials(ctx context.Context) error {
	_, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err == nil {
		return nil
	}
	if isExpired(err) {
		return fmt.Errorf("%w for profile %s: %v", ErrSessionExpired, c.profile, err)
	}
	return fmt.Errorf("verify aws credentials for profile %s: %w", c.profile, err)
}

func isExpired(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ExpiredToken", "ExpiredTokenException", "InvalidClientTokenId", "UnrecognizedClientException":
			return true
		}
	}

	// SSO token failures surface from the credential provider before any API call.
	var tokenErr *ssocreds.InvalidTokenError
	return errors.As(err, &tokenErr)
}

func (c *Client) MonthCost(ctx context.Context, year int, month time.Month) (domain.MonthCost, error) {
	start, end := MonthPeriod(year, month)
	out, err := c.costs.GetCostAndUsage(ctx, &costexplorer.GetCostAndUsageInput{
		TimePeriod: &cetypes.DateInterval{
			Start: awssdk.String(start.Format(dateLayout)),
			End:   awssdk.String(end.Format(dateLayout)),
		},
		Granularity: cetypes.GranularityMonthly,
		Metrics:     []string{costMetric},
	})
	if err != nil {
		return domain.MonthCost{}, fmt.Errorf("get cost for %04d-%02d: %w", year, int(month), err)
	}

	cost := domain.MonthCost{Year: year, Month: month}
	if len(out.ResultsByTime) == 0 {
		return cost, nil
	}

	metric, ok := out.ResultsByTime[0].Total[costMetric]
	if !ok || metric.Amount == nil {
		return cost, nil
	}
	amount, err := strconv.ParseFloat(awssdk.ToString(metric.Amount), 64)
	if err != nil {
		return domain.MonthCost{}, fmt.Errorf("parse cost amount %q: %w", awssdk.ToString(metric.Amount), err)
	}
	cost.Amount = amount
	cost.Unit = awssdk.ToString(metric.Unit)
	return cost, nil
}

// ListInstances returns EC2 instances in the given state (e.g. "running").
func (c *Client) ListInstances(ctx context.Context, state string) ([]domain.Instance, error) {
	paginator := ec2.NewDescribeInstancesPaginator(c.ec2, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{{
			Name:   awssdk.String("instance-state-name"),
			Values: []string{state},
		}},
	})

	var instances []domain.Instance
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe %s instances: %w", state, err)
		}
		for _, reservation := range page.Reservations {
			for _, inst := range reservation.Instances {
				instances = append(instances, toDomainInstance(inst))
			}
		}
	}
	return instances, nil
}

func toDomainInstance(inst ec2types.Instance) domain.Instance {
	out := domain.Instance{
		ID:         awssdk.ToString(inst.InstanceId),
		Type:       string(inst.InstanceType),
		PrivateIP:  awssdk.ToString(inst.PrivateIpAddress),
		LaunchedAt: awssdk.ToTime(inst.LaunchTime),
	}
	if inst.State != nil {
		out.State = string(inst.State.Name)
	}
	for _, tag := range inst.Tags {
		if awssdk.ToString(tag.Key) == "Name" {
			out.Name = awssdk.ToString(tag.Value)
		}
	}
	return out
}

// MonthPeriod returns [first day of month, first day of next month).
func MonthPeriod(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func PreviousMonth(now time.Time) (int, time.Month) {
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return prev.Year(), prev.Month()
}

// CommandRunner runs an external command attached to the user's terminal.
type CommandRunner func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, name string, args ...string) error

func ExecRunner(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// SSOLogin runs "aws sso login" for profile.
func SSOLogin(ctx context.Context, run CommandRunner, profile string, in io.Reader, out io.Writer) error {
	if run == nil {
		run = ExecRunner
	}
	_, _ = fmt.Fprintf(out, "AWS credentials for profile '%s' are expired or missing.\n", profile)
	_, _ = fmt.Fprintf(out, "Running: aws sso login --profile %s\n", profile)

	if err := run(ctx, in, out, out, "aws", "sso", "login", "--profile", profile); err != nil {
		return fmt.Errorf("aws sso login --profile %s: %w", profile, err)
	}
	return nil
}
