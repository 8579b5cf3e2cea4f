package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	awsadapter "github.com/digitalworks2020/devops-cli/internal/adapters/aws"
	"github.com/digitalworks2020/devops-cli/internal/adapters/input/terminal"
	jiraadapter "github.com/digitalworks2020/devops-cli/internal/adapters/jira"
	"github.com/digitalworks2020/devops-cli/internal/application"
	"github.com/digitalworks2020/devops-cli/internal/domain"
	"github.com/digitalworks2020/devops-cli/internal/ports"
)

const (
	welcomeMessage = "Welcome to Digitalworks2020 DevOps CLI!"
	goodbyeMessage = "Exiting Digitalworks2020 DevOps CLI. Goodbye!"

	backToken            = "back"
	defaultInstanceState = "running"
)

var instanceStates = []string{"pending", "running", "shutting-down", "terminated", "stopping", "stopped"}

type spinFunc func(ctx context.Context, out io.Writer, label string, fn func(context.Context) error) error

// session drives one interactive run: pick a tool, pick an account, then
// run that tool's operations until the user goes back.
type session struct {
	app    *app
	flow   *application.AccountFlow
	in     ports.InputSource
	stdin  io.Reader
	out    io.Writer
	errOut io.Writer
	spin   spinFunc
}

func runSession(ctx context.Context, app *app, stdin io.Reader, out, errOut io.Writer) error {
	doc, err := app.store.Load(ctx)
	if err != nil {
		return err
	}

	in := newInputSource(stdin, out)
	s := &session{
		app: app,
		flow: application.NewAccountFlow(doc, app.store, app.registry, in, out,
			application.WithVault(app.vault),
			application.WithRenderer(app.renderer),
			application.WithProfileLister(app.profiles),
			application.WithLogger(app.logger),
		),
		in:     in,
		stdin:  stdin,
		out:    out,
		errOut: errOut,
		spin:   spinnerFor(errOut),
	}

	s.println(app.renderer.Banner(welcomeMessage))
	err = s.loop(ctx)
	if errors.Is(err, domain.ErrExitRequested) {
		s.println(goodbyeMessage)
		return nil
	}
	return err
}

func newInputSource(r io.Reader, out io.Writer) ports.InputSource {
	if f, ok := r.(*os.File); ok {
		return terminal.NewSource(f, out)
	}
	return terminal.NewReaderSource(r, out)
}

func spinnerFor(w io.Writer) spinFunc {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return runSpinner
	}
	return runDirect
}

func (s *session) loop(ctx context.Context) error {
	for {
		tool, err := s.flow.SelectTool(ctx)
		if err != nil {
			return err
		}

		account, creds, err := s.flow.RunSelectionMenu(ctx, tool)
		if err != nil {
			return err
		}
		s.app.logger.Debug().Str("tool", string(tool)).Str("account", account).Msg("account selected")
		s.showAccount(tool, account, creds)

		if err := s.runTool(ctx, tool, creds); err != nil {
			return err
		}
	}
}

func (s *session) showAccount(tool domain.ToolID, account string, creds domain.Credentials) {
	schema, _ := s.app.registry.Schema(tool)
	masked := s.app.registry.Mask(tool, creds)
	s.println(s.app.renderer.AccountDetails(schema, account, masked, s.app.registry.SortedKeys(tool, masked)))
}

func (s *session) runTool(ctx context.Context, tool domain.ToolID, creds domain.Credentials) error {
	switch tool {
	case domain.ToolJiraCloud, domain.ToolJiraServer:
		return s.runJira(ctx, tool, creds)
	case domain.ToolAWSSSO:
		return s.runAWS(ctx, creds)
	default:
		return nil
	}
}

func (s *session) runJira(ctx context.Context, tool domain.ToolID, creds domain.Credentials) error {
	project, err := s.valueOrDefault("project", creds["default_project"], "Enter Jira project key: ")
	if err != nil {
		return err
	}
	board, err := s.valueOrDefault("board", creds["default_board"], "Enter Jira board name: ")
	if err != nil {
		return err
	}

	client, err := s.app.newJira(tool, creds)
	if err != nil {
		s.println(s.app.renderer.Failure(err))
		return nil
	}

	schema, _ := s.app.registry.Schema(tool)
	return s.operations(ctx, schema, func(ctx context.Context, op string) error {
		switch op {
		case "current_sprint_name":
			var name string
			err := s.spin(ctx, s.errOut, "Fetching current sprint...", func(ctx context.Context) error {
				var err error
				name, err = client.CurrentSprintName(ctx, project, board)
				return err
			})
			if errors.Is(err, jiraadapter.ErrNoActiveSprint) {
				s.println(fmt.Sprintf("No active sprint found for project '%s'.", project))
				return nil
			}
			if err != nil {
				return err
			}
			s.println(fmt.Sprintf("Current sprint for project '%s': %s", project, name))
		case "my_issues_in_sprint":
			var issues []domain.Issue
			err := s.spin(ctx, s.errOut, "Fetching your issues...", func(ctx context.Context) error {
				var err error
				issues, err = client.MyIssuesInCurrentSprint(ctx, board)
				return err
			})
			if err != nil {
				return err
			}
			s.println(s.app.renderer.IssuesByStatus(issues))
		case "sprint_sp_stats":
			var stats []domain.SprintStat
			err := s.spin(ctx, s.errOut, "Collecting story points...", func(ctx context.Context) error {
				var err error
				stats, err = client.SprintStoryPointStats(ctx, board, s.app.settings.Jira.SprintHistory)
				return err
			})
			if err != nil {
				return err
			}
			s.println(s.app.renderer.SprintStats(stats))
		}
		return nil
	})
}

func (s *session) runAWS(ctx context.Context, creds domain.Credentials) error {
	profile := creds["profile"]
	region := creds["region"]
	if region == "" {
		region = s.app.settings.AWS.Region
	}

	client, err := s.app.newAWS(ctx, profile, region)
	if err != nil {
		s.println(s.app.renderer.Failure(err))
		return nil
	}

	if err := client.CheckCredentials(ctx); err != nil {
		if !errors.Is(err, awsadapter.ErrSessionExpired) {
			s.println(s.app.renderer.Failure(err))
			return nil
		}

		s.app.logger.Info().Str("profile", profile).Msg("aws session expired, starting sso login")
		if err := s.app.ssoLogin(ctx, profile, s.stdin, s.out); err != nil {
			s.println(s.app.renderer.Failure(err))
			return nil
		}
		if client, err = s.app.newAWS(ctx, profile, region); err != nil {
			s.println(s.app.renderer.Failure(err))
			return nil
		}
	}

	schema, _ := s.app.registry.Schema(domain.ToolAWSSSO)
	return s.operations(ctx, schema, func(ctx context.Context, op string) error {
		now := s.app.clock.Now().UTC()
		switch op {
		case "current_month_cost":
			return s.showCost(ctx, client, "Current month", now.Year(), now.Month())
		case "previous_month_cost":
			year, month := awsadapter.PreviousMonth(now)
			return s.showCost(ctx, client, "Previous month", year, month)
		case "list_instances":
			state, err := s.instanceState()
			if err != nil {
				return err
			}
			var instances []domain.Instance
			err = s.spin(ctx, s.errOut, "Listing instances...", func(ctx context.Context) error {
				var err error
				instances, err = client.ListInstances(ctx, state)
				return err
			})
			if err != nil {
				return err
			}
			s.println(s.app.renderer.Instances(state, instances))
		}
		return nil
	})
}

func (s *session) showCost(ctx context.Context, client awsQueries, label string, year int, month time.Month) error {
	var cost domain.MonthCost
	err := s.spin(ctx, s.errOut, "Fetching cost...", func(ctx context.Context) error {
		var err error
		cost, err = client.MonthCost(ctx, year, month)
		return err
	})
	if err != nil {
		return err
	}
	s.println(s.app.renderer.Cost(label, cost))
	return nil
}

func (s *session) instanceState() (string, error) {
	answer, err := s.in.ReadLine(fmt.Sprintf("Enter instance state (%s) [%s]: ", strings.Join(instanceStates, ", "), defaultInstanceState))
	if err != nil {
		return "", err
	}

	state := strings.ToLower(strings.TrimSpace(answer))
	if state == "" {
		return defaultInstanceState, nil
	}
	for _, known := range instanceStates {
		if state == known {
			return state, nil
		}
	}
	return "", fmt.Errorf("%w: instance state %q", domain.ErrInvalidChoice, state)
}

// valueOrDefault offers a stored default first and otherwise asks until a
// non-blank value is given.
func (s *session) valueOrDefault(label, stored, prompt string) (string, error) {
	if stored != "" {
		answer, err := s.in.ReadLine(fmt.Sprintf("Use default %s '%s'? (y/n): ", label, stored))
		if err != nil {
			return "", err
		}
		if strings.ToLower(strings.TrimSpace(answer)) == "y" {
			return stored, nil
		}
	}

	for {
		answer, err := s.in.ReadLine(prompt)
		if err != nil {
			return "", err
		}
		if value := strings.TrimSpace(answer); value != "" {
			return value, nil
		}
		s.println("A value is required.")
	}
}

// operations shows the operation menu until the user types back. Failed
// operations are reported and the menu is shown again.
func (s *session) operations(ctx context.Context, schema domain.ToolSchema, run func(ctx context.Context, op string) error) error {
	prompt := fmt.Sprintf("Choose an operation (1-%d), or type '%s' to select another tool: ", len(schema.Operations), backToken)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.println(s.app.renderer.OperationMenu(schema))
		answer, err := s.in.ReadLine(prompt)
		if err != nil {
			return err
		}

		choice := strings.ToLower(strings.TrimSpace(answer))
		if choice == backToken {
			return nil
		}

		op, ok := pickOperation(schema.Operations, choice)
		if !ok {
			s.println("Invalid operation choice.")
			continue
		}

		if err := run(ctx, op.Key); err != nil {
			if errors.Is(err, domain.ErrExitRequested) || errors.Is(err, context.Canceled) {
				return err
			}
			s.app.logger.Warn().Str("tool", string(schema.ID)).Str("operation", op.Key).Err(err).Msg("operation failed")
			s.println(s.app.renderer.Failure(err))
		}
	}
}

// pickOperation accepts a 1-based menu number or an operation key.
func pickOperation(ops []domain.OperationSpec, choice string) (domain.OperationSpec, bool) {
	if n, err := strconv.Atoi(choice); err == nil {
		if n >= 1 && n <= len(ops) {
			return ops[n-1], true
		}
		return domain.OperationSpec{}, false
	}
	for _, op := range ops {
		if op.Key == choice {
			return op, true
		}
	}
	return domain.OperationSpec{}, false
}

func (s *session) println(line string) {
	_, _ = fmt.Fprintln(s.out, line)
}
