package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	gojira "github.com/andygrunwald/go-jira"

	"github.com/digitalworks2020/devops-cli/internal/domain"
)

const (
	defaultPageSize         = 50
	defaultStoryPointsField = "customfield_10016"
	doneCategoryKey         = "done"
)

var (
	ErrBoardNotFound  = errors.New("board not found")
	ErrNoActiveSprint = errors.New("no active sprint")
)

// Client runs the read-only sprint and issue queries against one Jira site.
type Client struct {
	api              *gojira.Client
	storyPointsField string
	pageSize         int
}

type Option func(*Client)

func WithStoryPointsField(field string) Option {
	return func(c *Client) {
		if field = strings.TrimSpace(field); field != "" {
			c.storyPointsField = field
		}
	}
}

func WithPageSize(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// NewCloudClient authenticates with an Atlassian account email and API token.
func NewCloudClient(baseURL, username, token string, opts ...Option) (*Client, error) {
	transport := gojira.BasicAuthTransport{Username: username, Password: token}
	return newClient(transport.Client(), baseURL, opts...)
}

// NewServerClient authenticates with a Jira Server/Data Center personal
// access token.
func NewServerClient(baseURL, token string, opts ...Option) (*Client, error) {
	transport := gojira.PATAuthTransport{Token: token}
	return newClient(transport.Client(), baseURL, opts...)
}

func newClient(httpClient *http.Client, baseURL string, opts ...Option) (*Client, error) {
	api, err := gojira.NewClient(httpClient, strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}

	client := &Client{
		api:              api,
		storyPointsField: defaultStoryPointsField,
		pageSize:         defaultPageSize,
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// BoardID finds a board by case-insensitive name, following pagination.
func (c *Client) BoardID(ctx context.Context, name string) (int, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	startAt := 0
	for {
		page, _, err := c.api.Board.GetAllBoardsWithContext(ctx, &gojira.BoardListOptions{
			Name:          strings.TrimSpace(name),
			SearchOptions: gojira.SearchOptions{StartAt: startAt, MaxResults: c.pageSize},
		})
		if err != nil {
			return 0, fmt.Errorf("list boards: %w", err)
		}

		for _, board := range page.Values {
			if strings.ToLower(board.Name) == want {
				return board.ID, nil
			}
		}
		if page.IsLast || len(page.Values) < c.pageSize {
			return 0, fmt.Errorf("%w: %q", ErrBoardNotFound, name)
		}
		startAt += len(page.Values)
	}
}

func (c *Client) sprints(ctx context.Context, boardID int, state string) ([]gojira.Sprint, error) {
	var sprints []gojira.Sprint
	startAt := 0
	for {
		page, _, err := c.api.Board.GetAllSprintsWithOptionsWithContext(ctx, boardID, &gojira.GetAllSprintsOptions{
			State:         state,
			SearchOptions: gojira.SearchOptions{StartAt: startAt, MaxResults: c.pageSize},
		})
		if err != nil {
			return nil, fmt.Errorf("list %s sprints of board %d: %w", state, boardID, err)
		}

		sprints = append(sprints, page.Values...)
		if page.IsLast || len(page.Values) < c.pageSize {
			return sprints, nil
		}
		startAt += len(page.Values)
	}
}

func (c *Client) ActiveSprint(ctx context.Context, boardID int) (gojira.Sprint, error) {
	sprints, err := c.sprints(ctx, boardID, "active")
	if err != nil {
		return gojira.Sprint{}, err
	}
	for _, sprint := range sprints {
		if sprint.State == "active" {
			return sprint, nil
		}
	}
	return gojira.Sprint{}, fmt.Errorf("%w on board %d", ErrNoActiveSprint, boardID)
}

func (c *Client) activeSprintForBoard(ctx context.Context, board string) (gojira.Sprint, error) {
	boardID, err := c.BoardID(ctx, board)
	if err != nil {
		return gojira.Sprint{}, err
	}
	return c.ActiveSprint(ctx, boardID)
}

// CurrentSprintName returns the active sprint of the named board. The project
// key only labels errors; boards are resolved by name.
func (c *Client) CurrentSprintName(ctx context.Context, project, board string) (string, error) {
	sprint, err := c.activeSprintForBoard(ctx, board)
	if err != nil {
		return "", fmt.Errorf("project %s: %w", project, err)
	}
	return sprint.Name, nil
}

func (c *Client) MyIssuesInCurrentSprint(ctx context.Context, board string) ([]domain.Issue, error) {
	sprint, err := c.activeSprintForBoard(ctx, board)
	if err != nil {
		return nil, err
	}

	issues, err := c.search(ctx, fmt.Sprintf("sprint = %d AND assignee = currentUser() ORDER BY status", sprint.ID), "summary", "status")
	if err != nil {
		return nil, err
	}

	out := make([]domain.Issue, 0, len(issues))
	for _, issue := range issues {
		out = append(out, toDomainIssue(issue))
	}
	return out, nil
}

// SprintStoryPointStats sums story points over the last n closed sprints,
// oldest first. Achieved points only count issues in the done category.
func (c *Client) SprintStoryPointStats(ctx context.Context, board string, n int) ([]domain.SprintStat, error) {
	if n <= 0 {
		return nil, fmt.Errorf("sprint count must be positive, got %d", n)
	}

	boardID, err := c.BoardID(ctx, board)
	if err != nil {
		return nil, err
	}
	closed, err := c.sprints(ctx, boardID, "closed")
	if err != nil {
		return nil, err
	}
	if len(closed) > n {
		closed = closed[len(closed)-n:]
	}

	stats := make([]domain.SprintStat, 0, len(closed))
	for _, sprint := range closed {
		issues, err := c.search(ctx, fmt.Sprintf("sprint = %d", sprint.ID), "status", c.storyPointsField)
		if err != nil {
			return nil, err
		}

		stat := domain.SprintStat{Sprint: sprint.Name}
		for _, issue := range issues {
			points := storyPoints(issue, c.storyPointsField)
			stat.CommittedSP += points
			if isDone(issue) {
				stat.AchievedSP += points
			}
		}
		stats = append(stats, stat)
	}

	return stats, nil
}

func (c *Client) search(ctx context.Context, jql string, fields ...string) ([]gojira.Issue, error) {
	var all []gojira.Issue
	startAt := 0
	for {
		issues, resp, err := c.api.Issue.SearchWithContext(ctx, jql, &gojira.SearchOptions{
			StartAt:    startAt,
			MaxResults: c.pageSize,
			Fields:     fields,
		})
		if err != nil {
			return nil, fmt.Errorf("search issues (%s): %w", jql, err)
		}

		all = append(all, issues...)
		startAt += len(issues)
		if len(issues) == 0 || resp == nil || startAt >= resp.Total {
			return all, nil
		}
	}
}

func toDomainIssue(issue gojira.Issue) domain.Issue {
	out := domain.Issue{Key: issue.Key}
	if issue.Fields != nil {
		out.Summary = issue.Fields.Summary
		if issue.Fields.Status != nil {
			out.Status = issue.Fields.Status.Name
		}
	}
	return out
}

func isDone(issue gojira.Issue) bool {
	if issue.Fields == nil || issue.Fields.Status == nil {
		return false
	}
	return issue.Fields.Status.StatusCategory.Key == doneCategoryKey
}

func storyPoints(issue gojira.Issue, field string) float64 {
	if issue.Fields == nil || issue.Fields.Unknowns == nil {
		return 0
	}

	switch v := issue.Fields.Unknowns[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
