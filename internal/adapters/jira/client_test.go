package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digitalworks2020/devops-cli/internal/domain"
)

type fakeJira struct {
	t        *testing.T
	boards   []map[string]any
	sprints  map[string][]map[string]any
	issues   map[string][]map[string]any
	authSeen []string
	jqlSeen  []string
}

func newFakeJira(t *testing.T) *fakeJira {
	return &fakeJira{
		t:       t,
		sprints: map[string][]map[string]any{},
		issues:  map[string][]map[string]any{},
	}
}

func (f *fakeJira) page(r *http.Request, values []map[string]any) map[string]any {
	startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
	maxResults, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
	if maxResults == 0 {
		maxResults = 50
	}

	end := startAt + maxResults
	if end > len(values) {
		end = len(values)
	}
	if startAt > len(values) {
		startAt = len(values)
	}

	return map[string]any{
		"startAt":    startAt,
		"maxResults": maxResults,
		"total":      len(values),
		"isLast":     end == len(values),
		"values":     values[startAt:end],
	}
}

func (f *fakeJira) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.authSeen = append(f.authSeen, r.Header.Get("Authorization"))
	w.Header().Set("Content-Type", "application/json")

	path := r.URL.Path
	switch {
	case path == "/rest/agile/1.0/board":
		_ = json.NewEncoder(w).Encode(f.page(r, f.boards))
	case strings.HasPrefix(path, "/rest/agile/1.0/board/") && strings.HasSuffix(path, "/sprint"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/rest/agile/1.0/board/"), "/sprint")
		key := id + ":" + r.URL.Query().Get("state")
		_ = json.NewEncoder(w).Encode(f.page(r, f.sprints[key]))
	case path == "/rest/api/2/search":
		jql := r.URL.Query().Get("jql")
		f.jqlSeen = append(f.jqlSeen, jql)
		all := f.issues[jql]
		p := f.page(r, all)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"startAt":    p["startAt"],
			"maxResults": p["maxResults"],
			"total":      p["total"],
			"issues":     p["values"],
		})
	default:
		http.NotFound(w, r)
	}
}

func issueJSON(key, summary, status, category string, points any) map[string]any {
	fields := map[string]any{
		"summary": summary,
		"status":  map[string]any{"name": status, "statusCategory": map[string]any{"key": category}},
	}
	if points != nil {
		fields["customfield_10016"] = points
	}
	return map[string]any{"id": key, "key": key, "fields": fields}
}

func boardsFixture() []map[string]any {
	return []map[string]any{
		{"id": 1, "name": "Platform"},
		{"id": 2, "name": "Data"},
		{"id": 7, "name": "OPS Board"},
	}
}

func TestCurrentSprintNameFollowsBoardPagination(t *testing.T) {
	fake := newFakeJira(t)
	fake.boards = boardsFixture()
	fake.sprints["7:active"] = []map[string]any{{"id": 70, "name": "Sprint 12", "state": "active"}}

	server := httptest.NewServer(fake)
	defer server.Close()

	client, err := NewCloudClient(server.URL, "bob@example.com", "api-token", WithPageSize(2))
	require.NoError(t, err)

	name, err := client.CurrentSprintName(context.Background(), "OPS", "ops board")
	require.NoError(t, err)
	assert.Equal(t, "Sprint 12", name)

	require.NotEmpty(t, fake.authSeen)
	assert.True(t, strings.HasPrefix(fake.authSeen[0], "Basic "))
}

func TestServerClientUsesBearerToken(t *testing.T) {
	fake := newFakeJira(t)
	fake.boards = boardsFixture()

	server := httptest.NewServer(fake)
	defer server.Close()

	client, err := NewServerClient(server.URL, "pat-123")
	require.NoError(t, err)

	_, err = client.BoardID(context.Background(), "Data")
	require.NoError(t, err)
	assert.Equal(t, "Bearer pat-123", fake.authSeen[0])
}

func TestCurrentSprintNameErrors(t *testing.T) {
	fake := newFakeJira(t)
	fake.boards = boardsFixture()

	server := httptest.NewServer(fake)
	defer server.Close()

	client, err := NewServerClient(server.URL, "pat")
	require.NoError(t, err)

	_, err = client.CurrentSprintName(context.Background(), "OPS", "missing")
	require.ErrorIs(t, err, ErrBoardNotFound)
	assert.ErrorContains(t, err, "project OPS")

	_, err = client.CurrentSprintName(context.Background(), "OPS", "Platform")
	require.ErrorIs(t, err, ErrNoActiveSprint)
}

func TestMyIssuesInCurrentSprint(t *testing.T) {
	fake := newFakeJira(t)
	fake.boards = boardsFixture()
	fake.sprints["7:active"] = []map[string]any{{"id": 70, "name": "Sprint 12", "state": "active"}}
	fake.issues["sprint = 70 AND assignee = currentUser() ORDER BY status"] = []map[string]any{
		issueJSON("OPS-1", "Rotate keys", "In Progress", "indeterminate", nil),
		issueJSON("OPS-2", "Patch nodes", "Done", "done", nil),
		issueJSON("OPS-3", "Fix alerts", "In Progress", "indeterminate", nil),
	}

	server := httptest.NewServer(fake)
	defer server.Close()

	client, err := NewServerClient(server.URL, "pat", WithPageSize(2))
	require.NoError(t, err)

	issues, err := client.MyIssuesInCurrentSprint(context.Background(), "OPS Board")
	require.NoError(t, err)
	assert.Equal(t, []domain.Issue{
		{Key: "OPS-1", Summary: "Rotate keys", Status: "In Progress"},
		{Key: "OPS-2", Summary: "Patch nodes", Status: "Done"},
		{Key: "OPS-3", Summary: "Fix alerts", Status: "In Progress"},
	}, issues)
}

func TestSprintStoryPointStatsUsesLastClosedSprints(t *testing.T) {
	fake := newFakeJira(t)
	fake.boards = boardsFixture()
	fake.sprints["7:closed"] = []map[string]any{
		{"id": 1, "name": "Sprint 8", "state": "closed"},
		{"id": 2, "name": "Sprint 9", "state": "closed"},
		{"id": 3, "name": "Sprint 10", "state": "closed"},
		{"id": 4, "name": "Sprint 11", "state": "closed"},
	}
	fake.issues["sprint = 3"] = []map[string]any{
		issueJSON("OPS-1", "a", "Done", "done", 5.0),
		issueJSON("OPS-2", "b", "In Progress", "indeterminate", 3.0),
		issueJSON("OPS-3", "c", "Done", "done", nil),
	}
	fake.issues["sprint = 4"] = []map[string]any{
		issueJSON("OPS-4", "d", "Done", "done", "8"),
		issueJSON("OPS-5", "e", "Closed", "done", 2.5),
	}

	server := httptest.NewServer(fake)
	defer server.Close()

	client, err := NewCloudClient(server.URL, "bob", "tok", WithPageSize(3))
	require.NoError(t, err)

	stats, err := client.SprintStoryPointStats(context.Background(), "OPS Board", 2)
	require.NoError(t, err)
	assert.Equal(t, []domain.SprintStat{
		{Sprint: "Sprint 10", CommittedSP: 8, AchievedSP: 5},
		{Sprint: "Sprint 11", CommittedSP: 10.5, AchievedSP: 10.5},
	}, stats)
	assert.InDelta(t, 7.75, domain.AverageAchieved(stats), 0.001)
	assert.NotContains(t, fake.jqlSeen, "sprint = 1")
}

func TestSprintStoryPointStatsCustomFieldAndValidation(t *testing.T) {
	fake := newFakeJira(t)
	fake.boards = boardsFixture()
	fake.sprints["1:closed"] = []map[string]any{{"id": 9, "name": "Sprint 1", "state": "closed"}}
	fake.issues["sprint = 9"] = []map[string]any{
		{"key": "P-1", "fields": map[string]any{
			"status":            map[string]any{"name": "Done", "statusCategory": map[string]any{"key": "done"}},
			"customfield_10002": 13,
		}},
	}

	server := httptest.NewServer(fake)
	defer server.Close()

	client, err := NewServerClient(server.URL, "pat", WithStoryPointsField("customfield_10002"))
	require.NoError(t, err)

	stats, err := client.SprintStoryPointStats(context.Background(), "Platform", 3)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 13.0, stats[0].AchievedSP)

	_, err = client.SprintStoryPointStats(context.Background(), "Platform", 0)
	require.Error(t, err)
}

func TestAPIErrorsAreWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"errorMessages":["unauthorized"]}`)
	}))
	defer server.Close()

	client, err := NewServerClient(server.URL, "bad")
	require.NoError(t, err)

	_, err = client.BoardID(context.Background(), "any")
	require.Error(t, err)
	assert.ErrorContains(t, err, "list boards")
}
