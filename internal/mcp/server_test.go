package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/issuetracker/internal/api"
	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	srv := NewServer(ms, "test")
	require.NotNil(t, srv)
	return srv, ms
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

func seedIssue(t *testing.T, ms *store.MemoryStore, project, title, createdBy string) *models.Issue {
	t.Helper()
	issue, err := ms.CreateIssue(context.Background(), project, store.CreateInput{
		Title: title, Text: "text", CreatedBy: createdBy,
	})
	require.NoError(t, err)
	return issue
}

func TestMCPServer(t *testing.T) {
	srv, _ := newTestServer(t)
	require.NotNil(t, srv.MCPServer())
}

func TestHandleListIssues(t *testing.T) {
	srv, ms := newTestServer(t)
	ctx := context.Background()
	a := seedIssue(t, ms, "p", "a", "alice")
	seedIssue(t, ms, "p", "b", "bob")

	result, err := srv.handleListIssues(ctx, callToolReq("issue_list", map[string]any{"project": "p"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	var issues []models.Issue
	resultJSON(t, result, &issues)
	assert.Len(t, issues, 2)

	result, err = srv.handleListIssues(ctx, callToolReq("issue_list", map[string]any{"project": "p", "created_by": "alice"}))
	require.NoError(t, err)
	resultJSON(t, result, &issues)
	require.Len(t, issues, 1)
	assert.Equal(t, a.ID, issues[0].ID)
}

func TestHandleListIssues_EmptyProject(t *testing.T) {
	srv, _ := newTestServer(t)
	result, err := srv.handleListIssues(context.Background(), callToolReq("issue_list", map[string]any{"project": "none"}))
	require.NoError(t, err)
	assert.Equal(t, "[]", resultText(t, result))
}

func TestHandleListIssues_MissingProject(t *testing.T) {
	srv, _ := newTestServer(t)
	result, err := srv.handleListIssues(context.Background(), callToolReq("issue_list", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "project")
}

func TestHandleCreateIssue(t *testing.T) {
	srv, ms := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleCreateIssue(ctx, callToolReq("issue_create", map[string]any{
		"project":     "p",
		"issue_title": "T",
		"issue_text":  "X",
		"created_by":  "A",
		"assigned_to": "B",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var issue models.Issue
	resultJSON(t, result, &issue)
	assert.NotEmpty(t, issue.ID)
	assert.Equal(t, "B", issue.AssignedTo)
	assert.True(t, issue.Open)

	listed, err := ms.ListIssues(ctx, "p", nil)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestHandleCreateIssue_MissingFields(t *testing.T) {
	srv, ms := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleCreateIssue(ctx, callToolReq("issue_create", map[string]any{
		"project":     "p",
		"issue_title": "T",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "required field(s) missing", resultText(t, result))

	listed, err := ms.ListIssues(ctx, "p", nil)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestHandleUpdateIssue(t *testing.T) {
	srv, ms := newTestServer(t)
	ctx := context.Background()
	issue := seedIssue(t, ms, "p", "a", "alice")

	result, err := srv.handleUpdateIssue(ctx, callToolReq("issue_update", map[string]any{
		"project": "p",
		"_id":     issue.ID,
		"open":    "false",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var resp api.Response
	resultJSON(t, result, &resp)
	assert.Equal(t, api.Response{Result: "successfully updated", ID: issue.ID}, resp)

	listed, err := ms.ListIssues(ctx, "p", store.Filter{"open": "false"})
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestHandleUpdateIssue_Errors(t *testing.T) {
	srv, ms := newTestServer(t)
	ctx := context.Background()
	issue := seedIssue(t, ms, "p", "a", "alice")

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing id", map[string]any{"project": "p", "issue_title": "x"}, "missing _id"},
		{"no fields", map[string]any{"project": "p", "_id": issue.ID}, "no update field(s) sent (_id: " + issue.ID + ")"},
		{"unknown id", map[string]any{"project": "p", "_id": "nope", "issue_title": "x"}, "could not update (_id: nope)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := srv.handleUpdateIssue(ctx, callToolReq("issue_update", tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Equal(t, tt.want, resultText(t, result))
		})
	}
}

func TestHandleDeleteIssue(t *testing.T) {
	srv, ms := newTestServer(t)
	ctx := context.Background()
	issue := seedIssue(t, ms, "p", "a", "alice")

	args := map[string]any{"project": "p", "_id": issue.ID}
	result, err := srv.handleDeleteIssue(ctx, callToolReq("issue_delete", args))
	require.NoError(t, err)
	var resp api.Response
	resultJSON(t, result, &resp)
	assert.Equal(t, api.Response{Result: "successfully deleted", ID: issue.ID}, resp)

	result, err = srv.handleDeleteIssue(ctx, callToolReq("issue_delete", args))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "could not delete (_id: "+issue.ID+")", resultText(t, result))
}

// brokenTracker fails every call with an infrastructure error.
type brokenTracker struct{}

var errUnavailable = errors.New("connection refused")

func (brokenTracker) ListIssues(context.Context, string, store.Filter) ([]*models.Issue, error) {
	return nil, errUnavailable
}
func (brokenTracker) CreateIssue(context.Context, string, store.CreateInput) (*models.Issue, error) {
	return nil, errUnavailable
}
func (brokenTracker) UpdateIssue(context.Context, string, store.UpdateInput) error { return errUnavailable }
func (brokenTracker) DeleteIssue(context.Context, string, string) error           { return errUnavailable }

func TestHandlers_TrackerError(t *testing.T) {
	srv := NewServer(brokenTracker{}, "test")
	result, err := srv.handleListIssues(context.Background(), callToolReq("issue_list", map[string]any{"project": "p"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "connection refused", resultText(t, result))
}
