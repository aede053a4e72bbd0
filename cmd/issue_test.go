package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/issuetracker/internal/api"
	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
)

// issueEnv starts an API server on a fresh memory store and points the
// issue commands at it. It returns the store and the captured stdout.
func issueEnv(t *testing.T) (*store.MemoryStore, *bytes.Buffer) {
	t.Helper()
	testEnv(t)

	st := store.NewMemoryStore()
	ts := httptest.NewServer(api.NewServer(st, zerolog.Nop()).Router())
	t.Cleanup(ts.Close)
	viper.Set("server.url", ts.URL)

	out := &bytes.Buffer{}
	ui.Out = out
	ui.ErrOut = &bytes.Buffer{}

	for _, c := range []*cobra.Command{issueListCmd, issueUpdateCmd, issueAddCmd} {
		resetFlags(c)
	}
	t.Cleanup(func() { issueJSON = false })
	return st, out
}

func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func seed(t *testing.T, st store.Store, project string, in store.CreateInput) *models.Issue {
	t.Helper()
	issue, err := st.CreateIssue(context.Background(), project, in)
	require.NoError(t, err)
	return issue
}

func TestIssueAdd(t *testing.T) {
	st, out := issueEnv(t)

	require.NoError(t, issueAddCmd.Flags().Set("title", "Broken link"))
	require.NoError(t, issueAddCmd.Flags().Set("text", "Footer link 404s"))
	require.NoError(t, issueAddCmd.Flags().Set("by", "Joe"))
	require.NoError(t, issueAddCmd.Flags().Set("assign", "Ann"))

	require.NoError(t, issueAddRun("web"))
	assert.Contains(t, out.String(), "Created issue")
	assert.Contains(t, out.String(), "Broken link")

	issues, err := st.ListIssues(context.Background(), "web", nil)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "Ann", issues[0].AssignedTo)
	assert.Equal(t, "", issues[0].StatusText)
	assert.True(t, issues[0].Open)
}

func TestIssueAdd_DryRun(t *testing.T) {
	st, _ := issueEnv(t)
	dryRun = true
	ui.DryRun = true
	defer func() { dryRun = false }()

	issueTitle, issueText, issueCreatedBy = "T", "X", "A"
	require.NoError(t, issueAddRun("web"))

	issues, err := st.ListIssues(context.Background(), "web", nil)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestIssueAdd_ServerRejects(t *testing.T) {
	issueEnv(t)

	issueTitle = "only a title"
	err := issueAddRun("web")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestIssueList(t *testing.T) {
	st, out := issueEnv(t)
	a := seed(t, st, "web", store.CreateInput{Title: "First", Text: "x", CreatedBy: "Joe"})
	seed(t, st, "web", store.CreateInput{Title: "Second", Text: "y", CreatedBy: "Ann", AssignedTo: "Joe"})
	seed(t, st, "api", store.CreateInput{Title: "Elsewhere", Text: "z", CreatedBy: "Joe"})

	require.NoError(t, issueListRun(issueListCmd, "web"))
	assert.Contains(t, out.String(), "First")
	assert.Contains(t, out.String(), "Second")
	assert.NotContains(t, out.String(), "Elsewhere")
	assert.Contains(t, out.String(), a.ID[len(a.ID)-8:])

	out.Reset()
	require.NoError(t, issueListCmd.Flags().Set("by", "Ann"))
	require.NoError(t, issueListRun(issueListCmd, "web"))
	assert.NotContains(t, out.String(), "First")
	assert.Contains(t, out.String(), "Second")
}

func TestIssueList_Empty(t *testing.T) {
	_, out := issueEnv(t)

	require.NoError(t, issueListRun(issueListCmd, "nothing-here"))
	assert.Contains(t, out.String(), "No issues found.")
}

func TestIssueList_JSON(t *testing.T) {
	st, out := issueEnv(t)
	seed(t, st, "web", store.CreateInput{Title: "First", Text: "x", CreatedBy: "Joe"})
	issueJSON = true

	require.NoError(t, issueListRun(issueListCmd, "web"))

	var issues []models.Issue
	require.NoError(t, json.Unmarshal(out.Bytes(), &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, "First", issues[0].Title)
}

func TestIssueShow_BySuffix(t *testing.T) {
	st, out := issueEnv(t)
	issue := seed(t, st, "web", store.CreateInput{Title: "First", Text: "the details", CreatedBy: "Joe"})

	require.NoError(t, issueShowRun("web", issue.ID[len(issue.ID)-8:]))
	assert.Contains(t, out.String(), "First")
	assert.Contains(t, out.String(), "the details")
	assert.Contains(t, out.String(), issue.ID)
}

func TestIssueShow_NotFound(t *testing.T) {
	issueEnv(t)

	err := issueShowRun("web", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue not found")
}

func TestIssueUpdate(t *testing.T) {
	st, out := issueEnv(t)
	issue := seed(t, st, "web", store.CreateInput{Title: "First", Text: "x", CreatedBy: "Joe"})

	require.NoError(t, issueUpdateCmd.Flags().Set("status", "in review"))
	require.NoError(t, issueUpdateCmd.Flags().Set("assign", "Ann"))
	require.NoError(t, issueUpdateRun(issueUpdateCmd, "web", issue.ID))
	assert.Contains(t, out.String(), "Updated issue")

	issues, err := st.ListIssues(context.Background(), "web", nil)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "in review", issues[0].StatusText)
	assert.Equal(t, "Ann", issues[0].AssignedTo)
	assert.Equal(t, "First", issues[0].Title)
}

func TestIssueUpdate_NoFlags(t *testing.T) {
	st, _ := issueEnv(t)
	issue := seed(t, st, "web", store.CreateInput{Title: "First", Text: "x", CreatedBy: "Joe"})

	err := issueUpdateRun(issueUpdateCmd, "web", issue.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no updates specified")
}

func TestIssueCloseAndReopen(t *testing.T) {
	st, _ := issueEnv(t)
	issue := seed(t, st, "web", store.CreateInput{Title: "First", Text: "x", CreatedBy: "Joe"})
	ctx := context.Background()

	require.NoError(t, issueSetOpenRun("web", issue.ID, false))
	closed, err := st.ListIssues(ctx, "web", store.Filter{models.FieldOpen: "false"})
	require.NoError(t, err)
	require.Len(t, closed, 1)

	require.NoError(t, issueSetOpenRun("web", issue.ID, true))
	open, err := st.ListIssues(ctx, "web", store.Filter{models.FieldOpen: "true"})
	require.NoError(t, err)
	require.Len(t, open, 1)
}

func TestIssueDelete(t *testing.T) {
	st, out := issueEnv(t)
	issue := seed(t, st, "web", store.CreateInput{Title: "First", Text: "x", CreatedBy: "Joe"})

	require.NoError(t, issueDeleteRun("web", issue.ID))
	assert.Contains(t, out.String(), "Deleted issue")

	issues, err := st.ListIssues(context.Background(), "web", nil)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestIssueDelete_DryRun(t *testing.T) {
	st, _ := issueEnv(t)
	issue := seed(t, st, "web", store.CreateInput{Title: "First", Text: "x", CreatedBy: "Joe"})
	dryRun = true
	ui.DryRun = true
	defer func() { dryRun = false }()

	require.NoError(t, issueDeleteRun("web", issue.ID))

	issues, err := st.ListIssues(context.Background(), "web", nil)
	require.NoError(t, err)
	assert.Len(t, issues, 1)
}

func TestResolveIssue_Ambiguous(t *testing.T) {
	st, _ := issueEnv(t)
	seed(t, st, "web", store.CreateInput{Title: "A", Text: "x", CreatedBy: "Joe"})
	seed(t, st, "web", store.CreateInput{Title: "B", Text: "x", CreatedBy: "Joe"})

	_, err := resolveIssue(context.Background(), "web", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}
