package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/issuetracker/internal/api"
	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
)

// Tracker is the issue API the MCP tools call. Both store.Store and
// client.Client satisfy it.
type Tracker interface {
	ListIssues(ctx context.Context, project string, filter store.Filter) ([]*models.Issue, error)
	CreateIssue(ctx context.Context, project string, in store.CreateInput) (*models.Issue, error)
	UpdateIssue(ctx context.Context, project string, in store.UpdateInput) error
	DeleteIssue(ctx context.Context, project, id string) error
}

// Server exposes a Tracker as MCP tools.
type Server struct {
	tracker Tracker
	version string
}

// NewServer creates the MCP server wrapper.
func NewServer(t Tracker, version string) *Server {
	return &Server{tracker: t, version: version}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("issuetracker", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.updateIssueTool())
	srv.AddTool(s.deleteIssueTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// filterFields are the issue fields accepted as list filters.
var filterFields = []string{
	models.FieldID,
	models.FieldTitle,
	models.FieldText,
	models.FieldCreatedBy,
	models.FieldAssignedTo,
	models.FieldStatusText,
	models.FieldCreatedOn,
	models.FieldUpdatedOn,
	models.FieldOpen,
}

// editableFields are the fields issue_update can change.
var editableFields = []string{
	models.FieldTitle,
	models.FieldText,
	models.FieldCreatedBy,
	models.FieldAssignedTo,
	models.FieldStatusText,
	models.FieldOpen,
}

var fieldDescriptions = map[string]string{
	models.FieldID:         "Issue id",
	models.FieldTitle:      "Issue title",
	models.FieldText:       "Issue description text",
	models.FieldCreatedBy:  "Reporter name",
	models.FieldAssignedTo: "Assignee name",
	models.FieldStatusText: "Free-form status note",
	models.FieldCreatedOn:  "Creation time (2006-01-02T15:04:05.000Z)",
	models.FieldUpdatedOn:  "Last update time (2006-01-02T15:04:05.000Z)",
	models.FieldOpen:       `"false" for closed issues, anything else for open`,
}

func fieldOption(name string) mcp.ToolOption {
	return mcp.WithString(name, mcp.Description(fieldDescriptions[name]))
}

// toolError renders a tracker error, including the issue id when known.
func toolError(err error) *mcp.CallToolResult {
	var ie *store.IssueError
	if errors.As(err, &ie) {
		return mcp.NewToolResultError(fmt.Sprintf("%s (_id: %s)", ie.Error(), ie.ID))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// issue_list
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("List a project's issues in creation order. Every other argument is an exact-match filter; all filters must match."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
	}
	for _, f := range filterFields {
		opts = append(opts, fieldOption(f))
	}
	return mcp.NewTool("issue_list", opts...), s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	filter := store.Filter{}
	for _, f := range filterFields {
		if v := request.GetString(f, ""); v != "" {
			filter[f] = v
		}
	}

	issues, err := s.tracker.ListIssues(ctx, project, filter)
	if err != nil {
		return toolError(err), nil
	}
	if issues == nil {
		issues = []*models.Issue{}
	}
	return jsonResult(issues), nil
}

// issue_create
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issue_create",
		mcp.WithDescription("Create an issue in a project. The project is created on first use. Returns the created issue as JSON."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString(models.FieldTitle, mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString(models.FieldText, mcp.Required(), mcp.Description("Issue description text")),
		mcp.WithString(models.FieldCreatedBy, mcp.Required(), mcp.Description("Reporter name")),
		mcp.WithString(models.FieldAssignedTo, mcp.Description("Assignee name")),
		mcp.WithString(models.FieldStatusText, mcp.Description("Free-form status note")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}

	issue, err := s.tracker.CreateIssue(ctx, project, store.CreateInput{
		Title:      request.GetString(models.FieldTitle, ""),
		Text:       request.GetString(models.FieldText, ""),
		CreatedBy:  request.GetString(models.FieldCreatedBy, ""),
		AssignedTo: request.GetString(models.FieldAssignedTo, ""),
		StatusText: request.GetString(models.FieldStatusText, ""),
	})
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(issue), nil
}

// issue_update
func (s *Server) updateIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Update fields of an issue. Empty values are ignored, so at least one non-empty field is required."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString(models.FieldID, mcp.Required(), mcp.Description("Issue id")),
	}
	for _, f := range editableFields {
		opts = append(opts, fieldOption(f))
	}
	return mcp.NewTool("issue_update", opts...), s.handleUpdateIssue
}

func (s *Server) handleUpdateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	id := request.GetString(models.FieldID, "")

	fields := make(map[string]string)
	for _, f := range editableFields {
		if v := request.GetString(f, ""); v != "" {
			fields[f] = v
		}
	}

	if err := s.tracker.UpdateIssue(ctx, project, store.UpdateInput{ID: id, Fields: fields}); err != nil {
		return toolError(err), nil
	}
	return jsonResult(api.Response{Result: api.ResultUpdated, ID: id}), nil
}

// issue_delete
func (s *Server) deleteIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("issue_delete",
		mcp.WithDescription("Delete an issue from a project."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString(models.FieldID, mcp.Required(), mcp.Description("Issue id")),
	)
	return tool, s.handleDeleteIssue
}

func (s *Server) handleDeleteIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	id := request.GetString(models.FieldID, "")

	if err := s.tracker.DeleteIssue(ctx, project, id); err != nil {
		return toolError(err), nil
	}
	return jsonResult(api.Response{Result: api.ResultDeleted, ID: id}), nil
}
