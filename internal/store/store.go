package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joescharf/issuetracker/internal/models"
)

var (
	ErrValidation     = errors.New("required field(s) missing")
	ErrMissingID      = errors.New("missing _id")
	ErrNoUpdateFields = errors.New("no update field(s) sent")
	ErrNotFound       = errors.New("issue not found")
)

// Operation names carried by IssueError.
const (
	OpUpdate = "update"
	OpDelete = "delete"
)

// IssueError reports a failed operation on a specific issue _id.
type IssueError struct {
	Op  string
	ID  string
	Err error
}

func (e *IssueError) Error() string {
	if errors.Is(e.Err, ErrNotFound) {
		return "could not " + e.Op
	}
	return e.Err.Error()
}

func (e *IssueError) Unwrap() error { return e.Err }

// Filter restricts ListIssues to issues whose fields equal every value.
type Filter map[string]string

// CreateInput carries the fields accepted when creating an issue.
type CreateInput struct {
	Title      string `json:"issue_title"`
	Text       string `json:"issue_text"`
	CreatedBy  string `json:"created_by"`
	AssignedTo string `json:"assigned_to,omitempty"`
	StatusText string `json:"status_text,omitempty"`
}

// UpdateInput identifies an issue and the raw field values to change.
type UpdateInput struct {
	ID     string
	Fields map[string]string
}

// Store defines the issue storage interface.
type Store interface {
	ListIssues(ctx context.Context, project string, filter Filter) ([]*models.Issue, error)
	CreateIssue(ctx context.Context, project string, in CreateInput) (*models.Issue, error)
	UpdateIssue(ctx context.Context, project string, in UpdateInput) error
	DeleteIssue(ctx context.Context, project, id string) error
	Close() error
}

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// New constructs the store for the named backend.
func New(backend string, opts ...Option) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryStore(opts...), nil
	case BackendSQLite:
		return NewSQLiteStore(opts...)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}

type options struct {
	ids IDGenerator
	now func() time.Time
}

// Option configures a store backend.
type Option func(*options)

// WithIDGenerator overrides the issue id source.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithClock overrides the time source used for created_on/updated_on.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ids == nil {
		o.ids = NewULIDGenerator()
	}
	return o
}

// updatableFields lists the fields an update may change.
var updatableFields = []string{
	models.FieldTitle,
	models.FieldText,
	models.FieldCreatedBy,
	models.FieldAssignedTo,
	models.FieldStatusText,
	models.FieldOpen,
}

func validateCreate(in CreateInput) error {
	if in.Title == "" || in.Text == "" || in.CreatedBy == "" {
		return ErrValidation
	}
	return nil
}

// newIssue builds a freshly created issue from validated input.
func newIssue(id string, in CreateInput, now time.Time) *models.Issue {
	ts := models.NewTimestamp(now)
	return &models.Issue{
		ID:         id,
		Title:      in.Title,
		Text:       in.Text,
		CreatedBy:  in.CreatedBy,
		AssignedTo: in.AssignedTo,
		StatusText: in.StatusText,
		CreatedOn:  ts,
		UpdatedOn:  ts,
		Open:       true,
	}
}

// updateFields validates an update and returns the fields it will apply.
// Every non-empty key other than _id counts as sent, but only updatable
// fields are returned; unknown and immutable keys just refresh updated_on.
func updateFields(in UpdateInput) (map[string]string, error) {
	if in.ID == "" {
		return nil, ErrMissingID
	}
	sent := 0
	for key, v := range in.Fields {
		if key != models.FieldID && v != "" {
			sent++
		}
	}
	if sent == 0 {
		return nil, &IssueError{Op: OpUpdate, ID: in.ID, Err: ErrNoUpdateFields}
	}
	fields := make(map[string]string)
	for _, name := range updatableFields {
		if v := in.Fields[name]; v != "" {
			fields[name] = v
		}
	}
	return fields, nil
}

// applyFields writes validated update fields onto an issue.
func applyFields(issue *models.Issue, fields map[string]string, now time.Time) {
	for name, v := range fields {
		switch name {
		case models.FieldTitle:
			issue.Title = v
		case models.FieldText:
			issue.Text = v
		case models.FieldCreatedBy:
			issue.CreatedBy = v
		case models.FieldAssignedTo:
			issue.AssignedTo = v
		case models.FieldStatusText:
			issue.StatusText = v
		case models.FieldOpen:
			issue.Open = models.ParseOpen(v)
		}
	}
	issue.UpdatedOn = models.NewTimestamp(now)
}

// Matches reports whether the issue satisfies every filter entry.
func Matches(issue *models.Issue, filter Filter) bool {
	for key, want := range filter {
		if key == models.FieldOpen {
			if issue.Open != models.ParseOpen(want) {
				return false
			}
			continue
		}
		got, ok := issue.Field(key)
		if !ok || got != want {
			return false
		}
	}
	return true
}
