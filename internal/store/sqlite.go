package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joescharf/issuetracker/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO)
// on a private in-memory database. Nothing is written to disk.
type SQLiteStore struct {
	db *sql.DB

	ids IDGenerator
	now func() time.Time
}

// columns maps filterable issue fields to their column names.
var columns = map[string]string{
	models.FieldID:         "id",
	models.FieldTitle:      "issue_title",
	models.FieldText:       "issue_text",
	models.FieldCreatedBy:  "created_by",
	models.FieldAssignedTo: "assigned_to",
	models.FieldStatusText: "status_text",
	models.FieldCreatedOn:  "created_on",
	models.FieldUpdatedOn:  "updated_on",
	models.FieldOpen:       "open",
}

const issueColumns = `id, issue_title, issue_text, created_by, assigned_to, status_text, created_on, updated_on, open`

// NewSQLiteStore opens an in-memory SQLite database and applies the schema.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database. Pinning the pool
	// to one long-lived connection keeps a single dataset and serializes all
	// access, which also makes each statement atomic.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, ids: o.ids, now: o.now}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the database connection, discarding all issues.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListIssues(ctx context.Context, project string, filter Filter) ([]*models.Issue, error) {
	conditions := []string{"project = ?"}
	args := []any{project}

	// Sorted keys keep the generated SQL stable.
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		col, ok := columns[key]
		if !ok {
			// No issue has this field, so nothing can match.
			return []*models.Issue{}, nil
		}
		conditions = append(conditions, fmt.Sprintf("%q = ?", col))
		if key == models.FieldOpen {
			args = append(args, boolToInt(models.ParseOpen(filter[key])))
		} else {
			args = append(args, filter[key])
		}
	}

	query := `SELECT ` + issueColumns + ` FROM issues WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	issues := []*models.Issue{}
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

func scanIssue(rows *sql.Rows) (*models.Issue, error) {
	issue := &models.Issue{}
	var createdOn, updatedOn string
	if err := rows.Scan(&issue.ID, &issue.Title, &issue.Text, &issue.CreatedBy, &issue.AssignedTo,
		&issue.StatusText, &createdOn, &updatedOn, &issue.Open); err != nil {
		return nil, fmt.Errorf("scan issue: %w", err)
	}
	var err error
	if issue.CreatedOn, err = models.ParseTimestamp(createdOn); err != nil {
		return nil, fmt.Errorf("scan issue %s: %w", issue.ID, err)
	}
	if issue.UpdatedOn, err = models.ParseTimestamp(updatedOn); err != nil {
		return nil, fmt.Errorf("scan issue %s: %w", issue.ID, err)
	}
	return issue, nil
}

func (s *SQLiteStore) CreateIssue(ctx context.Context, project string, in CreateInput) (*models.Issue, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	issue := newIssue(s.ids.NewID(), in, s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO issues (project, `+issueColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project, issue.ID, issue.Title, issue.Text, issue.CreatedBy, issue.AssignedTo, issue.StatusText,
		issue.CreatedOn.String(), issue.UpdatedOn.String(), boolToInt(issue.Open),
	)
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	return issue, nil
}

func (s *SQLiteStore) UpdateIssue(ctx context.Context, project string, in UpdateInput) error {
	fields, err := updateFields(in)
	if err != nil {
		return err
	}

	var sets []string
	var args []any
	for _, name := range updatableFields {
		v, ok := fields[name]
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%q = ?", columns[name]))
		if name == models.FieldOpen {
			args = append(args, boolToInt(models.ParseOpen(v)))
		} else {
			args = append(args, v)
		}
	}
	sets = append(sets, "updated_on = ?")
	args = append(args, models.NewTimestamp(s.now()).String(), project, in.ID)

	result, err := s.db.ExecContext(ctx,
		`UPDATE issues SET `+strings.Join(sets, ", ")+` WHERE project = ? AND id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update issue: %w", err)
	}
	return checkAffected(result, OpUpdate, in.ID)
}

func (s *SQLiteStore) DeleteIssue(ctx context.Context, project, id string) error {
	if id == "" {
		return ErrMissingID
	}
	result, err := s.db.ExecContext(ctx, "DELETE FROM issues WHERE project = ? AND id = ?", project, id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	return checkAffected(result, OpDelete, id)
}

// checkAffected maps a statement that touched no row to a not-found error.
func checkAffected(result sql.Result, op, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s issue: rows affected: %w", op, err)
	}
	if n == 0 {
		return &IssueError{Op: op, ID: id, Err: ErrNotFound}
	}
	return nil
}
