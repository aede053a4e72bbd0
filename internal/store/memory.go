package store

import (
	"context"
	"sync"
	"time"

	"github.com/joescharf/issuetracker/internal/models"
)

// MemoryStore implements Store with a project -> issues map held in process memory.
type MemoryStore struct {
	mu       sync.RWMutex // protects projects
	projects map[string][]*models.Issue

	ids IDGenerator
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		projects: make(map[string][]*models.Issue),
		ids:      o.ids,
		now:      o.now,
	}
}

// ListIssues returns copies of the matching issues in insertion order.
func (m *MemoryStore) ListIssues(_ context.Context, project string, filter Filter) ([]*models.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	issues := make([]*models.Issue, 0, len(m.projects[project]))
	for _, issue := range m.projects[project] {
		if Matches(issue, filter) {
			issues = append(issues, issue.Clone())
		}
	}
	return issues, nil
}

func (m *MemoryStore) CreateIssue(_ context.Context, project string, in CreateInput) (*models.Issue, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	issue := newIssue(m.ids.NewID(), in, m.now())
	m.projects[project] = append(m.projects[project], issue)
	return issue.Clone(), nil
}

func (m *MemoryStore) UpdateIssue(_ context.Context, project string, in UpdateInput) error {
	fields, err := updateFields(in)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(project, in.ID)
	if i < 0 {
		return &IssueError{Op: OpUpdate, ID: in.ID, Err: ErrNotFound}
	}
	applyFields(m.projects[project][i], fields, m.now())
	return nil
}

func (m *MemoryStore) DeleteIssue(_ context.Context, project, id string) error {
	if id == "" {
		return ErrMissingID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(project, id)
	if i < 0 {
		return &IssueError{Op: OpDelete, ID: id, Err: ErrNotFound}
	}
	issues := m.projects[project]
	m.projects[project] = append(issues[:i:i], issues[i+1:]...)
	return nil
}

// Close is a no-op; the store lives as long as the process.
func (m *MemoryStore) Close() error { return nil }

// indexOf must be called with mu held.
func (m *MemoryStore) indexOf(project, id string) int {
	for i, issue := range m.projects[project] {
		if issue.ID == id {
			return i
		}
	}
	return -1
}
