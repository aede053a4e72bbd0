package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the wire format of issue timestamps (ISO 8601, UTC, millisecond precision).
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Timestamp is a point in time that serializes using TimeLayout.
type Timestamp struct {
	time.Time
}

// NewTimestamp truncates t to millisecond precision in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

// ParseTimestamp parses a TimeLayout string.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return Timestamp{Time: t}, nil
}

func (t Timestamp) String() string {
	return t.UTC().Format(TimeLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	*t = NewTimestamp(parsed)
	return nil
}

// Issue field names as they appear on the wire and in list filters.
const (
	FieldID         = "_id"
	FieldTitle      = "issue_title"
	FieldText       = "issue_text"
	FieldCreatedBy  = "created_by"
	FieldAssignedTo = "assigned_to"
	FieldStatusText = "status_text"
	FieldCreatedOn  = "created_on"
	FieldUpdatedOn  = "updated_on"
	FieldOpen       = "open"
)

// Issue is a tracked issue belonging to a project.
type Issue struct {
	ID         string    `json:"_id"`
	Title      string    `json:"issue_title"`
	Text       string    `json:"issue_text"`
	CreatedBy  string    `json:"created_by"`
	AssignedTo string    `json:"assigned_to"`
	StatusText string    `json:"status_text"`
	CreatedOn  Timestamp `json:"created_on"`
	UpdatedOn  Timestamp `json:"updated_on"`
	Open       bool      `json:"open"`
}

// Field returns the string form of the named field. The second result is
// false when the issue has no such field.
func (i *Issue) Field(name string) (string, bool) {
	switch name {
	case FieldID:
		return i.ID, true
	case FieldTitle:
		return i.Title, true
	case FieldText:
		return i.Text, true
	case FieldCreatedBy:
		return i.CreatedBy, true
	case FieldAssignedTo:
		return i.AssignedTo, true
	case FieldStatusText:
		return i.StatusText, true
	case FieldCreatedOn:
		return i.CreatedOn.String(), true
	case FieldUpdatedOn:
		return i.UpdatedOn.String(), true
	case FieldOpen:
		if i.Open {
			return "true", true
		}
		return "false", true
	}
	return "", false
}

// Clone returns a copy of the issue.
func (i *Issue) Clone() *Issue {
	c := *i
	return &c
}

// ParseOpen converts a loosely-typed "open" value to a bool.
// Only the literal "false" means closed; every other value means open.
func ParseOpen(v string) bool {
	return v != "false"
}
