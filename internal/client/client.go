package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joescharf/issuetracker/internal/api"
	"github.com/joescharf/issuetracker/internal/models"
	"github.com/joescharf/issuetracker/internal/store"
)

// Client talks to a running issuetracker server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL (e.g. http://localhost:8080).
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) issuesURL(project string) string {
	return c.baseURL + "/api/issues/" + url.PathEscape(project)
}

// ListIssues fetches the project's issues matching filter.
func (c *Client) ListIssues(ctx context.Context, project string, filter store.Filter) ([]*models.Issue, error) {
	u := c.issuesURL(project)
	if len(filter) > 0 {
		q := url.Values{}
		for k, v := range filter {
			q.Set(k, v)
		}
		u += "?" + q.Encode()
	}

	data, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var issues []*models.Issue
	if err := json.Unmarshal(data, &issues); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	return issues, nil
}

func (c *Client) CreateIssue(ctx context.Context, project string, in store.CreateInput) (*models.Issue, error) {
	data, err := c.do(ctx, http.MethodPost, c.issuesURL(project), in)
	if err != nil {
		return nil, err
	}
	if err := responseError(data); err != nil {
		return nil, err
	}
	var issue models.Issue
	if err := json.Unmarshal(data, &issue); err != nil {
		return nil, fmt.Errorf("decode issue: %w", err)
	}
	return &issue, nil
}

func (c *Client) UpdateIssue(ctx context.Context, project string, in store.UpdateInput) error {
	body := make(map[string]string, len(in.Fields)+1)
	for k, v := range in.Fields {
		body[k] = v
	}
	body[models.FieldID] = in.ID

	data, err := c.do(ctx, http.MethodPut, c.issuesURL(project), body)
	if err != nil {
		return err
	}
	return responseError(data)
}

func (c *Client) DeleteIssue(ctx context.Context, project, id string) error {
	data, err := c.do(ctx, http.MethodDelete, c.issuesURL(project), map[string]string{models.FieldID: id})
	if err != nil {
		return err
	}
	return responseError(data)
}

// Ping checks that the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	return err
}

func (c *Client) do(ctx context.Context, method, u string, body any) ([]byte, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var r api.Response
		if json.Unmarshal(data, &r) == nil && r.Error != "" {
			return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, r.Error)
		}
		return nil, fmt.Errorf("server error (%d)", resp.StatusCode)
	}
	return data, nil
}

// responseError converts an error body back into the matching store error.
func responseError(data []byte) error {
	var r api.Response
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	switch r.Error {
	case "":
		return nil
	case store.ErrValidation.Error():
		return store.ErrValidation
	case store.ErrMissingID.Error():
		return store.ErrMissingID
	case store.ErrNoUpdateFields.Error():
		return &store.IssueError{Op: store.OpUpdate, ID: r.ID, Err: store.ErrNoUpdateFields}
	case "could not " + store.OpUpdate:
		return &store.IssueError{Op: store.OpUpdate, ID: r.ID, Err: store.ErrNotFound}
	case "could not " + store.OpDelete:
		return &store.IssueError{Op: store.OpDelete, ID: r.ID, Err: store.ErrNotFound}
	default:
		return fmt.Errorf("server error: %s", r.Error)
	}
}
