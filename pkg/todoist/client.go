package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

const DefaultBaseURL = "https://api.todoist.com/rest/v2"

// ErrNoToken is returned by calls that cannot short-circuit to an empty
// result when no API token is configured.
var ErrNoToken = errors.New("todoist: api token not configured")

// Client is a Todoist REST API client. Every request carries the bearer
// token; without a token no request is made at all.
type Client struct {
	baseURL    string
	httpClient *http.Client
	hasToken   bool
}

type options struct {
	baseURL string
	base    *http.Client
}

type Option func(*options)

// WithBaseURL points the client at another server (tests).
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithHTTPClient sets the client whose transport carries the authorized requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.base = c }
}

// NewClient creates a client for the given API token.
func NewClient(token string, opts ...Option) *Client {
	o := options{
		baseURL: DefaultBaseURL,
		base:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, o.base)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = 30 * time.Second

	return &Client{
		baseURL:    o.baseURL,
		httpClient: httpClient,
		hasToken:   token != "",
	}
}

// HasToken reports whether an API token is configured.
func (c *Client) HasToken() bool {
	return c.hasToken
}

// IsNotFound reports whether err is a 404 from the API (deleted task).
func IsNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set("X-Request-Id", uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("todoist %s %s: %w", method, path, err)
	}
	defer googleapi.CloseBody(resp)

	if err := googleapi.CheckResponse(resp); err != nil {
		return fmt.Errorf("todoist %s %s: %w", method, path, err)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// ListProjects returns all projects, or nothing when no token is set.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	if !c.hasToken {
		return nil, nil
	}
	var projects []Project
	if err := c.do(ctx, http.MethodGet, "/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// ListLabels returns all personal labels, or nothing when no token is set.
func (c *Client) ListLabels(ctx context.Context) ([]Label, error) {
	if !c.hasToken {
		return nil, nil
	}
	var labels []Label
	if err := c.do(ctx, http.MethodGet, "/labels", nil, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// ListTasks returns all active tasks, or nothing when no token is set.
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	if !c.hasToken {
		return nil, nil
	}
	var tasks []Task
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	if !c.hasToken {
		return nil, ErrNoToken
	}
	var task Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a task. Only the first of due_string, due_datetime and
// due_date that is set is sent.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	if !c.hasToken {
		return nil, ErrNoToken
	}
	switch {
	case req.DueString != "":
		req.DueDatetime, req.DueDate = "", ""
	case req.DueDatetime != "":
		req.DueDate = ""
	}
	if req.Duration == 0 || req.DurationUnit == "" {
		req.Duration, req.DurationUnit = 0, ""
	}

	var task Task
	if err := c.do(ctx, http.MethodPost, "/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) CloseTask(ctx context.Context, id string) error {
	if !c.hasToken {
		return ErrNoToken
	}
	return c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/close", nil, nil)
}

func (c *Client) ReopenTask(ctx context.Context, id string) error {
	if !c.hasToken {
		return ErrNoToken
	}
	return c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/reopen", nil, nil)
}

// SetCompleted closes or reopens a task.
func (c *Client) SetCompleted(ctx context.Context, id string, completed bool) error {
	if completed {
		return c.CloseTask(ctx, id)
	}
	return c.ReopenTask(ctx, id)
}

// CreateReminder adds a reminder such as "30 minutes before" to a task.
func (c *Client) CreateReminder(ctx context.Context, taskID, due string) error {
	if !c.hasToken {
		return ErrNoToken
	}
	body := reminderRequest{ItemID: taskID, Due: reminderDue{String: due}}
	return c.do(ctx, http.MethodPost, "/reminders", body, nil)
}

// TestConnection reports whether the token can list projects.
func (c *Client) TestConnection(ctx context.Context) bool {
	if !c.hasToken {
		return false
	}
	return c.do(ctx, http.MethodGet, "/projects", nil, nil) == nil
}
