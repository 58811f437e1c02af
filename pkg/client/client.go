// Package client is a Go SDK for the TaskFlow HTTP API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/taskflow/backend/api/transport"
	"github.com/taskflow/backend/domain"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx answer decoded from the response envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("taskflow: http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("taskflow: %s (%d): %s", e.Code, e.Status, e.Message)
}

// IsUnauthorized reports whether err means the session is gone and the
// user has to sign in again.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *fasthttp.Client
	stream  *fasthttp.Client
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithDialer replaces the network dialer, mostly for in-memory tests.
func WithDialer(dial fasthttp.DialFunc) Option {
	return func(c *Client) {
		c.http.Dial = dial
		c.stream.Dial = dial
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
		http: &fasthttp.Client{
			Name:                "taskflow-client",
			MaxIdleConnDuration: time.Minute,
		},
		stream: &fasthttp.Client{
			Name:               "taskflow-client",
			StreamResponseBody: true,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token used for subsequent calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) Token() string {
	return c.token
}

// do sends a JSON request and decodes the envelope data into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := c.baseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(raw)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return decode(resp.StatusCode(), resp.Body(), out)
}

func decode(status int, body []byte, out interface{}) error {
	var env transport.RawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		if status >= http.StatusBadRequest {
			return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if status >= http.StatusBadRequest || env.Failed() {
		return &APIError{Status: status, Code: env.Code, Message: env.Message()}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func page(limit, offset int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if offset > 0 {
		q.Set("offset", fmt.Sprint(offset))
	}
	return q
}

func (c *Client) Register(ctx context.Context, req transport.RegisterRequest) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login creates a session and keeps its token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.AuthToken, error) {
	var token domain.AuthToken
	body := transport.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", nil, body, &token); err != nil {
		return nil, err
	}
	c.token = token.Token
	return &token, nil
}

func (c *Client) Refresh(ctx context.Context) (*domain.AuthToken, error) {
	var token domain.AuthToken
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/refresh", nil, nil, &token); err != nil {
		return nil, err
	}
	c.token = token.Token
	return &token, nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

// LogoutAll revokes every session of the signed-in user and returns how
// many were revoked.
func (c *Client) LogoutAll(ctx context.Context) (int, error) {
	var out struct {
		Revoked int `json:"revoked"`
	}
	if err := c.do(ctx, http.MethodDelete, "/api/v1/auth/sessions", nil, nil, &out); err != nil {
		return 0, err
	}
	c.token = ""
	return out.Revoked, nil
}

func (c *Client) Account(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, "/api/v1/account", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Projects(ctx context.Context, limit, offset int) ([]domain.Project, error) {
	var projects []domain.Project
	err := c.do(ctx, http.MethodGet, "/api/v1/projects", page(limit, offset), nil, &projects)
	return projects, err
}

func (c *Client) Project(ctx context.Context, id string) (*domain.Project, error) {
	var project domain.Project
	if err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+url.PathEscape(id), nil, nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) CreateProject(ctx context.Context, req transport.ProjectRequest) (*domain.Project, error) {
	var project domain.Project
	if err := c.do(ctx, http.MethodPost, "/api/v1/projects", nil, req, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/projects/"+url.PathEscape(id), nil, nil, nil)
}

// TaskFilter narrows a project's task list.
type TaskFilter struct {
	Status   string
	Assignee string
	Limit    int
	Offset   int
}

func (c *Client) Tasks(ctx context.Context, projectID string, filter TaskFilter) ([]domain.Task, error) {
	q := page(filter.Limit, filter.Offset)
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.Assignee != "" {
		q.Set("assignee", filter.Assignee)
	}
	var tasks []domain.Task
	err := c.do(ctx, http.MethodGet, "/api/v1/projects/"+url.PathEscape(projectID)+"/tasks", q, nil, &tasks)
	return tasks, err
}

func (c *Client) CreateTask(ctx context.Context, req transport.TaskRequest) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, http.MethodPost, "/api/v1/tasks", nil, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, req transport.TaskPatchRequest) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, http.MethodPatch, "/api/v1/tasks/"+url.PathEscape(id), nil, req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// MoveTask persists a status change. It matches board.Persister once
// wrapped by the caller.
func (c *Client) MoveTask(ctx context.Context, id, status string) (*domain.Task, error) {
	var task domain.Task
	body := transport.MoveRequest{Status: status}
	if err := c.do(ctx, http.MethodPatch, "/api/v1/tasks/"+url.PathEscape(id)+"/status", nil, body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/tasks/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) Comments(ctx context.Context, scope domain.CommentScope, limit, offset int) ([]domain.Comment, error) {
	q := page(limit, offset)
	if scope.TaskID != "" {
		q.Set("task_id", scope.TaskID)
	}
	if scope.ProjectID != "" {
		q.Set("project_id", scope.ProjectID)
	}
	var comments []domain.Comment
	err := c.do(ctx, http.MethodGet, "/api/v1/comments", q, nil, &comments)
	return comments, err
}

func (c *Client) AddComment(ctx context.Context, req transport.CommentRequest) (*domain.Comment, error) {
	var comment domain.Comment
	if err := c.do(ctx, http.MethodPost, "/api/v1/comments", nil, req, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) DeleteComment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/comments/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) Teams(ctx context.Context) ([]domain.Team, error) {
	var teams []domain.Team
	err := c.do(ctx, http.MethodGet, "/api/v1/teams", nil, nil, &teams)
	return teams, err
}

func (c *Client) CreateTeam(ctx context.Context, name string) (*domain.Team, error) {
	var team domain.Team
	if err := c.do(ctx, http.MethodPost, "/api/v1/teams", nil, transport.TeamRequest{Name: name}, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

func (c *Client) Members(ctx context.Context, teamID string) ([]domain.Membership, error) {
	var members []domain.Membership
	err := c.do(ctx, http.MethodGet, "/api/v1/teams/"+url.PathEscape(teamID)+"/memberships", nil, nil, &members)
	return members, err
}

func (c *Client) Invite(ctx context.Context, teamID, email, role string) (*domain.Membership, error) {
	var membership domain.Membership
	body := transport.InviteRequest{Email: email, Role: role}
	if err := c.do(ctx, http.MethodPost, "/api/v1/teams/"+url.PathEscape(teamID)+"/memberships", nil, body, &membership); err != nil {
		return nil, err
	}
	return &membership, nil
}

func (c *Client) SetRole(ctx context.Context, teamID, membershipID, role string) (*domain.Membership, error) {
	var membership domain.Membership
	path := "/api/v1/teams/" + url.PathEscape(teamID) + "/memberships/" + url.PathEscape(membershipID)
	if err := c.do(ctx, http.MethodPatch, path, nil, transport.RoleRequest{Role: role}, &membership); err != nil {
		return nil, err
	}
	return &membership, nil
}

func (c *Client) RemoveMember(ctx context.Context, teamID, membershipID string) error {
	path := "/api/v1/teams/" + url.PathEscape(teamID) + "/memberships/" + url.PathEscape(membershipID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}
