package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/relaysync/conductor/application/coordinator"
	"github.com/relaysync/conductor/domain/project"
	"github.com/relaysync/conductor/domain/task"
	"github.com/relaysync/conductor/infrastructure/resilience"
)

// Client satisfies application/agentloop's CoordinatorClient over HTTP,
// for an agent driver running in a separate process from the
// coordinator. Push, Heartbeat and ClaimNext run through a
// resilience.Executor (bulkhead, timeout, circuit breaker, fixed-delay
// retry); the other calls are made once, without retry. A status push
// or heartbeat that fails
// transiently is retried here before the driver ever has to fall back
// to its local outbox.
type Client struct {
	baseURL    string
	httpClient *http.Client
	push       *resilience.Executor[*coordinator.PushResponse]
	heartbeat  *resilience.Executor[*coordinator.HeartbeatResponse]
	claim      *resilience.Executor[*coordinator.ClaimNextResponse]
}

// NewClient builds a Client against a coordinator listening at baseURL
// (e.g. "http://localhost:3344").
func NewClient(baseURL string) *Client {
	cfg := resilience.DefaultConfig()
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: cfg.DefaultTimeout},
		push:       resilience.NewExecutor[*coordinator.PushResponse](cfg),
		heartbeat:  resilience.NewExecutor[*coordinator.HeartbeatResponse](cfg),
		claim:      resilience.NewExecutor[*coordinator.ClaimNextResponse](cfg),
	}
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var eb errorBody
		if jsonErr := json.Unmarshal(raw, &eb); jsonErr == nil && eb.Error != "" {
			return &coordinator.Error{Code: coordinator.Code(eb.Error), Reason: eb.Reason}
		}
		return fmt.Errorf("httpapi client: %s: %d", path, resp.StatusCode)
	}
	if out != nil && len(raw) > 0 {
		return json.Unmarshal(raw, out)
	}
	return nil
}

// Push reports task outcomes to the coordinator (§4.1).
func (c *Client) Push(ctx context.Context, projectID string, req coordinator.PushRequest) (*coordinator.PushResponse, error) {
	return c.push.Execute(ctx, func(ctx context.Context) (*coordinator.PushResponse, error) {
		var resp coordinator.PushResponse
		if err := c.postJSON(ctx, "/api/v2/sync/push/"+projectID, req, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// Heartbeat extends the agent's lease and drains pending commands (§4.4).
func (c *Client) Heartbeat(ctx context.Context, taskID string, req coordinator.HeartbeatRequest) (*coordinator.HeartbeatResponse, error) {
	return c.heartbeat.Execute(ctx, func(ctx context.Context) (*coordinator.HeartbeatResponse, error) {
		var resp coordinator.HeartbeatResponse
		if err := c.postJSON(ctx, "/api/v2/sync/tasks/"+taskID+"/heartbeat", req, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// ClaimNext claims the next queued task for a project (§4.6.1).
func (c *Client) ClaimNext(ctx context.Context, projectID string, req coordinator.ClaimRequest) (*coordinator.ClaimNextResponse, error) {
	return c.claim.Execute(ctx, func(ctx context.Context) (*coordinator.ClaimNextResponse, error) {
		var resp coordinator.ClaimNextResponse
		if err := c.postJSON(ctx, "/api/projects/"+projectID+"/claim-task", req, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// RegisterNode upserts this node's registration with the coordinator
// (§6's `/nodes/register`), used by the `register` CLI command.
func (c *Client) RegisterNode(ctx context.Context, req RegisterNodeRequest) error {
	return c.postJSON(ctx, "/api/v2/sync/nodes/register", req, nil)
}

// Handshake reconciles the agent's locally-believed task versions
// against the coordinator's (§4.1), backing `sync full`.
func (c *Client) Handshake(ctx context.Context, projectID string, req coordinator.HandshakeRequest) (*coordinator.HandshakeResponse, error) {
	var resp coordinator.HandshakeResponse
	if err := c.postJSON(ctx, "/api/v2/sync/handshake/"+projectID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pull fetches the current state of a specific task set (§4.1),
// backing `sync pull`.
func (c *Client) Pull(ctx context.Context, projectID string, req coordinator.PullRequest) (*coordinator.PullResponse, error) {
	var resp coordinator.PullResponse
	if err := c.postJSON(ctx, "/api/v2/sync/pull/"+projectID, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateProject registers a project with the coordinator, backing
// `register`'s project-side bookkeeping.
func (c *Client) CreateProject(ctx context.Context, req CreateProjectRequest) (*project.Project, error) {
	var p project.Project
	if err := c.postJSON(ctx, "/api/projects", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateTask defines a new task in projectID, backing `queue-tasks`.
func (c *Client) CreateTask(ctx context.Context, projectID string, req CreateTaskRequest) (*task.Task, error) {
	var t task.Task
	if err := c.postJSON(ctx, "/api/projects/"+projectID+"/tasks", req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasks lists a project's tasks, optionally filtered by status,
// backing `queue-tasks` and `sync pending`.
func (c *Client) ListTasks(ctx context.Context, projectID, status string) ([]task.Task, error) {
	path := "/api/projects/" + projectID + "/tasks"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var rows []task.Task
	if err := c.do(ctx, http.MethodGet, path, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// RegisterNodeRequest mirrors the server's unexported registerNodeRequest
// wire shape, exported here so the CLI can build one without importing
// handler internals.
type RegisterNodeRequest struct {
	NodeID       string   `json:"nodeId"`
	ProjectID    string   `json:"projectId"`
	NodeType     string   `json:"nodeType"`
	DisplayName  string   `json:"displayName,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// CreateProjectRequest mirrors POST /api/projects' body.
type CreateProjectRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// CreateTaskRequest mirrors POST /api/projects/:id/tasks' body.
type CreateTaskRequest struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Prompt   string      `json:"prompt"`
	Priority int         `json:"priority"`
	Config   task.Config `json:"config"`
}
