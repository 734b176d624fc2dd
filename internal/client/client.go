// Package client talks to the vhq host over its HTTP invoke surface.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vhq-lag/vhq/internal/models"
)

// DefaultTimeout is the default timeout for host requests.
const DefaultTimeout = 10 * time.Second

// Host command names.
const (
	CmdGetAgentStatus      = "get_agent_status"
	CmdGetAgentInfo        = "get_agent_info"
	CmdGetQueueStatus      = "get_queue_status"
	CmdGetSystemMetrics    = "get_system_metrics"
	CmdGetGhostModels      = "get_ghost_models"
	CmdGetVitraLanguages   = "get_vitra_languages"
	CmdStartAgent          = "start_agent"
	CmdStopAgent           = "stop_agent"
	CmdClearCompletedTasks = "clear_completed_tasks"
	CmdProcessFile         = "process_file"
	CmdGetTaskStatus       = "get_task_status"
	CmdCancelTask          = "cancel_task"
)

// HostError is a command the host answered with a failure status.
type HostError struct {
	Command    string
	StatusCode int
	Message    string
}

func (e *HostError) Error() string {
	return fmt.Sprintf("%s: host returned %d: %s", e.Command, e.StatusCode, e.Message)
}

// Client wraps HTTP calls to the host.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client with DefaultTimeout.
func New(baseURL string) *Client {
	return NewWithTimeout(baseURL, DefaultTimeout)
}

// NewWithTimeout creates a client whose requests give up after timeout.
func NewWithTimeout(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the host address the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type agentArgs struct {
	AgentName string `json:"agentName"`
}

type taskArgs struct {
	TaskID string `json:"taskId"`
}

type processArgs struct {
	Request models.ProcessRequest `json:"request"`
}

// Invoke runs command with args and decodes the result into out. A nil
// args sends an empty object; a nil out discards the result.
func (c *Client) Invoke(ctx context.Context, command string, args, out interface{}) error {
	if args == nil {
		args = struct{}{}
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%s: encode args: %w", command, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoke/"+command, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", command, err)
	}

	if resp.StatusCode >= 400 {
		return &HostError{Command: command, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", command, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

// GetAgentStatus fetches the status of one agent.
func (c *Client) GetAgentStatus(ctx context.Context, name string) (models.AgentStatus, error) {
	var st models.AgentStatus
	err := c.Invoke(ctx, CmdGetAgentStatus, agentArgs{name}, &st)
	return st, err
}

// GetAgentInfo fetches the descriptive info map of one agent.
func (c *Client) GetAgentInfo(ctx context.Context, name string) (models.AgentInfo, error) {
	var info models.AgentInfo
	err := c.Invoke(ctx, CmdGetAgentInfo, agentArgs{name}, &info)
	return info, err
}

// GetQueueStatus fetches queue counts and the orchestrator's agent view.
func (c *Client) GetQueueStatus(ctx context.Context) (models.QueueStatus, error) {
	var qs models.QueueStatus
	err := c.Invoke(ctx, CmdGetQueueStatus, nil, &qs)
	return qs, err
}

// GetSystemMetrics fetches machine-wide metrics.
func (c *Client) GetSystemMetrics(ctx context.Context) (models.SystemMetrics, error) {
	var m models.SystemMetrics
	err := c.Invoke(ctx, CmdGetSystemMetrics, nil, &m)
	return m, err
}

// GetGhostModels lists the content models available to ghost_lag.
func (c *Client) GetGhostModels(ctx context.Context) ([]string, error) {
	var names []string
	err := c.Invoke(ctx, CmdGetGhostModels, nil, &names)
	return names, err
}

// GetVitraLanguages lists the transcription languages of vitra_lag.
func (c *Client) GetVitraLanguages(ctx context.Context) ([]string, error) {
	var langs []string
	err := c.Invoke(ctx, CmdGetVitraLanguages, nil, &langs)
	return langs, err
}

// StartAgent starts an agent and returns its new status.
func (c *Client) StartAgent(ctx context.Context, name string) (models.AgentStatus, error) {
	var st models.AgentStatus
	err := c.Invoke(ctx, CmdStartAgent, agentArgs{name}, &st)
	return st, err
}

// StopAgent stops an agent and returns its new status.
func (c *Client) StopAgent(ctx context.Context, name string) (models.AgentStatus, error) {
	var st models.AgentStatus
	err := c.Invoke(ctx, CmdStopAgent, agentArgs{name}, &st)
	return st, err
}

// ClearCompletedTasks drops finished tasks from the host queue.
func (c *Client) ClearCompletedTasks(ctx context.Context) error {
	return c.Invoke(ctx, CmdClearCompletedTasks, nil, nil)
}

// SubmitTask queues a file for processing.
func (c *Client) SubmitTask(ctx context.Context, req models.ProcessRequest) (models.ProcessResponse, error) {
	var resp models.ProcessResponse
	err := c.Invoke(ctx, CmdProcessFile, processArgs{req}, &resp)
	return resp, err
}

// GetTaskStatus fetches one queued task.
func (c *Client) GetTaskStatus(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := c.Invoke(ctx, CmdGetTaskStatus, taskArgs{id}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CancelTask cancels a pending or running task.
func (c *Client) CancelTask(ctx context.Context, id string) error {
	return c.Invoke(ctx, CmdCancelTask, taskArgs{id}, nil)
}

// CheckHealth checks if the host is healthy.
func (c *Client) CheckHealth(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var health struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, err
	}
	return health.OK, nil
}

// getJSON performs a GET against path and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("GET %s: read response: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return &HostError{Command: path, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return json.Unmarshal(body, out)
}

// ListPDR fetches the latest audit records, newest first.
func (c *Client) ListPDR(ctx context.Context, limit int) ([]models.PDREntry, error) {
	var entries []models.PDREntry
	err := c.getJSON(ctx, fmt.Sprintf("/audit/pdr?limit=%d", limit), &entries)
	return entries, err
}

// Workers fetches scheduler statistics.
func (c *Client) Workers(ctx context.Context) (map[string]interface{}, error) {
	var stats map[string]interface{}
	err := c.getJSON(ctx, "/workers", &stats)
	return stats, err
}
