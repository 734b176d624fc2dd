// Package models defines the core domain types for vhq.
package models

import (
	"strings"
	"time"
)

// AgentNames is the fixed set of agents the console monitors. Order is
// significant: views address start/stop actions by index into this slice.
var AgentNames = []string{"vitra_lag", "ghost_lag", "ceo_lag"}

// AgentState is the coarse run state reported by the host for an agent.
type AgentState string

const (
	AgentRunning AgentState = "running"
	AgentStopped AgentState = "stopped"
	AgentBusy    AgentState = "busy"
	AgentUnknown AgentState = "unknown"
)

// NormalizeAgentState maps a raw host status string onto a known state.
func NormalizeAgentState(raw string) AgentState {
	switch AgentState(strings.ToLower(strings.TrimSpace(raw))) {
	case AgentRunning:
		return AgentRunning
	case AgentStopped:
		return AgentStopped
	case AgentBusy:
		return AgentBusy
	default:
		return AgentUnknown
	}
}

// AgentStatus is the per-agent status answered by get_agent_status.
type AgentStatus struct {
	Name         string  `json:"name"`
	Status       string  `json:"status"`
	LastActivity string  `json:"last_activity"`
	MemoryUsage  int64   `json:"memory_usage"`
	CPUUsage     float64 `json:"cpu_usage"`
}

// State returns the normalized run state.
func (a AgentStatus) State() AgentState {
	return NormalizeAgentState(a.Status)
}

// LastActivityTime parses LastActivity, returning the zero time when it is
// missing or malformed.
func (a AgentStatus) LastActivityTime() time.Time {
	t, err := time.Parse(time.RFC3339, a.LastActivity)
	if err != nil {
		return time.Time{}
	}
	return t
}

// QueueStats holds aggregate task counts.
type QueueStats struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// QueueAgent is the orchestrator's view of one agent.
type QueueAgent struct {
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	HealthScore  float64  `json:"health_score"`
	MemoryUsage  int64    `json:"memory_usage"`
	CPUUsage     float64  `json:"cpu_usage"`
	LastActivity string   `json:"last_activity"`
	Capabilities []string `json:"capabilities"`
	CurrentTask  *string  `json:"current_task,omitempty"`
}

// QueueStatus is the snapshot answered by get_queue_status.
type QueueStatus struct {
	QueueStats         QueueStats   `json:"queue_stats"`
	Agents             []QueueAgent `json:"agents"`
	MaxConcurrentTasks int          `json:"max_concurrent_tasks"`
}

// AgentInfo is the free-form description answered by get_agent_info.
type AgentInfo map[string]interface{}

// SystemMetrics is the machine-wide snapshot answered by get_system_metrics.
type SystemMetrics struct {
	TotalMemory    int64   `json:"total_memory"`
	UsedMemory     int64   `json:"used_memory"`
	CPUUsage       float64 `json:"cpu_usage"`
	DiskUsage      float64 `json:"disk_usage"`
	ActiveTasks    int     `json:"active_tasks"`
	CompletedTasks int     `json:"completed_tasks"`
	FailedTasks    int     `json:"failed_tasks"`
	Uptime         float64 `json:"uptime"`
}

// TaskStatus represents the current state of a host task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Finished reports whether the status is terminal.
func (s TaskStatus) Finished() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Task represents a unit of work queued on the host orchestrator.
type Task struct {
	ID          string     `json:"id"`
	AgentName   string     `json:"agent_name"`
	TaskType    string     `json:"task_type"`
	Parameters  string     `json:"parameters"` // raw JSON
	Priority    int        `json:"priority"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ProcessRequest asks the host to queue a file for an agent. An empty
// AgentType lets the host route by file extension.
type ProcessRequest struct {
	FilePath  string                 `json:"file_path"`
	AgentType string                 `json:"agent_type,omitempty"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

// ProcessResponse is the answer to process_file.
type ProcessResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// PDREntry represents a Process Decision Record for audit.
type PDREntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	TaskID     string    `json:"task_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Priority ranks a todo item.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Priorities lists the selectable priorities in form order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Rank orders priorities; unknown values rank below LOW.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// ParsePriority accepts any casing; it reports false for unknown names.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if p.Rank() == 0 {
		return "", false
	}
	return p, true
}

// Mentionable agents in todo text.
const (
	TagGhost = "Ghost"
	TagCEO   = "CEO"
)

// TodoRecord is one entry of the personal todo list. JSON names match the
// persisted layout.
type TodoRecord struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Agent       string   `json:"agent"`
	DueDate     string   `json:"dueDate"`
	Priority    Priority `json:"priority"`
	Completed   bool     `json:"completed"`
}
