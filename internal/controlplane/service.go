// Package controlplane provides the HTTP API and service layer of the vhq
// host daemon.
package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/vhq-lag/vhq/internal/agents"
	"github.com/vhq-lag/vhq/internal/audit"
	"github.com/vhq-lag/vhq/internal/client"
	"github.com/vhq-lag/vhq/internal/models"
	"github.com/vhq-lag/vhq/internal/store"
)

// ModelLister lists the language models available to ghost_lag.
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
}

// TaskTypeFileProcessing is the task type queued by process_file.
const TaskTypeFileProcessing = "file_processing"

// Service provides the control plane business logic.
type Service struct {
	store    *store.Store
	pdr      *audit.PDRWriter
	registry *agents.Registry
	models   ModelLister
	probe    SystemProbe
	started  time.Time
}

// NewService creates a new control plane service.
func NewService(s *store.Store, pdr *audit.PDRWriter, reg *agents.Registry, models ModelLister, probe SystemProbe) *Service {
	return &Service{
		store:    s,
		pdr:      pdr,
		registry: reg,
		models:   models,
		probe:    probe,
		started:  time.Now(),
	}
}

// invokeArgs is the union of argument shapes accepted by the invoke endpoint.
type invokeArgs struct {
	AgentName string                 `json:"agentName"`
	TaskID    string                 `json:"taskId"`
	Request   *models.ProcessRequest `json:"request"`
}

// Invoke runs one named host command. The result is encoded as the response
// body; a nil result encodes as null.
func (s *Service) Invoke(ctx context.Context, command string, args invokeArgs) (interface{}, error) {
	switch command {
	case client.CmdGetAgentStatus:
		return s.GetAgentStatus(ctx, args.AgentName)
	case client.CmdGetAgentInfo:
		return s.GetAgentInfo(args.AgentName)
	case client.CmdGetQueueStatus:
		return s.GetQueueStatus(ctx)
	case client.CmdGetSystemMetrics:
		return s.GetSystemMetrics(ctx)
	case client.CmdGetGhostModels:
		return s.GetGhostModels(ctx)
	case client.CmdGetVitraLanguages:
		return s.registry.Languages(), nil
	case client.CmdStartAgent:
		return s.StartAgent(args.AgentName)
	case client.CmdStopAgent:
		return s.StopAgent(args.AgentName)
	case client.CmdClearCompletedTasks:
		return nil, s.ClearCompletedTasks()
	case client.CmdProcessFile:
		if args.Request == nil {
			return nil, fmt.Errorf("%w: missing request", ErrBadRequest)
		}
		return s.ProcessFile(*args.Request)
	case client.CmdGetTaskStatus:
		return s.GetTaskStatus(args.TaskID)
	case client.CmdCancelTask:
		return nil, s.CancelTask(args.TaskID)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

// --- Agent Operations ---

func requireAgentName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: agentName is required", ErrBadRequest)
	}
	return nil
}

// active reports whether an agent in state st is charged the daemon's
// resource usage.
func active(st string) bool {
	s := models.AgentState(st)
	return s == models.AgentRunning || s == models.AgentBusy
}

// processUsage returns the daemon's memory and CPU usage, or zeros when
// the probe fails.
func (s *Service) processUsage(ctx context.Context) (int64, float64) {
	if s.probe == nil {
		return 0, 0
	}
	rss, pct, err := s.probe.Process(ctx)
	if err != nil {
		log.Printf("Warning: process usage unavailable: %v", err)
		return 0, 0
	}
	return int64(rss), pct
}

// GetAgentStatus returns the status of one agent.
func (s *Service) GetAgentStatus(ctx context.Context, name string) (models.AgentStatus, error) {
	if err := requireAgentName(name); err != nil {
		return models.AgentStatus{}, err
	}
	st, err := s.registry.Status(name)
	if err != nil {
		return models.AgentStatus{}, err
	}
	if active(st.Status) {
		st.MemoryUsage, st.CPUUsage = s.processUsage(ctx)
	}
	return st, nil
}

// GetAgentInfo returns the descriptive info of one agent.
func (s *Service) GetAgentInfo(name string) (models.AgentInfo, error) {
	if err := requireAgentName(name); err != nil {
		return nil, err
	}
	return s.registry.Info(name)
}

// StartAgent marks an agent running so the scheduler hands it work.
func (s *Service) StartAgent(name string) (models.AgentStatus, error) {
	if err := requireAgentName(name); err != nil {
		return models.AgentStatus{}, err
	}
	st, err := s.registry.Start(name)
	s.pdr.RecordResult("agent.start", map[string]string{"agentName": name}, "", err)
	if err != nil {
		return models.AgentStatus{}, err
	}
	log.Printf("Agent %s started", name)
	return st, nil
}

// StopAgent marks an agent stopped.
func (s *Service) StopAgent(name string) (models.AgentStatus, error) {
	if err := requireAgentName(name); err != nil {
		return models.AgentStatus{}, err
	}
	st, err := s.registry.Stop(name)
	s.pdr.RecordResult("agent.stop", map[string]string{"agentName": name}, "", err)
	if err != nil {
		return models.AgentStatus{}, err
	}
	log.Printf("Agent %s stopped", name)
	return st, nil
}

// GetGhostModels lists the models ghost_lag can generate with.
func (s *Service) GetGhostModels(ctx context.Context) ([]string, error) {
	if s.models == nil {
		return nil, fmt.Errorf("%w: no model source configured", errUpstream)
	}
	names, err := s.models.Models(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUpstream, err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// --- Queue Operations ---

// GetQueueStatus returns task counts and the orchestrator's view of the agents.
func (s *Service) GetQueueStatus(ctx context.Context) (models.QueueStatus, error) {
	stats, err := s.store.CountTasks()
	if err != nil {
		return models.QueueStatus{}, err
	}
	queueAgents := s.registry.QueueAgents()
	mem, pct := s.processUsage(ctx)
	for i := range queueAgents {
		if active(queueAgents[i].Status) {
			queueAgents[i].MemoryUsage, queueAgents[i].CPUUsage = mem, pct
		}
	}
	return models.QueueStatus{
		QueueStats:         stats,
		Agents:             queueAgents,
		MaxConcurrentTasks: s.registry.Settings().MaxConcurrentTasks,
	}, nil
}

// ClearCompletedTasks removes finished tasks from the queue.
func (s *Service) ClearCompletedTasks() error {
	n, err := s.store.ClearFinishedTasks()
	s.pdr.RecordResult("queue.clear", nil, "", err)
	if err != nil {
		return err
	}
	log.Printf("Cleared %d finished tasks", n)
	return nil
}

// resolveAgentType maps an explicit agent type onto a registry name,
// accepting both "ghost" and "ghost_lag".
func (s *Service) resolveAgentType(agentType, filePath string) (string, error) {
	if agentType == "" {
		return agents.RouteFile(filePath), nil
	}
	name := strings.ToLower(strings.TrimSpace(agentType))
	if !strings.HasSuffix(name, "_lag") {
		name += "_lag"
	}
	if _, err := s.registry.Get(name); err != nil {
		return "", err
	}
	return name, nil
}

// ProcessFile queues a file for the agent chosen by its type or extension.
func (s *Service) ProcessFile(req models.ProcessRequest) (models.ProcessResponse, error) {
	if strings.TrimSpace(req.FilePath) == "" {
		return models.ProcessResponse{}, fmt.Errorf("%w: file_path is required", ErrBadRequest)
	}
	agentName, err := s.resolveAgentType(req.AgentType, req.FilePath)
	if err != nil {
		return models.ProcessResponse{}, err
	}

	params, err := json.Marshal(req)
	if err != nil {
		return models.ProcessResponse{}, fmt.Errorf("encode parameters: %w", err)
	}
	task, err := s.store.CreateTask(agentName, TaskTypeFileProcessing, string(params), 1)
	if err != nil {
		s.pdr.RecordResult("task.create", req, "", err)
		return models.ProcessResponse{}, err
	}
	s.pdr.Record("task.create", req, audit.OutcomeSuccess, task.ID, agentName)

	return models.ProcessResponse{
		TaskID:  task.ID,
		Status:  "queued",
		Message: fmt.Sprintf("File queued for processing by %s", agentName),
	}, nil
}

// GetTaskStatus returns one task.
func (s *Service) GetTaskStatus(id string) (*models.Task, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: taskId is required", ErrBadRequest)
	}
	task, err := s.store.GetTask(id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return task, nil
}

// CancelTask marks a task cancelled.
func (s *Service) CancelTask(id string) error {
	if id == "" {
		return fmt.Errorf("%w: taskId is required", ErrBadRequest)
	}
	ok, err := s.store.CancelTask(id)
	if err == nil && !ok {
		err = fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	s.pdr.RecordResult("task.cancel", map[string]string{"taskId": id}, id, err)
	return err
}

// --- System Operations ---

// GetSystemMetrics returns machine resource usage and task totals. Probe
// failures leave the affected fields at zero.
func (s *Service) GetSystemMetrics(ctx context.Context) (models.SystemMetrics, error) {
	stats, err := s.store.CountTasks()
	if err != nil {
		return models.SystemMetrics{}, err
	}
	m := models.SystemMetrics{
		ActiveTasks:    stats.Running,
		CompletedTasks: stats.Completed,
		FailedTasks:    stats.Failed,
		Uptime:         time.Since(s.started).Seconds(),
	}
	if s.probe == nil {
		return m, nil
	}

	if total, used, err := s.probe.Memory(ctx); err != nil {
		log.Printf("Warning: memory usage unavailable: %v", err)
	} else {
		m.TotalMemory, m.UsedMemory = int64(total), int64(used)
	}
	if pct, err := s.probe.CPUPercent(ctx); err != nil {
		log.Printf("Warning: cpu usage unavailable: %v", err)
	} else {
		m.CPUUsage = pct
	}
	if pct, err := s.probe.DiskPercent(ctx); err != nil {
		log.Printf("Warning: disk usage unavailable: %v", err)
	} else {
		m.DiskUsage = pct
	}
	return m, nil
}

// RecentDecisions returns the latest audit records.
func (s *Service) RecentDecisions(limit int) ([]models.PDREntry, error) {
	return s.pdr.Recent(limit)
}
