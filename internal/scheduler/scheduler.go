package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"path/filepath"
	"sync"
	"time"

	"github.com/vhq-lag/vhq/internal/agents"
	"github.com/vhq-lag/vhq/internal/audit"
	"github.com/vhq-lag/vhq/internal/models"
	"github.com/vhq-lag/vhq/internal/store"
)

// Observer is told about dispatched and finished tasks.
type Observer interface {
	TaskDispatched(agent string)
	TaskFinished(agent string, status models.TaskStatus)
}

// Scheduler manages task dispatching and the agent workers.
type Scheduler struct {
	store    *store.Store
	pdr      *audit.PDRWriter
	registry *agents.Registry
	config   *Config
	observer Observer

	// Worker pool state
	mu            sync.Mutex
	activeWorkers int
	agentCounts   map[string]int

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new scheduler.
func New(s *store.Store, pdr *audit.PDRWriter, reg *agents.Registry, cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		store:       s,
		pdr:         pdr,
		registry:    reg,
		config:      cfg.withDefaults(),
		agentCounts: make(map[string]int),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetObserver registers o for task events. Call before Start.
func (sch *Scheduler) SetObserver(o Observer) {
	sch.observer = o
}

// Start begins the dispatch and health loops.
func (sch *Scheduler) Start() {
	sch.wg.Add(2)
	go sch.schedulerLoop()
	go sch.healthLoop()
	log.Println("Scheduler started")
}

// Stop gracefully stops the scheduler. Tasks still being worked on go back
// to pending.
func (sch *Scheduler) Stop() {
	sch.cancel()
	sch.wg.Wait()
	log.Println("Scheduler stopped")
}

// schedulerLoop polls for pending tasks and dispatches them to workers.
func (sch *Scheduler) schedulerLoop() {
	defer sch.wg.Done()

	ticker := time.NewTicker(sch.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sch.ctx.Done():
			return
		case <-ticker.C:
			sch.pollAndDispatch()
		}
	}
}

// healthLoop refreshes agent health scores.
func (sch *Scheduler) healthLoop() {
	defer sch.wg.Done()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(sch.config.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sch.ctx.Done():
			return
		case <-ticker.C:
			sch.registry.RefreshHealth(rng)
		}
	}
}

// pollAndDispatch hands pending tasks, highest priority and oldest first,
// to their agents while capacity remains. Tasks whose agent is stopped or
// busy stay pending.
func (sch *Scheduler) pollAndDispatch() {
	sch.mu.Lock()
	free := sch.config.MaxConcurrent - sch.activeWorkers
	sch.mu.Unlock()
	if free <= 0 {
		return
	}

	tasks, err := sch.store.ListTasks(models.TaskStatusPending)
	if err != nil {
		log.Printf("Error listing pending tasks: %v", err)
		return
	}

	for i := range tasks {
		if free == 0 {
			return
		}
		task := tasks[i]
		if !sch.registry.Acquire(task.AgentName, task.ID) {
			continue
		}
		if err := sch.store.StartTask(task.ID); err != nil {
			sch.registry.Release(task.AgentName)
			if !errors.Is(err, store.ErrTaskNotPending) {
				log.Printf("Error starting task %s: %v", task.ID, err)
			}
			continue
		}

		sch.pdr.Record("task.dispatch", map[string]interface{}{
			"task_id": task.ID,
			"agent":   task.AgentName,
		}, audit.OutcomeSuccess, task.ID, fmt.Sprintf("Assigned to %s", task.AgentName))
		log.Printf("Assigned task %s to agent %s", task.ID, task.AgentName)

		sch.mu.Lock()
		sch.activeWorkers++
		sch.agentCounts[task.AgentName]++
		sch.mu.Unlock()
		free--

		if sch.observer != nil {
			sch.observer.TaskDispatched(task.AgentName)
		}

		sch.wg.Add(1)
		go sch.runWorker(task)
	}
}

// runWorker simulates the agent working on task, then records the outcome
// and frees the agent.
func (sch *Scheduler) runWorker(task models.Task) {
	defer sch.wg.Done()
	defer func() {
		sch.mu.Lock()
		sch.activeWorkers--
		sch.agentCounts[task.AgentName]--
		sch.mu.Unlock()
	}()

	work := sch.config.WorkerDuration
	timedOut := false
	if work > sch.config.TaskTimeout {
		work = sch.config.TaskTimeout
		timedOut = true
	}

	timer := time.NewTimer(work)
	defer timer.Stop()

	select {
	case <-sch.ctx.Done():
		sch.registry.Release(task.AgentName)
		if err := sch.store.RequeueTask(task.ID); err != nil {
			log.Printf("Error requeueing task %s: %v", task.ID, err)
		}
		log.Printf("Worker for task %s interrupted, task requeued", task.ID)
		return
	case <-timer.C:
	}

	stillRunning := sch.registry.Release(task.AgentName)

	status := models.TaskStatusCompleted
	result, errText := describeResult(task), ""
	switch {
	case timedOut:
		status, result, errText = models.TaskStatusFailed, "", fmt.Sprintf("task timed out after %s", sch.config.TaskTimeout)
	case !stillRunning:
		status, result, errText = models.TaskStatusFailed, "", "agent stopped while processing"
	}

	if err := sch.store.FinishTask(task.ID, status, result, errText); err != nil {
		log.Printf("Error finishing task %s: %v", task.ID, err)
		return
	}
	sch.pdr.Record("task.finish", map[string]interface{}{
		"task_id": task.ID,
		"status":  status,
	}, outcomeFor(status), task.ID, errText)
	if sch.observer != nil {
		sch.observer.TaskFinished(task.AgentName, status)
	}
	log.Printf("Task %s %s on %s", task.ID, status, task.AgentName)
}

func outcomeFor(status models.TaskStatus) string {
	if status == models.TaskStatusCompleted {
		return audit.OutcomeSuccess
	}
	return audit.OutcomeFailure
}

func describeResult(task models.Task) string {
	var params struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal([]byte(task.Parameters), &params); err != nil || params.FilePath == "" {
		return fmt.Sprintf("%s finished %s", task.AgentName, task.TaskType)
	}
	return fmt.Sprintf("%s processed %s", task.AgentName, filepath.Base(params.FilePath))
}

// ActiveTasks returns how many tasks are being worked on.
func (sch *Scheduler) ActiveTasks() int {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	return sch.activeWorkers
}

// GetStats returns current scheduler statistics.
func (sch *Scheduler) GetStats() map[string]interface{} {
	sch.mu.Lock()
	defer sch.mu.Unlock()

	agentCounts := make(map[string]int)
	for k, v := range sch.agentCounts {
		agentCounts[k] = v
	}

	return map[string]interface{}{
		"active_workers": sch.activeWorkers,
		"max_concurrent": sch.config.MaxConcurrent,
		"agent_counts":   agentCounts,
	}
}
