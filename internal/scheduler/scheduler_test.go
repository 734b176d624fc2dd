package scheduler

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vhq-lag/vhq/internal/agents"
	"github.com/vhq-lag/vhq/internal/audit"
	"github.com/vhq-lag/vhq/internal/models"
	"github.com/vhq-lag/vhq/internal/store"
)

// recordingObserver counts scheduler events.
type recordingObserver struct {
	mu         sync.Mutex
	dispatched map[string]int
	finished   map[models.TaskStatus]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{dispatched: map[string]int{}, finished: map[models.TaskStatus]int{}}
}

func (o *recordingObserver) TaskDispatched(agent string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dispatched[agent]++
}

func (o *recordingObserver) TaskFinished(agent string, status models.TaskStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished[status]++
}

func (o *recordingObserver) finishedCount(status models.TaskStatus) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.finished[status]
}

func fastConfig() *Config {
	return &Config{
		MaxConcurrent:  5,
		PollInterval:   10 * time.Millisecond,
		WorkerDuration: 50 * time.Millisecond,
		TaskTimeout:    time.Minute,
		HealthInterval: 10 * time.Millisecond,
	}
}

func newTestScheduler(t *testing.T, cfg *Config) (*Scheduler, *store.Store, *agents.Registry) {
	t.Helper()
	s := newTestStore(t)
	reg := agents.NewRegistry(agents.DefaultSettings())
	sch := New(s, audit.NewPDRWriter(s), reg, cfg)
	return sch, s, reg
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timeout waiting for %s", what)
}

func taskStatus(t *testing.T, s *store.Store, id string) models.TaskStatus {
	t.Helper()
	task, err := s.GetTask(id)
	if err != nil || task == nil {
		t.Fatalf("Failed to get task %s: %v", id, err)
	}
	return task.Status
}

func TestDispatchCompletesTask(t *testing.T) {
	sch, s, reg := newTestScheduler(t, fastConfig())
	defer s.Close()
	obs := newRecordingObserver()
	sch.SetObserver(obs)

	reg.Start(agents.Ghost)
	task, err := s.CreateTask(agents.Ghost, "file_processing", `{"file_path":"/tmp/notes.md"}`, 1)
	if err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	sch.Start()
	defer sch.Stop()

	waitFor(t, 5*time.Second, "task completion", func() bool {
		return taskStatus(t, s, task.ID) == models.TaskStatusCompleted
	})

	got, _ := s.GetTask(task.ID)
	if got.Result != "ghost_lag processed notes.md" {
		t.Errorf("Unexpected result: %q", got.Result)
	}
	a, _ := reg.Get(agents.Ghost)
	if a.Status != models.AgentRunning || a.CurrentTask != nil {
		t.Errorf("Agent should be idle again, got %+v", a)
	}
	if obs.finishedCount(models.TaskStatusCompleted) != 1 {
		t.Errorf("Expected one completed event, got %d", obs.finishedCount(models.TaskStatusCompleted))
	}

	entries, _ := s.ListPDR(10)
	actions := map[string]bool{}
	for _, e := range entries {
		actions[e.Action] = true
	}
	if !actions["task.dispatch"] || !actions["task.finish"] {
		t.Errorf("Expected dispatch and finish audit records, got %+v", entries)
	}
}

func TestStoppedAgentLeavesTaskPending(t *testing.T) {
	sch, s, _ := newTestScheduler(t, fastConfig())
	defer s.Close()

	task, _ := s.CreateTask(agents.Vitra, "file_processing", `{}`, 1)

	sch.Start()
	time.Sleep(100 * time.Millisecond)
	sch.Stop()

	if st := taskStatus(t, s, task.ID); st != models.TaskStatusPending {
		t.Errorf("Expected task to stay pending while the agent is stopped, got %s", st)
	}
}

func TestBusyAgentTakesOneTaskAtATime(t *testing.T) {
	cfg := fastConfig()
	cfg.WorkerDuration = 10 * time.Second
	sch, s, reg := newTestScheduler(t, cfg)
	defer s.Close()

	reg.Start(agents.Vitra)
	for i := 0; i < 3; i++ {
		if _, err := s.CreateTask(agents.Vitra, "file_processing", `{}`, 1); err != nil {
			t.Fatalf("Failed to create task: %v", err)
		}
	}

	sch.Start()
	defer sch.Stop()

	waitFor(t, 5*time.Second, "first dispatch", func() bool { return sch.ActiveTasks() == 1 })
	time.Sleep(100 * time.Millisecond)

	stats, _ := s.CountTasks()
	if stats.Running != 1 || stats.Pending != 2 {
		t.Errorf("Expected 1 running and 2 pending, got %+v", stats)
	}
}

func TestSchedulerConcurrencyLimits(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxConcurrent = 1
	cfg.WorkerDuration = 10 * time.Second
	sch, s, reg := newTestScheduler(t, cfg)
	defer s.Close()

	reg.Start(agents.Vitra)
	reg.Start(agents.Ghost)
	s.CreateTask(agents.Vitra, "file_processing", `{}`, 1)
	s.CreateTask(agents.Ghost, "file_processing", `{}`, 1)

	sch.Start()
	defer sch.Stop()

	waitFor(t, 5*time.Second, "dispatch", func() bool { return sch.ActiveTasks() > 0 })
	time.Sleep(100 * time.Millisecond)

	stats := sch.GetStats()
	if active := stats["active_workers"].(int); active > cfg.MaxConcurrent {
		t.Errorf("Active workers %d exceeds max %d", active, cfg.MaxConcurrent)
	}
}

func TestParallelAgents(t *testing.T) {
	cfg := fastConfig()
	cfg.WorkerDuration = 10 * time.Second
	sch, s, reg := newTestScheduler(t, cfg)
	defer s.Close()

	for _, name := range []string{agents.Vitra, agents.Ghost, agents.CEO} {
		reg.Start(name)
		if _, err := s.CreateTask(name, "file_processing", `{}`, 1); err != nil {
			t.Fatalf("Failed to create task: %v", err)
		}
	}

	sch.Start()
	defer sch.Stop()

	waitFor(t, 5*time.Second, "three parallel workers", func() bool { return sch.ActiveTasks() == 3 })

	counts := sch.GetStats()["agent_counts"].(map[string]int)
	for _, name := range []string{agents.Vitra, agents.Ghost, agents.CEO} {
		if counts[name] != 1 {
			t.Errorf("Expected one worker for %s, got %d", name, counts[name])
		}
	}
}

func TestPriorityOrder(t *testing.T) {
	cfg := fastConfig()
	cfg.WorkerDuration = 10 * time.Second
	sch, s, reg := newTestScheduler(t, cfg)
	defer s.Close()

	low, _ := s.CreateTask(agents.Ghost, "file_processing", `{}`, 1)
	high, _ := s.CreateTask(agents.Ghost, "file_processing", `{}`, 5)
	reg.Start(agents.Ghost)

	sch.Start()
	defer sch.Stop()

	waitFor(t, 5*time.Second, "dispatch", func() bool { return sch.ActiveTasks() == 1 })
	if st := taskStatus(t, s, high.ID); st != models.TaskStatusRunning {
		t.Errorf("Expected high priority task running, got %s", st)
	}
	if st := taskStatus(t, s, low.ID); st != models.TaskStatusPending {
		t.Errorf("Expected low priority task pending, got %s", st)
	}
}

func TestAgentStoppedMidTaskFails(t *testing.T) {
	cfg := fastConfig()
	cfg.WorkerDuration = 200 * time.Millisecond
	sch, s, reg := newTestScheduler(t, cfg)
	defer s.Close()

	reg.Start(agents.Vitra)
	task, _ := s.CreateTask(agents.Vitra, "file_processing", `{}`, 1)

	sch.Start()
	defer sch.Stop()

	waitFor(t, 5*time.Second, "dispatch", func() bool {
		return taskStatus(t, s, task.ID) == models.TaskStatusRunning
	})
	reg.Stop(agents.Vitra)

	waitFor(t, 5*time.Second, "failure", func() bool {
		return taskStatus(t, s, task.ID) == models.TaskStatusFailed
	})
	got, _ := s.GetTask(task.ID)
	if got.Error != "agent stopped while processing" {
		t.Errorf("Unexpected error text: %q", got.Error)
	}
}

func TestTaskTimeout(t *testing.T) {
	cfg := fastConfig()
	cfg.WorkerDuration = time.Hour
	cfg.TaskTimeout = 30 * time.Millisecond
	sch, s, reg := newTestScheduler(t, cfg)
	defer s.Close()

	reg.Start(agents.Ghost)
	task, _ := s.CreateTask(agents.Ghost, "file_processing", `{}`, 1)

	sch.Start()
	defer sch.Stop()

	waitFor(t, 5*time.Second, "timeout", func() bool {
		return taskStatus(t, s, task.ID) == models.TaskStatusFailed
	})
}

func TestCancelledWhileRunningStaysCancelled(t *testing.T) {
	cfg := fastConfig()
	cfg.WorkerDuration = 100 * time.Millisecond
	sch, s, reg := newTestScheduler(t, cfg)
	defer s.Close()

	reg.Start(agents.Ghost)
	task, _ := s.CreateTask(agents.Ghost, "file_processing", `{}`, 1)

	sch.Start()
	defer sch.Stop()

	waitFor(t, 5*time.Second, "dispatch", func() bool {
		return taskStatus(t, s, task.ID) == models.TaskStatusRunning
	})
	if ok, err := s.CancelTask(task.ID); err != nil || !ok {
		t.Fatalf("CancelTask failed: %v", err)
	}
	waitFor(t, 5*time.Second, "worker exit", func() bool { return sch.ActiveTasks() == 0 })

	if st := taskStatus(t, s, task.ID); st != models.TaskStatusCancelled {
		t.Errorf("Expected cancelled, got %s", st)
	}
}

func TestStopRequeuesRunningTasks(t *testing.T) {
	cfg := fastConfig()
	cfg.WorkerDuration = time.Hour
	sch, s, reg := newTestScheduler(t, cfg)
	defer s.Close()

	reg.Start(agents.Vitra)
	task, _ := s.CreateTask(agents.Vitra, "file_processing", `{}`, 1)

	sch.Start()
	waitFor(t, 5*time.Second, "dispatch", func() bool { return sch.ActiveTasks() == 1 })
	sch.Stop()

	if st := taskStatus(t, s, task.ID); st != models.TaskStatusPending {
		t.Errorf("Expected task requeued on shutdown, got %s", st)
	}
	a, _ := reg.Get(agents.Vitra)
	if a.Status != models.AgentRunning {
		t.Errorf("Expected agent released, got %s", a.Status)
	}
}

func TestHealthRefresh(t *testing.T) {
	sch, s, reg := newTestScheduler(t, fastConfig())
	defer s.Close()

	sch.Start()
	waitFor(t, 5*time.Second, "health refresh", func() bool {
		for _, qa := range reg.QueueAgents() {
			if qa.HealthScore >= 1.0 {
				return false
			}
		}
		return true
	})
	sch.Stop()

	for _, qa := range reg.QueueAgents() {
		if qa.HealthScore < 0.95 || qa.HealthScore >= 1.0 {
			t.Errorf("Health score %f for %s outside [0.95, 1.0)", qa.HealthScore, qa.Name)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := (&Config{}).withDefaults()
	def := DefaultConfig()
	if cfg.MaxConcurrent != def.MaxConcurrent || cfg.PollInterval != def.PollInterval {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
	if cfg.WorkerDuration != 0 {
		t.Errorf("Zero worker duration should be kept, got %s", cfg.WorkerDuration)
	}
}

func newTestStore(t *testing.T) *store.Store {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}
