// Package agents holds the host's agent registry: the three LAG agents, their
// run state, health and descriptive info.
package agents

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vhq-lag/vhq/internal/models"
)

// Agent names.
const (
	Vitra = "vitra_lag"
	Ghost = "ghost_lag"
	CEO   = "ceo_lag"
)

var (
	// ErrUnknownAgent is returned for names outside the registry.
	ErrUnknownAgent = errors.New("unknown agent")
)

// VitraLanguages are the transcription languages vitra_lag supports.
var VitraLanguages = []string{"en", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh"}

// mediaExtensions are routed to vitra_lag; everything else goes to ghost_lag.
var mediaExtensions = map[string]bool{
	"mp3": true, "wav": true, "mp4": true, "avi": true, "mov": true,
}

// RouteFile picks the agent for a file by its extension.
func RouteFile(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if mediaExtensions[ext] {
		return Vitra
	}
	return Ghost
}

// Settings describes the agents' static configuration.
type Settings struct {
	WhisperModel       string
	OllamaURL          string
	DefaultModel       string
	TemplatesDir       string
	OutputDir          string
	MaxConcurrentTasks int
	TaskTimeout        time.Duration
}

// DefaultSettings returns the stock agent configuration.
func DefaultSettings() Settings {
	return Settings{
		WhisperModel:       "base",
		OllamaURL:          "http://localhost:11434",
		DefaultModel:       "llama2",
		TemplatesDir:       "templates",
		OutputDir:          "generated_content",
		MaxConcurrentTasks: 5,
		TaskTimeout:        300 * time.Second,
	}
}

// Agent is one registry entry.
type Agent struct {
	Name         string
	DisplayName  string
	Status       models.AgentState
	HealthScore  float64
	Capabilities []string
	CurrentTask  *string
	LastActivity time.Time
}

// Registry tracks agent state. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	agents   map[string]*Agent
	settings Settings
	now      func() time.Time
}

// NewRegistry creates the three agents. The orchestrator starts running;
// the workers start stopped.
func NewRegistry(settings Settings) *Registry {
	now := time.Now()
	r := &Registry{
		agents:   make(map[string]*Agent),
		settings: settings,
		now:      time.Now,
	}
	r.add(&Agent{Name: Vitra, DisplayName: "VITRA_LAG", Status: models.AgentStopped,
		Capabilities: []string{"transcription", "translation"}}, now)
	r.add(&Agent{Name: Ghost, DisplayName: "GHOST_LAG", Status: models.AgentStopped,
		Capabilities: []string{"content_generation", "optimization"}}, now)
	r.add(&Agent{Name: CEO, DisplayName: "CEO_LAG", Status: models.AgentRunning,
		Capabilities: []string{"orchestration", "task_management"}}, now)
	return r
}

func (r *Registry) add(a *Agent, now time.Time) {
	a.HealthScore = 1.0
	a.LastActivity = now
	r.agents[a.Name] = a
}

// Settings returns the static agent configuration.
func (r *Registry) Settings() Settings {
	return r.settings
}

// Names returns the agent names in display order.
func (r *Registry) Names() []string {
	return append([]string(nil), models.AgentNames...)
}

func (r *Registry) lookup(name string) (*Agent, error) {
	a, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	return a, nil
}

// Get returns a copy of one agent.
func (r *Registry) Get(name string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, err := r.lookup(name)
	if err != nil {
		return Agent{}, err
	}
	return copyAgent(a), nil
}

func copyAgent(a *Agent) Agent {
	c := *a
	c.Capabilities = append([]string(nil), a.Capabilities...)
	if a.CurrentTask != nil {
		t := *a.CurrentTask
		c.CurrentTask = &t
	}
	return c
}

func statusOf(a *Agent) models.AgentStatus {
	return models.AgentStatus{
		Name:         a.DisplayName,
		Status:       string(a.Status),
		LastActivity: a.LastActivity.UTC().Format(time.RFC3339),
	}
}

// Status returns the wire status of one agent. Resource usage is left for
// the caller to fill in.
func (r *Registry) Status(name string) (models.AgentStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, err := r.lookup(name)
	if err != nil {
		return models.AgentStatus{}, err
	}
	return statusOf(a), nil
}

// Start marks an agent running. Starting a running or busy agent only
// touches its activity time.
func (r *Registry) Start(name string) (models.AgentStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.lookup(name)
	if err != nil {
		return models.AgentStatus{}, err
	}
	if a.Status == models.AgentStopped {
		a.Status = models.AgentRunning
		if a.CurrentTask != nil {
			// Restarted before its worker finished.
			a.Status = models.AgentBusy
		}
	}
	a.LastActivity = r.now()
	return statusOf(a), nil
}

// Stop marks an agent stopped. A task it is working on fails when its
// worker finishes.
func (r *Registry) Stop(name string) (models.AgentStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.lookup(name)
	if err != nil {
		return models.AgentStatus{}, err
	}
	a.Status = models.AgentStopped
	a.LastActivity = r.now()
	return statusOf(a), nil
}

// Acquire makes a running, idle agent busy with taskID. It reports false
// when the agent cannot take work.
func (r *Registry) Acquire(name, taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[name]
	if !ok || a.Status != models.AgentRunning {
		return false
	}
	a.Status = models.AgentBusy
	a.CurrentTask = &taskID
	a.LastActivity = r.now()
	return true
}

// Release clears the agent's current task. It reports whether the agent
// was still busy, false meaning it was stopped while working.
func (r *Registry) Release(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[name]
	if !ok {
		return false
	}
	a.CurrentTask = nil
	a.LastActivity = r.now()
	if a.Status == models.AgentBusy {
		a.Status = models.AgentRunning
		return true
	}
	return false
}

// RefreshHealth sets every health score to a value in [0.95, 1.0).
func (r *Registry) RefreshHealth(rng *rand.Rand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range models.AgentNames {
		if a, ok := r.agents[name]; ok {
			a.HealthScore = 0.95 + rng.Float64()*0.05
		}
	}
}

// QueueAgents returns the orchestrator's view of every agent.
func (r *Registry) QueueAgents() []models.QueueAgent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.QueueAgent, 0, len(r.agents))
	for _, name := range models.AgentNames {
		a, ok := r.agents[name]
		if !ok {
			continue
		}
		c := copyAgent(a)
		out = append(out, models.QueueAgent{
			Name:         c.DisplayName,
			Status:       string(c.Status),
			HealthScore:  c.HealthScore,
			LastActivity: c.LastActivity.UTC().Format(time.RFC3339),
			Capabilities: c.Capabilities,
			CurrentTask:  c.CurrentTask,
		})
	}
	return out
}

// Info returns the descriptive info map of one agent.
func (r *Registry) Info(name string) (models.AgentInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, err := r.lookup(name)
	if err != nil {
		return nil, err
	}

	info := models.AgentInfo{
		"name":          a.DisplayName,
		"status":        string(a.Status),
		"capabilities":  append([]string(nil), a.Capabilities...),
		"last_activity": a.LastActivity.UTC().Format(time.RFC3339),
	}
	switch name {
	case Vitra:
		info["current_model"] = r.settings.WhisperModel
		info["supported_languages"] = append([]string(nil), VitraLanguages...)
	case Ghost:
		info["ollama_url"] = r.settings.OllamaURL
		info["default_model"] = r.settings.DefaultModel
		info["templates_dir"] = r.settings.TemplatesDir
		info["output_dir"] = r.settings.OutputDir
	case CEO:
		info["max_concurrent_tasks"] = r.settings.MaxConcurrentTasks
		info["task_timeout"] = int(r.settings.TaskTimeout / time.Second)
	}
	return info, nil
}

// Languages returns the languages vitra_lag supports.
func (r *Registry) Languages() []string {
	return append([]string(nil), VitraLanguages...)
}
