// Package scheduler assigns queued host tasks to idle agents and runs the
// simulated agent workers.
package scheduler

import "time"

// Config defines the scheduler configuration.
type Config struct {
	// MaxConcurrent is the maximum number of tasks running at once.
	MaxConcurrent int `yaml:"max_concurrent_tasks"`
	// PollInterval is how often pending tasks are considered for dispatch.
	PollInterval time.Duration `yaml:"poll_interval"`
	// WorkerDuration is how long an agent works on one task.
	WorkerDuration time.Duration `yaml:"worker_duration"`
	// TaskTimeout fails tasks whose work would run longer.
	TaskTimeout time.Duration `yaml:"task_timeout"`
	// HealthInterval is how often agent health scores are refreshed.
	HealthInterval time.Duration `yaml:"health_interval"`
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrent:  5,
		PollInterval:   time.Second,
		WorkerDuration: 5 * time.Second,
		TaskTimeout:    300 * time.Second,
		HealthInterval: 5 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	def := DefaultConfig()
	out := *c
	if out.MaxConcurrent < 1 {
		out.MaxConcurrent = def.MaxConcurrent
	}
	if out.PollInterval <= 0 {
		out.PollInterval = def.PollInterval
	}
	if out.WorkerDuration < 0 {
		out.WorkerDuration = 0
	}
	if out.TaskTimeout <= 0 {
		out.TaskTimeout = def.TaskTimeout
	}
	if out.HealthInterval <= 0 {
		out.HealthInterval = def.HealthInterval
	}
	return &out
}
