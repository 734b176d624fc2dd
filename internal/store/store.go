// Package store provides SQLite-backed persistence for vhq.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/vhq-lag/vhq/internal/models"
	_ "modernc.org/sqlite"
)

// Store provides access to a vhq SQLite database. The console and the host
// daemon each open their own database file.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		agent_name TEXT NOT NULL,
		task_type TEXT NOT NULL,
		parameters TEXT,
		priority INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		completed_at DATETIME,
		result TEXT,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS pdr (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		task_id TEXT,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
	CREATE INDEX IF NOT EXISTS idx_tasks_agent ON tasks(agent_name);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Key/Value Operations ---

// GetValue returns the value stored under key. The boolean is false when
// the key has never been written.
func (s *Store) GetValue(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query kv: %w", err)
	}
	return value, true, nil
}

// PutValue replaces the value stored under key.
func (s *Store) PutValue(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert kv: %w", err)
	}
	return nil
}

// DeleteValue removes key. Missing keys are not an error.
func (s *Store) DeleteValue(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

// --- Task Operations ---

const taskColumns = `id, agent_name, task_type, parameters, priority, status, created_at, started_at, completed_at, result, error`

// CreateTask inserts a new pending task.
func (s *Store) CreateTask(agentName, taskType, parameters string, priority int) (*models.Task, error) {
	task := &models.Task{
		ID:         uuid.New().String(),
		AgentName:  agentName,
		TaskType:   taskType,
		Parameters: parameters,
		Priority:   priority,
		Status:     models.TaskStatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO tasks (id, agent_name, task_type, parameters, priority, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.AgentName, task.TaskType, task.Parameters, task.Priority, task.Status, task.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var task models.Task
	var params, result, errText sql.NullString
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(&task.ID, &task.AgentName, &task.TaskType, &params, &task.Priority, &task.Status,
		&task.CreatedAt, &startedAt, &completedAt, &result, &errText); err != nil {
		return nil, err
	}
	task.Parameters = params.String
	task.Result = result.String
	task.Error = errText.String
	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}

// GetTask retrieves a task by ID. It returns nil, nil when no task matches.
func (s *Store) GetTask(id string) (*models.Task, error) {
	task, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// ListTasks returns all tasks, optionally filtered by status, highest
// priority first and oldest first within a priority.
func (s *Store) ListTasks(status models.TaskStatus) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []interface{}

	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY priority DESC, created_at ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// ErrTaskNotPending indicates the task was not in the pending state.
var ErrTaskNotPending = errors.New("task not found or not pending")

// StartTask moves a pending task to running.
func (s *Store) StartTask(id string) error {
	res, err := s.db.Exec(
		`UPDATE tasks SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		models.TaskStatusRunning, time.Now().UTC(), id, models.TaskStatusPending,
	)
	if err != nil {
		return fmt.Errorf("start task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTaskNotPending
	}
	return nil
}

// RequeueTask puts a running task back to pending, for workers interrupted
// before they could finish.
func (s *Store) RequeueTask(id string) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET status = ?, started_at = NULL WHERE id = ? AND status = ?`,
		models.TaskStatusPending, id, models.TaskStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("requeue task: %w", err)
	}
	return nil
}

// FinishTask records the terminal status of a running task. Tasks that were
// cancelled while running keep their cancelled status.
func (s *Store) FinishTask(id string, status models.TaskStatus, result, errText string) error {
	_, err := s.db.Exec(
		`UPDATE tasks SET status = ?, completed_at = ?, result = ?, error = ? WHERE id = ? AND status = ?`,
		status, time.Now().UTC(), result, errText, id, models.TaskStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	return nil
}

// CancelTask marks a task cancelled. It reports false when the task does not exist.
func (s *Store) CancelTask(id string) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE tasks SET status = ?, completed_at = ? WHERE id = ?`,
		models.TaskStatusCancelled, time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("cancel task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearFinishedTasks deletes completed, failed and cancelled tasks and
// returns how many rows were removed.
func (s *Store) ClearFinishedTasks() (int64, error) {
	res, err := s.db.Exec(
		`DELETE FROM tasks WHERE status IN (?, ?, ?)`,
		models.TaskStatusCompleted, models.TaskStatusFailed, models.TaskStatusCancelled,
	)
	if err != nil {
		return 0, fmt.Errorf("clear tasks: %w", err)
	}
	return res.RowsAffected()
}

// CountTasks aggregates task counts by status.
func (s *Store) CountTasks() (models.QueueStats, error) {
	var stats models.QueueStats
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status models.TaskStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return stats, fmt.Errorf("scan count: %w", err)
		}
		switch status {
		case models.TaskStatusPending:
			stats.Pending = n
		case models.TaskStatusRunning:
			stats.Running = n
		case models.TaskStatusCompleted:
			stats.Completed = n
		case models.TaskStatusFailed:
			stats.Failed = n
		}
		stats.Total += n
	}
	return stats, rows.Err()
}

// --- PDR Operations ---

// WritePDR writes a Process Decision Record.
func (s *Store) WritePDR(action, inputsHash, outcome, taskID, details string) (*models.PDREntry, error) {
	pdr := &models.PDREntry{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		TaskID:     taskID,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO pdr (id, action, inputs_hash, outcome, task_id, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		pdr.ID, pdr.Action, pdr.InputsHash, pdr.Outcome, pdr.TaskID, pdr.Details, pdr.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert pdr: %w", err)
	}
	return pdr, nil
}

// ListPDR returns the most recent audit records, newest first.
func (s *Store) ListPDR(limit int) ([]models.PDREntry, error) {
	rows, err := s.db.Query(
		`SELECT id, action, inputs_hash, outcome, task_id, details, timestamp FROM pdr ORDER BY timestamp DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pdr: %w", err)
	}
	defer rows.Close()

	var entries []models.PDREntry
	for rows.Next() {
		var e models.PDREntry
		var taskID, details sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.InputsHash, &e.Outcome, &taskID, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan pdr: %w", err)
		}
		e.TaskID = taskID.String
		e.Details = details.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
