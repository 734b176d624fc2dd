// Package todo keeps the personal todo list: a small, client-local list of
// records that is rewritten in full to durable storage after every change.
package todo

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vhq-lag/vhq/internal/models"
)

// DefaultStorageKey is the key the list is stored under unless configured.
const DefaultStorageKey = "vhq_todos"

// ErrEmptyTitle is returned by Add when the title is blank.
var ErrEmptyTitle = errors.New("title is required")

// Backend is durable key/value storage. *store.Store satisfies it.
type Backend interface {
	GetValue(key string) (string, bool, error)
	PutValue(key, value string) error
}

// Draft is the user input for a new record.
type Draft struct {
	Title       string
	Description string
	DueDate     string
	Priority    models.Priority
}

// Option configures a List.
type Option func(*List)

// WithClock overrides the time source used for ids and due-date checks.
func WithClock(now func() time.Time) Option {
	return func(l *List) { l.now = now }
}

// List is the in-memory todo list, kept identical to its durable copy.
// Records are held newest first.
type List struct {
	mu      sync.Mutex
	backend Backend
	key     string
	now     func() time.Time
	items   []models.TodoRecord
	lastID  int64
}

// Open loads the list stored under key. Missing or unreadable data yields
// an empty list; Open only fails when no backend is given.
func Open(backend Backend, key string, opts ...Option) (*List, error) {
	if backend == nil {
		return nil, errors.New("todo: nil backend")
	}
	if key == "" {
		key = DefaultStorageKey
	}
	l := &List{backend: backend, key: key, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	l.items = l.load()
	for _, it := range l.items {
		if it.ID > l.lastID {
			l.lastID = it.ID
		}
	}
	return l, nil
}

func (l *List) load() []models.TodoRecord {
	raw, ok, err := l.backend.GetValue(l.key)
	if err != nil {
		log.Printf("todo: read %s: %v (starting empty)", l.key, err)
		return nil
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var items []models.TodoRecord
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		log.Printf("todo: parse %s: %v (starting empty)", l.key, err)
		return nil
	}
	return items
}

// persist writes the whole list. The caller holds l.mu.
func (l *List) persist() error {
	items := l.items
	if items == nil {
		items = []models.TodoRecord{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode todos: %w", err)
	}
	if err := l.backend.PutValue(l.key, string(data)); err != nil {
		return fmt.Errorf("save todos: %w", err)
	}
	return nil
}

// commit swaps in next and writes it through; on a failed write the
// previous list is restored so memory never drifts from storage.
func (l *List) commit(next []models.TodoRecord) error {
	prev := l.items
	l.items = next
	if err := l.persist(); err != nil {
		l.items = prev
		return err
	}
	return nil
}

func (l *List) nextID() int64 {
	id := l.now().UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	l.lastID = id
	return id
}

// Add validates d and prepends a new pending record. The first @Ghost or
// @CEO mention in the title, else the description, becomes the record's
// tagged agent.
func (l *List) Add(d Draft) (models.TodoRecord, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return models.TodoRecord{}, ErrEmptyTitle
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	due := ""
	if strings.TrimSpace(d.DueDate) != "" {
		var err error
		if due, err = NormalizeDueDate(d.DueDate, l.now()); err != nil {
			return models.TodoRecord{}, err
		}
	}

	priority := d.Priority
	if priority.Rank() == 0 {
		priority = models.PriorityLow
	}
	description := strings.TrimSpace(d.Description)
	agent := FirstMention(title)
	if agent == "" {
		agent = FirstMention(description)
	}

	prevLast := l.lastID
	rec := models.TodoRecord{
		ID:          l.nextID(),
		Title:       title,
		Description: description,
		Agent:       agent,
		DueDate:     due,
		Priority:    priority,
	}

	next := make([]models.TodoRecord, 0, len(l.items)+1)
	next = append(next, rec)
	next = append(next, l.items...)
	if err := l.commit(next); err != nil {
		l.lastID = prevLast
		return models.TodoRecord{}, err
	}
	return rec, nil
}

// Toggle flips the completed flag of id. Unknown ids are ignored.
func (l *List) Toggle(id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return nil
	}
	next := make([]models.TodoRecord, len(l.items))
	copy(next, l.items)
	next[idx].Completed = !next[idx].Completed
	return l.commit(next)
}

// Delete removes id. Unknown ids are ignored.
func (l *List) Delete(id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexOf(id)
	if idx < 0 {
		return nil
	}
	next := make([]models.TodoRecord, 0, len(l.items)-1)
	next = append(next, l.items[:idx]...)
	next = append(next, l.items[idx+1:]...)
	return l.commit(next)
}

func (l *List) indexOf(id int64) int {
	for i, it := range l.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// All returns a copy of every record in storage order.
func (l *List) All() []models.TodoRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.TodoRecord, len(l.items))
	copy(out, l.items)
	return out
}

// Pending returns open records, highest priority first and newest first
// within a priority.
func (l *List) Pending() []models.TodoRecord {
	var out []models.TodoRecord
	for _, it := range l.All() {
		if !it.Completed {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Completed returns finished records in storage order.
func (l *List) Completed() []models.TodoRecord {
	var out []models.TodoRecord
	for _, it := range l.All() {
		if it.Completed {
			out = append(out, it)
		}
	}
	return out
}

// Key returns the storage key the list is persisted under.
func (l *List) Key() string {
	return l.key
}
