// Package poller aggregates agent status, queue status and system metrics
// from the host into one snapshot that is replaced as a whole on every
// successful tick.
package poller

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vhq-lag/vhq/internal/models"
)

// DefaultInterval is the period between scheduled ticks.
const DefaultInterval = 5 * time.Second

// Host is the command surface the poller reads from and drives.
// *client.Client satisfies it.
type Host interface {
	GetAgentStatus(ctx context.Context, name string) (models.AgentStatus, error)
	GetAgentInfo(ctx context.Context, name string) (models.AgentInfo, error)
	GetQueueStatus(ctx context.Context) (models.QueueStatus, error)
	GetSystemMetrics(ctx context.Context) (models.SystemMetrics, error)
	GetGhostModels(ctx context.Context) ([]string, error)
	GetVitraLanguages(ctx context.Context) ([]string, error)
	StartAgent(ctx context.Context, name string) (models.AgentStatus, error)
	StopAgent(ctx context.Context, name string) (models.AgentStatus, error)
	ClearCompletedTasks(ctx context.Context) error
}

// Config holds poller settings.
type Config struct {
	Interval time.Duration
	// RequestTimeout bounds a whole tick. Zero leaves it to the host client.
	RequestTimeout time.Duration
	Agents         []string
}

// DefaultConfig returns the default poller configuration.
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
		Agents:   models.AgentNames,
	}
}

// Poller periodically refreshes a Snapshot from a Host.
type Poller struct {
	host Host
	cfg  Config

	seq atomic.Uint64

	mu            sync.Mutex
	snap          Snapshot
	lastCommitted uint64
	updates       chan Snapshot

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a poller. Zero config fields take their defaults.
func New(host Host, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if len(cfg.Agents) == 0 {
		cfg.Agents = models.AgentNames
	}
	return &Poller{
		host:    host,
		cfg:     cfg,
		updates: make(chan Snapshot, 1),
	}
}

// Start runs one tick immediately and then one per interval until Stop is
// called or ctx is done. Calling Start on a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop cancels the schedule and waits for in-flight ticks to settle.
func (p *Poller) Stop() {
	p.runMu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}

// Running reports whether the schedule is active.
func (p *Poller) Running() bool {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.cancel != nil
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	p.spawnTick(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.spawnTick(ctx)
		}
	}
}

// spawnTick runs a tick on its own goroutine; a slow host may leave several
// ticks in flight at once.
func (p *Poller) spawnTick(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.tick(ctx)
	}()
}

// Refresh runs a tick now and returns the snapshot current after it.
func (p *Poller) Refresh(ctx context.Context) (Snapshot, error) {
	return p.tick(ctx)
}

// Snapshot returns the last committed snapshot.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Updates delivers committed snapshots. Only the most recent undelivered
// snapshot is kept; the poller never blocks on a slow reader.
func (p *Poller) Updates() <-chan Snapshot {
	return p.updates
}

// StartAgent starts name on the host and refreshes.
func (p *Poller) StartAgent(ctx context.Context, name string) error {
	if _, err := p.host.StartAgent(ctx, name); err != nil {
		log.Printf("poller: start %s: %v", name, err)
		return err
	}
	p.refreshAfterCommand(ctx)
	return nil
}

// StopAgent stops name on the host and refreshes.
func (p *Poller) StopAgent(ctx context.Context, name string) error {
	if _, err := p.host.StopAgent(ctx, name); err != nil {
		log.Printf("poller: stop %s: %v", name, err)
		return err
	}
	p.refreshAfterCommand(ctx)
	return nil
}

// ClearCompletedTasks drops finished tasks on the host and refreshes.
func (p *Poller) ClearCompletedTasks(ctx context.Context) error {
	if err := p.host.ClearCompletedTasks(ctx); err != nil {
		log.Printf("poller: clear completed tasks: %v", err)
		return err
	}
	p.refreshAfterCommand(ctx)
	return nil
}

// refreshAfterCommand ticks once; the command already succeeded, so a
// failed refresh only leaves the previous snapshot in place.
func (p *Poller) refreshAfterCommand(ctx context.Context) {
	p.tick(ctx)
}

type listResult struct {
	items []string
	err   error
}

// tick fetches everything and commits when every mandatory request
// succeeded. Requests within a tick run concurrently and the commit waits
// for all of them, best-effort ones included.
func (p *Poller) tick(ctx context.Context) (Snapshot, error) {
	seq := p.seq.Add(1)

	if p.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
		defer cancel()
	}

	agents := p.cfg.Agents
	statuses := make([]models.AgentStatus, len(agents))
	var queue models.QueueStatus
	var metrics models.SystemMetrics

	var g errgroup.Group
	for i, name := range agents {
		i, name := i, name
		g.Go(func() error {
			st, err := p.host.GetAgentStatus(ctx, name)
			if err != nil {
				return err
			}
			statuses[i] = st
			return nil
		})
	}
	g.Go(func() error {
		qs, err := p.host.GetQueueStatus(ctx)
		if err != nil {
			return err
		}
		queue = qs
		return nil
	})
	g.Go(func() error {
		m, err := p.host.GetSystemMetrics(ctx)
		if err != nil {
			return err
		}
		metrics = m
		return nil
	})

	infos := make([]models.AgentInfo, len(agents))
	infoErrs := make([]error, len(agents))
	var ghost, langs listResult

	var best sync.WaitGroup
	for i, name := range agents {
		i, name := i, name
		best.Add(1)
		go func() {
			defer best.Done()
			infos[i], infoErrs[i] = p.host.GetAgentInfo(ctx, name)
		}()
	}
	best.Add(2)
	go func() {
		defer best.Done()
		ghost.items, ghost.err = p.host.GetGhostModels(ctx)
	}()
	go func() {
		defer best.Done()
		langs.items, langs.err = p.host.GetVitraLanguages(ctx)
	}()

	err := g.Wait()
	best.Wait()

	if err != nil {
		log.Printf("poller: tick %d failed, keeping previous snapshot: %v", seq, err)
		return p.Snapshot(), err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if seq <= p.lastCommitted {
		log.Printf("poller: discarding tick %d, tick %d already committed", seq, p.lastCommitted)
		return p.snap, nil
	}

	prev := p.snap
	next := Snapshot{
		Seq:            seq,
		UpdatedAt:      time.Now(),
		Names:          agents,
		Agents:         statuses,
		Queue:          queue,
		Metrics:        metrics,
		Info:           make(map[string]models.AgentInfo, len(agents)),
		GhostModels:    prev.GhostModels,
		VitraLanguages: prev.VitraLanguages,
	}
	for i, name := range agents {
		if infoErrs[i] != nil {
			log.Printf("poller: agent info %s: %v", name, infoErrs[i])
			if old, ok := prev.Info[name]; ok {
				next.Info[name] = old
			}
			continue
		}
		next.Info[name] = infos[i]
	}
	if ghost.err != nil {
		log.Printf("poller: ghost models: %v", ghost.err)
	} else {
		next.GhostModels = ghost.items
	}
	if langs.err != nil {
		log.Printf("poller: vitra languages: %v", langs.err)
	} else {
		next.VitraLanguages = langs.items
	}

	p.snap = next
	p.lastCommitted = seq
	p.publish(next)
	return next, nil
}

// publish hands s to Updates, replacing an unread older snapshot. The
// caller holds p.mu.
func (p *Poller) publish(s Snapshot) {
	select {
	case p.updates <- s:
		return
	default:
	}
	select {
	case <-p.updates:
	default:
	}
	select {
	case p.updates <- s:
	default:
	}
}

// Snapshot is one committed view of the host.
type Snapshot struct {
	Seq            uint64
	UpdatedAt      time.Time
	// Names are the agents polled, in order; Agents[i] answers Names[i].
	Names          []string
	Agents         []models.AgentStatus
	// Info is keyed by polled name.
	Info           map[string]models.AgentInfo
	Queue          models.QueueStatus
	Metrics        models.SystemMetrics
	GhostModels    []string
	VitraLanguages []string
}

// IsZero reports whether nothing has been committed yet.
func (s Snapshot) IsZero() bool {
	return s.Seq == 0
}

// Card is one agent as rendered: its status, plus the orchestrator's view
// of it when one matched. Name is the polled name used for commands.
type Card struct {
	Name   string
	Status models.AgentStatus
	Queue  *models.QueueAgent
	Info   models.AgentInfo
}

// Cards pairs every agent status with its queue entry, in agent order.
func (s Snapshot) Cards() []Card {
	cards := make([]Card, 0, len(s.Agents))
	for i, st := range s.Agents {
		name := st.Name
		if i < len(s.Names) {
			name = s.Names[i]
		}
		cards = append(cards, Card{
			Name:   name,
			Status: st,
			Queue:  MatchQueueAgent(st.Name, s.Queue.Agents),
			Info:   s.Info[name],
		})
	}
	return cards
}

// MatchQueueAgent returns the first queue agent whose name contains name,
// ignoring case, or nil.
func MatchQueueAgent(name string, agents []models.QueueAgent) *models.QueueAgent {
	needle := strings.ToLower(name)
	if needle == "" {
		return nil
	}
	for i := range agents {
		if strings.Contains(strings.ToLower(agents[i].Name), needle) {
			qa := agents[i]
			return &qa
		}
	}
	return nil
}
