package monitor

import (
	"context"
	"log"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/orlenko/claude-log-tail/internal/discovery"
	"github.com/orlenko/claude-log-tail/internal/formatter"
	"github.com/orlenko/claude-log-tail/internal/hub"
	"github.com/orlenko/claude-log-tail/internal/model"
	"github.com/orlenko/claude-log-tail/internal/output"
	"github.com/orlenko/claude-log-tail/internal/tracker"
)

// Default cadences. The poll interval drives growth checks; the rescan
// interval drives full directory walks for added/removed files.
const (
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultRescanInterval = 10 * time.Second
)

// Config carries the monitor's settings, constructed once at startup.
type Config struct {
	Root           string
	PollInterval   time.Duration
	RescanInterval time.Duration
}

// NewConfig returns a Config for the given root with the default cadences.
func NewConfig(root string) Config {
	return Config{
		Root:           root,
		PollInterval:   DefaultPollInterval,
		RescanInterval: DefaultRescanInterval,
	}
}

// Monitor is the polling orchestrator. One goroutine runs the loop and is
// the sole mutator of the tracker; everything downstream (renderer, hub)
// only consumes.
type Monitor struct {
	cfg      Config
	tracker  *tracker.Tracker
	renderer output.Renderer
	hub      *hub.Hub            // optional fan-out for the dashboard
	notifier *discovery.Notifier // optional early-rescan trigger

	fileCount atomic.Int64
}

// Option configures optional monitor collaborators.
type Option func(*Monitor)

// WithHub publishes every rendered record to the given hub as well.
func WithHub(h *hub.Hub) Option {
	return func(m *Monitor) { m.hub = h }
}

// WithNotifier lets file-creation events trigger a rescan ahead of the
// regular cadence.
func WithNotifier(n *discovery.Notifier) Option {
	return func(m *Monitor) { m.notifier = n }
}

// New creates a Monitor.
func New(cfg Config, r output.Renderer, opts ...Option) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RescanInterval <= 0 {
		cfg.RescanInterval = DefaultRescanInterval
	}

	m := &Monitor{
		cfg:      cfg,
		tracker:  tracker.New(),
		renderer: r,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FileCount returns the number of files currently watched. Safe to call
// from other goroutines (the dashboard aggregator reads it live).
func (m *Monitor) FileCount() int {
	return int(m.fileCount.Load())
}

// Bootstrap performs the initial directory scan and registers every
// matching file at its current end, so nothing historical is replayed.
// Returns the number of files found.
func (m *Monitor) Bootstrap() int {
	current := discovery.Scan(m.cfg.Root)
	for path := range current {
		m.tracker.Register(path)
		m.watchParent(path)
	}
	m.fileCount.Store(int64(m.tracker.Count()))
	return m.tracker.Count()
}

// Run drives the polling loop until the context is cancelled. Every tick
// drains all tracked files; every rescan interval (or sooner, on a
// notifier nudge) the directory is rescanned and the tracked set diffed
// against what is on disk. No per-cycle error ever stops the loop.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	lastRescan := time.Now()

	for {
		select {
		case <-ctx.Done():
			return

		case <-m.nudges():
			lastRescan = time.Now()
			m.rescan()

		case <-ticker.C:
			m.drainAll()
			if time.Since(lastRescan) >= m.cfg.RescanInterval {
				lastRescan = time.Now()
				m.rescan()
			}
		}
	}
}

// nudges returns the notifier channel, or a nil channel (never ready)
// when no notifier is wired.
func (m *Monitor) nudges() <-chan struct{} {
	if m.notifier == nil {
		return nil
	}
	return m.notifier.Nudges
}

// drainAll reads new content from every tracked file, in deterministic
// order, and emits each formatted record. Unreadable files simply yield
// nothing this cycle.
func (m *Monitor) drainAll() {
	for _, path := range m.tracker.Paths() {
		lines := m.tracker.Drain(path)
		if len(lines) == 0 {
			continue
		}

		project := discovery.ProjectName(path, m.cfg.Root)
		for _, line := range lines {
			rec, ok := formatter.Format(line, project)
			if !ok {
				continue
			}
			m.emit(rec)
		}
	}
}

// rescan walks the tree and reconciles the tracked set with what is on
// disk. Files present in both keep their offsets; new files register at
// end-of-file and are announced; vanished files are dropped.
func (m *Monitor) rescan() {
	current := discovery.Scan(m.cfg.Root)
	added, removed := discovery.Diff(m.tracker.Paths(), current)

	for _, path := range removed {
		m.tracker.Deregister(path)
	}

	for _, path := range added {
		m.tracker.Register(path)
		m.watchParent(path)
		if err := m.renderer.Discovered(discovery.ProjectName(path, m.cfg.Root)); err != nil {
			log.Printf("render error: %v", err)
		}
	}

	m.fileCount.Store(int64(m.tracker.Count()))
}

// emit hands one record to the renderer and, when wired, the hub.
func (m *Monitor) emit(rec model.DisplayRecord) {
	if err := m.renderer.Render(rec); err != nil {
		log.Printf("render error: %v", err)
	}
	if m.hub != nil {
		m.hub.Publish(rec)
	}
}

// watchParent subscribes the notifier to a file's directory so future
// siblings trigger an early rescan.
func (m *Monitor) watchParent(path string) {
	if m.notifier != nil {
		m.notifier.WatchDir(filepath.Dir(path))
	}
}
