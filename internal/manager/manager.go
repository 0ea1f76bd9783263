package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"comfyd/internal/backend"
)

// Manager is the session registry: it maps session ids to at most one
// active Job and drives each job to a terminal outcome.
type Manager struct {
	mu       sync.RWMutex
	jobs     map[string]*Job
	draining bool

	be              Backend
	backendURL      string
	workflows       TemplateSource
	defaultWorkflow string
	bindings        backend.Bindings

	pollInterval       time.Duration
	pollTimeout        time.Duration
	streamCloseTimeout time.Duration
	requestTimeout     time.Duration
	tickBuffer         int

	log zerolog.Logger
	pub EventPublisher

	// ctx bounds backend calls; it is cancelled when Shutdown gives up.
	ctx     context.Context
	abort   context.CancelFunc
	running sync.WaitGroup

	startTime time.Time
	started   atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	cancelled atomic.Uint64
}

func newManager(cfg ManagerConfig) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		jobs:               make(map[string]*Job),
		be:                 cfg.Backend,
		backendURL:         cfg.BackendURL,
		workflows:          cfg.Workflows,
		defaultWorkflow:    cfg.DefaultWorkflow,
		bindings:           cfg.Bindings,
		pollInterval:       cfg.PollInterval,
		pollTimeout:        cfg.PollTimeout,
		streamCloseTimeout: cfg.StreamCloseTimeout,
		requestTimeout:     cfg.RequestTimeout,
		tickBuffer:         cfg.TickBuffer,
		log:                cfg.Logger,
		pub:                cfg.Publisher,
		ctx:                ctx,
		abort:              cancel,
		startTime:          time.Now(),
	}
}

// SetEventPublisher replaces the publisher. Call it before the first Start.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.pub = p
	m.mu.Unlock()
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.pub
	m.mu.RUnlock()
	p.Publish(e)
}

// Ready reports whether new jobs are accepted: the manager is not shutting
// down and the default workflow resolves.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	draining := m.draining
	m.mu.RUnlock()
	if draining {
		return false
	}
	_, ok := m.workflows.Template(m.defaultWorkflow)
	return ok
}

// DefaultWorkflow returns the workflow id used when parameters name none.
func (m *Manager) DefaultWorkflow() string { return m.defaultWorkflow }
