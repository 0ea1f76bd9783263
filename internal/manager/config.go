package manager

import (
	"time"

	"github.com/rs/zerolog"

	"comfyd/internal/backend"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultPollInterval       = 500 * time.Millisecond
	defaultPollTimeout        = 10 * time.Minute
	defaultStreamCloseTimeout = 2 * time.Second
	defaultRequestTimeout     = 30 * time.Second
	defaultTickBuffer         = 64
)

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Backend Backend
	// BackendURL is reported by Status.
	BackendURL      string
	Workflows       TemplateSource
	DefaultWorkflow string
	// Bindings maps parameters onto template inputs. The zero value selects
	// backend.DefaultBindings.
	Bindings backend.Bindings

	PollInterval time.Duration
	// PollTimeout bounds how long a submitted job may stay non-terminal.
	PollTimeout        time.Duration
	StreamCloseTimeout time.Duration
	// RequestTimeout bounds stream dialing and interrupt calls.
	RequestTimeout time.Duration
	// TickBuffer is the per-job queue length between listener and sink.
	TickBuffer int

	Logger    zerolog.Logger
	Publisher EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := newManager(cfg)
	if cfg.Bindings == (backend.Bindings{}) {
		m.bindings = backend.DefaultBindings()
	}
	if cfg.PollInterval <= 0 {
		m.pollInterval = defaultPollInterval
	}
	if cfg.PollTimeout <= 0 {
		m.pollTimeout = defaultPollTimeout
	}
	if cfg.StreamCloseTimeout <= 0 {
		m.streamCloseTimeout = defaultStreamCloseTimeout
	}
	if cfg.RequestTimeout <= 0 {
		m.requestTimeout = defaultRequestTimeout
	}
	if cfg.TickBuffer <= 0 {
		m.tickBuffer = defaultTickBuffer
	}
	if cfg.Publisher == nil {
		m.pub = noopPublisher{}
	}
	if cfg.Workflows == nil {
		m.workflows = emptyTemplates{}
	}
	return m
}

type emptyTemplates struct{}

func (emptyTemplates) Template(string) (*backend.Template, bool) { return nil, false }
