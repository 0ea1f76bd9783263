// Package config loads comfyd settings from YAML, JSON or TOML files, .env
// files and COMFYD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"comfyd/internal/backend"
)

// Config holds runtime parameters for the service.
type Config struct {
	Addr            string `json:"addr" yaml:"addr" toml:"addr"`
	BackendURL      string `json:"backend_url" yaml:"backend_url" toml:"backend_url"`
	WorkflowsDir    string `json:"workflows_dir" yaml:"workflows_dir" toml:"workflows_dir"`
	DefaultWorkflow string `json:"default_workflow" yaml:"default_workflow" toml:"default_workflow"`

	PollInterval       Duration `json:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`
	PollTimeout        Duration `json:"poll_timeout" yaml:"poll_timeout" toml:"poll_timeout"`
	StreamCloseTimeout Duration `json:"stream_close_timeout" yaml:"stream_close_timeout" toml:"stream_close_timeout"`
	RequestTimeout     Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`
	MaxBodyBytes       int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	CORS      CORSConfig        `json:"cors" yaml:"cors" toml:"cors"`
	Endpoints backend.Endpoints `json:"endpoints" yaml:"endpoints" toml:"endpoints"`
	// Bindings overrides individual parameter bindings by name (prompt,
	// negative, seed, steps, cfg, sampler, scheduler, width, height, shift,
	// styles). A binding with an empty node disables that parameter.
	Bindings map[string]backend.Binding `json:"bindings" yaml:"bindings" toml:"bindings"`
}

// CORSConfig enables cross-origin access to the HTTP API.
type CORSConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:               ":8080",
		BackendURL:         backend.DefaultBaseURL,
		DefaultWorkflow:    "default",
		PollInterval:       Duration(500 * time.Millisecond),
		PollTimeout:        Duration(10 * time.Minute),
		StreamCloseTimeout: Duration(2 * time.Second),
		RequestTimeout:     Duration(30 * time.Second),
		MaxBodyBytes:       1 << 20,
		LogLevel:           "info",
		LogFormat:          "json",
		Endpoints:          backend.DefaultEndpoints(),
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("config: addr must not be empty")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: backend_url %q must be an http(s) URL", c.BackendURL)
	}
	if strings.TrimSpace(c.DefaultWorkflow) == "" {
		return errors.New("config: default_workflow must not be empty")
	}
	for name, d := range map[string]Duration{
		"poll_interval":        c.PollInterval,
		"poll_timeout":         c.PollTimeout,
		"stream_close_timeout": c.StreamCloseTimeout,
		"request_timeout":      c.RequestTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive", name)
		}
	}
	if c.PollTimeout < c.PollInterval {
		return errors.New("config: poll_timeout must not be shorter than poll_interval")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("config: log_format %q must be json or console", c.LogFormat)
	}
	if _, err := c.ResolvedBindings(); err != nil {
		return err
	}
	return nil
}

// ResolvedBindings applies the Bindings overrides to backend.DefaultBindings.
func (c Config) ResolvedBindings() (backend.Bindings, error) {
	b := backend.DefaultBindings()
	fields := map[string]*backend.Binding{
		"prompt":    &b.Prompt,
		"negative":  &b.Negative,
		"seed":      &b.Seed,
		"steps":     &b.Steps,
		"cfg":       &b.CFG,
		"sampler":   &b.Sampler,
		"scheduler": &b.Scheduler,
		"width":     &b.Width,
		"height":    &b.Height,
		"shift":     &b.Shift,
		"styles":    &b.Styles,
	}
	names := make([]string, 0, len(c.Bindings))
	for name := range c.Bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dst, ok := fields[strings.ToLower(name)]
		if !ok {
			return backend.Bindings{}, fmt.Errorf("config: unknown binding %q", name)
		}
		v := c.Bindings[name]
		if v.Node != "" && v.Input == "" {
			return backend.Bindings{}, fmt.Errorf("config: binding %q needs an input", name)
		}
		*dst = v
	}
	return b, nil
}

// Duration is a time.Duration written as a Go duration string ("500ms").
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	*d = Duration(v)
	return nil
}
