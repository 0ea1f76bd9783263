package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"comfyd/internal/backend"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", `addr: ":9999"
backend_url: http://gpu:8188
workflows_dir: /etc/comfyd/workflows
default_workflow: z-image
poll_interval: 250ms
poll_timeout: 5m
cors:
  enabled: true
  origins: ["https://chat.example"]
endpoints:
  submit: /api/prompt
bindings:
  prompt: {node: "6", input: text}
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Addr)
	require.Equal(t, "http://gpu:8188", cfg.BackendURL)
	require.Equal(t, "/etc/comfyd/workflows", cfg.WorkflowsDir)
	require.Equal(t, "z-image", cfg.DefaultWorkflow)
	require.Equal(t, 250*time.Millisecond, cfg.PollInterval.D())
	require.Equal(t, 5*time.Minute, cfg.PollTimeout.D())
	// Unset fields keep their defaults.
	require.Equal(t, 30*time.Second, cfg.RequestTimeout.D())
	require.True(t, cfg.CORS.Enabled)
	require.Equal(t, []string{"https://chat.example"}, cfg.CORS.Origins)
	require.Equal(t, "/api/prompt", cfg.Endpoints.Submit)
	require.Equal(t, "/history", cfg.Endpoints.Status)
	require.NoError(t, cfg.Validate())

	b, err := cfg.ResolvedBindings()
	require.NoError(t, err)
	require.Equal(t, backend.Binding{Node: "6", Input: "text"}, b.Prompt)
	require.Equal(t, backend.DefaultBindings().Seed, b.Seed)
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","backend_url":"https://gpu","poll_interval":"1s","max_body_bytes":2048,"log_format":"console"}`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.Addr)
	require.Equal(t, "https://gpu", cfg.BackendURL)
	require.Equal(t, time.Second, cfg.PollInterval.D())
	require.Equal(t, int64(2048), cfg.MaxBodyBytes)
	require.Equal(t, "console", cfg.LogFormat)
	require.NoError(t, cfg.Validate())
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nbackend_url=\"http://10.0.0.5:8188\"\nstream_close_timeout=\"3s\"\n\n[bindings.styles]\nnode=\"\"\ninput=\"\"\n")
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, ":8081", cfg.Addr)
	require.Equal(t, 3*time.Second, cfg.StreamCloseTimeout.D())
	b, err := cfg.ResolvedBindings()
	require.NoError(t, err)
	require.Equal(t, backend.Binding{}, b.Styles)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	d := t.TempDir()
	_, err = Load(writeTempFile(t, d, "cfg.txt", "not supported"))
	require.Error(t, err)
	_, err = Load("/definitely/not/a/real/file-12345.yaml")
	require.Error(t, err)
	_, err = Load(writeTempFile(t, d, "bad.yaml", "addr: :8080\n: broken\n"))
	require.Error(t, err)
	_, err = Load(writeTempFile(t, d, "bad.json", `{ "addr": ":8080", "backend_url": }`))
	require.Error(t, err)
	_, err = Load(writeTempFile(t, d, "bad.toml", "addr=:8080\nbackend_url\n"))
	require.Error(t, err)
	_, err = Load(writeTempFile(t, d, "dur.yaml", "poll_interval: soon\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())
	cases := map[string]func(*Config){
		"empty addr":       func(c *Config) { c.Addr = "" },
		"bad backend":      func(c *Config) { c.BackendURL = "gpu:8188" },
		"no workflow":      func(c *Config) { c.DefaultWorkflow = " " },
		"zero interval":    func(c *Config) { c.PollInterval = 0 },
		"timeout < poll":   func(c *Config) { c.PollTimeout = Duration(time.Millisecond) },
		"log format":       func(c *Config) { c.LogFormat = "xml" },
		"unknown binding":  func(c *Config) { c.Bindings = map[string]backend.Binding{"lora": {Node: "1", Input: "x"}} },
		"binding no input": func(c *Config) { c.Bindings = map[string]backend.Binding{"seed": {Node: "1"}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAddr, ":1234")
	t.Setenv(EnvBackendURL, "http://env-gpu:8188")
	t.Setenv(EnvLogLevel, "  debug ")
	t.Setenv(EnvWorkflowsDir, "")
	c := Default()
	c.WorkflowsDir = "/from/file"
	c.ApplyEnv()
	require.Equal(t, ":1234", c.Addr)
	require.Equal(t, "http://env-gpu:8188", c.BackendURL)
	require.Equal(t, "debug", c.LogLevel)
	require.Equal(t, "/from/file", c.WorkflowsDir)
}

func TestLoadDotEnv(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, ".env", "COMFYD_DEFAULT_WORKFLOW=portrait\nCOMFYD_ADDR=:5555\n")
	t.Setenv(EnvAddr, ":1111")
	// Register cleanup for the variable the file introduces.
	t.Setenv(EnvDefaultWorkflow, "")
	require.NoError(t, os.Unsetenv(EnvDefaultWorkflow))

	require.NoError(t, LoadDotEnv(filepath.Join(d, "missing.env"), p))
	require.Equal(t, "portrait", os.Getenv(EnvDefaultWorkflow))
	require.Equal(t, ":1111", os.Getenv(EnvAddr))
}
