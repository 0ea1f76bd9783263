package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads a configuration file based on its extension on top of Default.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Environment variables read by ApplyEnv.
const (
	EnvAddr            = "COMFYD_ADDR"
	EnvBackendURL      = "COMFYD_BACKEND_URL"
	EnvWorkflowsDir    = "COMFYD_WORKFLOWS_DIR"
	EnvDefaultWorkflow = "COMFYD_DEFAULT_WORKFLOW"
	EnvLogLevel        = "COMFYD_LOG_LEVEL"
	EnvLogFormat       = "COMFYD_LOG_FORMAT"
)

// ApplyEnv overrides fields from COMFYD_* environment variables. Empty values
// are ignored.
func (c *Config) ApplyEnv() {
	set := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvAddr, &c.Addr)
	set(EnvBackendURL, &c.BackendURL)
	set(EnvWorkflowsDir, &c.WorkflowsDir)
	set(EnvDefaultWorkflow, &c.DefaultWorkflow)
	set(EnvLogLevel, &c.LogLevel)
	set(EnvLogFormat, &c.LogFormat)
}
