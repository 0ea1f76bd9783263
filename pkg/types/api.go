package types

import "encoding/json"

// GenerateRequest is the body of POST /sessions/{sessionID}/generate.
// Zero values mean "unspecified" and are replaced by defaults.
type GenerateRequest struct {
	// Required prompt text.
	// example: a lighthouse at dusk, oil painting
	Prompt string `json:"prompt" example:"a lighthouse at dusk, oil painting"`
	// Negative prompt; omitted uses the default, an empty string disables it.
	NegativePrompt *string `json:"negative_prompt,omitempty"`
	// Seed: a non-negative integer, "random", or omitted for random.
	// example: 42
	Seed json.RawMessage `json:"seed,omitempty" swaggertype:"string" example:"42"`
	// Sampling steps.
	// example: 9
	Steps int `json:"steps,omitempty" example:"9"`
	// Image size as WIDTHxHEIGHT. Width/Height take precedence when set.
	// example: 1024x1024
	Size   string `json:"size,omitempty" example:"1024x1024"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	// Guidance scale.
	// example: 1.0
	CFG float64 `json:"cfg,omitempty" example:"1.0"`
	// Shift value.
	// example: 3.0
	Shift float64 `json:"shift,omitempty" example:"3.0"`
	// Sampler id.
	// example: euler
	Sampler string `json:"sampler,omitempty" example:"euler"`
	// Scheduler id.
	// example: simple
	Scheduler string `json:"scheduler,omitempty" example:"simple"`
	// Style tags.
	Styles []string `json:"styles,omitempty"`
	// Workflow id; empty uses the server default.
	Workflow string `json:"workflow,omitempty"`
}

// JobStatus describes one active job.
type JobStatus struct {
	SessionID string `json:"session_id" example:"123456789"`
	// Backend-assigned id; empty while submitting.
	JobID string `json:"job_id,omitempty" example:"0b9a6f1e-7c2d-4b51-9f58-2a2b8f0ad5c1"`
	// example: polling
	State string `json:"state" example:"polling"`
	// Last delivered progress percentage.
	// example: 74
	Progress float64 `json:"progress" example:"74"`
	// Node the backend reported as executing.
	Node string `json:"node,omitempty"`
	// Seed the job was submitted with.
	Seed uint64 `json:"seed"`
	Workflow string `json:"workflow,omitempty"`
	Cancelled bool `json:"cancelled"`
	// example: 1700000000
	CreatedUnix int64 `json:"created_unix" example:"1700000000"`
}

// SessionsResponse is returned by GET /sessions.
type SessionsResponse struct {
	Sessions []JobStatus `json:"sessions"`
}

// WorkflowsResponse is returned by GET /workflows.
type WorkflowsResponse struct {
	Workflows []Workflow `json:"workflows"`
	Default   string     `json:"default"`
}

// OptionsResponse lists the menu catalogs and defaults.
type OptionsResponse struct {
	Samplers   []string        `json:"samplers"`
	Schedulers []string        `json:"schedulers"`
	Sizes      []string        `json:"sizes"`
	Defaults   GenerateRequest `json:"defaults"`
}

// ProgressLine is one NDJSON progress record of a generate stream.
type ProgressLine struct {
	// example: 74
	Progress float64 `json:"progress" example:"74"`
	Value    int     `json:"value"`
	Max      int     `json:"max"`
}

// StartLine is the first NDJSON record of a generate stream.
type StartLine struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

// DoneLine is the terminal NDJSON record of a generate stream.
type DoneLine struct {
	Done  bool   `json:"done"`
	State string `json:"state"`
	JobID string `json:"job_id,omitempty"`
	Seed  uint64 `json:"seed,omitempty"`
	// Wall-clock time from submission to the terminal state.
	ElapsedMS int64 `json:"elapsed_ms"`
	// Base64-encoded artifact bytes on success.
	ImageBase64 string `json:"image_base64,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Backend base URL jobs are submitted to.
	// example: http://127.0.0.1:8188
	BackendURL string `json:"backend_url" example:"http://127.0.0.1:8188"`
	// Active jobs by session.
	Sessions []JobStatus `json:"sessions"`
	// Number of jobs started since boot.
	// example: 12
	JobsStarted uint64 `json:"jobs_started" example:"12"`
	// Terminal outcomes since boot, by state.
	JobsCompleted uint64 `json:"jobs_completed"`
	JobsFailed    uint64 `json:"jobs_failed"`
	JobsCancelled uint64 `json:"jobs_cancelled"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// True once Shutdown has begun.
	Draining bool `json:"draining"`
}
