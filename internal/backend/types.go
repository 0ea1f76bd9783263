package backend

import (
	"encoding/json"
	"sort"
	"strings"
)

// Graph is a materialized job graph keyed by node id.
type Graph map[string]any

// History is one job's entry in the server's execution history. Outputs is
// nil while the key is absent.
type History struct {
	Outputs map[string]NodeOutput `json:"outputs"`
	Status  *HistoryStatus        `json:"status"`
}

// NodeOutput lists the files a node produced.
type NodeOutput struct {
	Images []ArtifactRef `json:"images"`
}

// ArtifactRef names one retrievable file.
type ArtifactRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder,omitempty"`
	Type      string `json:"type,omitempty"`
}

// HistoryStatus is the execution status block of a history entry.
type HistoryStatus struct {
	Error     json.RawMessage   `json:"error,omitempty"`
	StatusStr string            `json:"status_str,omitempty"`
	Completed bool              `json:"completed"`
	Messages  []json.RawMessage `json:"messages,omitempty"`
}

// Done reports whether the server published outputs for the job.
func (h History) Done() bool { return h.Outputs != nil }

// ExecutionError returns the error the server reported for the job, if any.
// An explicit status.error wins; otherwise an "error" status string is
// resolved from the execution_error message.
func (h History) ExecutionError() (string, bool) {
	if h.Status == nil {
		return "", false
	}
	if len(h.Status.Error) > 0 && string(h.Status.Error) != "null" {
		var s string
		if err := json.Unmarshal(h.Status.Error, &s); err == nil {
			return s, true
		}
		return strings.TrimSpace(string(h.Status.Error)), true
	}
	if h.Status.StatusStr != "error" {
		return "", false
	}
	for _, raw := range h.Status.Messages {
		var msg []json.RawMessage
		if err := json.Unmarshal(raw, &msg); err != nil || len(msg) != 2 {
			continue
		}
		var kind string
		if err := json.Unmarshal(msg[0], &kind); err != nil || kind != "execution_error" {
			continue
		}
		var detail struct {
			ExceptionMessage string `json:"exception_message"`
			NodeType         string `json:"node_type"`
		}
		if err := json.Unmarshal(msg[1], &detail); err == nil && detail.ExceptionMessage != "" {
			return strings.TrimSpace(detail.ExceptionMessage), true
		}
	}
	return "execution failed", true
}

// FirstArtifact picks the artifact to download: the first image of type
// "output" (or untyped) in node id order, else the first image of any type.
func FirstArtifact(h History) (ArtifactRef, error) {
	ids := make([]string, 0, len(h.Outputs))
	for id := range h.Outputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var fallback *ArtifactRef
	for _, id := range ids {
		for _, img := range h.Outputs[id].Images {
			if img.Filename == "" {
				continue
			}
			if img.Type == "" || img.Type == "output" {
				img.Type = "output"
				return img, nil
			}
			if fallback == nil {
				ref := img
				fallback = &ref
			}
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return ArtifactRef{}, ErrArtifactNotFound
}

// Event is one message from the progress stream.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Event types the stream emits.
const (
	EventProgress  = "progress"
	EventExecuting = "executing"
)

// ProgressData is the payload of a progress event.
type ProgressData struct {
	Value int    `json:"value"`
	Max   int    `json:"max"`
	Node  string `json:"node,omitempty"`
	JobID string `json:"prompt_id,omitempty"`
}

// ExecutingData is the payload of an executing event. Node is empty when
// the server reports the end of execution.
type ExecutingData struct {
	Node  string `json:"node"`
	JobID string `json:"prompt_id,omitempty"`
}
