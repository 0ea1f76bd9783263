package backend

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeHistory(t *testing.T, s string) History {
	t.Helper()
	var h History
	require.NoError(t, json.Unmarshal([]byte(s), &h))
	return h
}

func TestExecutionErrorExplicit(t *testing.T) {
	h := decodeHistory(t, `{"status":{"error":"CUDA out of memory"}}`)
	msg, ok := h.ExecutionError()
	require.True(t, ok)
	require.Equal(t, "CUDA out of memory", msg)
	require.False(t, h.Done())
}

func TestExecutionErrorFromMessages(t *testing.T) {
	h := decodeHistory(t, `{"outputs":{},"status":{"status_str":"error","completed":false,"messages":[
		["execution_start",{"prompt_id":"p"}],
		["execution_error",{"prompt_id":"p","node_type":"KSampler","exception_message":"Allocation on device \n"}]
	]}}`)
	msg, ok := h.ExecutionError()
	require.True(t, ok)
	require.Equal(t, "Allocation on device", msg)
}

func TestExecutionErrorAbsent(t *testing.T) {
	for _, s := range []string{
		`{}`,
		`{"status":{"status_str":"success","completed":true}}`,
		`{"status":{"error":null}}`,
	} {
		_, ok := decodeHistory(t, s).ExecutionError()
		require.False(t, ok, s)
	}
}

func TestFirstArtifactPrefersOutput(t *testing.T) {
	h := decodeHistory(t, `{"outputs":{
		"12":{"images":[{"filename":"final.png","type":"output"}]},
		"7":{"images":[{"filename":"preview.png","type":"temp"}]}
	}}`)
	ref, err := FirstArtifact(h)
	require.NoError(t, err)
	require.Equal(t, "final.png", ref.Filename)
}

func TestFirstArtifactFallsBack(t *testing.T) {
	h := decodeHistory(t, `{"outputs":{"7":{"images":[{"filename":"preview.png","type":"temp","subfolder":"s"}]}}}`)
	ref, err := FirstArtifact(h)
	require.NoError(t, err)
	require.Equal(t, ArtifactRef{Filename: "preview.png", Type: "temp", Subfolder: "s"}, ref)
}

func TestFirstArtifactNone(t *testing.T) {
	_, err := FirstArtifact(decodeHistory(t, `{"outputs":{"9":{"text":["hi"]}}}`))
	require.ErrorIs(t, err, ErrArtifactNotFound)
	_, err = FirstArtifact(decodeHistory(t, `{"outputs":{}}`))
	require.ErrorIs(t, err, ErrArtifactNotFound)
}
