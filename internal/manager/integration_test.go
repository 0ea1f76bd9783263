package manager

import (
	"bytes"
	"testing"
	"time"

	"comfyd/internal/backend"
	"comfyd/internal/backend/backendtest"
	"comfyd/internal/params"
)

// TestRoundTripAgainstHTTPBackend drives a job through the real client
// against an in-process server: submit, stream progress, poll, download.
func TestRoundTripAgainstHTTPBackend(t *testing.T) {
	srv := backendtest.New(t)
	client := backend.NewClient(backend.Options{BaseURL: srv.URL, RequestTimeout: 5 * time.Second})
	t.Cleanup(client.CloseIdleConnections)
	m, _ := newTestManager(t, FromClient(client), func(c *ManagerConfig) { c.BackendURL = client.BaseURL() })

	p := params.Defaults()
	p.Prompt = "a lighthouse at dusk"
	p.Seed = params.FixedSeed(42)
	p.Steps = 10
	p.Width, p.Height = 1024, 1024

	sink := newRecordingSink()
	job, err := m.Start("chat-1", p, sink)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	clientID := srv.WaitStream(t, 5*time.Second)
	if clientID != job.ClientID() {
		t.Fatalf("stream client %q, job client %q", clientID, job.ClientID())
	}
	sub := srv.WaitSubmission(t, 5*time.Second)
	if sub.ClientID != job.ClientID() {
		t.Fatalf("submission client %q", sub.ClientID)
	}
	ks := sub.Graph["3"].(map[string]any)["inputs"].(map[string]any)
	if ks["seed"] != float64(42) || ks["steps"] != float64(10) {
		t.Fatalf("submitted sampler inputs = %+v", ks)
	}

	if err := srv.SendProgress(clientID, 37, 50); err != nil {
		t.Fatalf("SendProgress: %v", err)
	}
	waitFor(t, "progress tick", func() bool { return len(sink.percents()) == 1 })
	srv.Complete(sub.JobID, "a.png", []byte("\x89PNG-bytes"))

	o := sink.wait(t)
	if o.State != StateCompleted || !bytes.Equal(o.Artifact, []byte("\x89PNG-bytes")) {
		t.Fatalf("outcome = %+v", o)
	}
	if got := sink.percents(); got[0] != 74 {
		t.Fatalf("ticks = %v", got)
	}
	if st := m.Status(); st.BackendURL != srv.URL {
		t.Fatalf("status backend url = %q", st.BackendURL)
	}
}

func TestRoundTripBackendErrorOverHTTP(t *testing.T) {
	srv := backendtest.New(t)
	client := backend.NewClient(backend.Options{BaseURL: srv.URL, RequestTimeout: 5 * time.Second})
	t.Cleanup(client.CloseIdleConnections)
	m, _ := newTestManager(t, FromClient(client))

	sink := newRecordingSink()
	if _, err := m.Start("chat-1", validParams(), sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	sub := srv.WaitSubmission(t, 5*time.Second)
	srv.Fail(sub.JobID, "OOM")
	o := sink.wait(t)
	be, ok := o.Err.(*backend.BackendError)
	if !ok || be.Message != "OOM" {
		t.Fatalf("outcome = %+v", o)
	}
	if _, ok := m.Lookup("chat-1"); ok {
		t.Fatalf("job still registered")
	}
}
