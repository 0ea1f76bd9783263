package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"comfyd/internal/backend"
	"comfyd/internal/backend/backendtest"
	"comfyd/internal/httpapi"
	"comfyd/internal/manager"
	"comfyd/internal/registry"
)

type stack struct {
	api     *httptest.Server
	backend *backendtest.Server
	mgr     *manager.Manager
}

// newStack wires a fake generation server, the real client, manager and HTTP
// API. Cleanup shuts the manager down before the API server so streaming
// handlers can finish.
func newStack(t *testing.T) *stack {
	t.Helper()
	be := backendtest.New(t)
	client := backend.NewClient(backend.Options{BaseURL: be.URL, RequestTimeout: 5 * time.Second})
	t.Cleanup(client.CloseIdleConnections)
	reg := registry.Builtin()
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Backend:            manager.FromClient(client),
		BackendURL:         client.BaseURL(),
		Workflows:          reg,
		DefaultWorkflow:    registry.DefaultID,
		PollInterval:       10 * time.Millisecond,
		StreamCloseTimeout: 200 * time.Millisecond,
		RequestTimeout:     5 * time.Second,
		Publisher:          httpapi.NewMetricsPublisher(),
	})
	api := httptest.NewServer(httpapi.NewMux(mgr, reg))
	t.Cleanup(api.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mgr.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return &stack{api: api, backend: be, mgr: mgr}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	return do(t, req)
}

func httpDelete(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	return do(t, req)
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// generateStream is a generate request read line by line in the background.
type generateStream struct {
	status int
	lines  chan map[string]any
	cancel context.CancelFunc
}

// openGenerate starts a generate request and returns once the response
// headers arrived.
func openGenerate(t *testing.T, url, body string) *generateStream {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	gs := &generateStream{status: resp.StatusCode, lines: make(chan map[string]any, 64), cancel: cancel}
	go func() {
		defer resp.Body.Close()
		defer close(gs.lines)
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
		for sc.Scan() {
			var m map[string]any
			if json.Unmarshal(sc.Bytes(), &m) == nil {
				gs.lines <- m
			}
		}
	}()
	return gs
}

// next returns the next NDJSON line.
func (g *generateStream) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case m, ok := <-g.lines:
		if !ok {
			t.Fatalf("stream ended")
		}
		return m
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for a stream line")
	}
	return nil
}

// done skips to the terminal line.
func (g *generateStream) done(t *testing.T) map[string]any {
	t.Helper()
	for {
		if m := g.next(t); m["done"] == true {
			return m
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
