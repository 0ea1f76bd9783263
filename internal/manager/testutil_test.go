package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"comfyd/internal/backend"
	"comfyd/internal/params"
)

var errStreamClosed = errors.New("stream closed")

// fakeBackend is a scriptable in-memory Backend.
type fakeBackend struct {
	mu          sync.Mutex
	nextID      int
	graphs      []backend.Graph
	submitErr   error
	submitGate  chan struct{}
	entered     chan struct{}
	statusFn    func(n int, jobID string) (backend.History, bool, error)
	statusCalls int
	artifact    []byte
	fetchErr    error
	fetched     []backend.ArtifactRef
	interrupts  []string
	interruptFn func() error
	dialErr     error
	dialed      chan *fakeStream
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		artifact: []byte("PNG"),
		dialed:   make(chan *fakeStream, 16),
		entered:  make(chan struct{}, 16),
		statusFn: func(int, string) (backend.History, bool, error) { return doneHistory(), true, nil },
	}
}

func (f *fakeBackend) Submit(ctx context.Context, graph backend.Graph, clientID string) (string, error) {
	select {
	case f.entered <- struct{}{}:
	default:
	}
	f.mu.Lock()
	gate := f.submitGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graphs = append(f.graphs, graph)
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.nextID++
	return fmt.Sprintf("job-%d", f.nextID), nil
}

func (f *fakeBackend) Status(ctx context.Context, jobID string) (backend.History, bool, error) {
	f.mu.Lock()
	f.statusCalls++
	n, fn := f.statusCalls, f.statusFn
	f.mu.Unlock()
	return fn(n, jobID)
}

func (f *fakeBackend) FetchArtifact(ctx context.Context, ref backend.ArtifactRef) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, ref)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.artifact, nil
}

func (f *fakeBackend) Interrupt(ctx context.Context, jobID string) error {
	f.mu.Lock()
	f.interrupts = append(f.interrupts, jobID)
	fn := f.interruptFn
	f.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return nil
}

func (f *fakeBackend) Dial(ctx context.Context, clientID string) (EventStream, error) {
	f.mu.Lock()
	err := f.dialErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s := &fakeStream{clientID: clientID, events: make(chan streamItem, 32), closed: make(chan struct{})}
	select {
	case f.dialed <- s:
	default:
	}
	return s, nil
}

func (f *fakeBackend) setStatus(fn func(n int, jobID string) (backend.History, bool, error)) {
	f.mu.Lock()
	f.statusFn = fn
	f.mu.Unlock()
}

func (f *fakeBackend) statusCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func (f *fakeBackend) interrupted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.interrupts...)
}

func (f *fakeBackend) submissions() []backend.Graph {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.Graph(nil), f.graphs...)
}

type streamItem struct {
	ev  backend.Event
	err error
}

// fakeStream hands out pushed items until closed.
type fakeStream struct {
	clientID  string
	events    chan streamItem
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *fakeStream) Next() (backend.Event, error) {
	select {
	case it := <-s.events:
		return it.ev, it.err
	case <-s.closed:
		return backend.Event{}, errStreamClosed
	}
}

func (s *fakeStream) Close(time.Duration) error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) isClosed() bool { return isClosed(s.closed) }

func (s *fakeStream) progress(value, max int) {
	s.events <- streamItem{ev: backend.Event{Type: backend.EventProgress, Data: json.RawMessage(fmt.Sprintf(`{"value":%d,"max":%d}`, value, max))}}
}

func (s *fakeStream) executing(node string) {
	s.events <- streamItem{ev: backend.Event{Type: backend.EventExecuting, Data: json.RawMessage(fmt.Sprintf(`{"node":%q}`, node))}}
}

func (s *fakeStream) fail(err error) { s.events <- streamItem{err: err} }

func doneHistory() backend.History {
	return backend.History{Outputs: map[string]backend.NodeOutput{
		"9": {Images: []backend.ArtifactRef{{Filename: "a.png", Type: "output"}}},
	}}
}

func errorHistory(msg string) backend.History {
	return backend.History{Status: &backend.HistoryStatus{Error: json.RawMessage(strconv.Quote(msg))}}
}

func pending(int, string) (backend.History, bool, error) { return backend.History{}, false, nil }

type mapTemplates map[string]*backend.Template

func (m mapTemplates) Template(id string) (*backend.Template, bool) {
	t, ok := m[id]
	return t, ok
}

func testTemplates(t *testing.T) mapTemplates {
	t.Helper()
	tpl, err := backend.ParseTemplate([]byte(`{"3":{"inputs":{"seed":0,"steps":1}},"48":{"inputs":{"text":""}}}`))
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	return mapTemplates{"default": tpl}
}

// newTestManager builds a Manager with fast timings that is shut down on
// test cleanup.
func newTestManager(t *testing.T, be Backend, mutate ...func(*ManagerConfig)) (*Manager, *MemoryPublisher) {
	t.Helper()
	pub := NewMemoryPublisher()
	cfg := ManagerConfig{
		Backend:            be,
		Workflows:          testTemplates(t),
		DefaultWorkflow:    "default",
		PollInterval:       10 * time.Millisecond,
		StreamCloseTimeout: 100 * time.Millisecond,
		RequestTimeout:     time.Second,
		Publisher:          pub,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	m := NewWithConfig(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return m, pub
}

func validParams() params.Parameters {
	p := params.Defaults()
	p.Prompt = "a lighthouse at dusk"
	p.Seed = params.FixedSeed(42)
	p.Steps = 10
	return p
}

// recordingSink records deliveries and flags ticks that arrive after Done.
type recordingSink struct {
	mu        sync.Mutex
	ticks     []Tick
	outcomes  []Outcome
	lateTicks int
	done      chan struct{}
	once      sync.Once
}

func newRecordingSink() *recordingSink { return &recordingSink{done: make(chan struct{})} }

func (s *recordingSink) Progress(t Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.outcomes) > 0 {
		s.lateTicks++
	}
	s.ticks = append(s.ticks, t)
}

func (s *recordingSink) Done(o Outcome) {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, o)
	s.mu.Unlock()
	s.once.Do(func() { close(s.done) })
}

func (s *recordingSink) wait(t *testing.T) Outcome {
	t.Helper()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("no outcome delivered")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcomes[0]
}

func (s *recordingSink) percents() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, 0, len(s.ticks))
	for _, t := range s.ticks {
		out = append(out, t.Percent)
	}
	return out
}

func (s *recordingSink) outcomeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outcomes)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func waitStream(t *testing.T, f *fakeBackend) *fakeStream {
	t.Helper()
	select {
	case s := <-f.dialed:
		return s
	case <-time.After(5 * time.Second):
		t.Fatalf("stream was never dialed")
		return nil
	}
}

// shutdown waits for every job and its interrupt to finish.
func shutdown(t *testing.T, m *Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
