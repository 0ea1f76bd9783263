// Package backendtest provides a scriptable in-process generation server for
// tests: it accepts submissions, serves history entries and artifacts, counts
// interrupts, and pushes events over the progress websocket.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Submission is one accepted job.
type Submission struct {
	JobID    string
	ClientID string
	Graph    map[string]any
}

// Server is a fake generation server. Create it with New; it is closed on
// test cleanup.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	nextID       int
	rejectStatus int
	rejectBody   string
	history      map[string]json.RawMessage
	artifacts    map[string][]byte
	conns        map[string]*websocket.Conn
	interrupts   []string
	statusHits   int
	statusFails  int
	statusDelay  time.Duration
	submissions  []Submission

	submitted chan Submission
	connected chan string
	upgrader  websocket.Upgrader
}

// New starts a Server and registers its shutdown with t.Cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		history:   make(map[string]json.RawMessage),
		artifacts: make(map[string][]byte),
		conns:     make(map[string]*websocket.Conn),
		submitted: make(chan Submission, 64),
		connected: make(chan string, 64),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /prompt", s.handleSubmit)
	mux.HandleFunc("GET /history/{id}", s.handleHistory)
	mux.HandleFunc("GET /view", s.handleView)
	mux.HandleFunc("POST /interrupt", s.handleInterrupt)
	mux.HandleFunc("GET /ws", s.handleStream)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Close drops stream connections and shuts the server down.
func (s *Server) Close() {
	s.mu.Lock()
	for id, c := range s.conns {
		_ = c.Close()
		delete(s.conns, id)
	}
	s.mu.Unlock()
	s.Server.Close()
}

// RejectSubmissions makes every following submit fail with status and body.
func (s *Server) RejectSubmissions(status int, body string) {
	s.mu.Lock()
	s.rejectStatus, s.rejectBody = status, body
	s.mu.Unlock()
}

// SetHistory installs the raw history entry served for jobID.
func (s *Server) SetHistory(jobID, entry string) {
	s.mu.Lock()
	s.history[jobID] = json.RawMessage(entry)
	s.mu.Unlock()
}

// Complete publishes a single output image for jobID and serves data for it.
func (s *Server) Complete(jobID, filename string, data []byte) {
	s.PutArtifact(filename, "output", "", data)
	s.SetHistory(jobID, fmt.Sprintf(`{"outputs":{"9":{"images":[{"filename":%q,"subfolder":"","type":"output"}]}}}`, filename))
}

// Fail publishes an execution error for jobID.
func (s *Server) Fail(jobID, message string) {
	s.SetHistory(jobID, fmt.Sprintf(`{"status":{"error":%q}}`, message))
}

// PutArtifact serves data for the given view query.
func (s *Server) PutArtifact(filename, kind, subfolder string, data []byte) {
	s.mu.Lock()
	s.artifacts[artifactKey(filename, kind, subfolder)] = data
	s.mu.Unlock()
}

// FailStatus makes the next n history requests answer 500.
func (s *Server) FailStatus(n int) {
	s.mu.Lock()
	s.statusFails = n
	s.mu.Unlock()
}

// DelayStatus delays every history response by d.
func (s *Server) DelayStatus(d time.Duration) {
	s.mu.Lock()
	s.statusDelay = d
	s.mu.Unlock()
}

// Interrupts returns how many interrupt requests arrived.
func (s *Server) Interrupts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.interrupts)
}

// InterruptedJobs returns the job id of each interrupt request in order; an
// untargeted interrupt is recorded as "".
func (s *Server) InterruptedJobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.interrupts...)
}

// StatusRequests returns how many history requests arrived.
func (s *Server) StatusRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusHits
}

// Submissions returns the accepted jobs in order.
func (s *Server) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.submissions...)
}

// WaitSubmission waits for the next accepted job.
func (s *Server) WaitSubmission(t testing.TB, timeout time.Duration) Submission {
	t.Helper()
	select {
	case sub := <-s.submitted:
		return sub
	case <-time.After(timeout):
		t.Fatalf("backendtest: no submission within %s", timeout)
		return Submission{}
	}
}

// WaitStream waits for the next stream connection and returns its client id.
func (s *Server) WaitStream(t testing.TB, timeout time.Duration) string {
	t.Helper()
	select {
	case id := <-s.connected:
		return id
	case <-time.After(timeout):
		t.Fatalf("backendtest: no stream connection within %s", timeout)
		return ""
	}
}

// Send writes v as a JSON text frame to the stream of clientID.
func (s *Server) Send(clientID string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.SendRaw(clientID, b)
}

// SendRaw writes a text frame to the stream of clientID.
func (s *Server) SendRaw(clientID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.conns[clientID]
	if c == nil {
		return fmt.Errorf("backendtest: no stream for %s", clientID)
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

// SendProgress writes a progress event to the stream of clientID.
func (s *Server) SendProgress(clientID string, value, max int) error {
	return s.Send(clientID, map[string]any{
		"type": "progress",
		"data": map[string]any{"value": value, "max": max},
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt   map[string]any `json:"prompt"`
		ClientID string         `json:"client_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid prompt"}`, http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	if s.rejectStatus != 0 {
		status, msg := s.rejectStatus, s.rejectBody
		s.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(msg))
		return
	}
	s.nextID++
	number := s.nextID
	sub := Submission{JobID: fmt.Sprintf("job-%d", number), ClientID: body.ClientID, Graph: body.Prompt}
	s.submissions = append(s.submissions, sub)
	s.mu.Unlock()
	select {
	case s.submitted <- sub:
	default:
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"prompt_id": sub.JobID, "number": number, "node_errors": map[string]any{}})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	s.statusHits++
	delay := s.statusDelay
	if s.statusFails > 0 {
		s.statusFails--
		s.mu.Unlock()
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	s.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	s.mu.Lock()
	entry, ok := s.history[id]
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		_, _ = w.Write([]byte(`{}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]json.RawMessage{id: entry})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.mu.Lock()
	data, ok := s.artifacts[artifactKey(q.Get("filename"), q.Get("type"), q.Get("subfolder"))]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(data)
}

func (s *Server) handleInterrupt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PromptID string `json:"prompt_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	s.interrupts = append(s.interrupts, body.PromptID)
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns[clientID] = conn
	s.mu.Unlock()
	select {
	case s.connected <- clientID:
	default:
	}
	// Drain control frames until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.mu.Lock()
	if s.conns[clientID] == conn {
		delete(s.conns, clientID)
	}
	s.mu.Unlock()
	_ = conn.Close()
}

func artifactKey(filename, kind, subfolder string) string {
	if kind == "" {
		kind = "output"
	}
	return strings.Join([]string{filename, kind, subfolder}, "|")
}
