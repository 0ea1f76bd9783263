package manager

import (
	"context"
	"time"

	"comfyd/pkg/types"
)

// Sessions lists the live jobs ordered by session id.
func (m *Manager) Sessions() []types.JobStatus {
	jobs := m.active()
	out := make([]types.JobStatus, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Status())
	}
	return out
}

// Session reports the live job of sessionID.
func (m *Manager) Session(sessionID string) (types.JobStatus, bool) {
	j, ok := m.Lookup(sessionID)
	if !ok {
		return types.JobStatus{}, false
	}
	return j.Status(), true
}

// Status builds the response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	draining := m.draining
	m.mu.RUnlock()
	now := time.Now()
	return types.StatusResponse{
		BackendURL:     m.backendURL,
		Sessions:       m.Sessions(),
		JobsStarted:    m.started.Load(),
		JobsCompleted:  m.completed.Load(),
		JobsFailed:     m.failed.Load(),
		JobsCancelled:  m.cancelled.Load(),
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
		Draining:       draining,
	}
}

// Shutdown stops accepting jobs, cancels the live ones and waits until every
// outcome was delivered. When ctx ends first, in-flight backend calls are
// aborted and ctx.Err is returned.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.draining = true
	m.mu.Unlock()
	for _, j := range m.active() {
		m.cancelJob(j)
	}
	done := make(chan struct{})
	go func() {
		m.running.Wait()
		close(done)
	}()
	defer m.abort()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
