package manager

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"comfyd/internal/params"
)

// Start validates p, registers a new job for sessionID and launches it. It
// returns immediately. At most one job per session is live at a time; a
// second Start fails with an error for which IsAlreadyActive is true.
// Invalid parameters and unknown workflows fail with *params.ValidationError
// before anything is registered. A nil sink discards deliveries.
func (m *Manager) Start(sessionID string, p params.Parameters, sink Sink) (*Job, error) {
	if sessionID == "" {
		return nil, &params.ValidationError{Field: "session", Reason: "must not be empty"}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	workflow := p.Workflow
	if workflow == "" {
		workflow = m.defaultWorkflow
	}
	tpl, ok := m.workflows.Template(workflow)
	if !ok {
		return nil, &params.ValidationError{Field: "workflow", Reason: fmt.Sprintf("unknown workflow %q", workflow)}
	}
	if sink == nil {
		sink = SinkFuncs{}
	}

	j := newJob(sessionID, uuid.NewString(), p, workflow, p.Seed.Resolve(), m.tickBuffer)

	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if _, busy := m.jobs[sessionID]; busy {
		m.mu.Unlock()
		return nil, alreadyActiveError{sessionID: sessionID}
	}
	m.jobs[sessionID] = j
	m.running.Add(1)
	m.mu.Unlock()

	m.started.Add(1)
	m.publish(Event{Name: EventJobStart, SessionID: sessionID, Fields: map[string]any{"workflow": workflow, "seed": j.seed}})
	log := m.jobLogger(j)
	log.Info().Str("workflow", workflow).Uint64("seed", j.seed).Int("steps", p.Steps).Str("size", p.Size()).Msg("job started")
	go m.run(j, tpl, sink)
	return j, nil
}

// Cancel sets the cancellation latch of the session's job and asks the
// backend to interrupt it. It never waits for teardown; the outcome arrives
// through the sink as Cancelled. A job whose completion was already observed
// finishes normally.
func (m *Manager) Cancel(sessionID string) error {
	m.mu.RLock()
	j, ok := m.jobs[sessionID]
	m.mu.RUnlock()
	if !ok {
		return notFoundError{sessionID: sessionID}
	}
	m.cancelJob(j)
	return nil
}

// CancelJob cancels j itself rather than whatever job its session holds now.
// It is a no-op once j's outcome was decided.
func (m *Manager) CancelJob(j *Job) {
	if j != nil {
		m.cancelJob(j)
	}
}

func (m *Manager) cancelJob(j *Job) {
	ok, armed := j.cancel()
	if !ok {
		return
	}
	m.publish(Event{Name: EventJobCancel, SessionID: j.sessionID, JobID: j.JobID()})
	log := m.jobLogger(j)
	log.Info().Msg("job cancel requested")
	if armed {
		go m.interrupt(j)
	}
}

// Lookup returns the live job of a session.
func (m *Manager) Lookup(sessionID string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[sessionID]
	return j, ok
}

// remove drops j if it is still the session's entry.
func (m *Manager) remove(j *Job) {
	m.mu.Lock()
	if cur, ok := m.jobs[j.sessionID]; ok && cur == j {
		delete(m.jobs, j.sessionID)
	}
	m.mu.Unlock()
}

// active returns the live jobs ordered by session id.
func (m *Manager) active() []*Job {
	m.mu.RLock()
	out := make([]*Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool { return out[a].sessionID < out[b].sessionID })
	return out
}
