package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"comfyd/internal/backend"
)

func (m *Manager) jobLogger(j *Job) zerolog.Logger {
	ctx := m.log.With().Str("session", j.sessionID)
	if id := j.JobID(); id != "" {
		ctx = ctx.Str("job_id", id)
	}
	return ctx.Logger()
}

// run drives j to a terminal outcome and hands it to the sink exactly once.
func (m *Manager) run(j *Job, tpl *backend.Template, sink Sink) {
	defer m.running.Done()
	go m.deliver(j, sink)

	o := m.execute(j, tpl)
	o.SessionID = j.sessionID
	o.Seed = j.seed
	o.Elapsed = time.Since(j.created)
	j.finish(o)
	// The entry goes before the outcome is queued so a sink may start the
	// session's next job from Done.
	m.remove(j)
	m.count(o.State)

	fields := map[string]any{"state": o.State, "duration": o.Elapsed}
	if o.Err != nil && o.State == StateFailed {
		fields["error"] = o.Err.Error()
	}
	m.publish(Event{Name: EventJobDone, SessionID: j.sessionID, JobID: o.JobID, Fields: fields})
	log := m.jobLogger(j)
	switch o.State {
	case StateFailed:
		log.Warn().Err(o.Err).Dur("elapsed", o.Elapsed).Msg("job failed")
	default:
		log.Info().Str("state", string(o.State)).Dur("elapsed", o.Elapsed).Int("bytes", len(o.Artifact)).Msg("job finished")
	}

	j.queue <- delivery{outcome: &o}
	<-j.done
	j.bg.Wait()
}

func (m *Manager) execute(j *Job, tpl *backend.Template) Outcome {
	stream := m.dial(j)
	closeStream := func() {
		if stream != nil {
			_ = stream.Close(m.streamCloseTimeout)
		}
	}
	if j.Cancelled() {
		closeStream()
		return Outcome{State: StateCancelled, Err: ErrCancelled}
	}

	graph, skipped := tpl.Materialize(j.params, j.seed, m.bindings)
	if len(skipped) > 0 {
		log := m.jobLogger(j)
		log.Warn().Strs("fields", skipped).Str("workflow", j.workflow).Msg("template has no input for some parameters")
	}
	jobID, err := m.be.Submit(m.ctx, graph, j.clientID)
	if err != nil {
		closeStream()
		if !j.claim() {
			return Outcome{State: StateCancelled, Err: ErrCancelled}
		}
		return Outcome{State: StateFailed, Err: err}
	}
	cancelled, armed := j.submitted(jobID, stream != nil)
	m.publish(Event{Name: EventJobSubmitted, SessionID: j.sessionID, JobID: jobID})
	log := m.jobLogger(j)
	log.Debug().Bool("stream", stream != nil).Uint64("seed", j.seed).Msg("job submitted")
	if armed {
		go m.interrupt(j)
	}
	if cancelled {
		closeStream()
		return Outcome{JobID: jobID, State: StateCancelled, Err: ErrCancelled}
	}

	stop := make(chan struct{})
	var out Outcome
	var g errgroup.Group
	g.Go(func() error {
		defer close(stop)
		out = m.poll(j, jobID)
		return nil
	})
	if stream != nil {
		g.Go(func() error {
			m.listen(j, jobID, stream, stop)
			return nil
		})
	}
	_ = g.Wait()
	out.JobID = jobID
	return out
}

// dial opens the progress stream. Failure only costs progress reporting.
func (m *Manager) dial(j *Job) EventStream {
	ctx, cancel := context.WithTimeout(m.ctx, m.requestTimeout)
	defer cancel()
	s, err := m.be.Dial(ctx, j.clientID)
	if err != nil {
		log := m.jobLogger(j)
		log.Warn().Err(err).Msg("progress stream unavailable, polling only")
		return nil
	}
	return s
}

// interrupt asks the backend to stop j. It is started at most once per job.
func (m *Manager) interrupt(j *Job) {
	defer j.bg.Done()
	ctx, cancel := context.WithTimeout(m.ctx, m.requestTimeout)
	defer cancel()
	jobID := j.JobID()
	if err := m.be.Interrupt(ctx, jobID); err != nil {
		log := m.jobLogger(j)
		log.Warn().Err(err).Msg("interrupt failed")
		m.publish(Event{Name: EventJobInterruptFailed, SessionID: j.sessionID, JobID: jobID, Fields: map[string]any{"error": err.Error()}})
	}
}

func (m *Manager) count(s State) {
	switch s {
	case StateCompleted:
		m.completed.Add(1)
	case StateFailed:
		m.failed.Add(1)
	case StateCancelled:
		m.cancelled.Add(1)
	}
}
