package manager

import (
	"time"

	"comfyd/internal/backend"
)

// poll queries the job status until a terminal decision. The latch is checked
// before every request and again when a response arrives, so a response that
// raced a Cancel still yields Cancelled. Failed requests are retried at the
// next interval.
func (m *Manager) poll(j *Job, jobID string) Outcome {
	log := m.jobLogger(j)
	cancelled := Outcome{State: StateCancelled, Err: ErrCancelled}
	deadline := time.Now().Add(m.pollTimeout)
	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		if j.Cancelled() {
			return cancelled
		}
		if !time.Now().Before(deadline) {
			ok, armed := j.armTimeout()
			if !ok {
				return cancelled
			}
			if armed {
				go m.interrupt(j)
			}
			return Outcome{State: StateFailed, Err: timeoutError{jobID: jobID, after: m.pollTimeout}}
		}

		h, found, err := m.be.Status(m.ctx, jobID)
		if j.Cancelled() {
			return cancelled
		}
		switch {
		case err != nil:
			log.Debug().Err(err).Int("attempt", attempt).Msg("status request failed, retrying")
		case found:
			if msg, failed := h.ExecutionError(); failed {
				if !j.claim() {
					return cancelled
				}
				return Outcome{State: StateFailed, Err: &backend.BackendError{Message: msg}}
			}
			if h.Done() {
				if !j.claim() {
					return cancelled
				}
				return m.retrieve(j, h)
			}
		}

		timer.Reset(m.pollInterval)
		select {
		case <-j.latch:
			return cancelled
		case <-m.ctx.Done():
			if !j.claim() {
				return cancelled
			}
			return Outcome{State: StateFailed, Err: m.ctx.Err()}
		case <-timer.C:
		}
	}
}

// retrieve downloads the artifact of a finished job.
func (m *Manager) retrieve(j *Job, h backend.History) Outcome {
	ref, err := backend.FirstArtifact(h)
	if err != nil {
		return Outcome{State: StateFailed, Err: err}
	}
	b, err := m.be.FetchArtifact(m.ctx, ref)
	if err != nil {
		return Outcome{State: StateFailed, Err: err, Ref: ref}
	}
	log := m.jobLogger(j)
	log.Debug().Str("filename", ref.Filename).Int("bytes", len(b)).Msg("artifact retrieved")
	return Outcome{State: StateCompleted, Artifact: b, Ref: ref}
}
