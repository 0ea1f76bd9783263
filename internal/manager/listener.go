package manager

import (
	"math"

	"comfyd/internal/backend"
)

// percent maps a value/max counter to a percentage rounded to one decimal.
func percent(value, max int) (float64, bool) {
	if max <= 0 {
		return 0, false
	}
	p := math.Round(float64(value)*1000/float64(max)) / 10
	return math.Min(math.Max(p, 0), 100), true
}

// coalescer passes only percentages above the last one it passed.
type coalescer struct {
	last float64
	seen bool
}

func (c *coalescer) accept(value, max int) (float64, bool) {
	p, ok := percent(value, max)
	if !ok || (c.seen && p <= c.last) {
		return 0, false
	}
	c.last, c.seen = p, true
	return p, true
}

// listen forwards progress from s to the delivery queue until stop closes or
// the job is cancelled. Stream errors end listening, never the job.
func (m *Manager) listen(j *Job, jobID string, s EventStream, stop <-chan struct{}) {
	log := m.jobLogger(j)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		select {
		case <-stop:
		case <-j.latch:
		}
		if err := s.Close(m.streamCloseTimeout); err != nil {
			log.Debug().Err(err).Msg("close progress stream")
		}
	}()
	defer func() { <-closed }()

	var c coalescer
	for {
		ev, err := s.Next()
		if j.Cancelled() || isClosed(stop) {
			return
		}
		if err != nil {
			if backend.IsMalformed(err) {
				log.Debug().Err(err).Msg("skipping malformed event")
				continue
			}
			log.Debug().Err(err).Msg("progress stream ended")
			return
		}
		switch ev.Type {
		case backend.EventProgress:
			p, err := ev.Progress()
			if err != nil || (p.JobID != "" && p.JobID != jobID) {
				continue
			}
			pct, ok := c.accept(p.Value, p.Max)
			if !ok {
				continue
			}
			j.setProgress(pct)
			m.publish(Event{Name: EventJobProgress, SessionID: j.sessionID, JobID: jobID, Fields: map[string]any{"percent": pct}})
			select {
			case j.queue <- delivery{tick: Tick{Percent: pct, Value: p.Value, Max: p.Max}}:
			case <-stop:
				return
			case <-j.latch:
				return
			}
		case backend.EventExecuting:
			x, err := ev.Executing()
			if err == nil && (x.JobID == "" || x.JobID == jobID) {
				j.setNode(x.Node)
			}
		}
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
