package manager

import "fmt"

// Sink receives a job's progress ticks and its terminal outcome. A Sink is
// called from one goroutine per job and may block; blocking only delays that
// job's own deliveries.
type Sink interface {
	Progress(Tick)
	Done(Outcome)
}

// SinkFuncs adapts plain functions to Sink. Nil fields are skipped.
type SinkFuncs struct {
	OnProgress func(Tick)
	OnDone     func(Outcome)
}

func (s SinkFuncs) Progress(t Tick) {
	if s.OnProgress != nil {
		s.OnProgress(t)
	}
}

func (s SinkFuncs) Done(o Outcome) {
	if s.OnDone != nil {
		s.OnDone(o)
	}
}

// delivery is a tick, or the outcome when outcome is non-nil.
type delivery struct {
	tick    Tick
	outcome *Outcome
}

// deliver drains the job queue into sink until the outcome was handed over.
func (m *Manager) deliver(j *Job, sink Sink) {
	defer close(j.done)
	for d := range j.queue {
		if d.outcome != nil {
			m.safeCall(j, func() { sink.Done(*d.outcome) })
			return
		}
		tick := d.tick
		m.safeCall(j, func() { sink.Progress(tick) })
	}
}

func (m *Manager) safeCall(j *Job, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log := m.jobLogger(j)
			log.Error().Str("panic", fmt.Sprint(r)).Msg("sink panicked")
		}
	}()
	fn()
}
