package httpapi

import "comfyd/internal/manager"

// streamItem is a progress tick, or the outcome when outcome is non-nil.
type streamItem struct {
	tick    manager.Tick
	outcome *manager.Outcome
}

// streamSink hands deliveries to the request goroutine in order. Once gone is
// closed nobody reads anymore and deliveries are dropped.
type streamSink struct {
	items chan streamItem
	gone  chan struct{}
}

func newStreamSink() *streamSink {
	return &streamSink{items: make(chan streamItem, 16), gone: make(chan struct{})}
}

func (s *streamSink) Progress(t manager.Tick) { s.send(streamItem{tick: t}) }

func (s *streamSink) Done(o manager.Outcome) { s.send(streamItem{outcome: &o}) }

func (s *streamSink) send(it streamItem) {
	select {
	case s.items <- it:
	case <-s.gone:
	}
}
