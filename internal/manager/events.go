package manager

// Event names published by the manager.
const (
	EventJobStart           = "job_start"
	EventJobSubmitted       = "job_submitted"
	EventJobProgress        = "job_progress"
	EventJobCancel          = "job_cancel"
	EventJobInterruptFailed = "job_interrupt_failed"
	EventJobDone            = "job_done"
)

// Event represents a job lifecycle event.
// Minimal and stable: name, session and job ids, optional fields via key/values.
// job_done carries "state" (State) and "duration" (time.Duration).
type Event struct {
	Name      string
	SessionID string
	JobID     string
	Fields    map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MultiPublisher fans each event out to every publisher.
type MultiPublisher []EventPublisher

func (mp MultiPublisher) Publish(e Event) {
	for _, p := range mp {
		if p != nil {
			p.Publish(e)
		}
	}
}
