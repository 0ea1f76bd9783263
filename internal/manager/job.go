package manager

import (
	"context"
	"sync"
	"time"

	"comfyd/internal/backend"
	"comfyd/internal/params"
	"comfyd/pkg/types"
)

// Outcome is the single terminal notification of a job.
type Outcome struct {
	SessionID string
	// JobID is empty when the job never reached the backend.
	JobID string
	State State
	// Err is nil on success and ErrCancelled after cancellation.
	Err      error
	Artifact []byte
	Ref      backend.ArtifactRef
	Seed     uint64
	// Elapsed runs from Start to the terminal decision.
	Elapsed time.Duration
}

// Job is the handle of one generation attempt. All methods are safe for
// concurrent use.
type Job struct {
	sessionID string
	clientID  string
	params    params.Parameters
	workflow  string
	seed      uint64
	created   time.Time

	mu          sync.Mutex
	jobID       string
	state       State
	progress    float64
	node        string
	cancelled   bool
	decided     bool
	interrupted bool
	outcome     Outcome

	// latch is closed exactly once when the job is cancelled.
	latch chan struct{}
	// done is closed after the sink received the outcome.
	done chan struct{}
	// queue carries ticks and then the outcome to the delivery goroutine.
	queue chan delivery
	// bg tracks the interrupt request so teardown can wait for it.
	bg sync.WaitGroup
}

func newJob(sessionID, clientID string, p params.Parameters, workflow string, seed uint64, buf int) *Job {
	return &Job{
		sessionID: sessionID,
		clientID:  clientID,
		params:    p.Clone(),
		workflow:  workflow,
		seed:      seed,
		created:   time.Now(),
		state:     StateSubmitting,
		latch:     make(chan struct{}),
		done:      make(chan struct{}),
		queue:     make(chan delivery, buf),
	}
}

func (j *Job) SessionID() string { return j.sessionID }

// ClientID identifies the job's progress stream.
func (j *Job) ClientID() string { return j.clientID }

// Seed is the resolved seed the job was submitted with.
func (j *Job) Seed() uint64 { return j.seed }

func (j *Job) Workflow() string { return j.workflow }

// Params returns a copy of the parameters the job was started with.
func (j *Job) Params() params.Parameters { return j.params.Clone() }

// JobID returns the backend-assigned id, empty until submission succeeds.
func (j *Job) JobID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jobID
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Progress returns the last delivered percentage.
func (j *Job) Progress() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Cancelled reports whether the latch is set.
func (j *Job) Cancelled() bool {
	select {
	case <-j.latch:
		return true
	default:
		return false
	}
}

// Done is closed once the sink has received the outcome.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the outcome was delivered or ctx ends.
func (j *Job) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-j.done:
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Status is a read-only projection for the HTTP layer.
func (j *Job) Status() types.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return types.JobStatus{
		SessionID:   j.sessionID,
		JobID:       j.jobID,
		State:       string(j.state),
		Progress:    j.progress,
		Node:        j.node,
		Seed:        j.seed,
		Workflow:    j.workflow,
		Cancelled:   j.cancelled,
		CreatedUnix: j.created.Unix(),
	}
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	if !j.state.Terminal() {
		j.state = s
	}
	j.mu.Unlock()
}

func (j *Job) setProgress(p float64) {
	j.mu.Lock()
	j.progress = p
	j.mu.Unlock()
}

func (j *Job) setNode(n string) {
	j.mu.Lock()
	j.node = n
	j.mu.Unlock()
}

// cancel sets the latch. It returns false when the job was already cancelled
// or its terminal outcome was already decided. armed reports that the caller
// must send the interrupt.
func (j *Job) cancel() (ok, armed bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancelled || j.decided {
		return false, false
	}
	j.cancelled = true
	armed = j.armInterruptLocked()
	close(j.latch)
	return true, armed
}

// submitted records the backend id and reports whether the job was
// cancelled while the submission was in flight.
func (j *Job) submitted(jobID string, hasStream bool) (cancelled, armed bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jobID = jobID
	if j.cancelled {
		return true, j.armInterruptLocked()
	}
	if hasStream {
		j.state = StateStreaming
	} else {
		j.state = StatePolling
	}
	return false, false
}

// claim decides the terminal outcome for the poller. It fails when the latch
// was set first.
func (j *Job) claim() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancelled {
		return false
	}
	j.decided = true
	return true
}

// armTimeout claims the job for a timeout failure and arms the interrupt.
func (j *Job) armTimeout() (ok, armed bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancelled {
		return false, false
	}
	j.decided = true
	return true, j.armInterruptLocked()
}

// armInterruptLocked allows one interrupt per job, once a backend id exists.
func (j *Job) armInterruptLocked() bool {
	if j.interrupted || j.jobID == "" {
		return false
	}
	j.interrupted = true
	j.bg.Add(1)
	return true
}

func (j *Job) finish(o Outcome) {
	j.mu.Lock()
	j.state = o.State
	j.outcome = o
	j.mu.Unlock()
}
