package httpapi

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"comfyd/internal/manager"
)

func TestMetricsPublisher_TracksJobs(t *testing.T) {
	p := NewMetricsPublisher()
	started := testutil.ToFloat64(jobsStarted)
	active := testutil.ToFloat64(jobsActive)
	cancelled := testutil.ToFloat64(jobsFinished.WithLabelValues("cancelled"))
	interrupts := testutil.ToFloat64(interruptFailures)

	p.Publish(manager.Event{Name: manager.EventJobStart, SessionID: "s"})
	if got := testutil.ToFloat64(jobsActive); got != active+1 {
		t.Fatalf("active=%v want %v", got, active+1)
	}
	p.Publish(manager.Event{Name: manager.EventJobInterruptFailed, SessionID: "s"})
	p.Publish(manager.Event{Name: manager.EventJobDone, SessionID: "s", Fields: map[string]any{
		"state":    manager.StateCancelled,
		"duration": 1500 * time.Millisecond,
	}})

	if got := testutil.ToFloat64(jobsStarted); got != started+1 {
		t.Fatalf("started=%v want %v", got, started+1)
	}
	if got := testutil.ToFloat64(jobsActive); got != active {
		t.Fatalf("active=%v want %v", got, active)
	}
	if got := testutil.ToFloat64(jobsFinished.WithLabelValues("cancelled")); got != cancelled+1 {
		t.Fatalf("cancelled=%v want %v", got, cancelled+1)
	}
	if got := testutil.ToFloat64(interruptFailures); got != interrupts+1 {
		t.Fatalf("interrupt failures=%v want %v", got, interrupts+1)
	}
	if n := testutil.CollectAndCount(jobDuration); n == 0 {
		t.Fatalf("no duration samples collected")
	}
}

func TestItoa(t *testing.T) {
	for n, want := range map[int]string{0: "0", 7: "7", 200: "200", 503: "503"} {
		if got := itoa(n); got != want {
			t.Fatalf("itoa(%d)=%q want %q", n, got, want)
		}
	}
}
