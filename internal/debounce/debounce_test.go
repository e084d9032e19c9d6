package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTriggerCoalesces(t *testing.T) {
	d := New(30 * time.Millisecond)

	var calls atomic.Int32
	var last atomic.Value
	for _, q := range []string{"r", "re", "rep"} {
		q := q
		d.Trigger(func() {
			calls.Add(1)
			last.Store(q)
		})
		time.Sleep(5 * time.Millisecond)
	}

	if !d.Pending() {
		t.Error("expected a pending call right after triggering")
	}

	time.Sleep(150 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
	if got := last.Load(); got != "rep" {
		t.Errorf("last query = %v, want %q", got, "rep")
	}
	if d.Pending() {
		t.Error("nothing should be pending after the call ran")
	}
}

func TestFlushRunsNowAndCancels(t *testing.T) {
	d := New(30 * time.Millisecond)

	var scheduled, flushed atomic.Int32
	d.Trigger(func() { scheduled.Add(1) })
	d.Flush(func() { flushed.Add(1) })

	if flushed.Load() != 1 {
		t.Errorf("flushed = %d, want 1 immediately", flushed.Load())
	}

	time.Sleep(100 * time.Millisecond)
	if scheduled.Load() != 0 {
		t.Errorf("scheduled call ran %d times after Flush, want 0", scheduled.Load())
	}
}

func TestCancel(t *testing.T) {
	d := New(20 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Cancel()

	time.Sleep(80 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0", calls.Load())
	}
	if d.Delay() != 20*time.Millisecond {
		t.Errorf("Delay() = %v", d.Delay())
	}
}
