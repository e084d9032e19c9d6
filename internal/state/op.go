package state

import (
	"sync"
	"time"

	"github.com/document-locker/locker/internal/events"
)

// OpStatus is the state of one list-level operation.
type OpStatus string

const (
	OpIdle    OpStatus = "idle"
	OpLoading OpStatus = "loading"
	OpSuccess OpStatus = "success"
	OpFailed  OpStatus = "failed"
)

// Operation names.
const (
	OpRefresh    = "refresh"
	OpUpload     = "upload"
	OpDelete     = "delete"
	OpDownload   = "download"
	OpPreview    = "preview"
	OpStorage    = "storage"
	OpOpenFolder = "open-folder"
)

// OpState tracks a single operation through idle -> loading -> success|failed -> idle.
// Overlapping operations each get their own tracker.
type OpState struct {
	Name string

	mu       sync.Mutex
	status   OpStatus
	err      error
	started  time.Time
	finished time.Time

	bus  *events.EventBus
	done func()
}

func (o *OpState) Status() OpStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *OpState) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Duration is the time from start to finish, or so far if still running.
func (o *OpState) Duration() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finished.IsZero() {
		return time.Since(o.started)
	}
	return o.finished.Sub(o.started)
}

func (o *OpState) start() {
	o.mu.Lock()
	o.status = OpLoading
	o.started = time.Now()
	o.mu.Unlock()
	o.bus.Publish(newOperationEvent(o.Name, OpLoading, nil))
}

// finish records the outcome. Calling it twice is a no-op.
func (o *OpState) finish(err error) {
	o.mu.Lock()
	if o.status != OpLoading {
		o.mu.Unlock()
		return
	}
	o.err = err
	o.finished = time.Now()
	o.status = OpSuccess
	if err != nil {
		o.status = OpFailed
	}
	status := o.status
	o.mu.Unlock()

	o.bus.Publish(newOperationEvent(o.Name, status, err))
}

// settle returns the tracker to idle and releases the in-flight slot.
func (o *OpState) settle() {
	o.finish(nil)
	o.mu.Lock()
	o.status = OpIdle
	done := o.done
	o.done = nil
	o.mu.Unlock()

	o.bus.Publish(newOperationEvent(o.Name, OpIdle, nil))
	if done != nil {
		done()
	}
}
