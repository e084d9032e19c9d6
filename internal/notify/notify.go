// Package notify provides transient status notifications for the dashboard.
// Each notification auto-dismisses after a TTL and is fanned out to sinks:
// the terminal, the event bus, and optionally the desktop via
// github.com/gen2brain/beeep.
package notify

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/document-locker/locker/internal/constants"
	"github.com/document-locker/locker/internal/events"
	"github.com/document-locker/locker/internal/logging"
)

// Kind is the notification severity.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Notification is one status message.
type Notification struct {
	ID      uint64
	Kind    Kind
	Message string
	Created time.Time
	Expires time.Time
}

// Sink receives every notification as it is raised.
type Sink interface {
	Show(n Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Notification)

func (f SinkFunc) Show(n Notification) { f(n) }

// Center raises notifications, tracks which are still visible and
// dismisses them after the TTL.
type Center struct {
	ttl    time.Duration
	bus    *events.EventBus
	logger *logging.Logger

	mu     sync.Mutex
	nextID uint64
	active map[uint64]Notification
	timers map[uint64]*time.Timer
	sinks  []Sink
	closed bool
}

// Config holds notification configuration.
type Config struct {
	// TTL is how long a notification stays visible. Zero means the default.
	TTL time.Duration

	// EventBus, when set, receives a NotificationEvent per notification.
	EventBus *events.EventBus

	Logger *logging.Logger
}

// NewCenter creates a notification center.
func NewCenter(cfg Config, sinks ...Sink) *Center {
	if cfg.TTL <= 0 {
		cfg.TTL = constants.NotificationTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	return &Center{
		ttl:    cfg.TTL,
		bus:    cfg.EventBus,
		logger: cfg.Logger,
		active: make(map[uint64]Notification),
		timers: make(map[uint64]*time.Timer),
		sinks:  sinks,
	}
}

// AddSink registers another sink.
func (c *Center) AddSink(s Sink) {
	c.mu.Lock()
	c.sinks = append(c.sinks, s)
	c.mu.Unlock()
}

// Notify raises a notification and schedules its dismissal.
func (c *Center) Notify(kind Kind, message string) Notification {
	now := time.Now()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Notification{}
	}
	c.nextID++
	n := Notification{
		ID:      c.nextID,
		Kind:    kind,
		Message: message,
		Created: now,
		Expires: now.Add(c.ttl),
	}
	c.active[n.ID] = n
	c.timers[n.ID] = time.AfterFunc(c.ttl, func() { c.Dismiss(n.ID) })
	sinks := append([]Sink(nil), c.sinks...)
	c.mu.Unlock()

	c.logger.Debug().Str("kind", string(kind)).Msg(message)
	for _, s := range sinks {
		s.Show(n)
	}
	c.bus.Publish(&events.NotificationEvent{
		BaseEvent: events.NewBase(events.EventNotification),
		ID:        n.ID,
		Kind:      string(kind),
		Message:   message,
		Expires:   n.Expires,
	})
	return n
}

func (c *Center) Info(format string, args ...interface{}) Notification {
	return c.Notify(KindInfo, fmt.Sprintf(format, args...))
}

func (c *Center) Success(format string, args ...interface{}) Notification {
	return c.Notify(KindSuccess, fmt.Sprintf(format, args...))
}

func (c *Center) Warning(format string, args ...interface{}) Notification {
	return c.Notify(KindWarning, fmt.Sprintf(format, args...))
}

func (c *Center) Error(format string, args ...interface{}) Notification {
	return c.Notify(KindError, fmt.Sprintf(format, args...))
}

// Dismiss removes a notification before its TTL. Unknown IDs are ignored.
func (c *Center) Dismiss(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	delete(c.active, id)
}

// Active returns the visible notifications, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	out := make([]Notification, 0, len(c.active))
	for _, n := range c.active {
		out = append(out, n)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Latest returns the most recent visible notification.
func (c *Center) Latest() (Notification, bool) {
	active := c.Active()
	if len(active) == 0 {
		return Notification{}, false
	}
	return active[len(active)-1], true
}

// Close stops all dismissal timers. Later Notify calls are dropped.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

// Icon returns the one-character marker for a kind.
func Icon(k Kind) string {
	switch k {
	case KindSuccess:
		return "✓"
	case KindWarning:
		return "!"
	case KindError:
		return "✗"
	default:
		return "i"
	}
}

// ConsoleSink prints notifications as single lines.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleSink writes to w.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{out: w}
}

func (s *ConsoleSink) Show(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "[%s] %s\n", Icon(n.Kind), n.Message)
}
