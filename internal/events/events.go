package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/document-locker/locker/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	// Dashboard state events
	EventFilesChanged     EventType = "files_changed"     // record list replaced or mutated
	EventSelectionChanged EventType = "selection_changed" // selection set changed
	EventPathChanged      EventType = "path_changed"      // navigation path changed
	EventSearchChanged    EventType = "search_changed"    // search filter applied
	EventStorageChanged   EventType = "storage_changed"   // storage usage re-queried
	EventOperation        EventType = "operation"         // op state transition

	// Notifications and logs
	EventNotification EventType = "notification"
	EventLog          EventType = "log"

	// Auth
	EventAuthChanged EventType = "auth_changed" // token stored or cleared
)

// LogLevel defines log severity levels
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// NewBase stamps a BaseEvent with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, Time: time.Now()}
}

// LogEvent represents log messages
type LogEvent struct {
	BaseEvent
	Level     LogLevel
	Message   string
	Operation string
	Error     error
}

// NotificationEvent carries a user-facing status message.
type NotificationEvent struct {
	BaseEvent
	ID      uint64
	Kind    string // info, success, warning, error
	Message string
	Expires time.Time
}

// AuthChangedEvent is published when a token is stored or cleared.
type AuthChangedEvent struct {
	BaseEvent
	Email    string
	LoggedIn bool
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	droppedEvents atomic.Int64
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	switch {
	case bufferSize <= 0:
		bufferSize = constants.EventBusDefaultBuffer
	case bufferSize > constants.EventBusMaxBuffer:
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// closedChannel is handed out after Close so receivers exit immediately.
func closedChannel() chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return closedChannel()
	}
	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return closedChannel()
	}
	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish delivers an event without blocking. Subscribers whose buffer is
// full miss the event and the drop counter is bumped.
// A nil bus is a valid no-op publisher.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}
	for _, ch := range eb.subscribers[event.Type()] {
		eb.offer(ch, event)
	}
	for _, ch := range eb.all {
		eb.offer(ch, event)
	}
}

func (eb *EventBus) offer(ch chan Event, event Event) {
	select {
	case ch <- event:
	default:
		eb.droppedEvents.Add(1)
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishLog is a convenience method for publishing log events
func (eb *EventBus) PublishLog(level LogLevel, message, operation string, err error) {
	eb.Publish(&LogEvent{
		BaseEvent: NewBase(EventLog),
		Level:     level,
		Message:   message,
		Operation: operation,
		Error:     err,
	})
}

// Unsubscribe removes ch from every list it appears in, type-specific and
// all-events alike. The channel is not closed.
func (eb *EventBus) Unsubscribe(ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	for eventType, subs := range eb.subscribers {
		eb.subscribers[eventType] = without(subs, ch)
	}
	eb.all = without(eb.all, ch)
}

func without(subs []chan Event, ch <-chan Event) []chan Event {
	for i, sub := range subs {
		if sub == ch {
			subs[i] = subs[len(subs)-1]
			return subs[:len(subs)-1]
		}
	}
	return subs
}

// DroppedEvents returns the total number of events dropped due to full buffers
func (eb *EventBus) DroppedEvents() int64 {
	return eb.droppedEvents.Load()
}
