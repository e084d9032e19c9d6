package notify

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/document-locker/locker/internal/events"
)

type recordingSink struct {
	mu   sync.Mutex
	seen []Notification
}

func (r *recordingSink) Show(n Notification) {
	r.mu.Lock()
	r.seen = append(r.seen, n)
	r.mu.Unlock()
}

func TestNotifyAutoDismiss(t *testing.T) {
	c := NewCenter(Config{TTL: 30 * time.Millisecond})
	defer c.Close()

	n := c.Success("Loaded %d files from server", 3)
	if n.Message != "Loaded 3 files from server" || n.Kind != KindSuccess {
		t.Errorf("Notify() = %+v", n)
	}
	if len(c.Active()) != 1 {
		t.Fatalf("Active() = %d, want 1", len(c.Active()))
	}

	time.Sleep(100 * time.Millisecond)
	if len(c.Active()) != 0 {
		t.Errorf("Active() = %d after TTL, want 0", len(c.Active()))
	}
}

func TestNotifyFanOut(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventNotification)

	sink := &recordingSink{}
	var console bytes.Buffer
	c := NewCenter(Config{EventBus: bus}, sink, NewConsoleSink(&console))
	defer c.Close()

	c.Warning("Failed to load files from server. Working in offline mode.")

	if len(sink.seen) != 1 || sink.seen[0].Kind != KindWarning {
		t.Errorf("sink saw %+v", sink.seen)
	}
	if got := console.String(); got != "[!] Failed to load files from server. Working in offline mode.\n" {
		t.Errorf("console = %q", got)
	}

	select {
	case ev := <-ch:
		if ev.(*events.NotificationEvent).Kind != "warning" {
			t.Errorf("event kind = %q", ev.(*events.NotificationEvent).Kind)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for notification event")
	}
}

func TestDismissAndLatest(t *testing.T) {
	c := NewCenter(Config{TTL: time.Minute})
	defer c.Close()

	first := c.Info("one")
	c.Error("two")

	latest, ok := c.Latest()
	if !ok || latest.Message != "two" {
		t.Errorf("Latest() = %+v, %v", latest, ok)
	}

	c.Dismiss(first.ID)
	c.Dismiss(9999)
	if active := c.Active(); len(active) != 1 || active[0].Message != "two" {
		t.Errorf("Active() = %+v", active)
	}
}

func TestNotifyAfterClose(t *testing.T) {
	c := NewCenter(Config{})
	c.Close()
	if n := c.Info("late"); n.ID != 0 {
		t.Errorf("Notify after Close returned %+v", n)
	}
}

func TestDesktopSinkFilter(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		all      bool
		kind     Kind
		wantSent bool
	}{
		{"disabled", false, true, KindError, false},
		{"error", true, false, KindError, true},
		{"warning", true, false, KindWarning, true},
		{"success filtered", true, false, KindSuccess, false},
		{"success with all", true, true, KindSuccess, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDesktopSink(tt.enabled, tt.all, nil)
			sent := false
			d.send = func(title, message string) error {
				sent = true
				return nil
			}
			d.Show(Notification{Kind: tt.kind, Message: "m"})
			if sent != tt.wantSent {
				t.Errorf("sent = %v, want %v", sent, tt.wantSent)
			}
		})
	}
}

func TestDesktopSinkSendError(t *testing.T) {
	d := NewDesktopSink(true, true, nil)
	d.send = func(title, message string) error { return errors.New("no dbus") }
	d.Show(Notification{Kind: KindError, Message: "m"})
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10c", 10, "exactly10c"},
		{"this is a long string", 10, "this is..."},
		{"", 10, ""},
		{"abcd", 3, "abc"},
	}

	for _, tt := range tests {
		if got := truncate(tt.input, tt.maxLen); got != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
		}
	}
}
