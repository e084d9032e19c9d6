package notify

import (
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/document-locker/locker/internal/logging"
)

// DesktopSink mirrors warnings and errors (and, optionally, everything) as
// native desktop notifications.
type DesktopSink struct {
	logger *logging.Logger
	send   func(title, message string) error

	mu      sync.RWMutex
	enabled bool
	all     bool
}

// NewDesktopSink creates a desktop sink. With all=false only warnings and
// errors reach the desktop.
func NewDesktopSink(enabled, all bool, logger *logging.Logger) *DesktopSink {
	if logger == nil {
		logger = logging.Nop()
	}
	return &DesktopSink{
		logger:  logger,
		enabled: enabled,
		all:     all,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// SetEnabled enables or disables desktop notifications.
func (d *DesktopSink) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// IsEnabled returns whether desktop notifications are enabled.
func (d *DesktopSink) IsEnabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

func (d *DesktopSink) Show(n Notification) {
	d.mu.RLock()
	enabled, all := d.enabled, d.all
	d.mu.RUnlock()

	if !enabled {
		return
	}
	if !all && n.Kind != KindWarning && n.Kind != KindError {
		return
	}
	if err := d.send(title(n.Kind), truncate(n.Message, 200)); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to send desktop notification")
	}
}

// Bell sounds the terminal/system bell; used when a batch finishes with errors.
func (d *DesktopSink) Bell() {
	if !d.IsEnabled() {
		return
	}
	if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
		d.logger.Debug().Err(err).Msg("beep failed")
	}
}

func title(k Kind) string {
	switch k {
	case KindSuccess:
		return "Document Locker: done"
	case KindWarning:
		return "Document Locker: warning"
	case KindError:
		return "Document Locker: error"
	default:
		return "Document Locker"
	}
}

// truncate shortens s to at most max runes, ending with "..." when cut.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
