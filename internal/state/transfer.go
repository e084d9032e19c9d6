package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/document-locker/locker/internal/constants"
)

// ErrPreviewTooLarge is returned when a preview exceeds the in-memory cap.
var ErrPreviewTooLarge = errors.New("file too large to preview")

// Download streams the record's content to dst.
func (m *Manager) Download(ctx context.Context, id string, dst io.Writer) (int64, error) {
	rec, ok := m.Find(id)
	if !ok {
		return 0, fmt.Errorf("%s: %w", id, ErrUnknownRecord)
	}
	if rec.IsFolder() || !rec.HasKey() {
		return 0, fmt.Errorf("%s: %w", rec.Name, ErrNotDownloadable)
	}

	op := m.begin(OpDownload)
	defer op.settle()
	m.notifier.Info("Downloading %s...", rec.Name)

	n, err := m.api.Download(ctx, rec.Key, dst)
	op.finish(err)
	if err != nil {
		m.logger.Warn().Err(err).Str("key", rec.Key).Msg("Download failed")
		m.notifier.Error("Failed to download %s", rec.Name)
		return n, fmt.Errorf("download %s: %w", rec.Name, err)
	}
	m.notifier.Success("Downloaded %s", rec.Name)
	return n, nil
}

// PreviewKind says how a preview should be shown.
type PreviewKind int

const (
	PreviewUnavailable PreviewKind = iota
	PreviewText
	PreviewImage
)

// Preview holds previewable content for one record.
type Preview struct {
	Kind  PreviewKind
	Name  string
	Mime  string
	Size  int64
	Text  string // PreviewText
	Image []byte // PreviewImage
}

// Preview fetches text and image files into memory. Other types come back
// as PreviewUnavailable without a request.
func (m *Manager) Preview(ctx context.Context, id string) (*Preview, error) {
	rec, ok := m.Find(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownRecord)
	}
	p := &Preview{Name: rec.Name, Mime: rec.MimeType, Size: rec.SizeOrZero()}
	if rec.IsFolder() || !rec.HasKey() || !(rec.IsText() || rec.IsImage()) {
		return p, nil
	}
	if rec.SizeOrZero() > constants.PreviewMaxBytes {
		return p, fmt.Errorf("%s: %w", rec.Name, ErrPreviewTooLarge)
	}

	op := m.begin(OpPreview)
	defer op.settle()

	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, remaining: constants.PreviewMaxBytes}
	_, err := m.api.Download(ctx, rec.Key, lw)
	if err == nil && lw.exceeded {
		err = ErrPreviewTooLarge
	}
	op.finish(err)
	if err != nil {
		m.notifier.Error("Failed to load file preview")
		return nil, fmt.Errorf("preview %s: %w", rec.Name, err)
	}

	p.Size = int64(buf.Len())
	switch {
	case rec.IsImage():
		p.Kind = PreviewImage
		p.Image = buf.Bytes()
	case utf8.Valid(buf.Bytes()):
		p.Kind = PreviewText
		p.Text = buf.String()
	}
	return p, nil
}

// limitedWriter fails once more than remaining bytes are written.
type limitedWriter struct {
	w         io.Writer
	remaining int64
	exceeded  bool
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > l.remaining {
		l.exceeded = true
		return 0, ErrPreviewTooLarge
	}
	l.remaining -= int64(len(p))
	return l.w.Write(p)
}

// Storage returns the last computed storage usage.
func (m *Manager) Storage() StorageUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storage
}

// UpdateStorageUsage asks the server for total usage. When that fails the
// figure is the sum of the sizes in the current view.
func (m *Manager) UpdateStorageUsage(ctx context.Context) StorageUsage {
	op := m.begin(OpStorage)
	defer op.settle()

	used, err := m.api.StorageUsage(ctx)
	op.finish(err)

	m.mu.Lock()
	if err != nil {
		m.logger.Debug().Err(err).Msg("Storage usage unavailable, using local total")
		var sum int64
		for _, r := range m.records {
			sum += r.SizeOrZero()
		}
		m.storage = newStorageUsage(sum, false)
	} else {
		m.storage = newStorageUsage(used, true)
	}
	usage := m.storage
	m.mu.Unlock()

	m.bus.Publish(newStorageChangedEvent(usage))
	m.Render()
	return usage
}
