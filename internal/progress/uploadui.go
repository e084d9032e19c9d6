package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/document-locker/locker/internal/constants"
)

// UploadUI draws one mpb bar per file of an upload batch.
type UploadUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	totalFiles int
	started    atomic.Int32
	completed  atomic.Int32

	mu sync.Mutex // guards writes in non-terminal mode
}

// NewUploadUI creates the UI for totalFiles uploads on out.
func NewUploadUI(totalFiles int, out *os.File) *UploadUI {
	isTerminal := IsTerminal(out)

	var p *mpb.Progress
	if isTerminal {
		enableANSI(out)
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(constants.ProgressRefreshRate),
			mpb.WithWidth(100),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	var w io.Writer = io.Discard
	if out != nil {
		w = out
	}
	return &UploadUI{progress: p, out: w, isTerminal: isTerminal, totalFiles: totalFiles}
}

// FileBar is the bar for one file.
type FileBar struct {
	ui        *UploadUI
	bar       *mpb.Bar
	index     int
	name      string
	size      int64
	sent      atomic.Int64
	startTime time.Time
}

// AddFileBar registers a file. Indexes are assigned in call order.
func (u *UploadUI) AddFileBar(name string, size int64) *FileBar {
	fb := &FileBar{
		ui:        u,
		index:     int(u.started.Add(1)),
		name:      name,
		size:      size,
		startTime: time.Now(),
	}

	if u.isTerminal {
		fb.bar = u.progress.New(size,
			mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(fmt.Sprintf("[%d/%d] %s", fb.index, u.totalFiles, name), decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 60, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		u.printf("Uploading [%d/%d]: %s (%.1f MiB)\n", fb.index, u.totalFiles, name, float64(size)/(1024*1024))
	}
	return fb
}

// Progress records n more bytes sent. It matches the callback shape of an
// upload request.
func (f *FileBar) Progress(n int) {
	f.sent.Add(int64(n))
	if f.bar != nil {
		f.bar.EwmaIncrBy(n, time.Since(f.startTime))
	}
}

// Complete finishes the bar and prints a one-line result above the bars.
func (f *FileBar) Complete(err error) {
	defer f.ui.completed.Add(1)

	if err != nil {
		if f.bar != nil {
			f.bar.Abort(false)
		}
		f.ui.printf("✗ %s: %v\n", f.name, err)
		return
	}

	if f.bar != nil {
		f.bar.SetCurrent(f.size)
		f.bar.SetTotal(f.size, true)
	}
	elapsed := time.Since(f.startTime)
	f.ui.printf("✓ %s (%.1f MiB, %s)\n", f.name, float64(f.size)/(1024*1024), elapsed.Round(time.Millisecond))
}

func (u *UploadUI) printf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if u.isTerminal {
		// Through mpb so the bars redraw below the line.
		u.progress.Write([]byte(msg))
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprint(u.out, msg)
}

// Wait blocks until every bar is complete or aborted.
func (u *UploadUI) Wait() {
	u.progress.Wait()
}

// Completed returns how many files have finished.
func (u *UploadUI) Completed() int { return int(u.completed.Load()) }

// IsTerminal reports whether bars are drawn.
func (u *UploadUI) IsTerminal() bool { return u.isTerminal }
