// Package progress shows transfer progress on the terminal: one
// progressbar for a single download, an mpb multi-bar for upload batches.
// When the output is not a terminal both fall back to plain lines.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/document-locker/locker/internal/constants"
)

// Reporter receives progress for one transfer.
type Reporter interface {
	Start(total int64, description string)
	Add(n int64)
	Finish()
	Error(err error)
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// CLIProgress draws a single bar with github.com/schollz/progressbar.
type CLIProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewCLIProgress writes to out.
func NewCLIProgress(out io.Writer) *CLIProgress {
	return &CLIProgress{out: out}
}

// Start initializes the bar. A non-positive total shows a spinner.
func (p *CLIProgress) Start(total int64, description string) {
	if total <= 0 {
		total = -1
	}
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(constants.ProgressBarWidth),
		progressbar.OptionThrottle(constants.ProgressRefreshRate),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (p *CLIProgress) Add(n int64) {
	if p.bar != nil {
		_ = p.bar.Add64(n)
	}
}

func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

func (p *CLIProgress) Error(err error) {
	if err == nil {
		return
	}
	if p.bar != nil {
		_ = p.bar.Exit()
	}
	fmt.Fprintf(p.out, "\nError: %v\n", err)
}

// LineProgress prints one line at start and one at the end; used when the
// output is not a terminal.
type LineProgress struct {
	out   io.Writer
	desc  string
	total int64
	done  atomic.Int64
}

func NewLineProgress(out io.Writer) *LineProgress {
	return &LineProgress{out: out}
}

func (p *LineProgress) Start(total int64, description string) {
	p.desc, p.total = description, total
	fmt.Fprintf(p.out, "%s...\n", description)
}

func (p *LineProgress) Add(n int64) { p.done.Add(n) }

func (p *LineProgress) Finish() {
	fmt.Fprintf(p.out, "✓ %s (%d bytes)\n", p.desc, p.done.Load())
}

func (p *LineProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "✗ %s: %v\n", p.desc, err)
	}
}

// NoOpProgress reports nothing.
type NoOpProgress struct{}

func (NoOpProgress) Start(int64, string) {}
func (NoOpProgress) Add(int64)           {}
func (NoOpProgress) Finish()             {}
func (NoOpProgress) Error(error)         {}

// NewReporter picks a bar for terminals and plain lines otherwise.
func NewReporter(out *os.File) Reporter {
	if IsTerminal(out) {
		enableANSI(out)
		return NewCLIProgress(out)
	}
	return NewLineProgress(out)
}

// Writer wraps an io.Writer and reports every write.
type Writer struct {
	w        io.Writer
	reporter Reporter
	written  atomic.Int64
}

func NewWriter(w io.Writer, reporter Reporter) *Writer {
	return &Writer{w: w, reporter: reporter}
}

func (pw *Writer) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	if n > 0 {
		pw.written.Add(int64(n))
		pw.reporter.Add(int64(n))
	}
	return n, err
}

// Written returns the bytes written so far.
func (pw *Writer) Written() int64 { return pw.written.Load() }
