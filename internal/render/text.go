package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/document-locker/locker/internal/constants"
	"github.com/document-locker/locker/internal/state"
)

// Text writes the view model as a table. It implements state.Renderer.
type Text struct {
	mu  sync.Mutex
	out io.Writer

	// Quiet suppresses the header and storage bar; used by one-shot commands.
	Quiet bool
}

// NewText returns a renderer that writes to w.
func NewText(w io.Writer) *Text {
	return &Text{out: w}
}

func (t *Text) Render(vm state.ViewModel) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.Quiet {
		fmt.Fprintln(t.out, Breadcrumb(vm.Path))
		if vm.Query != "" {
			fmt.Fprintf(t.out, "Search: %q (%d of %d)\n", vm.Query, len(vm.Items), vm.Total)
		}
	}

	if vm.Empty != nil {
		fmt.Fprintf(t.out, "\n  %s\n  %s\n\n", vm.Empty.Title, vm.Empty.Detail)
	} else {
		WriteTable(t.out, vm.Items)
	}

	if !t.Quiet {
		fmt.Fprintln(t.out, StorageBar(vm.Storage, constants.ProgressBarWidth))
		if n := len(vm.Selection); n > 0 {
			fmt.Fprintf(t.out, "%d selected\n", n)
		}
	}
}

// WriteTable prints one numbered row per item. Row numbers start at 1 and
// follow the order of items.
func WriteTable(w io.Writer, items []state.ViewItem) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\t \tNAME\tSIZE\tTYPE\tMODIFIED")
	for i, it := range items {
		mark := " "
		if it.Selected {
			mark = "*"
		}
		name := it.Name
		if it.IsFolder() {
			name += "/"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, mark, name, SizeLabel(it), TypeLabel(it), FormatDate(it.ModTime))
	}
	tw.Flush()
}

// WriteDetails prints the side-panel model.
func WriteDetails(w io.Writer, d state.Details) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	switch d.Kind {
	case state.DetailsRecord:
		r := d.Record
		fmt.Fprintln(tw, "File Details")
		fmt.Fprintf(tw, "Name\t%s\n", r.Name)
		kind := "File"
		if r.IsFolder() {
			kind = "Folder"
		}
		fmt.Fprintf(tw, "Type\t%s\n", kind)
		if r.IsFolder() {
			fmt.Fprintf(tw, "Items\t%d\n", d.Items)
		} else if n := r.SizeOrZero(); n > 0 {
			fmt.Fprintf(tw, "Size\t%s\n", FormatFileSize(n))
		}
		fmt.Fprintf(tw, "Modified\t%s\n", FormatDate(r.ModTime))
		if r.MimeType != "" {
			fmt.Fprintf(tw, "MIME Type\t%s\n", r.MimeType)
		}
		if r.Key != "" {
			fmt.Fprintf(tw, "Key\t%s\n", r.Key)
		}
	case state.DetailsMultiple:
		fmt.Fprintln(tw, "Multiple Selection")
		fmt.Fprintf(tw, "Selected\t%d items\n", d.Selected)
	default:
		fmt.Fprintln(tw, "Folder Details")
		fmt.Fprintf(tw, "Folder\t%s\n", d.Folder)
		fmt.Fprintf(tw, "Items\t%d\n", d.Items)
		fmt.Fprintf(tw, "Storage\t%s\n", d.Storage.Label())
	}
}

// WritePreview prints a text preview, or a one-line summary for images
// and unsupported types.
func WritePreview(w io.Writer, p *state.Preview, maxLines int) {
	fmt.Fprintf(w, "── %s ──\n", p.Name)
	switch p.Kind {
	case state.PreviewText:
		lines := strings.Split(strings.TrimRight(p.Text, "\n"), "\n")
		cut := maxLines > 0 && len(lines) > maxLines
		if cut {
			lines = lines[:maxLines]
		}
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
		if cut {
			fmt.Fprintln(w, "...")
		}
	case state.PreviewImage:
		fmt.Fprintf(w, "[image %s, %s]\n", p.Mime, FormatFileSize(int64(len(p.Image))))
	default:
		fmt.Fprintln(w, "Preview not available")
		fmt.Fprintln(w, "This file type cannot be previewed")
	}
}
