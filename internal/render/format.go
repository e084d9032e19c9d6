// Package render turns the dashboard view model into terminal text.
package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/document-locker/locker/internal/state"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders bytes in base 1024 with at most two decimals and
// no trailing zeros: 0 -> "0 Bytes", 2097152 -> "2 MB", 1536 -> "1.5 KB".
// GB is the largest unit.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	v, i := float64(bytes), 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// FormatDate renders a date like "Mar 5, 2025".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006")
}

// SizeLabel is the size column: item count for folders, blank when the
// size is unknown or zero.
func SizeLabel(it state.ViewItem) string {
	if it.IsFolder() {
		return fmt.Sprintf("%d items", it.ItemCount)
	}
	if n := it.SizeOrZero(); n > 0 {
		return FormatFileSize(n)
	}
	return ""
}

// TypeLabel is a short type column.
func TypeLabel(it state.ViewItem) string {
	if it.IsFolder() {
		return "Folder"
	}
	if it.MimeType == "" {
		return "File"
	}
	return it.MimeType
}

// Breadcrumb renders the path as "Home / a / b".
func Breadcrumb(path []string) string {
	return strings.Join(append([]string{"Home"}, path...), " / ")
}

// StorageBar renders a fixed-width usage bar followed by the label.
func StorageBar(u state.StorageUsage, width int) string {
	if width <= 0 {
		width = 20
	}
	filled := int(math.Round(u.Percent() / 100 * float64(width)))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("[%s%s] %5.1f%%  %s",
		strings.Repeat("#", filled), strings.Repeat(".", width-filled), u.Percent(), u.Label())
}
