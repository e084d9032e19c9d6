package state

import (
	"fmt"
	"sort"
	"strings"

	"github.com/document-locker/locker/internal/constants"
	"github.com/document-locker/locker/internal/models"
)

// SortBy selects the display order.
type SortBy string

const (
	SortNone SortBy = ""     // server order, uploads appended
	SortName SortBy = "name" // folders first, then by name
	SortSize SortBy = "size"
	SortDate SortBy = "date"
)

// ParseSortBy accepts "", "none", "name", "size" or "date".
func ParseSortBy(s string) (SortBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SortNone, nil
	case "name":
		return SortName, nil
	case "size":
		return SortSize, nil
	case "date":
		return SortDate, nil
	}
	return SortNone, fmt.Errorf("unknown sort order %q (want name, size, date or none)", s)
}

// StorageUsage is the usage bar model.
type StorageUsage struct {
	UsedBytes  int64
	QuotaBytes int64
	FromServer bool // false when computed from the local record sizes
}

func newStorageUsage(used int64, fromServer bool) StorageUsage {
	return StorageUsage{UsedBytes: used, QuotaBytes: constants.StorageQuotaBytes, FromServer: fromServer}
}

// Percent returns the used share of the quota, capped at 100.
func (u StorageUsage) Percent() float64 {
	if u.QuotaBytes <= 0 {
		return 0
	}
	p := float64(u.UsedBytes) / float64(u.QuotaBytes) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Label renders e.g. "2.5 GB of 15 GB used".
func (u StorageUsage) Label() string {
	gb := float64(u.UsedBytes) / (1024 * 1024 * 1024)
	return fmt.Sprintf("%.1f GB of %s used", gb, constants.StorageQuotaLabel)
}

// ViewItem is one displayed row.
type ViewItem struct {
	models.FileRecord
	Selected  bool
	ItemCount int // folders only
}

// EmptyState is shown when no item survives filtering.
type EmptyState struct {
	Title  string
	Detail string
}

// ViewModel is everything a renderer needs; it is derived, never mutated.
type ViewModel struct {
	Path      []string
	Items     []ViewItem
	Total     int
	Empty     *EmptyState
	Selection []string
	Query     string
	Sort      SortBy
	Storage   StorageUsage
	Loading   bool
}

// AtRoot reports whether the view shows the top level.
func (v ViewModel) AtRoot() bool { return len(v.Path) == 0 }

// Records returns the displayed records without view decoration.
func (v ViewModel) Records() []models.FileRecord {
	out := make([]models.FileRecord, len(v.Items))
	for i, it := range v.Items {
		out[i] = it.FileRecord
	}
	return out
}

// ViewInput is the raw state DeriveView works from.
type ViewInput struct {
	Records   []models.FileRecord
	Path      []string
	Query     string
	Sort      SortBy
	Selected  func(id string) bool
	FolderLen func(name string) int
	Storage   StorageUsage
	Loading   bool
}

// DeriveView filters and orders the records and builds the view model.
// It has no side effects.
func DeriveView(in ViewInput) ViewModel {
	filtered := FilterRecords(in.Records, in.Query)
	SortRecords(filtered, in.Sort)

	items := make([]ViewItem, len(filtered))
	var selection []string
	for i, r := range filtered {
		items[i] = ViewItem{FileRecord: r}
		if in.Selected != nil && in.Selected(r.ID) {
			items[i].Selected = true
		}
		if r.IsFolder() && in.FolderLen != nil {
			items[i].ItemCount = in.FolderLen(r.Name)
		}
	}
	for _, r := range in.Records {
		if in.Selected != nil && in.Selected(r.ID) {
			selection = append(selection, r.ID)
		}
	}

	vm := ViewModel{
		Path:      append([]string(nil), in.Path...),
		Items:     items,
		Total:     len(in.Records),
		Selection: selection,
		Query:     in.Query,
		Sort:      in.Sort,
		Storage:   in.Storage,
		Loading:   in.Loading,
	}
	if len(items) == 0 {
		vm.Empty = emptyState(in.Query, len(in.Records))
	}
	return vm
}

func emptyState(query string, total int) *EmptyState {
	if strings.TrimSpace(query) != "" && total > 0 {
		return &EmptyState{
			Title:  "No files found",
			Detail: fmt.Sprintf("No files match your search for %q", query),
		}
	}
	return &EmptyState{
		Title:  "No files yet",
		Detail: "Upload files to get started",
	}
}

// FilterRecords keeps records whose name contains query, ignoring case.
// A blank query keeps everything.
func FilterRecords(records []models.FileRecord, query string) []models.FileRecord {
	q := strings.ToLower(query)
	out := make([]models.FileRecord, 0, len(records))
	for _, r := range records {
		if q == "" || strings.Contains(strings.ToLower(r.Name), q) {
			out = append(out, r)
		}
	}
	return out
}

// SortRecords orders records in place. SortNone keeps the given order.
func SortRecords(records []models.FileRecord, by SortBy) {
	if by == SortNone {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		// Folders always first
		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}
		switch by {
		case SortSize:
			return a.SizeOrZero() < b.SizeOrZero()
		case SortDate:
			return a.ModTime.Before(b.ModTime)
		default:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	})
}

// DetailsKind says what the details panel is describing.
type DetailsKind int

const (
	DetailsFolder DetailsKind = iota // nothing selected: current folder summary
	DetailsRecord                    // exactly one record selected
	DetailsMultiple                  // several records selected
)

// Details is the side-panel model.
type Details struct {
	Kind     DetailsKind
	Record   models.FileRecord
	Selected int
	Folder   string // "Home" at root
	Items    int
	Storage  StorageUsage
}
