package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/document-locker/locker/internal/api"
	"github.com/document-locker/locker/internal/constants"
	"github.com/document-locker/locker/internal/debounce"
	"github.com/document-locker/locker/internal/events"
	"github.com/document-locker/locker/internal/logging"
	"github.com/document-locker/locker/internal/models"
	"github.com/document-locker/locker/internal/notify"
)

var (
	ErrUnknownRecord    = errors.New("no such item")
	ErrNotAFolder       = errors.New("not a folder")
	ErrNoSuchFolder     = errors.New("no such folder")
	ErrFolderExists     = errors.New("folder already exists")
	ErrNameInUse        = errors.New("name already in use")
	ErrEmptyName        = errors.New("name is empty")
	ErrInvalidPathIndex = errors.New("path index out of range")
	ErrNotDownloadable  = errors.New("item is not stored on the server")
)

// API is the subset of *api.Client the manager needs.
type API interface {
	BaseURL() string
	ListFiles(ctx context.Context) ([]models.FileInfo, error)
	Upload(ctx context.Context, up api.UploadRequest) (*models.MessageResponse, error)
	Delete(ctx context.Context, key string) error
	Download(ctx context.Context, key string, w io.Writer) (int64, error)
	StorageUsage(ctx context.Context) (int64, error)
}

// Renderer displays a view model. Render calls are serialized.
type Renderer interface {
	Render(vm ViewModel)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ViewModel)

func (f RendererFunc) Render(vm ViewModel) { f(vm) }

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(message string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(message string) bool

func (f ConfirmFunc) Confirm(message string) bool { return f(message) }

// Options configures a Manager.
type Options struct {
	API      API
	Renderer Renderer

	// Notifier receives status notifications. A private center is created when nil.
	Notifier *notify.Center
	EventBus *events.EventBus
	Logger   *logging.Logger

	// SearchDebounce is the quiet period after SetSearchFilter. Zero means 300ms.
	SearchDebounce time.Duration

	// MaxConcurrent bounds batch uploads/deletes. Zero means unbounded.
	MaxConcurrent int
}

// Manager is the dashboard view-model. Construct one with New and share it;
// every method is safe for concurrent use. State is mutated under one lock
// and network calls always run outside it.
type Manager struct {
	api      API
	renderer Renderer
	notifier *notify.Center
	bus      *events.EventBus
	logger   *logging.Logger
	search   *debounce.Debouncer
	limit    int
	now      func() time.Time

	mu        sync.Mutex
	records   []models.FileRecord
	path      []string
	selection *SelectionSet
	folders   *FolderIndex
	query     string
	sortBy    SortBy
	storage   StorageUsage
	issued    map[string]bool

	inFlight atomic.Int32
	renderMu sync.Mutex
}

// New creates a Manager. It does not contact the server; call Refresh.
func New(opts Options) (*Manager, error) {
	if opts.API == nil {
		return nil, errors.New("state: API is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewCenter(notify.Config{EventBus: opts.EventBus, Logger: opts.Logger})
	}
	if opts.SearchDebounce <= 0 {
		opts.SearchDebounce = constants.SearchDebounceDelay
	}

	return &Manager{
		api:       opts.API,
		renderer:  opts.Renderer,
		notifier:  opts.Notifier,
		bus:       opts.EventBus,
		logger:    opts.Logger,
		search:    debounce.New(opts.SearchDebounce),
		limit:     opts.MaxConcurrent,
		now:       time.Now,
		selection: NewSelectionSet(),
		folders:   NewFolderIndex(),
		storage:   newStorageUsage(0, false),
		issued:    make(map[string]bool),
	}, nil
}

// Notifier returns the notification center in use.
func (m *Manager) Notifier() *notify.Center { return m.notifier }

// Close cancels a pending search render.
func (m *Manager) Close() {
	m.search.Cancel()
}

// Loading reports whether any operation is in flight.
func (m *Manager) Loading() bool {
	return m.inFlight.Load() > 0
}

func (m *Manager) begin(name string) *OpState {
	m.inFlight.Add(1)
	op := &OpState{
		Name:   name,
		status: OpIdle,
		bus:    m.bus,
		done:   func() { m.inFlight.Add(-1) },
	}
	op.start()
	return op
}

// newIDLocked issues a record ID that has never been used in this session.
func (m *Manager) newIDLocked() string {
	for {
		id := uuid.NewString()
		if !m.issued[id] {
			m.issued[id] = true
			return id
		}
	}
}

func (m *Manager) recordFromInfo(fi models.FileInfo) models.FileRecord {
	key := fi.Key
	if key == "" {
		key = fi.Name
	}
	var size *int64
	if fi.Size > 0 {
		size = models.SizePtr(fi.Size)
	}
	mod := fi.ModTime()
	if mod.IsZero() {
		mod = m.now()
	}
	return models.FileRecord{
		ID:           m.newIDLocked(),
		Name:         fi.Name,
		Kind:         models.KindFile,
		Size:         size,
		ModTime:      mod,
		Key:          key,
		MimeType:     fi.ContentType,
		ThumbnailURL: models.ThumbnailFor(m.api.BaseURL(), key, fi.ContentType),
	}
}

// View derives the current view model.
func (m *Manager) View() ViewModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

func (m *Manager) viewLocked() ViewModel {
	return DeriveView(ViewInput{
		Records:   m.records,
		Path:      m.path,
		Query:     m.query,
		Sort:      m.sortBy,
		Selected:  m.selection.Has,
		FolderLen: m.folders.Count,
		Storage:   m.storage,
		Loading:   m.Loading(),
	})
}

// Render re-derives the view and hands it to the renderer.
func (m *Manager) Render() {
	m.renderMu.Lock()
	defer m.renderMu.Unlock()

	vm := m.View()
	if m.renderer != nil {
		m.renderer.Render(vm)
	}
	m.bus.Publish(newFilesChangedEvent(vm.Path, vm.Records(), vm.Total))
}

// Records returns a copy of every record in the current folder, unfiltered.
func (m *Manager) Records() []models.FileRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRecords(m.records)
}

// Find returns the record with id in the current folder.
func (m *Manager) Find(id string) (models.FileRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(id)
	if i < 0 {
		return models.FileRecord{}, false
	}
	return m.records[i], true
}

func (m *Manager) indexLocked(id string) int {
	for i, r := range m.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// replaceRecordsLocked swaps the list and prunes the selection to match.
// It reports whether the selection changed.
func (m *Manager) replaceRecordsLocked(recs []models.FileRecord) bool {
	m.records = recs
	return m.pruneSelectionLocked()
}

func (m *Manager) pruneSelectionLocked() bool {
	present := make(map[string]bool, len(m.records))
	for _, r := range m.records {
		present[r.ID] = true
	}
	return m.selection.Prune(func(id string) bool { return present[id] })
}

// syncFolderLocked writes the visible list back into the folder index when
// inside a folder, so changes survive navigating away and back.
func (m *Manager) syncFolderLocked() {
	if n := len(m.path); n > 0 {
		m.folders.Put(m.path[n-1], m.records)
	}
}

func (m *Manager) publishSelection(changed bool) {
	if !changed {
		return
	}
	m.bus.Publish(newSelectionChangedEvent(m.SelectedIDs()))
}

// Refresh reloads the root list from the server. The server has no folders,
// so a refresh from inside one returns to root. Failures never reach the
// caller: the list becomes empty and a warning is shown instead.
func (m *Manager) Refresh(ctx context.Context) error {
	op := m.begin(OpRefresh)
	defer op.settle()

	m.mu.Lock()
	left := len(m.path) > 0
	m.path = nil
	m.mu.Unlock()
	if left {
		m.bus.Publish(newPathChangedEvent(nil))
	}

	infos, err := m.api.ListFiles(ctx)
	if err != nil {
		op.finish(err)
		m.logger.Warn().Err(err).Msg("Failed to load files from server")

		m.mu.Lock()
		m.folders.Reset()
		changed := m.replaceRecordsLocked(nil)
		m.mu.Unlock()

		m.publishSelection(changed)
		m.Render()
		m.notifier.Warning("Failed to load files from server. Working in offline mode.")
		return nil
	}

	m.mu.Lock()
	recs := make([]models.FileRecord, 0, len(infos))
	for _, fi := range infos {
		recs = append(recs, m.recordFromInfo(fi))
	}
	m.folders.Reset()
	changed := m.replaceRecordsLocked(recs)
	m.mu.Unlock()

	op.finish(nil)
	m.logger.Debug().Int("count", len(recs)).Msg("Loaded files from server")
	m.publishSelection(changed)
	m.Render()
	m.notifier.Success("Loaded %d files from server", len(recs))
	return nil
}

// Path returns a copy of the navigation path; empty means root.
func (m *Manager) Path() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.path...)
}

// NavigateInto opens a folder listed in the current view.
func (m *Manager) NavigateInto(ctx context.Context, folderName string) error {
	m.mu.Lock()
	found := false
	for _, r := range m.records {
		if r.Name == folderName {
			if !r.IsFolder() {
				m.mu.Unlock()
				return fmt.Errorf("%s: %w", folderName, ErrNotAFolder)
			}
			found = true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", folderName, ErrNoSuchFolder)
	}
	m.syncFolderLocked()
	m.path = append(m.path, folderName)
	m.mu.Unlock()

	return m.land(ctx)
}

// NavigateBack pops one path segment. At root it does nothing.
func (m *Manager) NavigateBack(ctx context.Context) error {
	m.mu.Lock()
	if len(m.path) == 0 {
		m.mu.Unlock()
		return nil
	}
	m.syncFolderLocked()
	m.path = m.path[:len(m.path)-1]
	m.mu.Unlock()

	return m.land(ctx)
}

// NavigateTo truncates the path after index; -1 is root, as in a breadcrumb.
func (m *Manager) NavigateTo(ctx context.Context, index int) error {
	m.mu.Lock()
	if index < -1 || index >= len(m.path) {
		n := len(m.path)
		m.mu.Unlock()
		return fmt.Errorf("%w: %d (depth %d)", ErrInvalidPathIndex, index, n)
	}
	m.syncFolderLocked()
	m.path = m.path[:index+1]
	m.mu.Unlock()

	return m.land(ctx)
}

// NavigateRoot returns to the top level and reloads it.
func (m *Manager) NavigateRoot(ctx context.Context) error {
	m.mu.Lock()
	m.syncFolderLocked()
	m.path = nil
	m.mu.Unlock()

	return m.land(ctx)
}

// land loads whatever the path now points at.
func (m *Manager) land(ctx context.Context) error {
	path := m.Path()
	m.bus.Publish(newPathChangedEvent(path))

	if len(path) == 0 {
		return m.Refresh(ctx)
	}
	m.openFolder(path[len(path)-1])
	return nil
}

func (m *Manager) openFolder(name string) {
	op := m.begin(OpOpenFolder)
	defer op.settle()

	m.mu.Lock()
	recs, _ := m.folders.Get(name)
	m.folders.Ensure(name)
	changed := m.replaceRecordsLocked(recs)
	m.mu.Unlock()

	op.finish(nil)
	m.publishSelection(changed)
	m.Render()
	m.notifier.Success("Opened folder: %s", name)
}

// CreateFolder adds an empty, client-only folder to the current view.
func (m *Manager) CreateFolder(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	m.mu.Lock()
	if m.folders.Has(name) || m.nameInUseLocked(name, -1) {
		m.mu.Unlock()
		m.notifier.Warning("Folder already exists: %s", name)
		return fmt.Errorf("%s: %w", name, ErrFolderExists)
	}
	m.records = append(m.records, models.FileRecord{
		ID:      m.newIDLocked(),
		Name:    name,
		Kind:    models.KindFolder,
		Size:    models.SizePtr(0),
		ModTime: m.now(),
	})
	m.folders.Ensure(name)
	m.syncFolderLocked()
	m.mu.Unlock()

	m.Render()
	m.notifier.Success("Created folder: %s", name)
	return nil
}

// Rename changes a record's display name locally. The server is not told.
// Blank and unchanged names are ignored.
func (m *Manager) Rename(id, newName string) error {
	trimmed := strings.TrimSpace(newName)

	m.mu.Lock()
	i := m.indexLocked(id)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", id, ErrUnknownRecord)
	}
	old := m.records[i]
	if trimmed == "" || trimmed == old.Name {
		m.mu.Unlock()
		return nil
	}
	if m.nameInUseLocked(trimmed, i) || (old.IsFolder() && m.folders.Has(trimmed)) {
		m.mu.Unlock()
		m.notifier.Warning("An item named %s already exists", trimmed)
		return fmt.Errorf("%s: %w", trimmed, ErrNameInUse)
	}
	m.records[i].Name = trimmed
	if old.IsFolder() {
		if recs, ok := m.folders.Get(old.Name); ok {
			m.folders.Delete(old.Name)
			m.folders.Put(trimmed, recs)
		}
	}
	m.syncFolderLocked()
	m.mu.Unlock()

	m.Render()
	m.notifier.Success("Renamed to: %s", trimmed)
	return nil
}

// nameInUseLocked reports whether a record other than skip is called name.
func (m *Manager) nameInUseLocked(name string, skip int) bool {
	for i, r := range m.records {
		if i != skip && r.Name == name {
			return true
		}
	}
	return false
}

// RenameSelected renames the single selected record.
func (m *Manager) RenameSelected(newName string) error {
	ids := m.SelectedIDs()
	if len(ids) != 1 {
		m.notifier.Warning("Please select exactly one item to rename")
		return nil
	}
	return m.Rename(ids[0], newName)
}

// Query returns the stored search query.
func (m *Manager) Query() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query
}

// SetSearchFilter stores the query and schedules a render once typing
// pauses for the debounce delay.
func (m *Manager) SetSearchFilter(query string) {
	m.mu.Lock()
	m.query = query
	m.mu.Unlock()

	m.bus.Publish(newSearchChangedEvent(query))
	m.search.Trigger(m.Render)
}

// SubmitSearch renders now, dropping any pending debounced render.
func (m *Manager) SubmitSearch() {
	m.search.Flush(m.Render)

	if q := m.Query(); strings.TrimSpace(q) != "" {
		m.notifier.Info("Searching for: %s", q)
	}
}

// SetSort changes the display order and re-renders.
func (m *Manager) SetSort(by SortBy) {
	m.mu.Lock()
	m.sortBy = by
	m.mu.Unlock()
	m.Render()
}

// SelectedIDs returns the selected IDs in display order.
func (m *Manager) SelectedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedIDsLocked()
}

func (m *Manager) selectedIDsLocked() []string {
	ids := make([]string, 0, m.selection.Len())
	for _, r := range m.records {
		if m.selection.Has(r.ID) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// IsSelected reports whether id is selected.
func (m *Manager) IsSelected(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selection.Has(id)
}

// ToggleSelection flips one record. Unknown IDs are ignored.
func (m *Manager) ToggleSelection(id string) {
	m.updateSelection(id, func(s *SelectionSet) { s.Toggle(id) })
}

// SelectOnly replaces the selection with one record.
func (m *Manager) SelectOnly(id string) {
	m.updateSelection(id, func(s *SelectionSet) { s.Only(id) })
}

// SelectAll selects every record currently displayed.
func (m *Manager) SelectAll() {
	m.mu.Lock()
	for _, r := range FilterRecords(m.records, m.query) {
		m.selection.Add(r.ID)
	}
	m.mu.Unlock()

	m.publishSelection(true)
	m.Render()
}

func (m *Manager) ClearSelection() {
	m.mu.Lock()
	m.selection.Clear()
	m.mu.Unlock()

	m.publishSelection(true)
	m.Render()
}

func (m *Manager) updateSelection(id string, fn func(*SelectionSet)) {
	m.mu.Lock()
	if m.indexLocked(id) < 0 {
		m.mu.Unlock()
		return
	}
	fn(m.selection)
	m.mu.Unlock()

	m.publishSelection(true)
	m.Render()
}

// Share is a placeholder action: it only acknowledges the selection.
func (m *Manager) Share() int {
	n := len(m.SelectedIDs())
	if n == 0 {
		m.notifier.Warning("Please select files to share")
		return 0
	}
	m.notifier.Info("Sharing %d item(s)", n)
	return n
}

// Details builds the side panel for the current selection.
func (m *Manager) Details() Details {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := Details{Folder: "Home", Items: len(m.records), Storage: m.storage}
	if n := len(m.path); n > 0 {
		d.Folder = m.path[n-1]
	}

	ids := m.selectedIDsLocked()
	switch len(ids) {
	case 0:
		d.Kind = DetailsFolder
	case 1:
		d.Kind = DetailsRecord
		d.Selected = 1
		d.Record = m.records[m.indexLocked(ids[0])]
		if d.Record.IsFolder() {
			d.Items = m.folders.Count(d.Record.Name)
		}
	default:
		d.Kind = DetailsMultiple
		d.Selected = len(ids)
	}
	return d
}
