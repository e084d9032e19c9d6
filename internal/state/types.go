// Package state holds the dashboard view-model for the document locker.
// The Manager owns the record list, navigation path, selection and search
// query, talks to the file API and publishes an event for every change so
// any frontend (the interactive shell, tests) can follow along.
package state

import (
	"github.com/document-locker/locker/internal/events"
	"github.com/document-locker/locker/internal/models"
)

// FilesChangedEvent is published after every render.
type FilesChangedEvent struct {
	events.BaseEvent
	Path  []string
	Items []models.FileRecord // filtered, as displayed
	Total int                 // records in the current folder before filtering
}

// SelectionChangedEvent is published when the selection changes.
type SelectionChangedEvent struct {
	events.BaseEvent
	SelectedIDs []string
}

// PathChangedEvent is published when the navigation path changes.
type PathChangedEvent struct {
	events.BaseEvent
	Path []string
}

// SearchChangedEvent is published when the search query is stored.
type SearchChangedEvent struct {
	events.BaseEvent
	Query string
}

// StorageChangedEvent is published when storage usage is recomputed.
type StorageChangedEvent struct {
	events.BaseEvent
	Usage StorageUsage
}

// OperationEvent is published on every op state transition.
type OperationEvent struct {
	events.BaseEvent
	Op     string
	Status OpStatus
	Err    error
}

func newFilesChangedEvent(path []string, items []models.FileRecord, total int) *FilesChangedEvent {
	return &FilesChangedEvent{
		BaseEvent: events.NewBase(events.EventFilesChanged),
		Path:      path,
		Items:     items,
		Total:     total,
	}
}

func newSelectionChangedEvent(ids []string) *SelectionChangedEvent {
	return &SelectionChangedEvent{
		BaseEvent:   events.NewBase(events.EventSelectionChanged),
		SelectedIDs: ids,
	}
}

func newPathChangedEvent(path []string) *PathChangedEvent {
	return &PathChangedEvent{
		BaseEvent: events.NewBase(events.EventPathChanged),
		Path:      path,
	}
}

func newSearchChangedEvent(query string) *SearchChangedEvent {
	return &SearchChangedEvent{
		BaseEvent: events.NewBase(events.EventSearchChanged),
		Query:     query,
	}
}

func newStorageChangedEvent(u StorageUsage) *StorageChangedEvent {
	return &StorageChangedEvent{
		BaseEvent: events.NewBase(events.EventStorageChanged),
		Usage:     u,
	}
}

func newOperationEvent(op string, status OpStatus, err error) *OperationEvent {
	return &OperationEvent{
		BaseEvent: events.NewBase(events.EventOperation),
		Op:        op,
		Status:    status,
		Err:       err,
	}
}
