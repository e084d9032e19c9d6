package state

import (
	"sort"

	"github.com/document-locker/locker/internal/models"
)

// FolderIndex maps a folder name to the records shown inside it. Folders
// only exist on the client: the index is never sent to the server and is
// reset whenever the root list is reloaded.
type FolderIndex struct {
	folders map[string][]models.FileRecord
}

func NewFolderIndex() *FolderIndex {
	return &FolderIndex{folders: make(map[string][]models.FileRecord)}
}

// Ensure creates an empty entry for name if none exists.
func (f *FolderIndex) Ensure(name string) {
	if _, ok := f.folders[name]; !ok {
		f.folders[name] = []models.FileRecord{}
	}
}

func (f *FolderIndex) Has(name string) bool {
	_, ok := f.folders[name]
	return ok
}

// Get returns a copy of the folder's records.
func (f *FolderIndex) Get(name string) ([]models.FileRecord, bool) {
	recs, ok := f.folders[name]
	if !ok {
		return nil, false
	}
	return cloneRecords(recs), true
}

// Put stores a copy of records under name.
func (f *FolderIndex) Put(name string, records []models.FileRecord) {
	f.folders[name] = cloneRecords(records)
}

func (f *FolderIndex) Delete(name string) {
	delete(f.folders, name)
}

// Count returns how many records the folder holds (0 when unknown).
func (f *FolderIndex) Count(name string) int {
	return len(f.folders[name])
}

func (f *FolderIndex) Names() []string {
	names := make([]string, 0, len(f.folders))
	for name := range f.folders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *FolderIndex) Reset() {
	f.folders = make(map[string][]models.FileRecord)
}

func cloneRecords(recs []models.FileRecord) []models.FileRecord {
	out := make([]models.FileRecord, len(recs))
	copy(out, recs)
	return out
}
