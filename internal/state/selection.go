package state

import "sort"

// SelectionSet is the set of selected record IDs. Not safe for concurrent
// use; the Manager guards it with its own lock.
type SelectionSet struct {
	ids map[string]bool
}

// NewSelectionSet returns an empty selection.
func NewSelectionSet() *SelectionSet {
	return &SelectionSet{ids: make(map[string]bool)}
}

func (s *SelectionSet) Has(id string) bool { return s.ids[id] }

func (s *SelectionSet) Len() int { return len(s.ids) }

func (s *SelectionSet) Add(id string) { s.ids[id] = true }

func (s *SelectionSet) Remove(id string) { delete(s.ids, id) }

// Toggle flips id and reports whether it is now selected.
func (s *SelectionSet) Toggle(id string) bool {
	if s.ids[id] {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = true
	return true
}

// Only replaces the selection with id.
func (s *SelectionSet) Only(id string) {
	s.ids = map[string]bool{id: true}
}

func (s *SelectionSet) Clear() {
	s.ids = make(map[string]bool)
}

// IDs returns the selected IDs in sorted order.
func (s *SelectionSet) IDs() []string {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Prune drops every ID for which keep returns false and reports whether
// anything was removed.
func (s *SelectionSet) Prune(keep func(id string) bool) bool {
	changed := false
	for id := range s.ids {
		if !keep(id) {
			delete(s.ids, id)
			changed = true
		}
	}
	return changed
}
