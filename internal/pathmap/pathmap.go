// Package pathmap is CLEO's file-path rewriter: an absolute-path to
// replacement-path map consulted by the hooked host path resolver
// (spec.md §4 component 4).
package pathmap

import (
	"sync"

	"golang.org/x/text/cases"
)

// Map is a process-wide, mutex-guarded, case-insensitive path rewriter.
type Map struct {
	mu      sync.RWMutex
	entries map[string]string
	fold    cases.Caser
}

// New returns an empty Map.
func New() *Map {
	return &Map{
		entries: make(map[string]string),
		fold:    cases.Fold(),
	}
}

// key normalizes an absolute path for case-insensitive lookup. Windows/iOS
// hosts are not case sensitive on their resource volumes, matching the
// "case-insensitive name -> replacement-path map" rule used throughout
// the streaming engine.
func (m *Map) key(absPath string) string {
	return m.fold.String(absPath)
}

// Register maps original (an absolute path as the host would present it)
// to replacement (a path on disk CLEO should serve instead).
func (m *Map) Register(original, replacement string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.key(original)] = replacement
}

// Resolve returns the replacement path for original, if one is registered.
// Implements the "post" hook semantics of spec.md §6: the caller calls the
// host original first, then passes its returned path through Resolve.
func (m *Map) Resolve(original string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[m.key(original)]
	return v, ok
}

// Len returns the number of registered rewrites.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
