// Package privacy keeps the named privacy lists of the local user.
package privacy

import (
	"sync"
)

// Ignore is the only list the client manages.
const Ignore = "ignore"

// Manager holds named lists of JIDs.
type Manager struct {
	mu    sync.RWMutex
	lists map[string][]string
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{lists: make(map[string][]string)}
}

// Toggle removes jid from the list when present and appends it otherwise.
// It returns a copy of the resulting list.
func (m *Manager) Toggle(list, jid string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.lists[list]
	for i, j := range cur {
		if j == jid {
			next := make([]string, 0, len(cur)-1)
			next = append(next, cur[:i]...)
			next = append(next, cur[i+1:]...)
			m.lists[list] = next
			return copyList(next)
		}
	}
	next := append(copyList(cur), jid)
	m.lists[list] = next
	return copyList(next)
}

// Contains reports whether jid is on the list.
func (m *Manager) Contains(list, jid string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, j := range m.lists[list] {
		if j == jid {
			return true
		}
	}
	return false
}

// Replace overwrites the list.
func (m *Manager) Replace(list string, jids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[list] = copyList(jids)
}

// Get returns a copy of the list.
func (m *Manager) Get(list string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyList(m.lists[list])
}

// Names returns the names of all known lists.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.lists))
	for name := range m.lists {
		names = append(names, name)
	}
	return names
}

func copyList(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
