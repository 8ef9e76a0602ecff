package roster

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/meszmate/chatcore/internal/xmpp/jidutil"
	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

// Subscription represents the subscription state
type Subscription string

const (
	SubscriptionNone   Subscription = "none"
	SubscriptionTo     Subscription = "to"
	SubscriptionFrom   Subscription = "from"
	SubscriptionBoth   Subscription = "both"
	SubscriptionRemove Subscription = "remove"
)

// Show is a presence availability value.
type Show string

const (
	ShowChat        Show = "chat"
	ShowAvailable   Show = "available"
	ShowAway        Show = "away"
	ShowXA          Show = "xa"
	ShowDND         Show = "dnd"
	ShowUnavailable Show = "unavailable"
)

// weight orders shows for priority ties. Lower is more present.
func (s Show) weight() int {
	switch s {
	case ShowChat, ShowDND:
		return 1
	case ShowAvailable, "":
		return 2
	case ShowAway:
		return 3
	case ShowXA:
		return 4
	case ShowUnavailable:
		return 5
	default:
		return 2
	}
}

// Resource is the last presence seen from one resource of a contact.
type Resource struct {
	Show     Show
	Status   string
	Priority string
}

func (r Resource) priority() int {
	p, err := strconv.Atoi(strings.TrimSpace(r.Priority))
	if err != nil {
		return 0
	}
	return p
}

// Contact represents a roster item together with its resources.
type Contact struct {
	JID          string
	Name         string
	Subscription Subscription
	Ask          string
	Groups       []string
	Resources    map[string]Resource
}

// FromItem builds a contact from a roster query item.
func FromItem(item stanza.RosterItem) Contact {
	return Contact{
		JID:          jidutil.UnescapeJID(item.JID),
		Name:         item.Name,
		Subscription: Subscription(item.Subscription),
		Ask:          item.Ask,
		Groups:       append([]string(nil), item.Groups...),
	}
}

// Item converts the contact back to a roster query item.
func (c Contact) Item() stanza.RosterItem {
	return stanza.RosterItem{
		JID:          jidutil.EscapeJID(c.JID),
		Name:         c.Name,
		Subscription: string(c.Subscription),
		Ask:          c.Ask,
		Groups:       append([]string(nil), c.Groups...),
	}
}

// DisplayName returns the roster name, falling back to the JID.
func (c Contact) DisplayName() string {
	if c.Name == "" {
		return c.JID
	}
	return jidutil.UnescapeNode(c.Name)
}

// Status aggregates the resources: the highest priority wins and ties go to
// the more present show. Without resources the contact is unavailable.
func (c Contact) Status() Show {
	status := ShowUnavailable
	best := 0
	seen := false
	for _, r := range c.Resources {
		show := r.Show
		if show == "" {
			show = ShowAvailable
		}
		p := r.priority()
		switch {
		case !seen || p > best:
			status, best, seen = show, p, true
		case p == best && show.weight() < status.weight():
			status = show
		}
	}
	return status
}

func (c Contact) clone() Contact {
	out := c
	out.Groups = append([]string(nil), c.Groups...)
	if c.Resources != nil {
		out.Resources = make(map[string]Resource, len(c.Resources))
		for k, v := range c.Resources {
			out.Resources[k] = v
		}
	}
	return out
}

// Manager is the roster store keyed by bare JID.
type Manager struct {
	mu      sync.RWMutex
	items   map[string]*Contact
	version string
}

// NewManager creates a new roster manager
func NewManager() *Manager {
	return &Manager{
		items: make(map[string]*Contact),
	}
}

func key(j string) string {
	return strings.ToLower(jidutil.Bare(j))
}

// Add inserts or replaces a contact. Known resources survive the update.
func (m *Manager) Add(c Contact) error {
	if _, err := jidutil.Parse(jidutil.Bare(c.JID)); err != nil {
		return err
	}
	c = c.clone()
	c.JID = jidutil.Bare(c.JID)

	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(c.JID)
	if old, ok := m.items[k]; ok && c.Resources == nil {
		c.Resources = old.Resources
	}
	m.items[k] = &c
	return nil
}

// Get returns a copy of the contact for jid.
func (m *Manager) Get(j string) (Contact, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.items[key(j)]
	if !ok {
		return Contact{}, false
	}
	return c.clone(), true
}

// Remove removes a roster item
func (m *Manager) Remove(j string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key(j))
}

// All returns a copy of every contact keyed by bare JID.
func (m *Manager) All() map[string]Contact {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Contact, len(m.items))
	for _, c := range m.items {
		out[c.JID] = c.clone()
	}
	return out
}

// Sorted returns every contact ordered by display name.
func (m *Manager) Sorted() []Contact {
	all := m.All()
	out := make([]Contact, 0, len(all))
	for _, c := range all {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].DisplayName()) < strings.ToLower(out[j].DisplayName())
	})
	return out
}

// SetPresence records the presence of a full JID. It reports whether the
// bare JID belongs to a known contact.
func (m *Manager) SetPresence(full string, r Resource) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[key(full)]
	if !ok {
		return false
	}
	if c.Resources == nil {
		c.Resources = make(map[string]Resource)
	}
	c.Resources[jidutil.Resource(full)] = r
	return true
}

// RemovePresence forgets a resource. A bare JID drops every resource.
func (m *Manager) RemovePresence(full string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[key(full)]
	if !ok {
		return false
	}
	if res := jidutil.Resource(full); res != "" {
		delete(c.Resources, res)
	} else {
		c.Resources = nil
	}
	return true
}

// Version returns the roster version last recorded.
func (m *Manager) Version() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// SetVersion records the roster version.
func (m *Manager) SetVersion(v string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version = v
}

// Clear removes all roster items
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*Contact)
	m.version = ""
}

// Count returns the number of roster items
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Groups returns all unique groups
func (m *Manager) Groups() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	groupSet := make(map[string]bool)
	for _, item := range m.items {
		for _, group := range item.Groups {
			groupSet[group] = true
		}
	}

	groups := make([]string, 0, len(groupSet))
	for group := range groupSet {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	return groups
}

// ByGroup returns items in a specific group
func (m *Manager) ByGroup(group string) []Contact {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []Contact
	for _, item := range m.items {
		for _, g := range item.Groups {
			if g == group {
				items = append(items, item.clone())
				break
			}
		}
	}
	return items
}

// Ungrouped returns items not in any group
func (m *Manager) Ungrouped() []Contact {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []Contact
	for _, item := range m.items {
		if len(item.Groups) == 0 {
			items = append(items, item.clone())
		}
	}
	return items
}
