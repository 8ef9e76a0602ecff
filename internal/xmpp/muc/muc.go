package muc

import (
	"sort"
	"strings"
	"sync"

	"github.com/meszmate/chatcore/internal/xmpp/jidutil"
)

// Affiliation represents a MUC affiliation
type Affiliation string

const (
	AffiliationOwner   Affiliation = "owner"
	AffiliationAdmin   Affiliation = "admin"
	AffiliationMember  Affiliation = "member"
	AffiliationOutcast Affiliation = "outcast"
	AffiliationNone    Affiliation = "none"
)

// Role represents a MUC role
type Role string

const (
	RoleModerator   Role = "moderator"
	RoleParticipant Role = "participant"
	RoleVisitor     Role = "visitor"
	RoleNone        Role = "none"
)

// Occupants maps occupant full JIDs to users.
type Occupants struct {
	mu    sync.RWMutex
	items map[string]*ChatUser
}

func newOccupants() *Occupants {
	return &Occupants{items: make(map[string]*ChatUser)}
}

// Add stores u under its current JID.
func (o *Occupants) Add(u *ChatUser) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items[u.JID()] = u
}

// Remove drops the occupant with the given full JID.
func (o *Occupants) Remove(jid string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.items, jid)
}

// Get returns the occupant or nil.
func (o *Occupants) Get(jid string) *ChatUser {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.items[jid]
}

// All returns a copy of the map.
func (o *Occupants) All() map[string]*ChatUser {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]*ChatUser, len(o.items))
	for k, v := range o.items {
		out[k] = v
	}
	return out
}

// Count returns the number of occupants.
func (o *Occupants) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.items)
}

// Sorted returns the occupants ordered by nickname.
func (o *Occupants) Sorted() []*ChatUser {
	all := o.All()
	out := make([]*ChatUser, 0, len(all))
	for _, u := range all {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Nick()) < strings.ToLower(out[j].Nick())
	})
	return out
}

// Room is the state of one joined or pending room.
type Room struct {
	mu        sync.RWMutex
	jid       string
	name      string
	named     bool
	user      *ChatUser
	occupants *Occupants
	subject   string
	subjectBy string
}

// NewRoom creates an empty room state.
func NewRoom(jid string) *Room {
	return &Room{
		jid:       jidutil.Bare(jid),
		occupants: newOccupants(),
	}
}

// JID returns the bare room address.
func (r *Room) JID() string {
	return r.jid
}

// Name returns the discovered name, or the node until one is known.
func (r *Room) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.named {
		return r.name
	}
	return jidutil.Node(r.jid)
}

// HasName reports whether discovery supplied a name.
func (r *Room) HasName() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.named
}

// SetName records the discovered name.
func (r *Room) SetName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
	r.named = true
}

// User returns the local occupant, nil until the room confirmed it.
func (r *Room) User() *ChatUser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.user
}

// SetUser binds the local occupant.
func (r *Room) SetUser(u *ChatUser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.user = u
}

// Occupants returns the occupant roster.
func (r *Room) Occupants() *Occupants {
	return r.occupants
}

// Subject returns the subject and who set it.
func (r *Room) Subject() (subject, by string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.subject, r.subjectBy
}

// SetSubject records the room subject.
func (r *Room) SetSubject(subject, by string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subject = subject
	r.subjectBy = by
}

// Manager is the room registry.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewManager creates a new MUC manager
func NewManager() *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
	}
}

func roomKey(jid string) string {
	return strings.ToLower(jidutil.Bare(jid))
}

// Create returns the room for jid, creating it when absent.
func (m *Manager) Create(jid string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := roomKey(jid)
	if room, ok := m.rooms[k]; ok {
		return room
	}
	room := NewRoom(jid)
	m.rooms[k] = room
	return room
}

// Get returns the room or nil.
func (m *Manager) Get(jid string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[roomKey(jid)]
}

// Remove drops the room.
func (m *Manager) Remove(jid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomKey(jid))
}

// All returns a copy of the registry keyed by bare room JID.
func (m *Manager) All() map[string]*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Room, len(m.rooms))
	for _, room := range m.rooms {
		out[room.JID()] = room
	}
	return out
}

// JIDs returns the sorted room addresses.
func (m *Manager) JIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.rooms))
	for _, room := range m.rooms {
		out = append(out, room.JID())
	}
	sort.Strings(out)
	return out
}

// Count returns the number of rooms.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Clear removes every room.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms = make(map[string]*Room)
}
