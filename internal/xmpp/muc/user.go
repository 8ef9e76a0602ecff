package muc

import (
	"sync"

	"github.com/meszmate/chatcore/internal/xmpp/jidutil"
	"github.com/meszmate/chatcore/internal/xmpp/privacy"
	"github.com/meszmate/chatcore/internal/xmpp/roster"
)

// ContactLookup resolves a bare JID to a roster contact.
type ContactLookup interface {
	Get(jid string) (roster.Contact, bool)
}

// ChatUser is a room occupant or a one to one partner.
type ChatUser struct {
	mu           sync.RWMutex
	jid          string
	realJID      string
	nick         string
	affiliation  Affiliation
	role         Role
	status       roster.Show
	previousNick string
	privacy      *privacy.Manager
	custom       map[string]interface{}
}

// NewChatUser creates a user. The nickname is stored unescaped and the
// status starts as unavailable.
func NewChatUser(jid, nick string, affiliation Affiliation, role Role, realJID string) *ChatUser {
	return &ChatUser{
		jid:         jid,
		realJID:     realJID,
		nick:        jidutil.UnescapeNode(nick),
		affiliation: affiliation,
		role:        role,
		status:      roster.ShowUnavailable,
		privacy:     privacy.NewManager(),
		custom:      make(map[string]interface{}),
	}
}

// JID returns the occupant or account address, "" while unknown.
func (u *ChatUser) JID() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.jid
}

// EscapedJID returns the address in wire form.
func (u *ChatUser) EscapedJID() string {
	return jidutil.EscapeJID(u.JID())
}

// SetJID changes the address.
func (u *ChatUser) SetJID(jid string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.jid = jid
}

// RealJID returns the disclosed account address, "" when hidden.
func (u *ChatUser) RealJID() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.realJID
}

// Nick returns the display nickname.
func (u *ChatUser) Nick() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.nick
}

// SetNick changes the nickname.
func (u *ChatUser) SetNick(nick string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.nick = jidutil.UnescapeNode(nick)
}

// Contact looks up the roster contact behind the real JID.
func (u *ChatUser) Contact(contacts ContactLookup) (roster.Contact, bool) {
	real := u.RealJID()
	if real == "" || contacts == nil {
		return roster.Contact{}, false
	}
	return contacts.Get(jidutil.Bare(real))
}

// Name prefers the roster name of the real JID over the nickname.
func (u *ChatUser) Name(contacts ContactLookup) string {
	if c, ok := u.Contact(contacts); ok {
		return c.DisplayName()
	}
	return u.Nick()
}

func (u *ChatUser) Role() Role {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.role
}

func (u *ChatUser) SetRole(role Role) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.role = role
}

func (u *ChatUser) Affiliation() Affiliation {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.affiliation
}

func (u *ChatUser) SetAffiliation(affiliation Affiliation) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.affiliation = affiliation
}

// IsModerator holds for moderators and owners.
func (u *ChatUser) IsModerator() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.role == RoleModerator || u.affiliation == AffiliationOwner
}

func (u *ChatUser) Status() roster.Show {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.status
}

func (u *ChatUser) SetStatus(status roster.Show) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status = status
}

// PreviousNick is only set while a nick change is reported.
func (u *ChatUser) PreviousNick() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.previousNick
}

func (u *ChatUser) SetPreviousNick(nick string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.previousNick = nick
}

// Privacy returns the user's privacy lists.
func (u *ChatUser) Privacy() *privacy.Manager {
	return u.privacy
}

// IsIgnored reports whether jid is on the ignore list.
func (u *ChatUser) IsIgnored(jid string) bool {
	return u.privacy.Contains(privacy.Ignore, jid)
}

// SetCustomData stores an extension value.
func (u *ChatUser) SetCustomData(key string, value interface{}) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.custom[key] = value
}

// CustomData returns an extension value.
func (u *ChatUser) CustomData(key string) (interface{}, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	v, ok := u.custom[key]
	return v, ok
}
