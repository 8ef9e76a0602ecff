package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/meszmate/chatcore/internal/event"
	"github.com/meszmate/chatcore/internal/xmpp/jidutil"
	"github.com/meszmate/chatcore/internal/xmpp/muc"
	"github.com/meszmate/chatcore/internal/xmpp/roster"
	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

func joinPresence(from, role, affiliation string, codes ...int) string {
	status := ""
	for _, code := range codes {
		status += fmt.Sprintf(`<status code="%d"/>`, code)
	}
	return fmt.Sprintf(`<presence xmlns="jabber:client" from="%s">
  <x xmlns="http://jabber.org/protocol/muc#user">
    <item affiliation="%s" role="%s"/>%s
  </x>
</presence>`, from, affiliation, role, status)
}

func leavePresence(from, item string, codes ...int) string {
	status := ""
	for _, code := range codes {
		status += fmt.Sprintf(`<status code="%d"/>`, code)
	}
	return fmt.Sprintf(`<presence xmlns="jabber:client" from="%s" type="unavailable">
  <x xmlns="http://jabber.org/protocol/muc#user">%s%s</x>
</presence>`, from, item, status)
}

func TestOccupantCountTracksJoinsAndLeaves(t *testing.T) {
	h := newHarness(t)
	for _, nick := range []string{"alice", "bob", "carol", "alice"} {
		h.handle(joinPresence("room@conf.example.com/"+nick, "participant", "none"))
	}
	h.handle(leavePresence("room@conf.example.com/bob", `<item affiliation="none" role="none"/>`))

	room := h.core.Rooms.Get("room@conf.example.com")
	if room == nil {
		t.Fatal("room not created")
	}
	if got := room.Occupants().Count(); got != 2 {
		t.Fatalf("occupants = %d, want 2", got)
	}
	e, _ := h.last(event.RoomPresence)
	data := e.Data.(event.RoomPresenceData)
	if data.Action != event.ActionLeave || data.User.Nick() != "bob" {
		t.Fatalf("last presence = %s %s", data.Action, data.User.Nick())
	}
}

func TestSelfJoinBindsLocalOccupant(t *testing.T) {
	h := newHarness(t)
	h.handle(joinPresence("room@conf.example.com/me", "moderator", "owner", 110, 201))

	room := h.core.Rooms.Get("room@conf.example.com")
	if room.User() == nil || room.User().Nick() != "me" {
		t.Fatal("local occupant not bound")
	}
	e, _ := h.last(event.RoomPresence)
	data := e.Data.(event.RoomPresenceData)
	if !data.IsNewRoom || data.CurrentUser != room.User() || data.Action != event.ActionJoin {
		t.Fatalf("payload = %+v", data)
	}
	if !room.User().IsModerator() {
		t.Fatal("owner is not a moderator")
	}
}

func TestNickAssignedByServerBindsLocalOccupant(t *testing.T) {
	h := newHarness(t)
	h.handle(joinPresence("room@conf.example.com/me_2", "participant", "none", 210))
	room := h.core.Rooms.Get("room@conf.example.com")
	if room.User() == nil || room.User().Nick() != "me_2" {
		t.Fatal("assigned nick not bound as local occupant")
	}
}

func TestSelfKickRemovesRoom(t *testing.T) {
	h := newHarness(t)
	h.handle(joinPresence("room@conf.example.com/me", "participant", "none", 110))
	h.handle(leavePresence("room@conf.example.com/me",
		`<item affiliation="none" role="none"><actor nick="boss"/><reason>spam</reason></item>`, 307, 110))

	if h.core.Rooms.Get("room@conf.example.com") != nil {
		t.Fatal("room still registered after self kick")
	}
	e, ok := h.last(event.SelfLeave)
	if !ok {
		t.Fatal("no self-leave event")
	}
	data := e.Data.(event.SelfLeaveData)
	if data.Type != event.ActionKick || data.Reason != "spam" || data.Actor != "boss" {
		t.Fatalf("self-leave = %+v", data)
	}
	if h.count(event.RoomPresence) != 1 {
		t.Fatalf("room presence events = %d, want only the join", h.count(event.RoomPresence))
	}
}

func TestBanOfOtherOccupant(t *testing.T) {
	h := newHarness(t)
	h.handle(joinPresence("room@conf.example.com/me", "moderator", "admin", 110))
	h.handle(joinPresence("room@conf.example.com/troll", "participant", "none"))
	h.handle(leavePresence("room@conf.example.com/troll", `<item affiliation="outcast" role="none"/>`, 301))

	e, _ := h.last(event.RoomPresence)
	if data := e.Data.(event.RoomPresenceData); data.Action != event.ActionBan {
		t.Fatalf("action = %s, want ban", data.Action)
	}
	if h.core.Rooms.Get("room@conf.example.com").Occupants().Count() != 1 {
		t.Fatal("banned occupant still present")
	}
}

func TestNickChange(t *testing.T) {
	h := newHarness(t)
	h.handle(joinPresence("alice@conf/bob", "participant", "member"))
	h.handle(leavePresence("alice@conf/bob", `<item affiliation="member" role="participant" nick="bob2"/>`, 303))

	occupants := h.core.Rooms.Get("alice@conf").Occupants()
	if occupants.Get("alice@conf/bob") != nil {
		t.Fatal("old occupant key still present")
	}
	u := occupants.Get("alice@conf/bob2")
	if u == nil {
		t.Fatal("renamed occupant missing")
	}
	if u.Nick() != "bob2" || u.PreviousNick() != "bob" {
		t.Fatalf("nick = %q, previous = %q", u.Nick(), u.PreviousNick())
	}
	e, _ := h.last(event.RoomPresence)
	if data := e.Data.(event.RoomPresenceData); data.Action != event.ActionNickChange {
		t.Fatalf("action = %s", data.Action)
	}
}

func TestRoleUpdateIsReportedAsJoin(t *testing.T) {
	h := newHarness(t)
	h.handle(joinPresence("room@conf.example.com/alice", "participant", "none"))
	h.handle(joinPresence("room@conf.example.com/alice", "moderator", "none"))

	room := h.core.Rooms.Get("room@conf.example.com")
	if room.Occupants().Count() != 1 {
		t.Fatalf("occupants = %d", room.Occupants().Count())
	}
	u := room.Occupants().Get("room@conf.example.com/alice")
	if u.Role() != muc.RoleModerator {
		t.Fatalf("role = %s", u.Role())
	}
	e, _ := h.last(event.RoomPresence)
	if data := e.Data.(event.RoomPresenceData); data.Action != event.ActionJoin {
		t.Fatalf("action = %s", data.Action)
	}
}

func TestShowSetsOccupantStatus(t *testing.T) {
	h := newHarness(t)
	h.handle(`<presence xmlns="jabber:client" from="room@conf.example.com/alice">
  <show>away</show>
  <x xmlns="http://jabber.org/protocol/muc#user"><item affiliation="none" role="participant" jid="alice@example.com/pc"/></x>
</presence>`)
	u := h.core.Rooms.Get("room@conf.example.com").Occupants().Get("room@conf.example.com/alice")
	if u.Status() != roster.ShowAway {
		t.Fatalf("status = %s", u.Status())
	}
	if u.RealJID() != "alice@example.com/pc" {
		t.Fatalf("real jid = %q", u.RealJID())
	}
}

func TestPresenceErrorRemovesRoom(t *testing.T) {
	h := newHarness(t)
	h.core.Rooms.Create("secret@conf.example.com")
	h.handle(`<presence xmlns="jabber:client" from="secret@conf.example.com/me" type="error">
  <x xmlns="http://jabber.org/protocol/muc"/>
  <error type="auth"><not-authorized xmlns="urn:ietf:params:xml:ns:xmpp-stanzas"/></error>
</presence>`)

	if h.core.Rooms.Get("secret@conf.example.com") != nil {
		t.Fatal("room still registered")
	}
	e, ok := h.last(event.PresenceError)
	if !ok {
		t.Fatal("no presence error event")
	}
	if data := e.Data.(event.PresenceErrorData); data.Kind != "not-authorized" || data.RoomName != "secret" {
		t.Fatalf("presence error = %+v", data)
	}
}

func TestIgnoredOccupantIsFlagged(t *testing.T) {
	h := newHarness(t)
	h.core.User().Privacy().Toggle("ignore", "room@conf.example.com/troll")
	h.handle(joinPresence("room@conf.example.com/troll", "participant", "none"))
	e, _ := h.last(event.RoomPresence)
	if !e.Data.(event.RoomPresenceData).Ignored {
		t.Fatal("ignored occupant not flagged")
	}
}

func TestContactPresenceUpdatesRoster(t *testing.T) {
	h := newHarness(t)
	if err := h.core.Roster.Add(roster.Contact{JID: "bob@x.com", Name: "Bob"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	h.handle(`<presence xmlns="jabber:client" from="bob@x.com/phone"><show>away</show><priority>1</priority></presence>`)
	h.handle(`<presence xmlns="jabber:client" from="bob@x.com/pc"><show>chat</show><priority>1</priority></presence>`)

	c, _ := h.core.Roster.Get("bob@x.com")
	if c.Status() != roster.ShowChat {
		t.Fatalf("status = %s", c.Status())
	}
	if h.count(event.RosterUpdated) != 2 || h.count(event.Presence) != 2 {
		t.Fatalf("events: updated=%d presence=%d", h.count(event.RosterUpdated), h.count(event.Presence))
	}

	h.handle(`<presence xmlns="jabber:client" from="bob@x.com/pc" type="unavailable"/>`)
	c, _ = h.core.Roster.Get("bob@x.com")
	if c.Status() != roster.ShowAway {
		t.Fatalf("status after unavailable = %s", c.Status())
	}
}

func TestMalformedRoomPresenceIsDropped(t *testing.T) {
	h := newHarness(t)
	p := &stanza.Presence{MUC: &stanza.MUCUser{}}
	err := h.core.handleRoomPresence(p)
	if !errors.Is(err, jidutil.ErrMalformedJID) {
		t.Fatalf("err = %v, want malformed JID", err)
	}
	if h.core.Rooms.Count() != 0 || len(h.events) != 0 {
		t.Fatal("malformed presence changed state")
	}
}

func TestJoinFromEscapedRoomNode(t *testing.T) {
	h := newHarness(t)
	h.handle(joinPresence(`user\40gmail.com@conf.example.com/alice`, "participant", "none"))
	room := h.core.Rooms.Get("user@gmail.com@conf.example.com")
	if room == nil || room.Occupants().Count() != 1 {
		t.Fatal("room with escaped node not tracked")
	}
	e, _ := h.last(event.RoomPresence)
	if data := e.Data.(event.RoomPresenceData); data.User.Nick() != "alice" || data.RoomJID != "user@gmail.com@conf.example.com" {
		t.Fatalf("payload = %+v", data)
	}
}
