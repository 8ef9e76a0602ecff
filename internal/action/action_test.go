package action

import (
	"context"
	"encoding/xml"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/meszmate/chatcore/internal/core"
	"github.com/meszmate/chatcore/internal/event"
	"github.com/meszmate/chatcore/internal/xmpp/muc"
	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

type recorder struct {
	out []interface{}
}

func (r *recorder) Encode(_ context.Context, v interface{}) error {
	r.out = append(r.out, v)
	return nil
}

func (r *recorder) xml(t *testing.T, i int) string {
	t.Helper()
	if i >= len(r.out) {
		t.Fatalf("only %d stanzas sent", len(r.out))
	}
	b, err := xml.Marshal(r.out[i])
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return string(b)
}

func (r *recorder) iqID(t *testing.T, i int) string {
	t.Helper()
	iq, ok := r.out[i].(*stanza.OutIQ)
	if !ok {
		t.Fatalf("stanza %d is %T", i, r.out[i])
	}
	return iq.ID
}

type fixture struct {
	core   *core.Context
	api    *API
	wire   *recorder
	events []event.Event
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{wire: &recorder{}}
	bus := event.NewBus(zerolog.Nop())
	bus.SubscribeAll(func(e event.Event) error {
		f.events = append(f.events, e)
		return nil
	})
	f.core = core.New(bus, zerolog.Nop())
	f.core.SetUser(muc.NewChatUser("me@example.com/res", "me", muc.AffiliationNone, muc.RoleNone, ""))
	f.api = New(f.core, opts, zerolog.Nop())
	f.api.SetTransport(f.wire)
	return f
}

func (f *fixture) handle(t *testing.T, raw string) {
	t.Helper()
	s, err := stanza.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := f.core.Handle(context.Background(), s); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

func (f *fixture) count(typ event.Type) int {
	n := 0
	for _, e := range f.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func contains(t *testing.T, got string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(got, p) {
			t.Fatalf("%s\nmissing %s", got, p)
		}
	}
}

func TestNotConnected(t *testing.T) {
	f := newFixture(t, Options{})
	f.api.SetTransport(nil)
	err := f.api.Presence(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v", err)
	}
}

func TestJoinDiscoversThenEnters(t *testing.T) {
	f := newFixture(t, Options{})
	if err := f.api.Join(context.Background(), "Lobby@conf.example.com", "pw"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	contains(t, f.wire.xml(t, 0), `to="Lobby@conf.example.com"`, `type="get"`, `<query xmlns="http://jabber.org/protocol/disco#info">`)
	contains(t, f.wire.xml(t, 1), `<presence id="pres:`, `to="Lobby@conf.example.com/me"`,
		`<x xmlns="http://jabber.org/protocol/muc"><password>pw</password></x>`)
}

func TestJoinEscapesNode(t *testing.T) {
	f := newFixture(t, Options{})
	if err := f.api.Join(context.Background(), "tea party@conf.example.com", ""); err != nil {
		t.Fatalf("Join: %v", err)
	}
	contains(t, f.wire.xml(t, 1), `to="tea\20party@conf.example.com/me"`)
}

func TestLeaveUsesRoomNick(t *testing.T) {
	f := newFixture(t, Options{})
	room := f.core.Rooms.Create("room@conf.example.com")
	room.SetUser(muc.NewChatUser("room@conf.example.com/Alter", "Alter", muc.AffiliationNone, muc.RoleParticipant, ""))
	if err := f.api.Leave(context.Background(), "room@conf.example.com"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	contains(t, f.wire.xml(t, 0), `to="room@conf.example.com/Alter"`, `type="unavailable"`)
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	sent, err := f.api.SendMessage(ctx, "room@conf.example.com", "   ", "", "")
	if err != nil || sent || len(f.wire.out) != 0 {
		t.Fatalf("blank message sent = %v err = %v", sent, err)
	}

	sent, err = f.api.SendMessage(ctx, "room@conf.example.com", " hi all ", "", "<strong>hi</strong> all")
	if err != nil || !sent {
		t.Fatalf("sent = %v err = %v", sent, err)
	}
	contains(t, f.wire.xml(t, 0), `to="room@conf.example.com"`, `type="groupchat"`, `<body>hi all</body>`,
		`<html xmlns="http://jabber.org/protocol/xhtml-im"><body xmlns="http://www.w3.org/1999/xhtml"><strong>hi</strong> all</body></html>`)

	if _, err := f.api.SendMessage(ctx, "room@conf.example.com/big wolf", "psst", stanza.TypeChat, ""); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	contains(t, f.wire.xml(t, 1), `to="room@conf.example.com/big\20wolf"`, `type="chat"`)
}

func TestInvite(t *testing.T) {
	f := newFixture(t, Options{})
	err := f.api.Invite(context.Background(), "party@conf.example.com", []string{"bob@x.com/phone", "carol@x.com"}, " come ", "cake")
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	contains(t, f.wire.xml(t, 0), `to="party@conf.example.com"`,
		`<invite to="bob@x.com"><reason>come</reason></invite>`,
		`<invite to="carol@x.com">`, `<password>cake</password>`)
}

func TestUserAction(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	tests := []struct {
		typ  string
		want string
	}{
		{Kick, `<item role="none" nick="troll"><reason>spam</reason></item>`},
		{Ban, `<item affiliation="outcast" nick="troll"><reason>spam</reason></item>`},
	}
	for i, tt := range tests {
		ok, err := f.api.UserAction(ctx, "room@conf.example.com", "room@conf.example.com/troll", tt.typ, "spam")
		if err != nil || !ok {
			t.Fatalf("%s: ok = %v err = %v", tt.typ, ok, err)
		}
		contains(t, f.wire.xml(t, i), `type="set"`, `<query xmlns="http://jabber.org/protocol/muc#admin">`, tt.want)
	}

	ok, err := f.api.UserAction(ctx, "room@conf.example.com", "room@conf.example.com/troll", "mute", "")
	if ok || err != nil || len(f.wire.out) != 2 {
		t.Fatalf("unknown action ok = %v err = %v", ok, err)
	}
}

func TestSetSubject(t *testing.T) {
	f := newFixture(t, Options{})
	if err := f.api.SetSubject(context.Background(), "room@conf.example.com", "news"); err != nil {
		t.Fatalf("SetSubject: %v", err)
	}
	contains(t, f.wire.xml(t, 0), `type="groupchat"`, `<subject>news</subject>`)
}

func TestSetNicknameInAllRooms(t *testing.T) {
	f := newFixture(t, Options{})
	f.core.Rooms.Create("a@conf.example.com")
	f.core.Rooms.Create("b@conf.example.com")
	if err := f.api.SetNickname(context.Background(), "neo", nil); err != nil {
		t.Fatalf("SetNickname: %v", err)
	}
	if len(f.wire.out) != 2 {
		t.Fatalf("sent %d presences", len(f.wire.out))
	}
	all := f.wire.xml(t, 0) + f.wire.xml(t, 1)
	contains(t, all, `to="a@conf.example.com/neo"`, `to="b@conf.example.com/neo"`)
}

func TestRosterRoundTrip(t *testing.T) {
	f := newFixture(t, Options{Priority: 5})
	if err := f.api.Roster(context.Background()); err != nil {
		t.Fatalf("Roster: %v", err)
	}
	contains(t, f.wire.xml(t, 0), `type="get"`, `<query xmlns="jabber:iq:roster">`)

	id := f.wire.iqID(t, 0)
	f.handle(t, `<iq xmlns="jabber:client" type="result" id="`+id+`">
  <query xmlns="jabber:iq:roster" ver="v3"><item jid="bob@x.com" subscription="both"/></query>
</iq>`)

	if f.count(event.RosterFetched) != 1 || f.core.Roster.Version() != "v3" {
		t.Fatal("roster result not applied")
	}
	contains(t, f.wire.xml(t, 1), `<presence id="pres:`, `<priority>5</priority>`)

	if err := f.api.Roster(context.Background()); err != nil {
		t.Fatalf("Roster: %v", err)
	}
	contains(t, f.wire.xml(t, 2), `<query xmlns="jabber:iq:roster" ver="v3">`)
}

func TestIgnoreListRoundTrip(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	if err := f.api.GetIgnoreList(ctx); err != nil {
		t.Fatalf("GetIgnoreList: %v", err)
	}
	contains(t, f.wire.xml(t, 0), `<query xmlns="jabber:iq:privacy"><list name="ignore"></list></query>`)

	f.handle(t, `<iq xmlns="jabber:client" type="result" id="`+f.wire.iqID(t, 0)+`">
  <query xmlns="jabber:iq:privacy"><list name="ignore"><item type="jid" value="room@conf.example.com/troll" action="deny" order="0"/></list></query>
</iq>`)
	contains(t, f.wire.xml(t, 1), `<active name="ignore"></active>`)
	if f.count(event.PrivacyLoaded) != 1 {
		t.Fatal("no privacy.loaded")
	}

	if err := f.api.IgnoreUnignore(ctx, "room@conf.example.com/space cadet"); err != nil {
		t.Fatalf("IgnoreUnignore: %v", err)
	}
	contains(t, f.wire.xml(t, 2),
		`<item type="jid" value="room@conf.example.com/troll" action="deny" order="0"><message></message></item>`,
		`<item type="jid" value="room@conf.example.com/space cadet" action="deny" order="1">`)

	if err := f.api.IgnoreUnignore(ctx, "room@conf.example.com/troll"); err != nil {
		t.Fatalf("IgnoreUnignore: %v", err)
	}
	if err := f.api.IgnoreUnignore(ctx, "room@conf.example.com/space cadet"); err != nil {
		t.Fatalf("IgnoreUnignore: %v", err)
	}
	contains(t, f.wire.xml(t, 4), `<list name="ignore"><item action="allow" order="0"></item></list>`)
}

func TestIgnoreListMissingIsCreated(t *testing.T) {
	f := newFixture(t, Options{})
	if err := f.api.GetIgnoreList(context.Background()); err != nil {
		t.Fatalf("GetIgnoreList: %v", err)
	}
	f.handle(t, `<iq xmlns="jabber:client" type="error" id="`+f.wire.iqID(t, 0)+`">
  <error type="cancel"><item-not-found xmlns="urn:ietf:params:xml:ns:xmpp-stanzas"/></error>
</iq>`)
	contains(t, f.wire.xml(t, 1), `<item action="allow" order="0">`)
	contains(t, f.wire.xml(t, 2), `<active name="ignore">`)
}

func TestAutojoin(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, Options{Autojoin: []string{"a@conf.example.com", "b@conf.example.com:se:cret"}})
	if err := f.api.Autojoin(ctx); err != nil {
		t.Fatalf("Autojoin: %v", err)
	}
	if len(f.wire.out) != 4 {
		t.Fatalf("sent %d stanzas", len(f.wire.out))
	}
	contains(t, f.wire.xml(t, 1), `to="a@conf.example.com/me"`, `<x xmlns="http://jabber.org/protocol/muc"></x>`)
	contains(t, f.wire.xml(t, 3), `to="b@conf.example.com/me"`, `<password>se:cret</password>`)

	f = newFixture(t, Options{AutojoinBookmarks: true})
	if err := f.api.Autojoin(ctx); err != nil {
		t.Fatalf("Autojoin: %v", err)
	}
	contains(t, f.wire.xml(t, 0), `<query xmlns="jabber:iq:private"><storage xmlns="storage:bookmarks"></storage></query>`)
	contains(t, f.wire.xml(t, 1), `<pubsub xmlns="http://jabber.org/protocol/pubsub"><items node="storage:bookmarks"></items></pubsub>`)

	f = newFixture(t, Options{})
	if err := f.api.Autojoin(ctx); err != nil {
		t.Fatalf("Autojoin: %v", err)
	}
	if len(f.wire.out) != 0 || f.count(event.AutojoinMissing) != 1 {
		t.Fatal("missing autojoin not reported")
	}
}

func TestRepliesToQueries(t *testing.T) {
	f := newFixture(t, Options{ClientName: "chatcore", ClientVersion: "1.0", ClientOS: "linux"})
	f.handle(t, `<iq xmlns="jabber:client" type="get" id="v1" from="bob@x.com/pc"><query xmlns="jabber:iq:version"/></iq>`)
	contains(t, f.wire.xml(t, 0), `id="v1"`, `to="bob@x.com/pc"`, `type="result"`,
		`<name>chatcore</name>`, `<version>1.0</version>`, `<os>linux</os>`)

	f.handle(t, `<iq xmlns="jabber:client" type="get" id="d1" from="bob@x.com/pc"><query xmlns="http://jabber.org/protocol/disco#info" node="n"/></iq>`)
	contains(t, f.wire.xml(t, 1), `id="d1"`, `node="n"`, `<identity category="client" type="pc" name="chatcore">`,
		`<feature var="http://jabber.org/protocol/muc">`)
}

func TestServicesCachesItems(t *testing.T) {
	f := newFixture(t, Options{})
	if err := f.api.Services(context.Background()); err != nil {
		t.Fatalf("Services: %v", err)
	}
	f.handle(t, `<iq xmlns="jabber:client" type="result" id="`+f.wire.iqID(t, 0)+`" from="example.com">
  <query xmlns="http://jabber.org/protocol/disco#items"><item jid="conf.example.com" name="Rooms"/></query>
</iq>`)
	items := f.core.Disco.GetItems("example.com")
	if len(items) != 1 || items[0].JID != "conf.example.com" {
		t.Fatalf("items = %+v", items)
	}
}

func TestOpenPrivateChat(t *testing.T) {
	f := newFixture(t, Options{})
	if !f.api.OpenPrivateChat("room@conf.example.com", "room@conf.example.com/alice") {
		t.Fatal("private chat refused")
	}
	unsubscribe := f.core.Bus.Subscribe(event.BeforeOpenPrivateChat, func(event.Event) error { return event.ErrStop })
	if f.api.OpenPrivateChat("room@conf.example.com", "room@conf.example.com/alice") {
		t.Fatal("veto ignored")
	}
	unsubscribe()

	f.core.User().Privacy().Toggle("ignore", "room@conf.example.com/alice")
	if f.api.OpenPrivateChat("room@conf.example.com", "room@conf.example.com/alice") {
		t.Fatal("private chat with ignored user opened")
	}
}

func TestCapabilities(t *testing.T) {
	f := newFixture(t, Options{})
	room := f.core.Rooms.Create("room@conf.example.com")
	me := muc.NewChatUser("room@conf.example.com/me", "me", muc.AffiliationMember, muc.RoleModerator, "")
	alice := muc.NewChatUser("room@conf.example.com/alice", "alice", muc.AffiliationMember, muc.RoleParticipant, "")
	owner := muc.NewChatUser("room@conf.example.com/boss", "boss", muc.AffiliationOwner, muc.RoleParticipant, "")
	room.SetUser(me)
	room.Occupants().Add(me)
	room.Occupants().Add(alice)
	room.Occupants().Add(owner)

	tests := []struct {
		name string
		jid  string
		want []string
	}{
		{"participant", alice.JID(), []string{CapPrivate, CapIgnore, CapKick, CapBan}},
		{"owner", owner.JID(), []string{CapPrivate, CapIgnore}},
		{"self", me.JID(), []string{CapSubject}},
		{"unknown", "room@conf.example.com/ghost", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.api.Allowed(room.JID(), tt.jid); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Allowed = %v, want %v", got, tt.want)
			}
		})
	}

	f.core.User().Privacy().Toggle("ignore", alice.JID())
	if got := f.api.Allowed(room.JID(), alice.JID()); !reflect.DeepEqual(got, []string{CapUnignore, CapKick, CapBan}) {
		t.Fatalf("ignored Allowed = %v", got)
	}

	f.api.Capabilities().Register("whois", func(t Target) bool { return t.User.RealJID() == "" })
	f.api.Capabilities().Unregister(CapBan)
	if got := f.api.Allowed(room.JID(), alice.JID()); !reflect.DeepEqual(got, []string{CapUnignore, CapKick, "whois"}) {
		t.Fatalf("extended Allowed = %v", got)
	}
}
