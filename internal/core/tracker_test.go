package core

import (
	"context"
	"reflect"
	"testing"

	"github.com/meszmate/chatcore/internal/event"
	"github.com/meszmate/chatcore/internal/xmpp/muc"
	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

func TestConnectedRecoversAnonymousJID(t *testing.T) {
	h := newHarness(t)
	h.core.SetUser(muc.NewChatUser("", "guest", muc.AffiliationNone, muc.RoleNone, ""))
	h.core.ConnectionChanged(context.Background(), StatusConnected, "4f2a@anon.example.com/abc")

	if got := h.core.User().JID(); got != "4f2a@anon.example.com/abc" {
		t.Fatalf("user jid = %q", got)
	}
	if h.core.User().Nick() != "guest" {
		t.Fatalf("nick = %q", h.core.User().Nick())
	}
	want := []string{"roster", "carbons", "autojoin", "get-ignore"}
	if !reflect.DeepEqual(h.actions.calls, want) {
		t.Fatalf("calls = %v", h.actions.calls)
	}
	if h.core.Tracker.Status() != StatusConnected {
		t.Fatalf("status = %s", h.core.Tracker.Status())
	}
	e, _ := h.last(event.ConnectionStatus)
	if e.Data.(event.ConnectionStatusData).Status != "connected" {
		t.Fatalf("status event = %+v", e)
	}
}

func TestAuthFailedOnlyReports(t *testing.T) {
	h := newHarness(t)
	h.core.ConnectionChanged(context.Background(), StatusAuthFail, "")
	if len(h.actions.calls) != 0 {
		t.Fatalf("calls = %v", h.actions.calls)
	}
	e, _ := h.last(event.ConnectionStatus)
	if e.Data.(event.ConnectionStatusData).Status != "auth-failed" {
		t.Fatalf("status event = %+v", e)
	}
}

func TestVetoDoesNotStopCoreHandling(t *testing.T) {
	h := newHarness(t)
	h.core.Bus.Subscribe(event.ConnectionStatus, func(event.Event) error { return event.ErrStop })
	h.core.ConnectionChanged(context.Background(), StatusAttached, "")
	if len(h.actions.calls) != 4 {
		t.Fatalf("calls = %v", h.actions.calls)
	}
}

func TestOneShotHandler(t *testing.T) {
	h := newHarness(t)
	hits := 0
	h.core.AddHandler(Matcher{Name: "iq", ID: "q1", From: "room@conf.example.com"}, func(_ context.Context, s stanza.Stanza) bool {
		hits++
		return false
	})
	h.handle(`<iq xmlns="jabber:client" type="result" id="q2" from="room@conf.example.com"/>`)
	h.handle(`<iq xmlns="jabber:client" type="result" id="q1" from="room@conf.example.com"/>`)
	h.handle(`<iq xmlns="jabber:client" type="result" id="q1" from="room@conf.example.com"/>`)
	if hits != 1 {
		t.Fatalf("hits = %d", hits)
	}
	if h.core.handlers.count() != 0 {
		t.Fatal("one-shot handler still registered")
	}
}

func TestNamespaceHandler(t *testing.T) {
	h := newHarness(t)
	var got []string
	ref := h.core.AddHandler(Matcher{Namespace: stanza.NSConference}, func(_ context.Context, s stanza.Stanza) bool {
		got = append(got, s.StanzaFrom())
		return true
	})
	h.handle(`<message xmlns="jabber:client" from="bob@x.com/pc"><x xmlns="jabber:x:conference" jid="r@conf.example.com"/></message>`)
	h.handle(`<message xmlns="jabber:client" from="bob@x.com/pc"><body>plain</body></message>`)
	h.core.DeleteHandler(ref)
	h.handle(`<message xmlns="jabber:client" from="carol@x.com/pc"><x xmlns="jabber:x:conference" jid="r@conf.example.com"/></message>`)
	if !reflect.DeepEqual(got, []string{"bob@x.com/pc"}) {
		t.Fatalf("got = %v", got)
	}
}
