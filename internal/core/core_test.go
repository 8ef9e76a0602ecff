package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/meszmate/chatcore/internal/event"
	"github.com/meszmate/chatcore/internal/xmpp/muc"
	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeActions struct {
	calls []string
	joins []string
}

func (f *fakeActions) record(name string) error {
	f.calls = append(f.calls, name)
	return nil
}

func (f *fakeActions) Roster(context.Context) error              { return f.record("roster") }
func (f *fakeActions) EnableCarbons(context.Context) error       { return f.record("carbons") }
func (f *fakeActions) Autojoin(context.Context) error            { return f.record("autojoin") }
func (f *fakeActions) GetIgnoreList(context.Context) error       { return f.record("get-ignore") }
func (f *fakeActions) ResetIgnoreList(context.Context) error     { return f.record("reset-ignore") }
func (f *fakeActions) SetIgnoreListActive(context.Context) error { return f.record("activate-ignore") }
func (f *fakeActions) Presence(context.Context) error            { return f.record("presence") }
func (f *fakeActions) ReplyVersion(context.Context, *stanza.IQ) error {
	return f.record("version")
}
func (f *fakeActions) ReplyDisco(context.Context, *stanza.IQ) error { return f.record("disco") }
func (f *fakeActions) AckIQ(context.Context, *stanza.IQ) error      { return f.record("ack") }
func (f *fakeActions) Join(_ context.Context, roomJID, password string) error {
	f.joins = append(f.joins, roomJID+":"+password)
	return f.record("join")
}

type harness struct {
	t       *testing.T
	core    *Context
	actions *fakeActions
	events  []event.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, actions: &fakeActions{}}
	bus := event.NewBus(zerolog.Nop())
	bus.SubscribeAll(func(e event.Event) error {
		h.events = append(h.events, e)
		return nil
	})
	h.core = New(bus, zerolog.Nop())
	h.core.now = func() time.Time { return fixedNow }
	h.core.SetActions(h.actions)
	h.core.SetUser(muc.NewChatUser("me@example.com/res", "me", muc.AffiliationNone, muc.RoleNone, ""))
	return h
}

func (h *harness) handle(raw string) {
	h.t.Helper()
	s, err := stanza.Parse([]byte(raw))
	if err != nil {
		h.t.Fatalf("Parse: %v", err)
	}
	if err := h.core.Handle(context.Background(), s); err != nil {
		h.t.Fatalf("Handle: %v", err)
	}
}

func (h *harness) last(t event.Type) (event.Event, bool) {
	for i := len(h.events) - 1; i >= 0; i-- {
		if h.events[i].Type == t {
			return h.events[i], true
		}
	}
	return event.Event{}, false
}

func (h *harness) count(t event.Type) int {
	n := 0
	for _, e := range h.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (h *harness) called(name string) bool {
	for _, c := range h.actions.calls {
		if c == name {
			return true
		}
	}
	return false
}
