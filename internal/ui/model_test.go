package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/meszmate/chatcore/internal/app"
	"github.com/meszmate/chatcore/internal/config"
	"github.com/meszmate/chatcore/internal/event"
	"github.com/meszmate/chatcore/internal/xmpp/muc"
)

var fixedNow = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func newTestModel(t *testing.T) Model {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.Enabled = false
	cfg.General.AutoConnect = false
	cfg.UI.ThemeDir = t.TempDir()

	a, err := app.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	t.Cleanup(a.Close)

	m := NewModel(context.Background(), a)
	m.now = func() time.Time { return fixedNow }
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeLine(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func lastLine(w *window) line {
	if len(w.lines) == 0 {
		return line{}
	}
	return w.lines[len(w.lines)-1]
}

func TestRoomEventsOpenWindows(t *testing.T) {
	m := newTestModel(t)
	me := muc.NewChatUser("lobby@conf.example.com/me", "me", muc.AffiliationNone, muc.RoleParticipant, "")
	alice := muc.NewChatUser("lobby@conf.example.com/alice", "alice", muc.AffiliationNone, muc.RoleParticipant, "")

	m, cmd := update(t, m, EventMsg{Event: event.Event{Type: event.RoomPresence, Data: event.RoomPresenceData{
		RoomJID: "lobby@conf.example.com", RoomName: "Lobby", User: me, Action: event.ActionJoin, CurrentUser: me, IsNewRoom: true,
	}}})
	if cmd == nil {
		t.Fatal("feed not re-armed")
	}
	if len(m.windows) != 2 || m.active != 1 || m.current().name != "Lobby" {
		t.Fatalf("windows = %d active = %d", len(m.windows), m.active)
	}

	m, _ = update(t, m, EventMsg{Event: event.Event{Type: event.RoomPresence, Data: event.RoomPresenceData{
		RoomJID: "lobby@conf.example.com", User: alice, Action: event.ActionJoin, CurrentUser: me,
	}}})
	if l := lastLine(m.current()); l.text != "alice joined" || l.kind != kindSystem {
		t.Fatalf("line = %+v", l)
	}

	m, _ = update(t, m, EventMsg{Event: event.Event{Type: event.RoomPresence, Data: event.RoomPresenceData{
		RoomJID: "lobby@conf.example.com", User: alice, Action: event.ActionLeave, CurrentUser: me, Ignored: true,
	}}})
	if l := lastLine(m.current()); l.text != "alice joined" {
		t.Fatalf("ignored user rendered: %+v", l)
	}

	stamp := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m, _ = update(t, m, EventMsg{Event: event.Event{Type: event.Message, Data: event.RoomMessageData{
		RoomJID: "lobby@conf.example.com", RoomName: "Lobby", Timestamp: stamp,
		Message: event.ChatMessage{Name: "alice", Body: "hello", Type: "groupchat", Delay: true},
	}}})
	if l := lastLine(m.current()); l.kind != kindMessage || l.nick != "alice" || !l.at.Equal(stamp) {
		t.Fatalf("message line = %+v", l)
	}

	m, _ = update(t, m, EventMsg{Event: event.Event{Type: event.SelfLeave, Data: event.SelfLeaveData{
		RoomJID: "lobby@conf.example.com", Type: event.ActionKick, Actor: "mod", Reason: "spam",
	}}})
	w := m.current()
	if !w.closed || lastLine(w).text != "you were kicked by mod: spam" || lastLine(w).kind != kindError {
		t.Fatalf("self leave = %+v closed = %v", lastLine(w), w.closed)
	}
}

func TestBackgroundMessagesCountUnread(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, EventMsg{Event: event.Event{Type: event.Message, Data: event.RoomMessageData{
		RoomJID: "lobby@conf.example.com", Message: event.ChatMessage{Name: "alice", Body: "hi", Type: "groupchat"},
	}}})
	if m.active != 0 || m.windows[1].unread != 1 {
		t.Fatalf("active = %d unread = %d", m.active, m.windows[1].unread)
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.active != 1 || m.windows[1].unread != 0 {
		t.Fatalf("active = %d unread = %d", m.active, m.windows[1].unread)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.active != 0 {
		t.Fatalf("tab did not wrap: %d", m.active)
	}
}

func TestStatusEvents(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, EventMsg{Event: event.Event{Type: event.ConnectionStatus, Data: event.ConnectionStatusData{Status: "connected"}}})
	if m.status != "connected" {
		t.Fatalf("status = %q", m.status)
	}
	m, _ = update(t, m, EventMsg{Event: event.Event{Type: event.Login, Data: event.LoginData{PresetJID: "me@example.com"}}})
	if l := lastLine(m.statusWindow()); !strings.Contains(l.text, "/connect me@example.com") {
		t.Fatalf("login line = %+v", l)
	}
	m, _ = update(t, m, EventMsg{Event: event.Event{Type: event.PresenceError, Data: event.PresenceErrorData{RoomJID: "vip@conf.example.com", Kind: "not-authorized"}}})
	if l := lastLine(m.statusWindow()); l.kind != kindError || l.text != "cannot join vip@conf.example.com: password required" {
		t.Fatalf("error line = %+v", l)
	}
	m, _ = update(t, m, EventMsg{Event: event.Event{Type: event.AutojoinMissing}})
	if l := lastLine(m.statusWindow()); !strings.Contains(l.text, "/join") {
		t.Fatalf("autojoin line = %+v", l)
	}
}

func TestCommandsWithoutRoom(t *testing.T) {
	m := newTestModel(t)

	m, cmd := typeLine(t, m, "hello")
	if cmd != nil || lastLine(m.statusWindow()).text != errNoRoom.Error() {
		t.Fatalf("line = %+v", lastLine(m.statusWindow()))
	}
	if len(m.input) != 0 {
		t.Fatalf("input not cleared: %q", string(m.input))
	}

	m, _ = typeLine(t, m, "/topic hi")
	if lastLine(m.statusWindow()).text != errNoRoom.Error() {
		t.Fatalf("line = %+v", lastLine(m.statusWindow()))
	}

	m, _ = typeLine(t, m, "/frobnicate")
	if l := lastLine(m.statusWindow()); !strings.HasPrefix(l.text, "unknown command /frobnicate") {
		t.Fatalf("line = %+v", l)
	}

	m, _ = typeLine(t, m, "/join")
	if l := lastLine(m.statusWindow()); l.kind != kindError || !strings.HasPrefix(l.text, "usage: /join") {
		t.Fatalf("line = %+v", l)
	}
}

func TestJoinReportsErrors(t *testing.T) {
	m := newTestModel(t)
	m, cmd := typeLine(t, m, "/join lobby@conf.example.com")
	if cmd == nil {
		t.Fatal("join did not run")
	}
	res, ok := cmd().(resultMsg)
	if !ok || res.err == nil {
		t.Fatalf("result = %+v", res)
	}
	m, _ = update(t, m, res)
	if lastLine(m.statusWindow()).kind != kindError {
		t.Fatalf("line = %+v", lastLine(m.statusWindow()))
	}
}

func TestWindowAndThemeCommands(t *testing.T) {
	m := newTestModel(t)
	m, _ = update(t, m, EventMsg{Event: event.Event{Type: event.Message, Data: event.RoomMessageData{
		RoomJID: "lobby@conf.example.com", Message: event.ChatMessage{Name: "alice", Body: "hi"},
	}}})

	m, _ = typeLine(t, m, "/win 2")
	if m.active != 1 {
		t.Fatalf("active = %d", m.active)
	}
	m, _ = typeLine(t, m, "/win 9")
	if l := lastLine(m.current()); l.kind != kindError {
		t.Fatalf("line = %+v", l)
	}

	m, _ = typeLine(t, m, "/theme nord")
	if m.themes.CurrentName() != "nord" {
		t.Fatalf("theme = %q", m.themes.CurrentName())
	}
	m, _ = typeLine(t, m, "/kick bob")
	if l := lastLine(m.current()); l.text != errUnknownNick.Error() {
		t.Fatalf("line = %+v", l)
	}
}

func TestView(t *testing.T) {
	m := newTestModel(t)
	if m.View() != "Loading..." {
		t.Fatal("view before size")
	}
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = update(t, m, EventMsg{Event: event.Event{Type: event.ConnectionStatus, Data: event.ConnectionStatusData{Status: "connecting"}}})
	view := m.View()
	if !strings.Contains(view, "status") || !strings.Contains(view, "connecting") {
		t.Fatalf("view = %q", view)
	}
}

func TestFeed(t *testing.T) {
	bus := event.NewBus(zerolog.Nop())
	f := NewFeed(bus, 1)
	bus.Publish(event.Event{Type: event.AutojoinMissing})
	bus.Publish(event.Event{Type: event.Login})

	msg := f.Next(context.Background())()
	if em, ok := msg.(EventMsg); !ok || em.Event.Type != event.AutojoinMissing {
		t.Fatalf("msg = %#v", msg)
	}

	f.Close()
	bus.Publish(event.Event{Type: event.Login})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if msg := f.Next(ctx)(); msg != nil {
		t.Fatalf("event after close: %#v", msg)
	}
}
