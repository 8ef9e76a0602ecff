package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/meszmate/chatcore/internal/action"
	"github.com/meszmate/chatcore/internal/xmpp/jidutil"
	"github.com/meszmate/chatcore/internal/xmpp/muc"
	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

var (
	errNoRoom      = errors.New("not in a room")
	errUnknownNick = errors.New("no such occupant")
)

// usage lists the console commands.
var usage = []string{
	"/connect <jid> <password> | /connect <host> <nick>",
	"/disconnect",
	"/join <room> [password]",
	"/leave [room]",
	"/nick <nick>",
	"/topic <subject>",
	"/msg <nick> <text>",
	"/invite <jid> [reason]",
	"/kick <nick> [reason]",
	"/ban <nick> [reason]",
	"/ignore <nick>",
	"/win <n>",
	"/theme [name]",
	"/quit",
}

// submit runs a command line or sends text to the current room.
func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	if !strings.HasPrefix(text, "/") {
		w := m.current()
		if w.jid == "" || w.closed {
			m.post(w, line{kind: kindError, text: errNoRoom.Error()})
			return m, nil
		}
		target, typ := w.jid, stanza.TypeGroupchat
		if jidutil.Resource(target) != "" {
			// Private chats are not reflected by the room.
			typ = stanza.TypeChat
			m.post(w, line{kind: kindOwn, nick: m.ownNick(jidutil.Bare(target)), text: text})
		}
		return m, m.run(target, func(ctx context.Context, api *action.API) (string, error) {
			_, err := api.SendMessage(ctx, target, text, typ, "")
			return "", err
		})
	}

	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return m, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	rest := func(i int) string {
		if len(args) <= i {
			return ""
		}
		return strings.Join(args[i:], " ")
	}
	room := m.current()
	roomJID := jidutil.Bare(room.jid)

	switch name {
	case "quit":
		m.quitting = true
		m.feed.Close()
		return m, tea.Quit

	case "help":
		for _, u := range usage {
			m.post(m.statusWindow(), line{kind: kindSystem, text: u})
		}
		m.focus(0)
		return m, nil

	case "connect":
		if len(args) != 2 {
			return m.fail(room, "usage: "+usage[0])
		}
		if strings.Contains(args[0], "@") {
			return m, m.connect(args[0], args[1], "")
		}
		return m, m.connect(args[0], "", args[1])

	case "disconnect":
		a := m.app
		return m, func() tea.Msg {
			return resultMsg{err: a.Disconnect(context.Background())}
		}

	case "win":
		n, err := strconv.Atoi(rest(0))
		if err != nil || n < 1 || n > len(m.windows) {
			return m.fail(room, "usage: /win <1-"+strconv.Itoa(len(m.windows))+">")
		}
		m.focus(n - 1)
		return m, nil

	case "theme":
		if len(args) == 0 {
			m.post(room, line{kind: kindSystem, text: "themes: " + strings.Join(m.themes.AvailableThemes(), ", ")})
			return m, nil
		}
		if err := m.themes.SetTheme(args[0]); err != nil {
			return m.fail(room, err.Error())
		}
		return m, nil

	case "join":
		if len(args) == 0 {
			return m.fail(room, "usage: /join <room> [password]")
		}
		target, password := args[0], rest(1)
		return m, m.run("", func(ctx context.Context, api *action.API) (string, error) {
			return "", api.Join(ctx, target, password)
		})

	case "leave":
		target := roomJID
		if len(args) > 0 {
			target = args[0]
		}
		if target == "" {
			return m.fail(room, errNoRoom.Error())
		}
		return m, m.run("", func(ctx context.Context, api *action.API) (string, error) {
			return "", api.Leave(ctx, target)
		})

	case "nick":
		if len(args) != 1 {
			return m.fail(room, "usage: /nick <nick>")
		}
		nick := args[0]
		return m, m.run("", func(ctx context.Context, api *action.API) (string, error) {
			return "", api.SetNickname(ctx, nick, nil)
		})
	}

	// The remaining commands act on the current room.
	if roomJID == "" || room.closed {
		return m.fail(room, errNoRoom.Error())
	}

	switch name {
	case "topic":
		subject := rest(0)
		return m, m.run(roomJID, func(ctx context.Context, api *action.API) (string, error) {
			return "", api.SetSubject(ctx, roomJID, subject)
		})

	case "msg":
		if len(args) < 2 {
			return m.fail(room, "usage: /msg <nick> <text>")
		}
		user := m.occupant(roomJID, args[0])
		if user == nil {
			return m.fail(room, errUnknownNick.Error())
		}
		if !m.app.Actions().OpenPrivateChat(roomJID, user.JID()) {
			return m.fail(room, "private chat with "+user.Nick()+" refused")
		}
		body := rest(1)
		target := user.JID()
		w := m.window(target, user.Nick())
		m.post(w, line{kind: kindOwn, nick: m.ownNick(roomJID), text: body})
		return m, m.run(target, func(ctx context.Context, api *action.API) (string, error) {
			_, err := api.SendMessage(ctx, target, body, stanza.TypeChat, "")
			return "", err
		})

	case "invite":
		if len(args) == 0 {
			return m.fail(room, "usage: /invite <jid> [reason]")
		}
		invitee, reason := args[0], rest(1)
		return m, m.run(roomJID, func(ctx context.Context, api *action.API) (string, error) {
			if err := api.Invite(ctx, roomJID, []string{invitee}, reason, ""); err != nil {
				return "", err
			}
			return "invited " + invitee, nil
		})

	case "kick", "ban":
		if len(args) == 0 {
			return m.fail(room, fmt.Sprintf("usage: /%s <nick> [reason]", name))
		}
		user := m.occupant(roomJID, args[0])
		if user == nil {
			return m.fail(room, errUnknownNick.Error())
		}
		typ, capability, reason, target := action.Kick, action.CapKick, rest(1), user.JID()
		if name == "ban" {
			typ, capability = action.Ban, action.CapBan
		}
		if !m.allowed(roomJID, target, capability) {
			return m.fail(room, "not allowed to "+name+" "+user.Nick())
		}
		return m, m.run(roomJID, func(ctx context.Context, api *action.API) (string, error) {
			_, err := api.UserAction(ctx, roomJID, target, typ, reason)
			return "", err
		})

	case "ignore":
		if len(args) != 1 {
			return m.fail(room, "usage: /ignore <nick>")
		}
		user := m.occupant(roomJID, args[0])
		if user == nil {
			return m.fail(room, errUnknownNick.Error())
		}
		target, nick := user.JID(), user.Nick()
		return m, m.run(roomJID, func(ctx context.Context, api *action.API) (string, error) {
			if err := api.IgnoreUnignore(ctx, target); err != nil {
				return "", err
			}
			return "toggled ignore for " + nick, nil
		})
	}

	return m.fail(room, "unknown command /"+name+", see /help")
}

func (m Model) fail(w *window, text string) (tea.Model, tea.Cmd) {
	m.post(w, line{kind: kindError, text: text})
	return m, nil
}

// run executes fn in the background and reports into the window for jid.
func (m Model) run(jid string, fn func(context.Context, *action.API) (string, error)) tea.Cmd {
	api := m.app.Actions()
	ctx := m.ctx
	return func() tea.Msg {
		text, err := fn(ctx, api)
		return resultMsg{window: jid, text: text, err: err}
	}
}

// occupant finds the occupant of roomJID by nickname.
func (m Model) occupant(roomJID, nick string) *muc.ChatUser {
	room := m.app.Core().Rooms.Get(roomJID)
	if room == nil {
		return nil
	}
	for _, u := range room.Occupants().Sorted() {
		if u.Nick() == nick {
			return u
		}
	}
	return nil
}

func (m Model) ownNick(roomJID string) string {
	if room := m.app.Core().Rooms.Get(roomJID); room != nil && room.User() != nil {
		return room.User().Nick()
	}
	if u := m.app.Core().User(); u != nil {
		return u.Nick()
	}
	return jidutil.Node(roomJID)
}

func (m Model) allowed(roomJID, userJID, capability string) bool {
	for _, c := range m.app.Actions().Allowed(roomJID, userJID) {
		if c == capability {
			return true
		}
	}
	return false
}
