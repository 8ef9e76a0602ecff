package ui

import (
	"fmt"

	"github.com/meszmate/chatcore/internal/event"
)

// handleEvent renders a bus event into the windows.
func (m *Model) handleEvent(e event.Event) {
	switch d := e.Data.(type) {
	case event.ConnectionStatusData:
		m.status = d.Status
		m.post(m.statusWindow(), line{kind: kindSystem, text: "connection " + d.Status})

	case event.LoginData:
		text := "login required: /connect <jid> <password> or /connect <host> <nick>"
		if d.PresetJID != "" {
			text = fmt.Sprintf("login required for %s: /connect %s <password>", d.PresetJID, d.PresetJID)
		}
		m.post(m.statusWindow(), line{kind: kindSystem, text: text})

	case event.RosterData:
		m.post(m.statusWindow(), line{kind: kindSystem, text: fmt.Sprintf("%s: %d contacts", e.Type, len(d.Contacts))})

	case event.RoomPresenceData:
		m.roomPresence(d)

	case event.SelfLeaveData:
		w := m.window(d.RoomJID, d.RoomName)
		text := "you left the room"
		switch d.Type {
		case event.ActionKick:
			text = "you were kicked"
		case event.ActionBan:
			text = "you were banned"
		}
		if d.Actor != "" {
			text += " by " + d.Actor
		}
		if d.Reason != "" {
			text += ": " + d.Reason
		}
		kind := kindSystem
		if d.Type != event.ActionLeave {
			kind = kindError
		}
		m.post(w, line{kind: kind, text: text})
		w.closed = true

	case event.PresenceErrorData:
		text := "cannot join " + d.RoomJID
		switch d.Kind {
		case "not-authorized":
			text += ": password required"
		case "conflict":
			text += ": nickname in use"
		case "registration-required":
			text += ": members only"
		case "forbidden":
			text += ": banned"
		case "":
		default:
			text += ": " + d.Kind
		}
		m.post(m.statusWindow(), line{kind: kindError, text: text})

	case event.RoomMessageData:
		m.roomMessage(d)

	case event.InviteData:
		text := fmt.Sprintf("%s invites you to %s", d.From, d.RoomJID)
		if d.Reason != "" {
			text += " (" + d.Reason + ")"
		}
		m.post(m.statusWindow(), line{kind: kindSystem, text: text + ", /join " + d.RoomJID})

	case event.AdminMessageData:
		m.post(m.statusWindow(), line{kind: kindSystem, nick: "admin", text: d.Message})

	case event.ServerMessageData:
		text := d.Message
		if d.Subject != "" {
			text = d.Subject + ": " + text
		}
		m.post(m.statusWindow(), line{kind: kindSystem, nick: "server", text: text})

	case event.StanzaData:
		if d.Stanza != nil && d.Stanza.Body != "" {
			m.post(m.statusWindow(), line{kind: kindMessage, nick: d.Stanza.StanzaFrom(), text: d.Stanza.Body})
		}

	case event.PrivacyData:
		if len(d.List) > 0 {
			m.post(m.statusWindow(), line{kind: kindSystem, text: fmt.Sprintf("ignoring %d users", len(d.List))})
		}

	case event.PrivacyErrorData:
		m.post(m.statusWindow(), line{kind: kindError, text: "ignore list: " + d.Condition})

	default:
		if e.Type == event.AutojoinMissing {
			m.post(m.statusWindow(), line{kind: kindSystem, text: "no rooms to join, use /join <room>"})
		}
	}
}

func (m *Model) roomPresence(d event.RoomPresenceData) {
	if d.User == nil || d.Ignored {
		return
	}
	w := m.window(d.RoomJID, d.RoomName)
	self := d.CurrentUser != nil && d.User.Nick() == d.CurrentUser.Nick()
	if self && d.IsNewRoom && d.Action == event.ActionJoin {
		m.focus(m.indexOf(w))
	}

	nick := d.User.Nick()
	var text string
	switch d.Action {
	case event.ActionJoin:
		text = nick + " joined"
	case event.ActionLeave:
		text = nick + " left"
	case event.ActionKick:
		text = nick + " was kicked"
	case event.ActionBan:
		text = nick + " was banned"
	case event.ActionNickChange:
		text = d.User.PreviousNick() + " is now known as " + nick
	default:
		return
	}
	m.post(w, line{kind: kindSystem, text: text})
}

func (m *Model) roomMessage(d event.RoomMessageData) {
	w := m.window(d.RoomJID, d.RoomName)
	msg := d.Message
	l := line{at: d.Timestamp, nick: msg.Name, text: msg.Body}

	switch msg.Type {
	case event.MessageSubject:
		l.kind = kindSubject
		l.text = "topic: " + msg.Body
	case event.MessageInfo:
		l.kind = kindSystem
	default:
		l.kind = kindMessage
		if d.Carbon || m.isOwnNick(d.RoomJID, msg.Name) {
			l.kind = kindOwn
		}
	}
	m.post(w, l)
}

func (m *Model) isOwnNick(roomJID, nick string) bool {
	if nick == "" {
		return false
	}
	if room := m.app.Core().Rooms.Get(roomJID); room != nil {
		if me := room.User(); me != nil {
			return me.Nick() == nick
		}
	}
	return false
}
