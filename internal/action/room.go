package action

import (
	"context"
	"strings"

	"github.com/meszmate/chatcore/internal/event"
	"github.com/meszmate/chatcore/internal/xmpp/jidutil"
	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

// User actions accepted by UserAction.
const (
	Kick = "kick"
	Ban  = "ban"
)

// Join asks for room info and enters roomJID with the local nickname.
func (a *API) Join(ctx context.Context, roomJID, password string) error {
	u, err := a.localUser()
	if err != nil {
		return err
	}
	to, err := address(jidutil.Bare(roomJID) + "/" + u.Nick())
	if err != nil {
		return err
	}
	if err := a.DiscoRoom(ctx, roomJID); err != nil {
		return err
	}
	return a.send(ctx, &stanza.OutPresence{
		ID:  newID("pres"),
		To:  to,
		MUC: &stanza.MUCJoin{Password: password},
	})
}

// DiscoRoom requests the disco info of a room. The core names the room
// from the reply.
func (a *API) DiscoRoom(ctx context.Context, roomJID string) error {
	to, err := address(jidutil.Bare(roomJID))
	if err != nil {
		return err
	}
	return a.send(ctx, &stanza.OutIQ{
		ID:      newID("disco"),
		To:      to,
		Type:    stanza.TypeGet,
		Payload: &stanza.DiscoInfoQuery{},
	})
}

// Leave leaves a room. A room without a bound occupant is left with the
// local nickname.
func (a *API) Leave(ctx context.Context, roomJID string) error {
	nick := ""
	if room := a.core.Rooms.Get(roomJID); room != nil && room.User() != nil {
		nick = room.User().Nick()
	} else {
		u, err := a.localUser()
		if err != nil {
			return err
		}
		nick = u.Nick()
	}
	to, err := address(jidutil.Bare(roomJID) + "/" + nick)
	if err != nil {
		return err
	}
	return a.send(ctx, &stanza.OutPresence{
		ID:   newID("pres"),
		To:   to,
		Type: stanza.TypeUnavailable,
	})
}

// SetNickname changes the nickname in the given rooms, or in every room
// when rooms is empty.
func (a *API) SetNickname(ctx context.Context, nick string, rooms []string) error {
	if len(rooms) == 0 {
		rooms = a.core.Rooms.JIDs()
	}
	for _, roomJID := range rooms {
		to, err := address(jidutil.Bare(roomJID) + "/" + nick)
		if err != nil {
			return err
		}
		if err := a.send(ctx, &stanza.OutPresence{ID: newID("pres"), To: to}); err != nil {
			return err
		}
	}
	return nil
}

// SendMessage sends body to a room or a private partner. Empty bodies are
// not sent and report false. For chat messages roomJID may carry the
// occupant nickname as resource.
func (a *API) SendMessage(ctx context.Context, roomJID, body, typ, xhtml string) (bool, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return false, nil
	}
	if typ == "" {
		typ = stanza.TypeGroupchat
	}

	bare := jidutil.Bare(roomJID)
	if _, err := jidutil.Parse(bare); err != nil {
		return false, err
	}
	to := jidutil.EscapeJID(bare)
	if nick := jidutil.Resource(roomJID); typ == stanza.TypeChat && nick != "" {
		to += "/" + jidutil.EscapeNode(nick)
	}

	msg := &stanza.OutMessage{
		ID:   newID("msg"),
		To:   to,
		Type: typ,
		Body: body,
	}
	if xhtml != "" {
		msg.HTML = stanza.NewXHTML(xhtml)
	}
	if err := a.send(ctx, msg); err != nil {
		return false, err
	}
	return true, nil
}

// Invite sends a mediated invitation for roomJID to each invitee.
func (a *API) Invite(ctx context.Context, roomJID string, invitees []string, reason, password string) error {
	to, err := address(jidutil.Bare(roomJID))
	if err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	x := &stanza.MUCUser{Password: password}
	for _, invitee := range invitees {
		x.Invites = append(x.Invites, stanza.MUCInvite{
			To:     jidutil.EscapeJID(jidutil.Bare(invitee)),
			Reason: reason,
		})
	}
	return a.send(ctx, &stanza.OutMessage{ID: newID("invite"), To: to, MUC: x})
}

// UserAction kicks or bans the occupant userJID. Unknown actions report
// false.
func (a *API) UserAction(ctx context.Context, roomJID, userJID, typ, reason string) (bool, error) {
	item := stanza.MUCItem{Nick: jidutil.Resource(userJID), Reason: reason}
	switch typ {
	case Kick:
		item.Role = "none"
	case Ban:
		item.Affiliation = "outcast"
	default:
		return false, nil
	}
	to, err := address(jidutil.Bare(roomJID))
	if err != nil {
		return false, err
	}
	err = a.send(ctx, &stanza.OutIQ{
		ID:      newID(typ),
		To:      to,
		Type:    stanza.TypeSet,
		Payload: &stanza.MUCAdminQuery{Items: []stanza.MUCItem{item}},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetSubject changes the room subject.
func (a *API) SetSubject(ctx context.Context, roomJID, subject string) error {
	to, err := address(jidutil.Bare(roomJID))
	if err != nil {
		return err
	}
	return a.send(ctx, &stanza.OutMessage{
		ID:      newID("subject"),
		To:      to,
		Type:    stanza.TypeGroupchat,
		Subject: &subject,
	})
}

// OpenPrivateChat asks subscribers whether a private chat with userJID
// may open. It is refused for ignored users and when vetoed.
func (a *API) OpenPrivateChat(roomJID, userJID string) bool {
	if u := a.core.User(); u != nil && u.IsIgnored(userJID) {
		return false
	}
	roomName := jidutil.Node(roomJID)
	if room := a.core.Rooms.Get(roomJID); room != nil {
		roomName = room.Name()
	}
	return a.core.Bus.Publish(event.Event{Type: event.BeforeOpenPrivateChat, Data: event.PrivateChatData{
		RoomJID:  jidutil.Bare(roomJID),
		RoomName: roomName,
		UserJID:  userJID,
		Nick:     jidutil.UnescapeNode(jidutil.Resource(userJID)),
	}})
}
