// Package event carries the notifications the engine publishes for views.
package event

import (
	"time"

	"github.com/meszmate/chatcore/internal/xmpp/muc"
	"github.com/meszmate/chatcore/internal/xmpp/roster"
	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

// Type represents the type of event
type Type int

const (
	ConnectionStatus Type = iota
	Login
	AutojoinMissing
	RosterLoaded
	RosterFetched
	RosterAdded
	RosterUpdated
	RosterRemoved
	RoomPresence
	SelfLeave
	PresenceError
	Presence
	Message
	ChatState
	Invite
	AdminMessage
	ServerMessage
	NormalMessage
	OtherMessage
	PrivacyLoaded
	PrivacyError
	BeforeOpenPrivateChat
)

var typeNames = map[Type]string{
	ConnectionStatus:      "connection.status",
	Login:                 "login",
	AutojoinMissing:       "autojoin-missing",
	RosterLoaded:          "roster.loaded",
	RosterFetched:         "roster.fetched",
	RosterAdded:           "roster.added",
	RosterUpdated:         "roster.updated",
	RosterRemoved:         "roster.removed",
	RoomPresence:          "room.presence",
	SelfLeave:             "room.self-leave",
	PresenceError:         "presence.error",
	Presence:              "presence",
	Message:               "message",
	ChatState:             "chat.state",
	Invite:                "chat.invite",
	AdminMessage:          "chat.message.admin",
	ServerMessage:         "chat.message.server",
	NormalMessage:         "chat.message.normal",
	OtherMessage:          "chat.message.other",
	PrivacyLoaded:         "privacy.loaded",
	PrivacyError:          "privacy.error",
	BeforeOpenPrivateChat: "private-room.before-open",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Vetoable reports whether a subscriber may stop delivery of the event.
func (t Type) Vetoable() bool {
	return t == ConnectionStatus || t == BeforeOpenPrivateChat
}

// Event is one published notification. Data holds one of the payload
// types below.
type Event struct {
	Type Type
	Data interface{}
}

// Actions reported with RoomPresence.
const (
	ActionJoin       = "join"
	ActionLeave      = "leave"
	ActionKick       = "kick"
	ActionBan        = "ban"
	ActionNickChange = "nickchange"
)

// Message types carried by RoomMessage.
const (
	MessageSubject = "subject"
	MessageInfo    = "info"
)

type ConnectionStatusData struct {
	Status string
}

type LoginData struct {
	PresetJID string
}

type RosterData struct {
	Contacts map[string]roster.Contact
}

type ContactData struct {
	Contact roster.Contact
}

// RoomPresenceData describes an occupant transition.
type RoomPresenceData struct {
	RoomJID     string
	RoomName    string
	User        *muc.ChatUser
	Action      string
	CurrentUser *muc.ChatUser
	IsNewRoom   bool
	// Ignored is set when the local user ignores the occupant.
	Ignored bool
}

// SelfLeaveData reports that the local user left a room.
type SelfLeaveData struct {
	RoomJID  string
	RoomName string
	Type     string
	Reason   string
	Actor    string
	User     *muc.ChatUser
}

type PresenceErrorData struct {
	RoomJID  string
	RoomName string
	Kind     string
	Stanza   *stanza.Presence
}

type PresenceData struct {
	From   string
	Stanza *stanza.Presence
}

// ChatMessage is the classified message payload.
type ChatMessage struct {
	From                  string
	Name                  string
	Body                  string
	Type                  string
	IsNoConferenceRoomJID bool
	XHTMLMessage          string
	Delay                 bool
}

// RoomMessageData is published once per processed message.
type RoomMessageData struct {
	RoomJID   string
	RoomName  string
	Message   ChatMessage
	Timestamp time.Time
	Carbon    bool
	Stanza    *stanza.Message
}

type ChatStateData struct {
	Name    string
	Type    string
	State   string
	RoomJID string
}

type InviteData struct {
	RoomJID         string
	From            string
	Reason          string
	Password        string
	ContinuedThread string
}

// AdminMessageData is a headline without a recipient.
type AdminMessageData struct {
	Type    string
	Message string
}

type ServerMessageData struct {
	Type    string
	Subject string
	Message string
}

// StanzaData wraps a message without a dedicated payload.
type StanzaData struct {
	Stanza *stanza.Message
}

type PrivacyData struct {
	List []string
}

type PrivacyErrorData struct {
	Condition string
}

type PrivateChatData struct {
	RoomJID  string
	RoomName string
	UserJID  string
	Nick     string
}
