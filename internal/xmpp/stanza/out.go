package stanza

import (
	"encoding/xml"
)

// Stanza types used on outgoing stanzas.
const (
	TypeGet         = "get"
	TypeSet         = "set"
	TypeResult      = "result"
	TypeError       = "error"
	TypeUnavailable = "unavailable"
	TypeChat        = "chat"
	TypeGroupchat   = "groupchat"
	TypeNormal      = "normal"
	TypeHeadline    = "headline"
)

// OutPresence is an outgoing presence.
type OutPresence struct {
	XMLName  xml.Name `xml:"presence"`
	ID       string   `xml:"id,attr,omitempty"`
	To       string   `xml:"to,attr,omitempty"`
	Type     string   `xml:"type,attr,omitempty"`
	Show     string   `xml:"show,omitempty"`
	Status   string   `xml:"status,omitempty"`
	Priority string   `xml:"priority,omitempty"`
	MUC      *MUCJoin `xml:",omitempty"`
}

// OutMessage is an outgoing message.
type OutMessage struct {
	XMLName    xml.Name      `xml:"message"`
	ID         string        `xml:"id,attr,omitempty"`
	To         string        `xml:"to,attr,omitempty"`
	Type       string        `xml:"type,attr,omitempty"`
	Subject    *string       `xml:"subject"`
	Body       string        `xml:"body,omitempty"`
	HTML       *XHTML        `xml:",omitempty"`
	MUC        *MUCUser      `xml:",omitempty"`
	Conference *DirectInvite `xml:",omitempty"`
}

// OutIQ is an outgoing iq. Payload is marshaled as its only child.
type OutIQ struct {
	XMLName xml.Name    `xml:"iq"`
	ID      string      `xml:"id,attr,omitempty"`
	To      string      `xml:"to,attr,omitempty"`
	Type    string      `xml:"type,attr"`
	Payload interface{} `xml:",omitempty"`
}

// NewXHTML wraps formatted markup for an outgoing message.
func NewXHTML(markup string) *XHTML {
	return &XHTML{Body: XHTMLBody{Inner: markup}}
}
