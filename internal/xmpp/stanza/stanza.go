package stanza

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	xstanza "mellium.im/xmpp/stanza"
)

// Stanza is implemented by *Presence, *Message and *IQ.
type Stanza interface {
	// StanzaName is the element name: presence, message or iq.
	StanzaName() string
	// StanzaType is the type attribute as sent.
	StanzaType() string
	StanzaID() string
	StanzaFrom() string
	StanzaTo() string
	// Namespaces lists the namespaces of the decoded payloads.
	Namespaces() []string
}

// ErrUnknownStanza is returned for top level elements that are not stanzas.
var ErrUnknownStanza = errors.New("unknown stanza element")

// Error is a stanza error. Condition is the local name of the first defined
// condition child.
type Error struct {
	Type      string
	Code      string
	Condition string
	Text      string
}

// UnmarshalXML implements xml.Unmarshaler.
func (e *Error) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "type":
			e.Type = attr.Value
		case "code":
			e.Code = attr.Value
		}
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "text" {
				var text string
				if err := d.DecodeElement(&text, &t); err != nil {
					return err
				}
				e.Text = text
				continue
			}
			if e.Condition == "" {
				e.Condition = t.Name.Local
			}
			if err := d.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

// Presence is an incoming presence.
type Presence struct {
	xstanza.Presence
	Show     string   `xml:"show,omitempty"`
	Status   string   `xml:"status,omitempty"`
	Priority string   `xml:"priority,omitempty"`
	MUC      *MUCUser `xml:"http://jabber.org/protocol/muc#user x"`
	Join     *MUCJoin `xml:"http://jabber.org/protocol/muc x"`
	Error    *Error   `xml:"error"`
}

func (p *Presence) StanzaName() string { return "presence" }
func (p *Presence) StanzaType() string { return string(p.Type) }
func (p *Presence) StanzaID() string   { return p.ID }
func (p *Presence) StanzaFrom() string { return p.From.String() }
func (p *Presence) StanzaTo() string   { return p.To.String() }

// Namespaces implements Stanza.
func (p *Presence) Namespaces() []string {
	var ns []string
	if p.MUC != nil {
		ns = append(ns, NSMUCUser)
	}
	if p.Join != nil {
		ns = append(ns, NSMUC)
	}
	return ns
}

// IsMUC reports whether the presence carries a muc or muc#user payload.
func (p *Presence) IsMUC() bool {
	return p.MUC != nil || p.Join != nil
}

// Item returns the muc#user item or an empty one.
func (p *Presence) Item() MUCItem {
	if p.MUC == nil || p.MUC.Item == nil {
		return MUCItem{}
	}
	return *p.MUC.Item
}

// HasStatus reports whether the muc#user payload carries code.
func (p *Presence) HasStatus(code int) bool {
	return p.MUC.HasStatus(code)
}

// Message is an incoming message.
type Message struct {
	xstanza.Message
	Subject     string        `xml:"subject,omitempty"`
	Body        string        `xml:"body,omitempty"`
	Thread      string        `xml:"thread,omitempty"`
	HTML        *XHTML        `xml:"http://jabber.org/protocol/xhtml-im html"`
	Delay       *Delay        `xml:"urn:xmpp:delay delay"`
	LegacyDelay *Delay        `xml:"jabber:x:delay x"`
	Sent        *Carbon       `xml:"urn:xmpp:carbons:2 sent"`
	Received    *Carbon       `xml:"urn:xmpp:carbons:2 received"`
	MUC         *MUCUser      `xml:"http://jabber.org/protocol/muc#user x"`
	Conference  *DirectInvite `xml:"jabber:x:conference x"`
	Error       *Error        `xml:"error"`
	Extensions  []Extension   `xml:",any"`
}

func (m *Message) StanzaName() string { return "message" }
func (m *Message) StanzaType() string { return string(m.Type) }
func (m *Message) StanzaID() string   { return m.ID }
func (m *Message) StanzaFrom() string { return m.From.String() }
func (m *Message) StanzaTo() string   { return m.To.String() }

// Namespaces implements Stanza.
func (m *Message) Namespaces() []string {
	var ns []string
	add := func(ok bool, space string) {
		if ok {
			ns = append(ns, space)
		}
	}
	add(m.HTML != nil, NSXHTMLIM)
	add(m.Delay != nil, NSDelay)
	add(m.LegacyDelay != nil, NSLegacyDelay)
	add(m.Sent != nil || m.Received != nil, NSCarbons)
	add(m.MUC != nil, NSMUCUser)
	add(m.Conference != nil, NSConference)
	for _, ext := range m.Extensions {
		ns = append(ns, ext.XMLName.Space)
	}
	return ns
}

// MessageType returns the type, defaulting to normal.
func (m *Message) MessageType() xstanza.MessageType {
	if m.Type == "" {
		return xstanza.NormalMessage
	}
	return m.Type
}

var chatStates = map[string]bool{
	"active":    true,
	"composing": true,
	"paused":    true,
	"inactive":  true,
	"gone":      true,
}

// ChatState returns the first chat state notification or "".
func (m *Message) ChatState() string {
	for _, ext := range m.Extensions {
		if ext.XMLName.Space == NSChatStates && chatStates[ext.XMLName.Local] {
			return ext.XMLName.Local
		}
	}
	return ""
}

// IQ is an incoming iq.
type IQ struct {
	xstanza.IQ
	Roster     *RosterQuery     `xml:"jabber:iq:roster query"`
	Privacy    *PrivacyQuery    `xml:"jabber:iq:privacy query"`
	Private    *PrivateQuery    `xml:"jabber:iq:private query"`
	PubSub     *PubSub          `xml:"http://jabber.org/protocol/pubsub pubsub"`
	DiscoInfo  *DiscoInfoQuery  `xml:"http://jabber.org/protocol/disco#info query"`
	DiscoItems *DiscoItemsQuery `xml:"http://jabber.org/protocol/disco#items query"`
	Version    *VersionQuery    `xml:"jabber:iq:version query"`
	Error      *Error           `xml:"error"`
}

func (iq *IQ) StanzaName() string { return "iq" }
func (iq *IQ) StanzaType() string { return string(iq.Type) }
func (iq *IQ) StanzaID() string   { return iq.ID }
func (iq *IQ) StanzaFrom() string { return iq.From.String() }
func (iq *IQ) StanzaTo() string   { return iq.To.String() }

// Namespaces implements Stanza.
func (iq *IQ) Namespaces() []string {
	var ns []string
	switch {
	case iq.Roster != nil:
		ns = append(ns, NSRoster)
	case iq.Privacy != nil:
		ns = append(ns, NSPrivacy)
	case iq.Private != nil:
		ns = append(ns, NSPrivate)
	case iq.PubSub != nil:
		ns = append(ns, NSPubSub)
	case iq.DiscoInfo != nil:
		ns = append(ns, NSDiscoInfo)
	case iq.DiscoItems != nil:
		ns = append(ns, NSDiscoItems)
	case iq.Version != nil:
		ns = append(ns, NSVersion)
	}
	return ns
}

// Bookmarks returns the bookmark storage from a private or pubsub result.
func (iq *IQ) Bookmarks() *Bookmarks {
	if iq.Private != nil && iq.Private.Storage != nil {
		return iq.Private.Storage
	}
	if iq.PubSub != nil && iq.PubSub.Items != nil && iq.PubSub.Items.Node == NSBookmarks {
		merged := &Bookmarks{}
		for _, item := range iq.PubSub.Items.Items {
			if item.Storage != nil {
				merged.Conferences = append(merged.Conferences, item.Storage.Conferences...)
			}
		}
		return merged
	}
	return nil
}

// Decode decodes the stanza that starts with start.
func Decode(d *xml.Decoder, start *xml.StartElement) (Stanza, error) {
	var s Stanza
	switch start.Name.Local {
	case "presence":
		s = &Presence{}
	case "message":
		s = &Message{}
	case "iq":
		s = &IQ{}
	default:
		if err := d.Skip(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownStanza, start.Name.Local)
	}
	if err := d.DecodeElement(s, start); err != nil {
		return nil, fmt.Errorf("decode %s: %w", start.Name.Local, err)
	}
	return s, nil
}

// Parse decodes a single serialized stanza.
func Parse(raw []byte) (Stanza, error) {
	d := xml.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := d.Token()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("%w: empty input", ErrUnknownStanza)
			}
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return Decode(d, &start)
		}
	}
}
