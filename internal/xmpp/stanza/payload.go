package stanza

import (
	"encoding/xml"
	"time"
)

// MUCJoin is the muc element sent with a join presence and echoed back in
// error presences.
type MUCJoin struct {
	XMLName  xml.Name `xml:"http://jabber.org/protocol/muc x"`
	Password string   `xml:"password,omitempty"`
}

// MUCUser is the muc#user payload of presences and messages.
type MUCUser struct {
	XMLName  xml.Name    `xml:"http://jabber.org/protocol/muc#user x"`
	Item     *MUCItem    `xml:"item,omitempty"`
	Status   []MUCStatus `xml:"status,omitempty"`
	Invites  []MUCInvite `xml:"invite,omitempty"`
	Password string      `xml:"password,omitempty"`
}

// HasStatus reports whether the payload carries the given status code.
func (x *MUCUser) HasStatus(code int) bool {
	if x == nil {
		return false
	}
	for _, s := range x.Status {
		if s.Code == code {
			return true
		}
	}
	return false
}

// MUCStatus is a numeric status annotation.
type MUCStatus struct {
	Code int `xml:"code,attr"`
}

// MUCItem describes an occupant in presences and admin queries.
type MUCItem struct {
	Affiliation string    `xml:"affiliation,attr,omitempty"`
	Role        string    `xml:"role,attr,omitempty"`
	JID         string    `xml:"jid,attr,omitempty"`
	Nick        string    `xml:"nick,attr,omitempty"`
	Actor       *MUCActor `xml:"actor,omitempty"`
	Reason      string    `xml:"reason,omitempty"`
}

// MUCActor names who performed a kick or ban.
type MUCActor struct {
	JID  string `xml:"jid,attr,omitempty"`
	Nick string `xml:"nick,attr,omitempty"`
}

// MUCInvite is a mediated invitation.
type MUCInvite struct {
	From     string       `xml:"from,attr,omitempty"`
	To       string       `xml:"to,attr,omitempty"`
	Reason   string       `xml:"reason,omitempty"`
	Continue *MUCContinue `xml:"continue,omitempty"`
}

// MUCContinue marks an invitation that continues a one to one thread.
type MUCContinue struct {
	Thread string `xml:"thread,attr,omitempty"`
}

// DirectInvite is a jabber:x:conference invitation.
type DirectInvite struct {
	XMLName  xml.Name `xml:"jabber:x:conference x"`
	JID      string   `xml:"jid,attr"`
	Password string   `xml:"password,attr,omitempty"`
	Reason   string   `xml:"reason,attr,omitempty"`
	Continue bool     `xml:"continue,attr,omitempty"`
	Thread   string   `xml:"thread,attr,omitempty"`
}

// MUCAdminQuery changes roles or affiliations.
type MUCAdminQuery struct {
	XMLName xml.Name  `xml:"http://jabber.org/protocol/muc#admin query"`
	Items   []MUCItem `xml:"item"`
}

// Delay is a delayed delivery stamp. Both the current and the legacy
// element carry a stamp attribute.
type Delay struct {
	From  string `xml:"from,attr,omitempty"`
	Stamp string `xml:"stamp,attr"`
}

// legacyStampLayout is the jabber:x:delay stamp format.
const legacyStampLayout = "20060102T15:04:05"

// Time parses the stamp. Both XEP-0082 and the legacy format are accepted.
func (d *Delay) Time() (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, d.Stamp); err == nil {
		return t, nil
	}
	return time.ParseInLocation(legacyStampLayout, d.Stamp, time.UTC)
}

// XHTML is an XHTML-IM payload.
type XHTML struct {
	XMLName xml.Name  `xml:"http://jabber.org/protocol/xhtml-im html"`
	Body    XHTMLBody `xml:"http://www.w3.org/1999/xhtml body"`
}

// XHTMLBody keeps the formatted markup verbatim.
type XHTMLBody struct {
	Inner string `xml:",innerxml"`
}

// Carbon is a sent or received carbon wrapper.
type Carbon struct {
	Forwarded Forwarded `xml:"urn:xmpp:forward:0 forwarded"`
}

// Forwarded wraps the copied message.
type Forwarded struct {
	Delay   *Delay   `xml:"urn:xmpp:delay delay"`
	Message *Message `xml:"message"`
}

// CarbonsEnable turns message carbons on.
type CarbonsEnable struct {
	XMLName xml.Name `xml:"urn:xmpp:carbons:2 enable"`
}

// Extension is any child element the engine does not decode.
type Extension struct {
	XMLName xml.Name
}

// RosterQuery is a jabber:iq:roster query.
type RosterQuery struct {
	XMLName xml.Name     `xml:"jabber:iq:roster query"`
	Ver     string       `xml:"ver,attr,omitempty"`
	Items   []RosterItem `xml:"item"`
}

// RosterItem is one roster entry.
type RosterItem struct {
	JID          string   `xml:"jid,attr"`
	Name         string   `xml:"name,attr,omitempty"`
	Subscription string   `xml:"subscription,attr,omitempty"`
	Ask          string   `xml:"ask,attr,omitempty"`
	Groups       []string `xml:"group"`
}

// PrivacyQuery is a jabber:iq:privacy query.
type PrivacyQuery struct {
	XMLName xml.Name       `xml:"jabber:iq:privacy query"`
	Active  *PrivacyActive `xml:"active,omitempty"`
	Lists   []PrivacyList  `xml:"list"`
}

// PrivacyActive selects the active list.
type PrivacyActive struct {
	Name string `xml:"name,attr,omitempty"`
}

// PrivacyList is a named list of rules.
type PrivacyList struct {
	Name  string        `xml:"name,attr"`
	Items []PrivacyItem `xml:"item"`
}

// PrivacyItem is one privacy rule.
type PrivacyItem struct {
	Type    string    `xml:"type,attr,omitempty"`
	Value   string    `xml:"value,attr,omitempty"`
	Action  string    `xml:"action,attr"`
	Order   int       `xml:"order,attr"`
	Message *struct{} `xml:"message,omitempty"`
}

// List returns the named list or nil.
func (q *PrivacyQuery) List(name string) *PrivacyList {
	if q == nil {
		return nil
	}
	for i := range q.Lists {
		if q.Lists[i].Name == name {
			return &q.Lists[i]
		}
	}
	return nil
}

// PrivateQuery is a jabber:iq:private query holding bookmarks.
type PrivateQuery struct {
	XMLName xml.Name   `xml:"jabber:iq:private query"`
	Storage *Bookmarks `xml:"storage:bookmarks storage"`
}

// Bookmarks is the storage:bookmarks payload.
type Bookmarks struct {
	XMLName     xml.Name     `xml:"storage:bookmarks storage"`
	Conferences []Conference `xml:"conference"`
}

// Conference is a bookmarked room.
type Conference struct {
	JID      string `xml:"jid,attr"`
	Name     string `xml:"name,attr,omitempty"`
	Autojoin string `xml:"autojoin,attr,omitempty"`
	Nick     string `xml:"nick,omitempty"`
	Password string `xml:"password,omitempty"`
}

// AutoJoin reports whether the bookmark asks for automatic joining.
func (c Conference) AutoJoin() bool {
	return c.Autojoin == "true" || c.Autojoin == "1"
}

// PubSub is a pubsub request or result.
type PubSub struct {
	XMLName xml.Name     `xml:"http://jabber.org/protocol/pubsub pubsub"`
	Items   *PubSubItems `xml:"items,omitempty"`
}

// PubSubItems lists the items of a node.
type PubSubItems struct {
	Node  string       `xml:"node,attr"`
	Items []PubSubItem `xml:"item"`
}

// PubSubItem is one node item.
type PubSubItem struct {
	ID      string     `xml:"id,attr,omitempty"`
	Storage *Bookmarks `xml:"storage:bookmarks storage"`
}

// DiscoInfoQuery is a disco#info request or result.
type DiscoInfoQuery struct {
	XMLName    xml.Name        `xml:"http://jabber.org/protocol/disco#info query"`
	Node       string          `xml:"node,attr,omitempty"`
	Identities []DiscoIdentity `xml:"identity"`
	Features   []DiscoFeature  `xml:"feature"`
}

// DiscoIdentity is an entity identity.
type DiscoIdentity struct {
	Category string `xml:"category,attr"`
	Type     string `xml:"type,attr"`
	Name     string `xml:"name,attr,omitempty"`
}

// DiscoFeature is a supported feature.
type DiscoFeature struct {
	Var string `xml:"var,attr"`
}

// DiscoItemsQuery is a disco#items request or result.
type DiscoItemsQuery struct {
	XMLName xml.Name    `xml:"http://jabber.org/protocol/disco#items query"`
	Node    string      `xml:"node,attr,omitempty"`
	Items   []DiscoItem `xml:"item"`
}

// DiscoItem is one discovered item.
type DiscoItem struct {
	JID  string `xml:"jid,attr"`
	Name string `xml:"name,attr,omitempty"`
	Node string `xml:"node,attr,omitempty"`
}

// VersionQuery is a jabber:iq:version request or reply.
type VersionQuery struct {
	XMLName xml.Name `xml:"jabber:iq:version query"`
	Name    string   `xml:"name,omitempty"`
	Version string   `xml:"version,omitempty"`
	OS      string   `xml:"os,omitempty"`
}
