// Package stanza holds the wire types the engine decodes from and encodes to
// the XMPP stream.
//
// Incoming stanzas embed the mellium.im/xmpp/stanza headers and add the
// payloads the engine interprets. Outgoing stanzas use plain string
// addresses so that display form JIDs can be escaped by the caller.
package stanza

// Namespaces used by the engine.
const (
	NSClient      = "jabber:client"
	NSMUC         = "http://jabber.org/protocol/muc"
	NSMUCUser     = NSMUC + "#user"
	NSMUCAdmin    = NSMUC + "#admin"
	NSConference  = "jabber:x:conference"
	NSCarbons     = "urn:xmpp:carbons:2"
	NSForward     = "urn:xmpp:forward:0"
	NSDelay       = "urn:xmpp:delay"
	NSLegacyDelay = "jabber:x:delay"
	NSXHTMLIM     = "http://jabber.org/protocol/xhtml-im"
	NSXHTML       = "http://www.w3.org/1999/xhtml"
	NSChatStates  = "http://jabber.org/protocol/chatstates"
	NSRoster      = "jabber:iq:roster"
	NSPrivacy     = "jabber:iq:privacy"
	NSPrivate     = "jabber:iq:private"
	NSBookmarks   = "storage:bookmarks"
	NSPubSub      = "http://jabber.org/protocol/pubsub"
	NSDiscoInfo   = "http://jabber.org/protocol/disco#info"
	NSDiscoItems  = "http://jabber.org/protocol/disco#items"
	NSVersion     = "jabber:iq:version"
	NSStanzas     = "urn:ietf:params:xml:ns:xmpp-stanzas"
)

// MUC status codes interpreted by the engine.
const (
	StatusNewRoom      = 201
	StatusNickAssigned = 210
	StatusBanned       = 301
	StatusNickChange   = 303
	StatusKicked       = 307
)
