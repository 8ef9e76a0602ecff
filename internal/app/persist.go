package app

import (
	"github.com/google/uuid"

	"github.com/meszmate/chatcore/internal/event"
	"github.com/meszmate/chatcore/internal/storage/sqlite"
	"github.com/meszmate/chatcore/internal/xmpp/roster"
)

// subscribeStorage mirrors roster and message events into sqlite.
func (a *App) subscribeStorage() {
	if a.storage == nil {
		return
	}
	if a.cfg.Storage.SaveRoster {
		a.bus.Subscribe(event.RosterFetched, a.saveRoster)
		a.bus.Subscribe(event.RosterAdded, a.saveContact)
		a.bus.Subscribe(event.RosterUpdated, a.saveContact)
		a.bus.Subscribe(event.RosterRemoved, a.deleteContact)
	}
	if a.cfg.Storage.SaveMessages {
		a.bus.Subscribe(event.Message, a.saveMessage)
	}
}

func toEntry(c roster.Contact) sqlite.RosterEntry {
	return sqlite.RosterEntry{
		JID:          c.JID,
		Name:         c.Name,
		Groups:       c.Groups,
		Subscription: string(c.Subscription),
	}
}

func (a *App) saveRoster(e event.Event) error {
	account := a.CurrentAccount()
	d, ok := e.Data.(event.RosterData)
	if !ok || account == "" {
		return nil
	}
	entries := make([]sqlite.RosterEntry, 0, len(d.Contacts))
	for _, c := range d.Contacts {
		entries = append(entries, toEntry(c))
	}
	return a.storage.SaveRoster(account, a.core.Roster.Version(), entries)
}

func (a *App) saveContact(e event.Event) error {
	account := a.CurrentAccount()
	d, ok := e.Data.(event.ContactData)
	if !ok || account == "" {
		return nil
	}
	return a.storage.SaveContact(account, a.core.Roster.Version(), toEntry(d.Contact))
}

func (a *App) deleteContact(e event.Event) error {
	account := a.CurrentAccount()
	d, ok := e.Data.(event.ContactData)
	if !ok || account == "" {
		return nil
	}
	return a.storage.DeleteContact(account, a.core.Roster.Version(), d.Contact.JID)
}

func (a *App) saveMessage(e event.Event) error {
	d, ok := e.Data.(event.RoomMessageData)
	if !ok || d.Message.Body == "" {
		return nil
	}
	id := ""
	if d.Stanza != nil {
		id = d.Stanza.StanzaID()
	}
	if id == "" {
		id = uuid.New().String()
	}
	return a.storage.SaveMessage(a.CurrentAccount(), sqlite.Message{
		ID:        id,
		RoomJID:   d.RoomJID,
		Sender:    d.Message.Name,
		Body:      d.Message.Body,
		XHTML:     d.Message.XHTMLMessage,
		Timestamp: d.Timestamp,
		Type:      d.Message.Type,
		Delayed:   d.Message.Delay,
		Carbon:    d.Carbon,
	})
}
