// Package action composes outgoing stanzas for callers and for the core.
// Apart from the ignore list it never mutates local state; changes arrive
// when the server echoes them back.
package action

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meszmate/chatcore/internal/core"
	"github.com/meszmate/chatcore/internal/event"
	"github.com/meszmate/chatcore/internal/xmpp/disco"
	"github.com/meszmate/chatcore/internal/xmpp/jidutil"
	"github.com/meszmate/chatcore/internal/xmpp/muc"
	"github.com/meszmate/chatcore/internal/xmpp/privacy"
	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

// ErrNotConnected is returned when no transport is attached.
var ErrNotConnected = errors.New("not connected")

// Transport accepts outgoing stanzas.
type Transport interface {
	Encode(ctx context.Context, v interface{}) error
}

// Options configure the outgoing side.
type Options struct {
	// AutojoinBookmarks joins the bookmarked rooms flagged for autojoin.
	AutojoinBookmarks bool
	// Autojoin lists rooms as jid or jid:password when bookmarks are off.
	Autojoin []string
	Priority int

	ClientName    string
	ClientVersion string
	ClientOS      string
}

// API is the action surface.
type API struct {
	core *core.Context
	opts Options
	caps *Capabilities
	log  zerolog.Logger

	mu        sync.RWMutex
	transport Transport
}

// New creates the API and attaches it to c.
func New(c *core.Context, opts Options, log zerolog.Logger) *API {
	a := &API{
		core: c,
		opts: opts,
		caps: NewCapabilities(),
		log:  log,
	}
	c.SetActions(a)
	return a
}

// SetTransport attaches or, with nil, detaches the transport.
func (a *API) SetTransport(t Transport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transport = t
}

// Capabilities returns the capability registry.
func (a *API) Capabilities() *Capabilities {
	return a.caps
}

func newID(prefix string) string {
	return prefix + ":" + uuid.NewString()
}

func (a *API) send(ctx context.Context, v interface{}) error {
	a.mu.RLock()
	t := a.transport
	a.mu.RUnlock()
	if t == nil {
		return fmt.Errorf("send: %w", ErrNotConnected)
	}
	if err := t.Encode(ctx, v); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// sendIQ sends an iq and routes the reply with the same id to fn.
func (a *API) sendIQ(ctx context.Context, iq *stanza.OutIQ, fn func(context.Context, *stanza.IQ)) error {
	var ref core.HandlerRef
	if fn != nil {
		ref = a.core.AddHandler(core.Matcher{Name: "iq", ID: iq.ID}, func(ctx context.Context, s stanza.Stanza) bool {
			if reply, ok := s.(*stanza.IQ); ok {
				fn(ctx, reply)
			}
			return false
		})
	}
	if err := a.send(ctx, iq); err != nil {
		if fn != nil {
			a.core.DeleteHandler(ref)
		}
		return err
	}
	return nil
}

func (a *API) localUser() (*muc.ChatUser, error) {
	u := a.core.User()
	if u == nil {
		return nil, fmt.Errorf("local user: %w", ErrNotConnected)
	}
	return u, nil
}

// address escapes jid for the wire and validates it.
func address(jid string) (string, error) {
	escaped := jidutil.EscapeJID(jid)
	if _, err := jidutil.Parse(jid); err != nil {
		return "", err
	}
	return escaped, nil
}

// Roster requests the roster. The reply is folded in by the core.
func (a *API) Roster(ctx context.Context) error {
	iq := &stanza.OutIQ{
		ID:      newID("roster"),
		Type:    stanza.TypeGet,
		Payload: &stanza.RosterQuery{Ver: a.core.Roster.Version()},
	}
	return a.sendIQ(ctx, iq, a.core.RosterResult)
}

// EnableCarbons turns on message carbons.
func (a *API) EnableCarbons(ctx context.Context) error {
	return a.send(ctx, &stanza.OutIQ{
		ID:      newID("carbons"),
		Type:    stanza.TypeSet,
		Payload: &stanza.CarbonsEnable{},
	})
}

// Presence sends the initial presence with the configured priority.
func (a *API) Presence(ctx context.Context) error {
	p := &stanza.OutPresence{ID: newID("pres")}
	if a.opts.Priority != 0 {
		p.Priority = strconv.Itoa(a.opts.Priority)
	}
	return a.send(ctx, p)
}

// Services requests the disco items of the server.
func (a *API) Services(ctx context.Context) error {
	u, err := a.localUser()
	if err != nil {
		return err
	}
	domain := jidutil.Domain(u.JID())
	iq := &stanza.OutIQ{
		ID:      newID("disco"),
		Type:    stanza.TypeGet,
		Payload: &stanza.DiscoItemsQuery{},
	}
	return a.sendIQ(ctx, iq, func(_ context.Context, reply *stanza.IQ) {
		if reply.DiscoItems != nil {
			a.core.Disco.SetItems(domain, disco.ItemsFromQuery(reply.DiscoItems))
		}
	})
}

// Autojoin joins bookmarked or configured rooms.
func (a *API) Autojoin(ctx context.Context) error {
	switch {
	case a.opts.AutojoinBookmarks:
		if err := a.send(ctx, &stanza.OutIQ{
			ID:      newID("bookmarks"),
			Type:    stanza.TypeGet,
			Payload: &stanza.PrivateQuery{Storage: &stanza.Bookmarks{}},
		}); err != nil {
			return err
		}
		return a.send(ctx, &stanza.OutIQ{
			ID:      newID("pubsub"),
			Type:    stanza.TypeGet,
			Payload: &stanza.PubSub{Items: &stanza.PubSubItems{Node: stanza.NSBookmarks}},
		})
	case len(a.opts.Autojoin) > 0:
		for _, entry := range a.opts.Autojoin {
			parts := strings.SplitN(entry, ":", 2)
			password := ""
			if len(parts) == 2 {
				password = parts[1]
			}
			if err := a.Join(ctx, parts[0], password); err != nil {
				return err
			}
		}
		return nil
	default:
		a.core.Bus.Publish(event.Event{Type: event.AutojoinMissing})
		return nil
	}
}

// ReplyVersion answers a software version query.
func (a *API) ReplyVersion(ctx context.Context, iq *stanza.IQ) error {
	return a.send(ctx, &stanza.OutIQ{
		ID:   iq.StanzaID(),
		To:   iq.StanzaFrom(),
		Type: stanza.TypeResult,
		Payload: &stanza.VersionQuery{
			Name:    a.opts.ClientName,
			Version: a.opts.ClientVersion,
			OS:      a.opts.ClientOS,
		},
	})
}

// ReplyDisco answers a disco#info query with the client features.
func (a *API) ReplyDisco(ctx context.Context, iq *stanza.IQ) error {
	info := &disco.Info{
		Identities: []disco.Identity{{Category: "client", Type: "pc", Name: a.opts.ClientName}},
		Features:   disco.ClientFeatures,
	}
	q := info.Query()
	if iq.DiscoInfo != nil {
		q.Node = iq.DiscoInfo.Node
	}
	return a.send(ctx, &stanza.OutIQ{
		ID:      iq.StanzaID(),
		To:      iq.StanzaFrom(),
		Type:    stanza.TypeResult,
		Payload: q,
	})
}

// AckIQ sends an empty result for iq.
func (a *API) AckIQ(ctx context.Context, iq *stanza.IQ) error {
	return a.send(ctx, &stanza.OutIQ{
		ID:   iq.StanzaID(),
		To:   iq.StanzaFrom(),
		Type: stanza.TypeResult,
	})
}

// GetIgnoreList fetches the ignore list. The core applies the reply.
func (a *API) GetIgnoreList(ctx context.Context) error {
	iq := &stanza.OutIQ{
		ID:      newID("privacy"),
		Type:    stanza.TypeGet,
		Payload: &stanza.PrivacyQuery{Lists: []stanza.PrivacyList{{Name: privacy.Ignore}}},
	}
	return a.sendIQ(ctx, iq, a.core.PrivacyResult)
}

// ResetIgnoreList creates an empty ignore list on the server.
func (a *API) ResetIgnoreList(ctx context.Context) error {
	return a.send(ctx, privacyListIQ(nil))
}

// RemoveIgnoreList deletes the ignore list on the server.
func (a *API) RemoveIgnoreList(ctx context.Context) error {
	return a.send(ctx, &stanza.OutIQ{
		ID:      newID("privacy"),
		Type:    stanza.TypeSet,
		Payload: &stanza.PrivacyQuery{Lists: []stanza.PrivacyList{{Name: privacy.Ignore}}},
	})
}

// SetIgnoreListActive makes the ignore list the active list.
func (a *API) SetIgnoreListActive(ctx context.Context) error {
	return a.send(ctx, &stanza.OutIQ{
		ID:      newID("privacy"),
		Type:    stanza.TypeSet,
		Payload: &stanza.PrivacyQuery{Active: &stanza.PrivacyActive{Name: privacy.Ignore}},
	})
}

// UpdatePrivacyList mirrors the local ignore list to the server.
func (a *API) UpdatePrivacyList(ctx context.Context) error {
	u, err := a.localUser()
	if err != nil {
		return err
	}
	return a.send(ctx, privacyListIQ(u.Privacy().Get(privacy.Ignore)))
}

// IgnoreUnignore toggles userJID on the ignore list and syncs it.
func (a *API) IgnoreUnignore(ctx context.Context, userJID string) error {
	u, err := a.localUser()
	if err != nil {
		return err
	}
	u.Privacy().Toggle(privacy.Ignore, userJID)
	return a.UpdatePrivacyList(ctx)
}

func privacyListIQ(jids []string) *stanza.OutIQ {
	list := stanza.PrivacyList{Name: privacy.Ignore}
	for i, jid := range jids {
		list.Items = append(list.Items, stanza.PrivacyItem{
			Type:    "jid",
			Value:   jidutil.EscapeJID(jid),
			Action:  "deny",
			Order:   i,
			Message: &struct{}{},
		})
	}
	if len(list.Items) == 0 {
		list.Items = []stanza.PrivacyItem{{Action: "allow", Order: 0}}
	}
	return &stanza.OutIQ{
		ID:      newID("privacy"),
		Type:    stanza.TypeSet,
		Payload: &stanza.PrivacyQuery{Lists: []stanza.PrivacyList{list}},
	}
}
