package core

import (
	"context"
	"sync"

	"github.com/meszmate/chatcore/internal/xmpp/jidutil"
	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

// Matcher selects stanzas. Empty fields match anything. A From without a
// resource matches every resource of that address.
type Matcher struct {
	Namespace string
	Name      string
	Type      string
	ID        string
	From      string
}

func (m Matcher) match(s stanza.Stanza) bool {
	if m.Name != "" && m.Name != s.StanzaName() {
		return false
	}
	if m.Type != "" && m.Type != s.StanzaType() {
		return false
	}
	if m.ID != "" && m.ID != s.StanzaID() {
		return false
	}
	if m.From != "" {
		from := jidutil.UnescapeJID(s.StanzaFrom())
		if jidutil.Resource(m.From) == "" {
			if !jidutil.Equal(m.From, from) {
				return false
			}
		} else if m.From != from {
			return false
		}
	}
	if m.Namespace != "" {
		found := false
		for _, ns := range s.Namespaces() {
			if ns == m.Namespace {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// HandlerFunc handles a matched stanza and reports whether it stays
// registered.
type HandlerFunc func(ctx context.Context, s stanza.Stanza) bool

// HandlerRef identifies a registered handler.
type HandlerRef uint64

type handler struct {
	ref HandlerRef
	m   Matcher
	fn  HandlerFunc
}

type handlerRegistry struct {
	mu       sync.Mutex
	next     HandlerRef
	handlers []handler
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{}
}

func (r *handlerRegistry) add(m Matcher, fn HandlerFunc) HandlerRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.handlers = append(r.handlers, handler{ref: r.next, m: m, fn: fn})
	return r.next
}

func (r *handlerRegistry) remove(ref HandlerRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, h := range r.handlers {
		if h.ref == ref {
			r.handlers = append(r.handlers[:i:i], r.handlers[i+1:]...)
			return
		}
	}
}

func (r *handlerRegistry) dispatch(ctx context.Context, s stanza.Stanza) {
	r.mu.Lock()
	hs := make([]handler, len(r.handlers))
	copy(hs, r.handlers)
	r.mu.Unlock()

	for _, h := range hs {
		if !h.m.match(s) {
			continue
		}
		if !h.fn(ctx, s) {
			r.remove(h.ref)
		}
	}
}

func (r *handlerRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}
