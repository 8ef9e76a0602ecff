package event

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ErrStop is returned by a handler to stop delivery of a vetoable event.
var ErrStop = errors.New("event: stop propagation")

// Handler is a function that handles events
type Handler func(e Event) error

type subscription struct {
	id  uint64
	all bool
	typ Type
	fn  Handler
}

// Bus delivers events synchronously, in subscription order.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	log    zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{log: log}
}

func (b *Bus) add(s subscription) func() {
	b.mu.Lock()
	b.nextID++
	s.id = b.nextID
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, cur := range b.subs {
			if cur.id == s.id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Subscribe subscribes to one event type and returns the unsubscribe func.
func (b *Bus) Subscribe(t Type, fn Handler) func() {
	return b.add(subscription{typ: t, fn: fn})
}

// SubscribeAll subscribes to every event type.
func (b *Bus) SubscribeAll(fn Handler) func() {
	return b.add(subscription{all: true, fn: fn})
}

// Publish delivers e to its subscribers in order. It returns false when a
// subscriber vetoed a vetoable event.
func (b *Bus) Publish(e Event) bool {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.all && s.typ != e.Type {
			continue
		}
		err := s.fn(e)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrStop) {
			if e.Type.Vetoable() {
				b.log.Debug().Str("event", e.Type.String()).Msg("event vetoed")
				return false
			}
			continue
		}
		b.log.Warn().Err(err).Str("event", e.Type.String()).Msg("event handler failed")
	}
	return true
}

// Clear removes all handlers
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}
