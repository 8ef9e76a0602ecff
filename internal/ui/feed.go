package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/meszmate/chatcore/internal/event"
)

// EventMsg carries a bus event into the program.
type EventMsg struct {
	Event event.Event
}

// Feed buffers bus events until the program picks them up. Publishing
// never blocks; events beyond the buffer are dropped.
type Feed struct {
	ch          chan event.Event
	unsubscribe func()
}

// NewFeed subscribes to every event on bus.
func NewFeed(bus *event.Bus, size int) *Feed {
	f := &Feed{ch: make(chan event.Event, size)}
	f.unsubscribe = bus.SubscribeAll(func(e event.Event) error {
		select {
		case f.ch <- e:
		default:
		}
		return nil
	})
	return f
}

// Next waits for the next event.
func (f *Feed) Next(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case e := <-f.ch:
			return EventMsg{Event: e}
		case <-ctx.Done():
			return nil
		}
	}
}

// Close stops the subscription.
func (f *Feed) Close() {
	f.unsubscribe()
}
