package main

import (
	"testing"

	"github.com/meszmate/chatcore/pkg/plugin"
)

func TestNotification(t *testing.T) {
	tests := []struct {
		name  string
		event plugin.Event
		quiet bool
		title string
		body  string
	}{
		{
			name:  "join",
			event: plugin.Event{Type: "room.presence", Action: "join", Nick: "alice", RoomName: "lobby"},
			title: "lobby", body: "alice joined",
		},
		{
			name:  "quiet join",
			event: plugin.Event{Type: "room.presence", Action: "join", Nick: "alice", RoomName: "lobby"},
			quiet: true,
		},
		{
			name:  "own join",
			event: plugin.Event{Type: "room.presence", Action: "join", Nick: "me", Extra: map[string]string{"self": "true"}},
		},
		{
			name:  "room message",
			event: plugin.Event{Type: "message", Nick: "alice", RoomName: "lobby", Body: "hi"},
			title: "alice (lobby)", body: "hi",
		},
		{
			name:  "history",
			event: plugin.Event{Type: "message", Nick: "alice", Body: "old", Extra: map[string]string{"delay": "true"}},
		},
		{
			name:  "connection",
			event: plugin.Event{Type: "connection.status", Action: "connected"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body := notification(tt.event, tt.quiet)
			if title != tt.title || body != tt.body {
				t.Fatalf("got %q / %q", title, body)
			}
		})
	}
}

func TestDeliverSendsNotification(t *testing.T) {
	var sent []string
	p := &StatusNotifyPlugin{notify: func(title, body string) error {
		sent = append(sent, title+": "+body)
		return nil
	}}
	if err := p.Init(plugin.Config{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	reply, err := p.Deliver(plugin.Event{Type: "chat.invite", From: "bob@x.com", RoomJID: "party@conf.example.com"})
	if err != nil || reply.Veto {
		t.Fatalf("reply = %+v err = %v", reply, err)
	}
	if len(sent) != 1 || sent[0] != "Invitation: bob@x.com invites you to party@conf.example.com" {
		t.Fatalf("sent = %v", sent)
	}
	_ = p.Stop()
	if _, err := p.Deliver(plugin.Event{Type: "chat.invite"}); err != nil || len(sent) != 1 {
		t.Fatal("stopped plugin still notifies")
	}
}
