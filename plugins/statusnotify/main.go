package main

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/meszmate/chatcore/pkg/plugin"
)

// StatusNotifyPlugin notifies on room joins, leaves and messages
type StatusNotifyPlugin struct {
	running bool
	// quiet suppresses join and leave notifications.
	quiet  bool
	notify func(title, body string) error
}

// Name returns the plugin name
func (p *StatusNotifyPlugin) Name() string {
	return "statusnotify"
}

// Version returns the plugin version
func (p *StatusNotifyPlugin) Version() string {
	return "1.0.0"
}

// Description returns a short description
func (p *StatusNotifyPlugin) Description() string {
	return "Desktop notifications for room activity"
}

// Init configures the plugin
func (p *StatusNotifyPlugin) Init(cfg plugin.Config) error {
	p.quiet = cfg.Options["quiet"] == "true"
	if p.notify == nil {
		p.notify = sendNotification
	}
	p.running = true
	return nil
}

// Deliver turns events into notifications. It never vetoes.
func (p *StatusNotifyPlugin) Deliver(e plugin.Event) (plugin.Reply, error) {
	if !p.running {
		return plugin.Reply{}, nil
	}
	title, body := notification(e, p.quiet)
	if title == "" {
		return plugin.Reply{}, nil
	}
	return plugin.Reply{}, p.notify(title, body)
}

func notification(e plugin.Event, quiet bool) (title, body string) {
	switch e.Type {
	case "room.presence":
		if quiet || e.Extra["self"] == "true" {
			return "", ""
		}
		switch e.Action {
		case "join":
			return e.RoomName, fmt.Sprintf("%s joined", e.Nick)
		case "leave":
			return e.RoomName, fmt.Sprintf("%s left", e.Nick)
		case "kick":
			return e.RoomName, fmt.Sprintf("%s was kicked", e.Nick)
		case "ban":
			return e.RoomName, fmt.Sprintf("%s was banned", e.Nick)
		}
	case "message":
		if e.Extra["carbon"] == "true" || e.Extra["delay"] == "true" || e.Body == "" {
			return "", ""
		}
		if e.Nick == "" {
			return e.RoomName, e.Body
		}
		return fmt.Sprintf("%s (%s)", e.Nick, e.RoomName), e.Body
	case "chat.invite":
		return "Invitation", fmt.Sprintf("%s invites you to %s", e.From, e.RoomJID)
	}
	return "", ""
}

// Stop stops the plugin
func (p *StatusNotifyPlugin) Stop() error {
	p.running = false
	return nil
}

// sendNotification sends a desktop notification
func sendNotification(title, body string) error {
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, body, title)
		return exec.Command("osascript", "-e", script).Run()

	case "linux":
		return exec.Command("notify-send", title, body).Run()

	default:
		return nil
	}
}

func main() {
	plugin.Serve(&StatusNotifyPlugin{})
}
