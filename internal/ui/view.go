package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/meszmate/chatcore/internal/ui/theme"
	"github.com/meszmate/chatcore/internal/xmpp/muc"
)

const occupantWidth = 22

// View renders the model
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.quitting {
		return "Goodbye!\n"
	}

	styles := m.themes.Styles()
	mainHeight := m.height - 3
	if mainHeight < 3 {
		mainHeight = 3
	}

	w := m.current()
	var occupants []*muc.ChatUser
	if w.jid != "" && !w.closed {
		if room := m.app.Core().Rooms.Get(w.jid); room != nil {
			occupants = room.Occupants().Sorted()
		}
	}

	logWidth := m.width
	if len(occupants) > 0 {
		logWidth -= occupantWidth
	}
	main := styles.WindowActive.
		Width(max(logWidth-2, 10)).
		Height(mainHeight - 2).
		Render(m.renderLines(styles, w, mainHeight-2))

	if len(occupants) > 0 {
		list := styles.WindowInactive.
			Width(occupantWidth - 2).
			Height(mainHeight - 2).
			Render(renderOccupants(styles, occupants, mainHeight-2))
		main = lipgloss.JoinHorizontal(lipgloss.Top, main, list)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTabs(styles),
		main,
		m.renderStatus(styles),
		styles.Prompt.Render("> ")+styles.Input.Render(string(m.input)),
	)
}

func (m Model) renderTabs(styles *theme.Styles) string {
	tabs := make([]string, 0, len(m.windows))
	for i, w := range m.windows {
		label := fmt.Sprintf("%d:%s", i+1, w.name)
		if w.unread > 0 {
			label += fmt.Sprintf("(%d)", w.unread)
		}
		if i == m.active {
			tabs = append(tabs, styles.TabActive.Render(label))
		} else {
			tabs = append(tabs, styles.Tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) renderLines(styles *theme.Styles, w *window, height int) string {
	lines := w.lines
	end := len(lines) - m.scroll
	if end < 0 {
		end = 0
	}
	start := end - height
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	if w.jid != "" {
		if room := m.app.Core().Rooms.Get(w.jid); room != nil {
			if subject, _ := room.Subject(); subject != "" && start == 0 {
				b.WriteString(styles.Subject.Render(subject))
				b.WriteByte('\n')
			}
		}
	}
	for _, l := range lines[start:end] {
		b.WriteString(renderLine(styles, l))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderLine(styles *theme.Styles, l line) string {
	ts := styles.Timestamp.Render(l.at.Format("15:04"))
	switch l.kind {
	case kindSystem:
		text := l.text
		if l.nick != "" {
			text = l.nick + ": " + text
		}
		return ts + " " + styles.System.Render("-- "+text)
	case kindSubject:
		return ts + " " + styles.Subject.Render(l.nick+" set the "+l.text)
	case kindError:
		return ts + " " + styles.Error.Render("!! "+l.text)
	case kindOwn:
		return ts + " " + styles.OwnNick.Render("<"+l.nick+">") + " " + styles.Body.Render(l.text)
	default:
		return ts + " " + styles.Nick.Render("<"+l.nick+">") + " " + styles.Body.Render(l.text)
	}
}

func renderOccupants(styles *theme.Styles, users []*muc.ChatUser, height int) string {
	var b strings.Builder
	b.WriteString(styles.Header.Render(fmt.Sprintf("%d users", len(users))))
	for i, u := range users {
		if i >= height-1 {
			break
		}
		b.WriteByte('\n')
		switch u.Role() {
		case muc.RoleModerator:
			b.WriteString(styles.Moderator.Render("@" + u.Nick()))
		case muc.RoleVisitor:
			b.WriteString(styles.Visitor.Render(" " + u.Nick()))
		default:
			b.WriteString(styles.Participant.Render(" " + u.Nick()))
		}
	}
	return b.String()
}

func (m Model) renderStatus(styles *theme.Styles) string {
	account := m.app.CurrentAccount()
	if account == "" {
		account = "anonymous"
	}
	state := styles.StatusOffline.Render(m.status)
	if m.app.Connected() {
		state = styles.StatusOnline.Render(m.status)
	}
	rooms := styles.StatusBar.Render(fmt.Sprintf("%d rooms", m.app.Core().Rooms.Count()))
	bar := lipgloss.JoinHorizontal(lipgloss.Top, styles.StatusBar.Render(account), state, rooms)
	if pad := m.width - lipgloss.Width(bar); pad > 0 {
		bar += styles.StatusBar.UnsetPadding().Render(strings.Repeat(" ", pad))
	}
	return bar
}
