package ui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/meszmate/chatcore/internal/app"
	"github.com/meszmate/chatcore/internal/ui/theme"
)

const (
	feedSize  = 256
	maxLines  = 1000
	statusTab = "status"
)

type lineKind int

const (
	kindMessage lineKind = iota
	kindOwn
	kindSystem
	kindSubject
	kindError
)

type line struct {
	at   time.Time
	kind lineKind
	nick string
	text string
}

// window is one room or conversation. The status window has no jid.
type window struct {
	jid    string
	name   string
	lines  []line
	unread int
	closed bool
}

func (w *window) add(l line) {
	w.lines = append(w.lines, l)
	if len(w.lines) > maxLines {
		w.lines = w.lines[len(w.lines)-maxLines:]
	}
}

// resultMsg reports the outcome of a command run in the background.
type resultMsg struct {
	window string
	text   string
	err    error
}

// Model is the root Bubble Tea model
type Model struct {
	app    *app.App
	feed   *Feed
	ctx    context.Context
	themes *theme.Manager

	windows []*window
	active  int
	input   []rune
	scroll  int
	status  string

	width    int
	height   int
	ready    bool
	quitting bool
	now      func() time.Time
}

// NewModel creates a new root model
func NewModel(ctx context.Context, application *app.App) Model {
	cfg := application.Config()
	themeManager := theme.NewManager(cfg.UI.ThemeDir)
	if err := themeManager.SetTheme(cfg.UI.Theme); err != nil {
		// Fall back to default theme
		_ = themeManager.SetTheme("rainbow")
	}

	return Model{
		app:     application,
		feed:    NewFeed(application.Bus(), feedSize),
		ctx:     ctx,
		themes:  themeManager,
		windows: []*window{{name: statusTab}},
		status:  "disconnected",
		now:     time.Now,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		m.feed.Next(m.ctx),
		m.autoConnect(),
	)
}

func (m Model) autoConnect() tea.Cmd {
	cfg := m.app.Config()
	if !cfg.General.AutoConnect {
		return nil
	}
	target := cfg.Account.JID
	if target == "" {
		target = cfg.Account.Server
	}
	return m.connect(target, cfg.Account.Password, cfg.Account.Nick)
}

func (m Model) connect(target, password, nick string) tea.Cmd {
	a := m.app
	ctx := m.ctx
	return func() tea.Msg {
		return resultMsg{err: a.Connect(ctx, target, password, nick)}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		m.handleEvent(msg.Event)
		return m, m.feed.Next(m.ctx)

	case resultMsg:
		w := m.statusWindow()
		if msg.window != "" {
			w = m.window(msg.window, "")
		}
		switch {
		case msg.err != nil:
			m.post(w, line{kind: kindError, text: msg.err.Error()})
		case msg.text != "":
			m.post(w, line{kind: kindSystem, text: msg.text})
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		m.feed.Close()
		return m, tea.Quit
	case tea.KeyEnter:
		text := strings.TrimSpace(string(m.input))
		m.input = nil
		m.scroll = 0
		if text == "" {
			return m, nil
		}
		return m.submit(text)
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyTab, tea.KeyCtrlN:
		m.focus(m.active + 1)
	case tea.KeyShiftTab, tea.KeyCtrlP:
		m.focus(m.active - 1)
	case tea.KeyPgUp:
		m.scroll += 10
	case tea.KeyPgDown:
		m.scroll -= 10
		if m.scroll < 0 {
			m.scroll = 0
		}
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
	}
	return m, nil
}

func (m *Model) focus(i int) {
	n := len(m.windows)
	m.active = ((i % n) + n) % n
	m.windows[m.active].unread = 0
	m.scroll = 0
}

// window returns the window for jid, creating it when missing.
func (m *Model) window(jid, name string) *window {
	for _, w := range m.windows {
		if w.jid != "" && strings.EqualFold(w.jid, jid) {
			if name != "" {
				w.name = name
			}
			w.closed = false
			return w
		}
	}
	if name == "" {
		name = jid
	}
	w := &window{jid: jid, name: name}
	m.windows = append(m.windows, w)
	return w
}

func (m *Model) statusWindow() *window {
	return m.windows[0]
}

func (m *Model) current() *window {
	return m.windows[m.active]
}

func (m *Model) indexOf(w *window) int {
	for i, cur := range m.windows {
		if cur == w {
			return i
		}
	}
	return 0
}

// post appends l to w and counts it as unread when w is in the background.
func (m *Model) post(w *window, l line) {
	if l.at.IsZero() {
		l.at = m.now()
	}
	w.add(l)
	if w != m.current() && (l.kind == kindMessage || l.kind == kindOwn) {
		w.unread++
	}
}
