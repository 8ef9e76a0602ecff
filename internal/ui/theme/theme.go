package theme

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/lipgloss"
)

// Theme represents a complete console theme
type Theme struct {
	Name        string       `toml:"name"`
	Description string       `toml:"description"`
	Colors      ColorsConfig `toml:"colors"`
}

// ColorsConfig contains the base color palette
type ColorsConfig struct {
	Primary    string `toml:"primary"`
	Secondary  string `toml:"secondary"`
	Accent     string `toml:"accent"`
	Foreground string `toml:"foreground"`
	Muted      string `toml:"muted"`
	Border     string `toml:"border"`
	Error      string `toml:"error"`
	Warning    string `toml:"warning"`
	Success    string `toml:"success"`
	Moderator  string `toml:"moderator"`
	Visitor    string `toml:"visitor"`
}

// Styles contains the compiled lipgloss styles for a theme
type Styles struct {
	Base           lipgloss.Style
	WindowActive   lipgloss.Style
	WindowInactive lipgloss.Style

	// Room window
	Header      lipgloss.Style
	Tab         lipgloss.Style
	TabActive   lipgloss.Style
	Timestamp   lipgloss.Style
	Nick        lipgloss.Style
	OwnNick     lipgloss.Style
	Body        lipgloss.Style
	Subject     lipgloss.Style
	System      lipgloss.Style
	Error       lipgloss.Style
	Moderator   lipgloss.Style
	Participant lipgloss.Style
	Visitor     lipgloss.Style

	StatusBar     lipgloss.Style
	StatusOnline  lipgloss.Style
	StatusOffline lipgloss.Style
	Prompt        lipgloss.Style
	Input         lipgloss.Style
}

// Manager handles theme loading and switching
type Manager struct {
	themes      map[string]*Theme
	current     *Theme
	currentName string
	styles      *Styles
	themeDirs   []string
}

// NewManager creates a new theme manager
func NewManager(themeDirs ...string) *Manager {
	m := &Manager{
		themes:    make(map[string]*Theme),
		themeDirs: themeDirs,
	}

	m.themes["rainbow"] = RainbowTheme()
	m.themes["nord"] = NordTheme()
	m.themes["matrix"] = MatrixTheme()

	m.current = m.themes["rainbow"]
	m.currentName = "rainbow"
	m.styles = compileStyles(m.current)
	return m
}

// LoadTheme loads a theme from a TOML file
func (m *Manager) LoadTheme(name string) error {
	for _, dir := range m.themeDirs {
		path := filepath.Join(dir, name+".toml")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		theme := *RainbowTheme()
		if _, err := toml.DecodeFile(path, &theme); err != nil {
			return fmt.Errorf("failed to parse theme file %s: %w", path, err)
		}
		theme.Name = name
		m.themes[name] = &theme
		return nil
	}
	return fmt.Errorf("theme %s not found", name)
}

// SetTheme switches to a different theme
func (m *Manager) SetTheme(name string) error {
	theme, ok := m.themes[name]
	if !ok {
		if err := m.LoadTheme(name); err != nil {
			return err
		}
		theme = m.themes[name]
	}
	m.current = theme
	m.currentName = name
	m.styles = compileStyles(theme)
	return nil
}

// Current returns the current theme
func (m *Manager) Current() *Theme {
	return m.current
}

// CurrentName returns the current theme name
func (m *Manager) CurrentName() string {
	return m.currentName
}

// Styles returns the compiled styles for the current theme
func (m *Manager) Styles() *Styles {
	return m.styles
}

// AvailableThemes returns the known theme names sorted
func (m *Manager) AvailableThemes() []string {
	names := make([]string, 0, len(m.themes))
	for name := range m.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func color(c string) lipgloss.Color {
	return lipgloss.Color(c)
}

// compileStyles compiles a theme into lipgloss styles
func compileStyles(t *Theme) *Styles {
	c := t.Colors
	s := &Styles{}

	s.Base = lipgloss.NewStyle().Foreground(color(c.Foreground))

	s.WindowActive = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color(c.Primary))
	s.WindowInactive = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(color(c.Border))

	s.Header = lipgloss.NewStyle().
		Foreground(color(c.Primary)).
		Bold(true).
		Padding(0, 1)
	s.Tab = lipgloss.NewStyle().
		Foreground(color(c.Muted)).
		Padding(0, 1)
	s.TabActive = s.Tab.
		Foreground(color(c.Accent)).
		Bold(true).
		Underline(true)

	s.Timestamp = lipgloss.NewStyle().Foreground(color(c.Muted))
	s.Nick = lipgloss.NewStyle().Foreground(color(c.Secondary)).Bold(true)
	s.OwnNick = lipgloss.NewStyle().Foreground(color(c.Accent)).Bold(true)
	s.Body = lipgloss.NewStyle().Foreground(color(c.Foreground))
	s.Subject = lipgloss.NewStyle().Foreground(color(c.Warning)).Italic(true)
	s.System = lipgloss.NewStyle().Foreground(color(c.Muted)).Italic(true)
	s.Error = lipgloss.NewStyle().Foreground(color(c.Error)).Bold(true)

	s.Moderator = lipgloss.NewStyle().Foreground(color(c.Moderator)).Bold(true)
	s.Participant = lipgloss.NewStyle().Foreground(color(c.Foreground))
	s.Visitor = lipgloss.NewStyle().Foreground(color(c.Visitor))

	s.StatusBar = lipgloss.NewStyle().
		Foreground(color(c.Foreground)).
		Background(color(c.Border)).
		Padding(0, 1)
	s.StatusOnline = s.StatusBar.Foreground(color(c.Success)).Bold(true)
	s.StatusOffline = s.StatusBar.Foreground(color(c.Error)).Bold(true)

	s.Prompt = lipgloss.NewStyle().Foreground(color(c.Primary)).Bold(true)
	s.Input = lipgloss.NewStyle().Foreground(color(c.Foreground))
	return s
}

// RainbowTheme is the default theme
func RainbowTheme() *Theme {
	return &Theme{
		Name:        "rainbow",
		Description: "Bright colors on the terminal background",
		Colors: ColorsConfig{
			Primary:    "#FF6AC1",
			Secondary:  "#57C7FF",
			Accent:     "#F3F99D",
			Foreground: "#F1F1F0",
			Muted:      "#8E8E8E",
			Border:     "#3A3A3A",
			Error:      "#FF5C57",
			Warning:    "#FFB86C",
			Success:    "#5AF78E",
			Moderator:  "#FF6AC1",
			Visitor:    "#686868",
		},
	}
}

// NordTheme is an arctic, north-bluish palette
func NordTheme() *Theme {
	return &Theme{
		Name:        "nord",
		Description: "Arctic, north-bluish palette",
		Colors: ColorsConfig{
			Primary:    "#88C0D0",
			Secondary:  "#81A1C1",
			Accent:     "#EBCB8B",
			Foreground: "#ECEFF4",
			Muted:      "#4C566A",
			Border:     "#3B4252",
			Error:      "#BF616A",
			Warning:    "#D08770",
			Success:    "#A3BE8C",
			Moderator:  "#B48EAD",
			Visitor:    "#616E88",
		},
	}
}

// MatrixTheme is green on black
func MatrixTheme() *Theme {
	return &Theme{
		Name:        "matrix",
		Description: "Green phosphor",
		Colors: ColorsConfig{
			Primary:    "#00FF41",
			Secondary:  "#008F11",
			Accent:     "#D1FFD6",
			Foreground: "#00FF41",
			Muted:      "#005F0F",
			Border:     "#003B00",
			Error:      "#FF3131",
			Warning:    "#CCFF00",
			Success:    "#00FF41",
			Moderator:  "#D1FFD6",
			Visitor:    "#005F0F",
		},
	}
}
