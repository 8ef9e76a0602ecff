package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const appName = "chatcore"

// Config represents the main application configuration
type Config struct {
	General   GeneralConfig   `toml:"general"`
	Account   AccountConfig   `toml:"account"`
	MUC       MUCConfig       `toml:"muc"`
	Transport TransportConfig `toml:"transport"`
	Plugins   PluginsConfig   `toml:"plugins"`
	Logging   LoggingConfig   `toml:"logging"`
	Storage   StorageConfig   `toml:"storage"`
	UI        UIConfig        `toml:"ui"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	DataDir     string `toml:"data_dir"`
	AutoConnect bool   `toml:"auto_connect"`
}

// AccountConfig selects the login procedure. A jid with a password logs
// in; a host with a nick logs in anonymously.
type AccountConfig struct {
	JID      string `toml:"jid"`
	Password string `toml:"password"`
	Nick     string `toml:"nick"`
	Server   string `toml:"server"`
	Port     int    `toml:"port"`
	Resource string `toml:"resource"`
}

// MUCConfig contains room settings
type MUCConfig struct {
	// AutojoinBookmarks joins bookmarked rooms and takes precedence over
	// Autojoin.
	AutojoinBookmarks bool `toml:"autojoin_bookmarks"`
	// Autojoin entries are jid or jid:password.
	Autojoin         []string `toml:"autojoin"`
	PresencePriority int      `toml:"presence_priority"`
}

// TransportConfig contains stream settings
type TransportConfig struct {
	// SendRate is the outgoing stanza rate per second (0 = unlimited)
	SendRate  float64 `toml:"send_rate"`
	SendBurst int     `toml:"send_burst"`
	// DialTimeout in seconds
	DialTimeout int `toml:"dial_timeout"`
}

// PluginsConfig contains plugin settings
type PluginsConfig struct {
	Enabled   []string `toml:"enabled"`
	PluginDir string   `toml:"plugin_dir"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level   string `toml:"level"`
	File    string `toml:"file"`
	Console bool   `toml:"console"`
}

// StorageConfig contains storage settings
type StorageConfig struct {
	// Enabled opens the local database
	Enabled bool `toml:"enabled"`

	// SaveRoster caches the roster and its version between runs
	SaveRoster bool `toml:"save_roster"`

	// SaveMessages enables/disables message history
	SaveMessages bool `toml:"save_messages"`

	// MessageRetentionDays is the number of days to keep messages (0 = forever)
	MessageRetentionDays int `toml:"message_retention_days"`
}

// UIConfig contains console settings
type UIConfig struct {
	Theme string `toml:"theme"`
	// ThemeDir holds user themes as <name>.toml
	ThemeDir string `toml:"theme_dir"`
}

// Paths holds the XDG-compliant paths for the application
type Paths struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			AutoConnect: true,
		},
		Account: AccountConfig{
			Port:     5222,
			Resource: appName,
		},
		MUC: MUCConfig{
			AutojoinBookmarks: true,
		},
		Transport: TransportConfig{
			SendRate:    10,
			SendBurst:   20,
			DialTimeout: 30,
		},
		Plugins: PluginsConfig{
			Enabled: []string{},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Enabled:      true,
			SaveRoster:   true,
			SaveMessages: true,
		},
		UI: UIConfig{
			Theme: "rainbow",
		},
	}
}

// GetPaths returns XDG-compliant paths for the application
func GetPaths() (*Paths, error) {
	dir := func(env string, fallback ...string) (string, error) {
		base := os.Getenv(env)
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(append([]string{home}, fallback...)...)
		}
		return filepath.Join(base, appName), nil
	}

	configDir, err := dir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return nil, err
	}
	dataDir, err := dir("XDG_DATA_HOME", ".local", "share")
	if err != nil {
		return nil, err
	}
	cacheDir, err := dir("XDG_CACHE_HOME", ".cache")
	if err != nil {
		return nil, err
	}
	return &Paths{
		ConfigDir: configDir,
		DataDir:   dataDir,
		CacheDir:  cacheDir,
	}, nil
}

// EnsureDirectories creates the necessary directories
func (p *Paths) EnsureDirectories() error {
	dirs := []string{p.ConfigDir, p.DataDir, p.CacheDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ConfigFile returns the default config file location.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "config.toml")
}

// Load loads the configuration from the default config file
func Load() (*Config, error) {
	paths, err := GetPaths()
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}
	return LoadFile(paths.ConfigFile(), paths.DataDir)
}

// LoadFile loads path over the defaults. A missing file yields the
// defaults. Relative locations are resolved against dataDir.
func LoadFile(path, dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if cfg.General.DataDir == "" {
		cfg.General.DataDir = dataDir
	} else {
		cfg.General.DataDir = expandPath(cfg.General.DataDir)
	}

	if cfg.Plugins.PluginDir == "" {
		cfg.Plugins.PluginDir = filepath.Join(cfg.General.DataDir, "plugins")
	} else {
		cfg.Plugins.PluginDir = expandPath(cfg.Plugins.PluginDir)
	}

	if cfg.UI.ThemeDir == "" {
		cfg.UI.ThemeDir = filepath.Join(cfg.General.DataDir, "themes")
	} else {
		cfg.UI.ThemeDir = expandPath(cfg.UI.ThemeDir)
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.General.DataDir, appName+".log")
	} else {
		cfg.Logging.File = expandPath(cfg.Logging.File)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.Account.Port < 0 || c.Account.Port > 65535 {
		return fmt.Errorf("account.port out of range: %d", c.Account.Port)
	}
	if c.Transport.SendRate < 0 {
		return fmt.Errorf("transport.send_rate must not be negative")
	}
	for _, room := range c.MUC.Autojoin {
		if strings.TrimSpace(room) == "" || strings.HasPrefix(room, ":") {
			return fmt.Errorf("muc.autojoin: invalid entry %q", room)
		}
	}
	return nil
}

// DatabasePath returns the location of the local database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.General.DataDir, appName+".db")
}

// Save saves the configuration to the default config file
func Save(cfg *Config) error {
	paths, err := GetPaths()
	if err != nil {
		return err
	}
	return SaveFile(cfg, paths.ConfigFile())
}

// SaveFile writes cfg to path. The file is private to the user since it
// may hold a password.
func SaveFile(cfg *Config, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
