package plugin

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hashicorp/go-plugin"
	"github.com/rs/zerolog"
)

const pluginKey = "sink"

// Host manages plugin lifecycle
type Host struct {
	mu        sync.RWMutex
	plugins   map[string]*LoadedPlugin
	order     []string
	pluginDir string
	log       zerolog.Logger
}

// LoadedPlugin represents a loaded plugin
type LoadedPlugin struct {
	Name    string
	Version string
	Sink    Sink
	// Client is nil for sinks running in process.
	Client *plugin.Client
}

// Handshake is the plugin handshake config
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "CHATCORE_PLUGIN",
	MagicCookieValue: "chatcore-sink",
}

// PluginMap is the plugin type map
var PluginMap = map[string]plugin.Plugin{
	pluginKey: &SinkPlugin{},
}

// NewHost creates a new plugin host
func NewHost(pluginDir string, log zerolog.Logger) *Host {
	return &Host{
		plugins:   make(map[string]*LoadedPlugin),
		pluginDir: pluginDir,
		log:       log,
	}
}

// LoadEnabled loads the named plugin binaries from the plugin directory.
// Failures are logged and skipped.
func (h *Host) LoadEnabled(names []string) {
	if h.pluginDir == "" {
		return
	}
	for _, name := range names {
		path := filepath.Join(h.pluginDir, name)
		if _, err := os.Stat(path); err != nil {
			h.log.Warn().Err(err).Str("plugin", name).Msg("plugin not found")
			continue
		}
		if err := h.Load(path, Config{Enabled: true}); err != nil {
			h.log.Warn().Err(err).Str("plugin", name).Msg("failed to load plugin")
		}
	}
}

// Load starts a plugin binary and registers its sink.
func (h *Host) Load(path string, cfg Config) error {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              exec.Command(path),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return fmt.Errorf("failed to connect to plugin: %w", err)
	}

	raw, err := rpcClient.Dispense(pluginKey)
	if err != nil {
		client.Kill()
		return fmt.Errorf("failed to dispense plugin: %w", err)
	}

	sink, ok := raw.(Sink)
	if !ok {
		client.Kill()
		return fmt.Errorf("plugin %s is not a sink", path)
	}
	if err := h.add(sink, client, cfg); err != nil {
		client.Kill()
		return err
	}
	return nil
}

// AddLocal registers a sink that runs in process.
func (h *Host) AddLocal(sink Sink, cfg Config) error {
	return h.add(sink, nil, cfg)
}

func (h *Host) add(sink Sink, client *plugin.Client, cfg Config) error {
	if err := sink.Init(cfg); err != nil {
		return fmt.Errorf("failed to initialize plugin: %w", err)
	}
	name := sink.Name()

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.plugins[name]; ok {
		return fmt.Errorf("plugin already loaded: %s", name)
	}
	h.plugins[name] = &LoadedPlugin{
		Name:    name,
		Version: sink.Version(),
		Sink:    sink,
		Client:  client,
	}
	h.order = append(h.order, name)
	h.log.Info().Str("plugin", name).Msg("plugin loaded")
	return nil
}

// Deliver hands e to every sink in load order. It returns false when a
// sink vetoed a vetoable event; the remaining sinks are skipped then.
func (h *Host) Deliver(e Event) bool {
	for _, lp := range h.List() {
		reply, err := lp.Sink.Deliver(e)
		if err != nil {
			h.log.Warn().Err(err).Str("plugin", lp.Name).Str("event", e.Type).Msg("plugin failed to handle event")
			continue
		}
		if reply.Veto && e.Vetoable {
			return false
		}
	}
	return true
}

// Unload unloads a plugin
func (h *Host) Unload(name string) error {
	h.mu.Lock()
	lp := h.plugins[name]
	if lp == nil {
		h.mu.Unlock()
		return nil
	}
	delete(h.plugins, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.mu.Unlock()

	return h.stop(lp)
}

func (h *Host) stop(lp *LoadedPlugin) error {
	err := lp.Sink.Stop()
	if lp.Client != nil {
		lp.Client.Kill()
	}
	if err != nil {
		return fmt.Errorf("failed to stop plugin %s: %w", lp.Name, err)
	}
	return nil
}

// UnloadAll unloads all plugins
func (h *Host) UnloadAll() {
	h.mu.Lock()
	plugins := h.plugins
	h.plugins = make(map[string]*LoadedPlugin)
	h.order = nil
	h.mu.Unlock()

	for _, lp := range plugins {
		if err := h.stop(lp); err != nil {
			h.log.Warn().Err(err).Msg("plugin stop failed")
		}
	}
}

// List returns all loaded plugins in load order
func (h *Host) List() []*LoadedPlugin {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]*LoadedPlugin, 0, len(h.order))
	for _, name := range h.order {
		result = append(result, h.plugins[name])
	}
	return result
}

// Names returns the loaded plugin names sorted.
func (h *Host) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.plugins))
	for name := range h.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a specific plugin
func (h *Host) Get(name string) *LoadedPlugin {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.plugins[name]
}
