package app

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	mxmpp "mellium.im/xmpp"

	"github.com/meszmate/chatcore/internal/action"
	"github.com/meszmate/chatcore/internal/config"
	"github.com/meszmate/chatcore/internal/core"
	"github.com/meszmate/chatcore/internal/event"
	"github.com/meszmate/chatcore/internal/storage/sqlite"
	"github.com/meszmate/chatcore/internal/xmpp"
	"github.com/meszmate/chatcore/internal/xmpp/jidutil"
	"github.com/meszmate/chatcore/internal/xmpp/muc"
	"github.com/meszmate/chatcore/internal/xmpp/roster"
	"github.com/meszmate/chatcore/pkg/plugin"
)

// Version is reported to software version queries.
const Version = "0.1.0"

const stateLastJID = "last_jid"

// App represents the main application
type App struct {
	cfg     *config.Config
	log     zerolog.Logger
	bus     *event.Bus
	core    *core.Context
	actions *action.API
	plugins *plugin.Host
	ctx     context.Context
	cancel  context.CancelFunc

	// SQLite storage for roster and message persistence
	storage *sqlite.DB

	mu      sync.RWMutex
	client  *xmpp.Client
	account string
}

// New creates a new App instance
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:     cfg,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		account: jidutil.Bare(cfg.Account.JID),
	}

	if cfg.Storage.Enabled && cfg.General.DataDir != "" {
		storage, err := sqlite.New(cfg.DatabasePath())
		if err != nil {
			// Persistence is optional
			log.Warn().Err(err).Msg("failed to initialize storage")
		} else {
			a.storage = storage
			if days := cfg.Storage.MessageRetentionDays; days > 0 {
				if n, err := storage.DeleteOldMessages(days); err != nil {
					log.Warn().Err(err).Msg("failed to prune messages")
				} else if n > 0 {
					log.Info().Int64("deleted", n).Msg("pruned old messages")
				}
			}
		}
	}

	a.bus = event.NewBus(log.With().Str("component", "bus").Logger())
	a.core = core.New(a.bus, log.With().Str("component", "core").Logger())
	a.actions = action.New(a.core, action.Options{
		AutojoinBookmarks: cfg.MUC.AutojoinBookmarks,
		Autojoin:          cfg.MUC.Autojoin,
		Priority:          cfg.MUC.PresencePriority,
		ClientName:        "chatcore",
		ClientVersion:     Version,
		ClientOS:          runtime.GOOS,
	}, log.With().Str("component", "action").Logger())

	a.plugins = plugin.NewHost(cfg.Plugins.PluginDir, log.With().Str("component", "plugins").Logger())
	a.plugins.LoadEnabled(cfg.Plugins.Enabled)
	a.bus.SubscribeAll(a.forwardToPlugins)

	a.subscribeStorage()
	return a, nil
}

// startSession resets the engine for user and restores the cached roster
// of account. Subscribers see roster.loaded before the first fetch.
func (a *App) startSession(user *muc.ChatUser, account string) {
	a.core.Reset()
	a.core.SetUser(user)
	if a.storage == nil || !a.cfg.Storage.SaveRoster || account == "" {
		return
	}
	version, entries, err := a.storage.GetRoster(account)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to read cached roster")
		return
	}
	if version == "" && len(entries) == 0 {
		return
	}
	items := make([]roster.Contact, 0, len(entries))
	for _, e := range entries {
		items = append(items, roster.Contact{
			JID:          e.JID,
			Name:         e.Name,
			Groups:       e.Groups,
			Subscription: roster.Subscription(e.Subscription),
		})
	}
	a.core.LoadRoster(version, items)
}

// Config returns the configuration
func (a *App) Config() *config.Config {
	return a.cfg
}

// Bus returns the event bus for subscribers.
func (a *App) Bus() *event.Bus {
	return a.bus
}

// Core returns the engine state.
func (a *App) Core() *core.Context {
	return a.core
}

// Actions returns the outgoing action API.
func (a *App) Actions() *action.API {
	return a.actions
}

// Plugins returns the sink plugin host.
func (a *App) Plugins() *plugin.Host {
	return a.plugins
}

// Connect picks the login procedure from its arguments. A JID with a
// password logs in as that account, a host with a nick logs in
// anonymously. With less, a login event asks for the missing input.
func (a *App) Connect(ctx context.Context, jidOrHost, password, nick string) error {
	cfg := xmpp.Config{
		Server:      a.cfg.Account.Server,
		Port:        a.cfg.Account.Port,
		Resource:    a.cfg.Account.Resource,
		SendRate:    a.cfg.Transport.SendRate,
		SendBurst:   a.cfg.Transport.SendBurst,
		DialTimeout: time.Duration(a.cfg.Transport.DialTimeout) * time.Second,
	}

	var user *muc.ChatUser
	switch {
	case jidOrHost != "" && password != "":
		if nick == "" {
			nick = jidutil.Node(jidOrHost)
		}
		cfg.JID = jidutil.EscapeJID(jidOrHost)
		cfg.Password = password
		user = muc.NewChatUser(jidutil.Bare(jidOrHost), nick, muc.AffiliationNone, muc.RoleNone, "")
	case jidOrHost != "" && nick != "":
		cfg.JID = jidutil.Domain(jidOrHost)
		cfg.Anonymous = true
		user = muc.NewChatUser("", nick, muc.AffiliationNone, muc.RoleNone, "")
	default:
		if jidOrHost == "" {
			jidOrHost = a.lastJID()
		}
		a.bus.Publish(event.Event{Type: event.Login, Data: event.LoginData{PresetJID: jidOrHost}})
		return nil
	}

	client, err := xmpp.NewClient(cfg, a.core, a.onStatus, a.log.With().Str("component", "xmpp").Logger())
	if err != nil {
		return err
	}
	if err := a.replaceClient(ctx, client); err != nil {
		return err
	}

	a.mu.Lock()
	if !cfg.Anonymous {
		a.account = jidutil.Bare(jidOrHost)
	} else {
		a.account = ""
	}
	account := a.account
	a.mu.Unlock()
	if a.storage != nil && account != "" {
		if err := a.storage.SetAppState(stateLastJID, account); err != nil {
			a.log.Warn().Err(err).Msg("failed to remember account")
		}
	}

	a.startSession(user, account)
	a.actions.SetTransport(client)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Attach continues a session negotiated elsewhere.
func (a *App) Attach(ctx context.Context, session *mxmpp.Session, nick string) error {
	local := session.LocalAddr()
	cfg := xmpp.Config{
		JID:       local.String(),
		SendRate:  a.cfg.Transport.SendRate,
		SendBurst: a.cfg.Transport.SendBurst,
	}
	client, err := xmpp.NewClient(cfg, a.core, a.onStatus, a.log.With().Str("component", "xmpp").Logger())
	if err != nil {
		return err
	}
	if err := a.replaceClient(ctx, client); err != nil {
		return err
	}
	if nick == "" {
		nick = local.Localpart()
	}

	a.mu.Lock()
	a.account = jidutil.UnescapeJID(local.Bare().String())
	account := a.account
	a.mu.Unlock()

	a.startSession(muc.NewChatUser(jidutil.UnescapeJID(local.String()), nick, muc.AffiliationNone, muc.RoleNone, ""), account)
	a.actions.SetTransport(client)
	client.Attach(session)
	return nil
}

func (a *App) replaceClient(ctx context.Context, client *xmpp.Client) error {
	a.mu.Lock()
	old := a.client
	a.client = client
	a.mu.Unlock()
	if old != nil {
		if err := old.Disconnect(ctx); err != nil {
			a.log.Warn().Err(err).Msg("failed to close previous session")
		}
	}
	return nil
}

func (a *App) onStatus(status core.Status, localJID string) {
	a.log.Debug().Str("status", status.String()).Str("jid", localJID).Msg("connection status")
	a.core.ConnectionChanged(a.ctx, status, localJID)
}

// Disconnect closes the current session.
func (a *App) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	client := a.client
	a.client = nil
	a.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}

// Connected returns whether we're connected
func (a *App) Connected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client != nil && a.client.IsConnected()
}

// CurrentAccount returns the bare JID used as storage key, "" for
// anonymous sessions.
func (a *App) CurrentAccount() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.account
}

func (a *App) lastJID() string {
	if a.storage == nil {
		return ""
	}
	v, err := a.storage.GetAppState(stateLastJID)
	if err != nil {
		a.log.Debug().Err(err).Msg("no remembered account")
	}
	return v
}

// Close closes the app
func (a *App) Close() {
	if err := a.Disconnect(context.Background()); err != nil {
		a.log.Warn().Err(err).Msg("disconnect failed")
	}
	a.cancel()
	a.plugins.UnloadAll()
	a.bus.Clear()
	if a.storage != nil {
		a.storage.Close()
	}
}
