package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config carries every tunable of the relay. The debounce/staleness windows are
// heuristic constants, not protocol guarantees, so all of them stay
// configurable instead of being baked into call sites.
type Config struct {
	// HTTP surface.
	ListenAddr string

	// Store backend. Empty DataDir selects the in-process fallback map, which
	// is acceptable for a single instance but breaks cross-instance
	// consistency (documented limitation, not a defect).
	DataDir string

	// Cross-instance bus. Empty BrokerURL selects the in-process GoChannel
	// pub/sub (single instance only).
	BrokerURL string

	// Streaming sessions.
	HeartbeatInterval time.Duration
	MailboxSize       int

	// Presence heuristics.
	QuickReconnectWindow time.Duration // suppress join announcements within this window
	OnlineStaleness      time.Duration // entries older than this are not "online"
	DisconnectDebounce   time.Duration // delay before the post-disconnect presence re-check
	OfflineTimeout       time.Duration // last_seen age required to flip a presence entry offline
	PresenceMaxEntries   int
	PresenceEvictCount   int

	HistoryLimit int

	mu          sync.RWMutex
	adminSecret string
}

// AdminSecret returns the currently configured shared admin secret. The value
// is hot-reloadable via the config file watcher.
func (c *Config) AdminSecret() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.adminSecret
}

// SetAdminSecret replaces the shared admin secret (hot reload, tests).
func (c *Config) SetAdminSecret(s string) {
	c.mu.Lock()
	c.adminSecret = s
	c.mu.Unlock()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8787")
	v.SetDefault("server.admin_secret", "")
	v.SetDefault("store.data_dir", "")
	v.SetDefault("bus.broker_url", "")
	v.SetDefault("stream.heartbeat", 15*time.Second)
	v.SetDefault("stream.mailbox_size", 64)
	v.SetDefault("presence.quick_reconnect_window", 10*time.Second)
	v.SetDefault("presence.online_staleness", 60*time.Second)
	v.SetDefault("presence.disconnect_debounce", 5*time.Second)
	// Must stay below the disconnect debounce, otherwise the post-disconnect
	// re-check can never observe an entry old enough to flip offline.
	v.SetDefault("presence.offline_timeout", 3*time.Second)
	v.SetDefault("presence.max_entries", 100)
	v.SetDefault("presence.evict_count", 20)
	v.SetDefault("history.limit", 50)
}

// Load reads configuration from an optional YAML file and CHAT_* environment
// variables. When a file is present its admin secret is watched for changes.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fromFile := false
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		fromFile = true
	} else {
		v.SetConfigName("chat-relay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/chat-relay")
		if err := v.ReadInConfig(); err == nil {
			fromFile = true
		}
	}

	cfg := &Config{
		ListenAddr:           v.GetString("server.addr"),
		DataDir:              v.GetString("store.data_dir"),
		BrokerURL:            v.GetString("bus.broker_url"),
		HeartbeatInterval:    v.GetDuration("stream.heartbeat"),
		MailboxSize:          v.GetInt("stream.mailbox_size"),
		QuickReconnectWindow: v.GetDuration("presence.quick_reconnect_window"),
		OnlineStaleness:      v.GetDuration("presence.online_staleness"),
		DisconnectDebounce:   v.GetDuration("presence.disconnect_debounce"),
		OfflineTimeout:       v.GetDuration("presence.offline_timeout"),
		PresenceMaxEntries:   v.GetInt("presence.max_entries"),
		PresenceEvictCount:   v.GetInt("presence.evict_count"),
		HistoryLimit:         v.GetInt("history.limit"),
	}
	cfg.SetAdminSecret(v.GetString("server.admin_secret"))

	if fromFile {
		// Secret rotation must not require a restart: connected streams would
		// all drop at once.
		v.OnConfigChange(func(e fsnotify.Event) {
			cfg.SetAdminSecret(v.GetString("server.admin_secret"))
			slog.Info("config_reloaded", "file", e.Name)
		})
		v.WatchConfig()
	}

	return cfg, nil
}
