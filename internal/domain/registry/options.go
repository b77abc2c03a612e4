package registry

import "time"

type hubConfig struct {
	mailboxSize       int
	heartbeatInterval time.Duration
}

func defaultHubConfig() hubConfig {
	return hubConfig{
		mailboxSize:       64,
		heartbeatInterval: 15 * time.Second,
	}
}

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithMailboxSize sets the [BACKPRESSURE] threshold: the per-session buffer
// between fan-out and the transport write loop.
func WithMailboxSize(size int) Option {
	return func(h *Hub) {
		h.config.mailboxSize = size
	}
}

// WithHeartbeatInterval configures how often each session emits a keepalive
// frame. Zero disables heartbeats (tests).
func WithHeartbeatInterval(d time.Duration) Option {
	return func(h *Hub) {
		h.config.heartbeatInterval = d
	}
}
