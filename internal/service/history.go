package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/termhub/chat-relay-service/config"
	"github.com/termhub/chat-relay-service/internal/domain/event"
	"github.com/termhub/chat-relay-service/internal/store"
)

// History is the bounded recent-event buffer replayed to every new stream.
// Append-only with silent truncation to the most recent N entries; older
// events are gone for good, which is the full extent of the persistence
// guarantee.
type History struct {
	kv     store.KV
	limit  int
	logger *slog.Logger
}

func NewHistory(kv store.KV, cfg *config.Config, logger *slog.Logger) *History {
	return &History{
		kv:     kv,
		limit:  cfg.HistoryLimit,
		logger: logger,
	}
}

// Append persists one event at the tail of the buffer, trimming the head.
// Read-modify-write like the registries: concurrent appends from different
// instances can interleave or lose entries, accepted as best effort.
func (h *History) Append(ctx context.Context, ev event.Eventer) {
	entry, err := event.Encode(ev)
	if err != nil {
		h.logger.Error("history_encode_failed", "kind", ev.GetKind(), "error", err)
		return
	}

	buf := h.loadRaw(ctx)
	buf = append(buf, entry)
	if len(buf) > h.limit {
		buf = buf[len(buf)-h.limit:]
	}

	raw, err := json.Marshal(buf)
	if err != nil {
		h.logger.Error("history_marshal_failed", "error", err)
		return
	}
	if err := h.kv.Set(ctx, store.KeyHistory, raw); err != nil {
		h.logger.Warn("history_write_failed", "error", err)
	}
}

// Replay returns the buffered events in arrival order. Entries that no longer
// decode (format drift across deploys) are skipped rather than poisoning the
// whole replay.
func (h *History) Replay(ctx context.Context) []event.Eventer {
	buf := h.loadRaw(ctx)
	out := make([]event.Eventer, 0, len(buf))
	for _, entry := range buf {
		ev, err := event.Decode(entry)
		if err != nil {
			h.logger.Warn("history_decode_failed", "error", err)
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (h *History) loadRaw(ctx context.Context) []json.RawMessage {
	raw, err := h.kv.Get(ctx, store.KeyHistory)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Warn("history_read_failed", "error", err)
		}
		return nil
	}
	var buf []json.RawMessage
	if err := json.Unmarshal(raw, &buf); err != nil {
		h.logger.Warn("history_parse_failed", "error", err)
		return nil
	}
	return buf
}
