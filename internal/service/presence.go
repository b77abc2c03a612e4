package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/termhub/chat-relay-service/config"
	"github.com/termhub/chat-relay-service/internal/domain/model"
	"github.com/termhub/chat-relay-service/internal/store"
)

// Presencer reads and writes the two persisted registries and resolves
// effective roles. Every operation is a full-document read-modify-write
// against the store; concurrent writers across instances race and the last
// write wins per key. That is the accepted consistency model, not a bug.
type Presencer interface {
	Presence(ctx context.Context) model.PresenceSet
	Permissions(ctx context.Context) model.PermissionSet
	TouchPresence(ctx context.Context, name string, patch model.PresencePatch)
	SetPermission(ctx context.Context, name string, role model.Role)
	EffectiveRole(name string, presence model.PresenceSet, perms model.PermissionSet) model.Role
}

// IsStale reports whether an entry's last activity is older than the given
// threshold. Called with two different windows: quick-reconnect suppression
// and the online-list filter, both configurable.
func IsStale(entry model.PresenceEntry, threshold time.Duration) bool {
	return time.Since(entry.LastSeen) > threshold
}

var _ Presencer = (*PresenceService)(nil)

type PresenceService struct {
	kv     store.KV
	cfg    *config.Config
	logger *slog.Logger

	// Memory-backed deployments have nothing bounding presence growth, so
	// touches prune the registry once it outgrows its cap.
	ephemeral bool

	// Collapses concurrent reads of the same document into one store round
	// trip. Results are cloned per caller, so this is not a cache: every
	// request still observes freshly persisted state.
	group singleflight.Group
}

func NewPresenceService(kv store.KV, cfg *config.Config, logger *slog.Logger) *PresenceService {
	return &PresenceService{
		kv:        kv,
		cfg:       cfg,
		logger:    logger,
		ephemeral: cfg.DataDir == "",
	}
}

// Presence fetches the presence registry, failing open to an empty mapping on
// any read or parse error. Transient backend faults therefore degrade to
// "everyone unknown" rather than surfacing to callers.
func (s *PresenceService) Presence(ctx context.Context) model.PresenceSet {
	v, _, _ := s.group.Do(store.KeyPresence, func() (any, error) {
		out := model.PresenceSet{}
		s.load(ctx, store.KeyPresence, &out)
		return out, nil
	})
	return maps.Clone(v.(model.PresenceSet))
}

// Permissions fetches the permissions registry with the same fail-open policy.
func (s *PresenceService) Permissions(ctx context.Context) model.PermissionSet {
	v, _, _ := s.group.Do(store.KeyPermissions, func() (any, error) {
		out := model.PermissionSet{}
		s.load(ctx, store.KeyPermissions, &out)
		return out, nil
	})
	return maps.Clone(v.(model.PermissionSet))
}

func (s *PresenceService) load(ctx context.Context, key string, out any) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("registry_read_failed", "key", key, "error", err)
		}
		return
	}
	if err := json.Unmarshal(raw, out); err != nil {
		s.logger.Warn("registry_parse_failed", "key", key, "error", err)
	}
}

// TouchPresence merges the patch over the existing entry (or a fresh one),
// stamps last_seen and persists. Write failures are logged and dropped per
// the propagation policy; there is no retry.
func (s *PresenceService) TouchPresence(ctx context.Context, name string, patch model.PresencePatch) {
	reg := s.Presence(ctx)

	entry := reg[name]
	if patch.Status != "" {
		entry.Status = patch.Status
	}
	if patch.Role != "" {
		entry.Role = patch.Role
	}
	entry.LastSeen = time.Now()
	reg[name] = entry

	if s.ephemeral && len(reg) > s.cfg.PresenceMaxEntries {
		s.prune(reg)
	}

	s.save(ctx, store.KeyPresence, reg)
}

// prune evicts the oldest entries once the registry outgrows its cap. The
// document is an unordered mapping, so oldest-by-last-seen stands in for
// insertion order.
func (s *PresenceService) prune(reg model.PresenceSet) {
	type aged struct {
		name string
		seen time.Time
	}
	entries := make([]aged, 0, len(reg))
	for name, e := range reg {
		entries = append(entries, aged{name: name, seen: e.LastSeen})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seen.Before(entries[j].seen) })

	n := s.cfg.PresenceEvictCount
	if n > len(entries) {
		n = len(entries)
	}
	for _, e := range entries[:n] {
		delete(reg, e.name)
	}
	s.logger.Info("presence_pruned", "evicted", n, "remaining", len(reg))
}

// SetPermission merges the role into the dedicated permissions document.
// Independent of presence pruning: permission state survives presence churn.
func (s *PresenceService) SetPermission(ctx context.Context, name string, role model.Role) {
	perms := s.Permissions(ctx)
	perms[name] = model.PermissionEntry{
		Role:      role,
		UpdatedAt: time.Now(),
	}
	s.save(ctx, store.KeyPermissions, perms)
}

func (s *PresenceService) save(ctx context.Context, key string, doc any) {
	raw, err := json.Marshal(doc)
	if err != nil {
		s.logger.Error("registry_marshal_failed", "key", key, "error", err)
		return
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		s.logger.Warn("registry_write_failed", "key", key, "error", err)
	}
}

// EffectiveRole resolves a user's role. The resolution order is load-bearing:
// the permissions registry always overrides the presence-cached copy, and an
// unknown user is a plain user.
func (s *PresenceService) EffectiveRole(name string, presence model.PresenceSet, perms model.PermissionSet) model.Role {
	if p, ok := perms[name]; ok && p.Role != "" {
		return p.Role
	}
	if p, ok := presence[name]; ok && p.Role != "" {
		return p.Role
	}
	return model.RoleUser
}
