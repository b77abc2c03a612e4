package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/termhub/chat-relay-service/config"
	"github.com/termhub/chat-relay-service/internal/domain/event"
	"github.com/termhub/chat-relay-service/internal/domain/model"
	"github.com/termhub/chat-relay-service/internal/domain/registry"
)

// Dispatcher interprets inbound actions, enforces authorization and applies
// the resulting registry mutations and broadcasts.
type Dispatcher interface {
	Dispatch(ctx context.Context, act model.Action) error
}

// registries is the fresh per-request view of the persisted state. Loaded
// once before dispatching; correctness depends on seeing the latest persisted
// state, accepting the staleness window a non-linearizable store implies.
type registries struct {
	presence model.PresenceSet
	perms    model.PermissionSet
}

type presenceWrite struct {
	name  string
	patch model.PresencePatch
}

type permissionWrite struct {
	name string
	role model.Role
}

// outcome is the declarative result of one action handler: mutations to apply
// and events to emit. Handlers never perform side effects themselves, which
// keeps every branch testable without a live transport.
type outcome struct {
	permissions  []permissionWrite
	presence     []presenceWrite
	kick         []string // display names whose local sessions are force-closed
	dropSession  bool     // remove the acting session without a kick notice
	history      []event.Eventer
	broadcasts   []event.Eventer
	private      []event.Eventer
	refreshUsers bool
}

type actionHandler func(ctx context.Context, act model.Action, regs registries) *outcome

var _ Dispatcher = (*ActionService)(nil)

type ActionService struct {
	presence Presencer
	fanout   Broadcaster
	history  *History
	hub      registry.Hubber
	cfg      *config.Config
	logger   *slog.Logger
	handlers map[model.ActionType]actionHandler
}

func NewActionService(
	presence Presencer,
	fanout Broadcaster,
	history *History,
	hub registry.Hubber,
	cfg *config.Config,
	logger *slog.Logger,
) *ActionService {
	s := &ActionService{
		presence: presence,
		fanout:   fanout,
		history:  history,
		hub:      hub,
		cfg:      cfg,
		logger:   logger,
	}
	s.handlers = map[model.ActionType]actionHandler{
		model.ActionJoin:      s.handleJoin,
		model.ActionPing:      s.handlePing,
		model.ActionLeave:     s.handleLeave,
		model.ActionChat:      s.handleChat,
		model.ActionAdmin:     s.handleAdmin,
		model.ActionOp:        s.handleOp,
		model.ActionDeop:      s.handleDeop,
		model.ActionBan:       s.handleBan,
		model.ActionUnban:     s.handleUnban,
		model.ActionListUsers: s.handleListUsers,
	}
	return s
}

// Dispatch runs one action through its handler and applies the outcome.
func (s *ActionService) Dispatch(ctx context.Context, act model.Action) error {
	h, ok := s.handlers[act.Type]
	if !ok {
		return fmt.Errorf("dispatch: unknown action type %q", act.Type)
	}

	regs := registries{
		presence: s.presence.Presence(ctx),
		perms:    s.presence.Permissions(ctx),
	}

	// Single banned gate ahead of the chat/command branches. Join runs its
	// own denial (with a distinct message), ping and leave only touch the
	// sender's own presence.
	switch act.Type {
	case model.ActionJoin, model.ActionPing, model.ActionLeave:
	default:
		name := s.senderName(act)
		if s.presence.EffectiveRole(name, regs.presence, regs.perms) == model.RoleBanned {
			s.fanout.Private(act.ClientID, event.NewErrorEvent("you are banned from this chat"))
			return nil
		}
	}

	if out := h(ctx, act, regs); out != nil {
		s.apply(ctx, act, out)
	}
	s.logger.Debug("action_dispatched", "type", act.Type, "client_id", act.ClientID)
	return nil
}

// senderName resolves who is acting: the locally held session's display name
// when this instance holds it, the request's username otherwise (the session
// may live on another instance).
func (s *ActionService) senderName(act model.Action) string {
	if sess, ok := s.hub.Lookup(act.ClientID); ok {
		if n := sess.Name(); n != "" && n != model.DefaultName {
			return n
		}
	}
	if n := strings.TrimSpace(act.Username); n != "" {
		return n
	}
	return model.DefaultName
}

// apply performs the outcome's side effects. Permissions land before presence
// so that a presence touch carrying a role mirror never outranks the
// authoritative document it mirrors.
func (s *ActionService) apply(ctx context.Context, act model.Action, out *outcome) {
	for _, w := range out.permissions {
		s.presence.SetPermission(ctx, w.name, w.role)
	}
	for _, w := range out.presence {
		s.presence.TouchPresence(ctx, w.name, w.patch)
	}
	if out.dropSession {
		s.hub.Remove(act.ClientID)
	}
	for _, name := range out.kick {
		s.kickLocal(name)
	}
	for _, ev := range out.history {
		s.history.Append(ctx, ev)
	}
	for _, ev := range out.broadcasts {
		s.fanout.Global(ctx, ev)
	}
	for _, ev := range out.private {
		s.fanout.Private(act.ClientID, ev)
	}
	if out.refreshUsers {
		s.fanout.UserList(ctx)
	}
}

// kickLocal force-terminates every local session bound to a name: kick notice
// first, then the sink is closed. Sessions held by other instances see the
// ban through the registry on their next action instead.
func (s *ActionService) kickLocal(name string) {
	for _, sess := range s.hub.ByName(name) {
		sess.Push(event.NewSystemEvent("you have been banned from this chat"))
		s.hub.Remove(sess.ID())
	}
}

func (s *ActionService) handleJoin(ctx context.Context, act model.Action, regs registries) *outcome {
	name := strings.TrimSpace(act.Username)
	if name == "" {
		name = model.DefaultName
	}

	if p, ok := regs.perms[name]; ok && p.Role == model.RoleBanned {
		return &outcome{
			private: []event.Eventer{event.NewErrorEvent("access denied: you are banned from this chat")},
		}
	}

	role := s.presence.EffectiveRole(name, regs.presence, regs.perms)

	// Bind the display name if this instance holds the streaming session.
	if sess, ok := s.hub.Lookup(act.ClientID); ok {
		sess.SetName(name)
	}

	// Quick reconnect: the presence entry still shows a recent "online",
	// typically a page refresh. Suppress the duplicate join announcement.
	quick := false
	if prev, ok := regs.presence[name]; ok {
		quick = prev.Status == model.StatusOnline && !IsStale(prev, s.cfg.QuickReconnectWindow)
	}

	out := &outcome{
		presence: []presenceWrite{
			{name: name, patch: model.PresencePatch{Status: model.StatusOnline, Role: role}},
		},
		refreshUsers: true,
	}
	if !quick {
		out.broadcasts = append(out.broadcasts, event.NewSystemEvent(name+" joined the chat"))
	}
	return out
}

func (s *ActionService) handlePing(ctx context.Context, act model.Action, regs registries) *outcome {
	name := s.senderName(act)
	if name == model.DefaultName {
		return nil
	}
	// Keepalive touch only: no role change, no broadcast.
	return &outcome{
		presence: []presenceWrite{
			{name: name, patch: model.PresencePatch{Status: model.StatusOnline}},
		},
	}
}

func (s *ActionService) handleLeave(ctx context.Context, act model.Action, regs registries) *outcome {
	name := s.senderName(act)
	if name == model.DefaultName {
		return nil
	}
	return &outcome{
		presence: []presenceWrite{
			{name: name, patch: model.PresencePatch{Status: model.StatusOffline}},
		},
		dropSession:  true,
		broadcasts:   []event.Eventer{event.NewSystemEvent(name + " left the chat")},
		refreshUsers: true,
	}
}

func (s *ActionService) handleChat(ctx context.Context, act model.Action, regs registries) *outcome {
	content := strings.TrimSpace(act.Content)
	if content == "" {
		return nil
	}

	name := s.senderName(act)
	role := s.presence.EffectiveRole(name, regs.presence, regs.perms)
	ev := event.NewChatEvent(name, role, content)

	return &outcome{
		presence: []presenceWrite{
			{name: name, patch: model.PresencePatch{Status: model.StatusOnline}},
		},
		history:    []event.Eventer{ev},
		broadcasts: []event.Eventer{ev},
	}
}

func (s *ActionService) handleAdmin(ctx context.Context, act model.Action, regs registries) *outcome {
	if act.Secret == "" || act.Secret != s.cfg.AdminSecret() {
		return &outcome{
			private: []event.Eventer{event.NewErrorEvent("invalid admin secret")},
		}
	}

	name := s.senderName(act)
	if name == model.DefaultName {
		return &outcome{
			private: []event.Eventer{event.NewErrorEvent("join the chat before requesting admin")},
		}
	}

	return &outcome{
		permissions: []permissionWrite{{name: name, role: model.RoleAdmin}},
		// Mirror into presence so the cached copy agrees immediately.
		presence: []presenceWrite{
			{name: name, patch: model.PresencePatch{Status: model.StatusOnline, Role: model.RoleAdmin}},
		},
		private:      []event.Eventer{event.NewSystemEvent("you are now an admin")},
		refreshUsers: true,
	}
}

func (s *ActionService) requireAdmin(act model.Action, regs registries) (string, *outcome) {
	sender := s.senderName(act)
	if s.presence.EffectiveRole(sender, regs.presence, regs.perms) != model.RoleAdmin {
		return sender, &outcome{
			private: []event.Eventer{event.NewErrorEvent("admin privileges required")},
		}
	}
	return sender, nil
}

func (s *ActionService) handleOp(ctx context.Context, act model.Action, regs registries) *outcome {
	sender, denied := s.requireAdmin(act, regs)
	if denied != nil {
		return denied
	}
	target := strings.TrimSpace(act.TargetUser)
	if target == "" {
		return &outcome{private: []event.Eventer{event.NewErrorEvent("target user required")}}
	}

	return &outcome{
		permissions:  []permissionWrite{{name: target, role: model.RoleAdmin}},
		private:      []event.Eventer{event.NewSystemEvent("promoted " + target + " to admin")},
		broadcasts:   []event.Eventer{event.NewSystemEvent(fmt.Sprintf("%s has been promoted to admin by %s", target, sender))},
		refreshUsers: true,
	}
}

func (s *ActionService) handleDeop(ctx context.Context, act model.Action, regs registries) *outcome {
	sender, denied := s.requireAdmin(act, regs)
	if denied != nil {
		return denied
	}
	target := strings.TrimSpace(act.TargetUser)
	if target == "" {
		return &outcome{private: []event.Eventer{event.NewErrorEvent("target user required")}}
	}

	return &outcome{
		permissions:  []permissionWrite{{name: target, role: model.RoleUser}},
		private:      []event.Eventer{event.NewSystemEvent("removed admin from " + target)},
		broadcasts:   []event.Eventer{event.NewSystemEvent(fmt.Sprintf("%s is no longer an admin (by %s)", target, sender))},
		refreshUsers: true,
	}
}

func (s *ActionService) handleBan(ctx context.Context, act model.Action, regs registries) *outcome {
	sender, denied := s.requireAdmin(act, regs)
	if denied != nil {
		return denied
	}
	target := strings.TrimSpace(act.TargetUser)
	if target == "" {
		return &outcome{private: []event.Eventer{event.NewErrorEvent("target user required")}}
	}
	if target == sender {
		return &outcome{private: []event.Eventer{event.NewErrorEvent("you cannot ban yourself")}}
	}

	return &outcome{
		permissions: []permissionWrite{{name: target, role: model.RoleBanned}},
		presence: []presenceWrite{
			{name: target, patch: model.PresencePatch{Status: model.StatusOffline, Role: model.RoleBanned}},
		},
		kick:         []string{target},
		broadcasts:   []event.Eventer{event.NewSystemEvent(fmt.Sprintf("%s has been banned by %s", target, sender))},
		refreshUsers: true,
	}
}

func (s *ActionService) handleUnban(ctx context.Context, act model.Action, regs registries) *outcome {
	sender, denied := s.requireAdmin(act, regs)
	if denied != nil {
		return denied
	}
	target := strings.TrimSpace(act.TargetUser)
	if target == "" {
		return &outcome{private: []event.Eventer{event.NewErrorEvent("target user required")}}
	}

	return &outcome{
		permissions: []permissionWrite{{name: target, role: model.RoleUser}},
		private:     []event.Eventer{event.NewSystemEvent("unbanned " + target)},
		broadcasts:  []event.Eventer{event.NewSystemEvent(fmt.Sprintf("%s has been unbanned by %s", target, sender))},
	}
}

func (s *ActionService) handleListUsers(ctx context.Context, act model.Action, regs registries) *outcome {
	// Raw registry snapshot, requester only.
	return &outcome{
		private: []event.Eventer{event.NewSnapshotEvent(regs.presence)},
	}
}
