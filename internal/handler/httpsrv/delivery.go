package httpsrv

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/termhub/chat-relay-service/infra/metrics"
	"github.com/termhub/chat-relay-service/internal/domain/event"
	"github.com/termhub/chat-relay-service/internal/domain/model"
	"github.com/termhub/chat-relay-service/internal/domain/registry"
	ssemarshaller "github.com/termhub/chat-relay-service/internal/handler/marshaller/sse"
	"github.com/termhub/chat-relay-service/internal/service"
)

type ChatHandler struct {
	hub     registry.Hubber
	fanout  *service.FanoutService
	history *service.History
	actions service.Dispatcher
	metrics *metrics.Set
	logger  *slog.Logger
}

func NewChatHandler(
	hub registry.Hubber,
	fanout *service.FanoutService,
	history *service.History,
	actions service.Dispatcher,
	m *metrics.Set,
	logger *slog.Logger,
) *ChatHandler {
	return &ChatHandler{
		hub:     hub,
		fanout:  fanout,
		history: history,
		actions: actions,
		metrics: m,
		logger:  logger,
	}
}

// Stream opens the long-lived SSE response: connected notice, full history
// replay in order, then live events until the client goes away.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		http.Error(w, "clientId is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sess := h.hub.Register(clientID)
	h.metrics.SessionsActive.Inc()
	h.logger.Info("stream_opened", "client_id", clientID)

	defer func() {
		// Cleanup must be idempotent: the deferred path races admin kicks
		// and hub replacement, both of which also close the session.
		h.fanout.HandleDisconnect(sess)
		h.metrics.SessionsActive.Dec()
		h.logger.Info("stream_closed", "client_id", clientID)
	}()

	if err := ssemarshaller.WriteFrame(w, event.NewSystemEvent("connected to chat")); err != nil {
		return
	}
	for _, ev := range h.history.Replay(r.Context()) {
		if err := ssemarshaller.WriteFrame(w, ev); err != nil {
			return
		}
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.Done():
			// Kicked or replaced; flush whatever is still queued (the ban
			// notice) before closing the response.
			h.drain(w, sess)
			flusher.Flush()
			return
		case ev := <-sess.Recv():
			if err := ssemarshaller.WriteFrame(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *ChatHandler) drain(w http.ResponseWriter, sess *registry.Session) {
	for {
		select {
		case ev := <-sess.Recv():
			if err := ssemarshaller.WriteFrame(w, ev); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Action dispatches one write request. Failures surface as a 500 with the
// error's message; there are no structured error codes on this surface.
func (h *ChatHandler) Action(w http.ResponseWriter, r *http.Request) {
	var act model.Action
	if err := json.NewDecoder(r.Body).Decode(&act); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if err := h.actions.Dispatch(r.Context(), act); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.metrics.ActionsTotal.WithLabelValues(string(act.Type)).Inc()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
