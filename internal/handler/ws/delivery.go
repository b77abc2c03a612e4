package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/termhub/chat-relay-service/internal/domain/event"
	"github.com/termhub/chat-relay-service/internal/domain/registry"
	"github.com/termhub/chat-relay-service/internal/service"
)

// WSHandler is the alternative transport for clients that prefer a socket
// over SSE. Same session lifecycle, same event stream; keepalives become
// protocol-level ping frames.
type WSHandler struct {
	logger  *slog.Logger
	hub     registry.Hubber
	fanout  *service.FanoutService
	history *service.History

	upgrader websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, hub registry.Hubber, fanout *service.FanoutService, history *service.History) *WSHandler {
	return &WSHandler{
		logger:  logger,
		hub:     hub,
		fanout:  fanout,
		history: history,
		upgrader: websocket.Upgrader{
			// Same CORS-open posture as the SSE surface.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		http.Error(w, "clientId is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws_upgrade_failed", "error", err)
		return
	}
	defer conn.Close()

	sess := h.hub.Register(clientID)
	defer h.fanout.HandleDisconnect(sess)

	h.logger.Info("ws_opened", "client_id", clientID)

	// The request context does not reliably fire for hijacked connections;
	// a read pump is the only way to notice the peer going away. It also
	// services incoming control frames.
	readerGone := make(chan struct{})
	go func() {
		defer close(readerGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.write(conn, event.NewSystemEvent("connected to chat")); err != nil {
		return
	}
	for _, ev := range h.history.Replay(r.Context()) {
		if err := h.write(conn, ev); err != nil {
			return
		}
	}

	for {
		select {
		case <-readerGone:
			return
		case <-r.Context().Done():
			return
		case <-sess.Done():
			return
		case ev := <-sess.Recv():
			if ev.GetKind() == event.KindKeepalive {
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
				continue
			}
			if err := h.write(conn, ev); err != nil {
				h.logger.Warn("ws_send_failed", "client_id", clientID, "error", err)
				return
			}
		}
	}
}

func (h *WSHandler) write(conn *websocket.Conn, ev event.Eventer) error {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("ws_marshal_failed", "kind", ev.GetKind(), "error", err)
		return nil // skip the frame, keep the socket
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
