// Package ssemarshaller frames domain events for text/event-stream transport.
package ssemarshaller

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/termhub/chat-relay-service/internal/domain/event"
)

// WriteFrame writes one SSE frame: `event: <name>` + `data: <json>`.
// Keepalives use the comment form so they hold intermediaries open without
// waking client-side event listeners.
func WriteFrame(w io.Writer, ev event.Eventer) error {
	if ev.GetKind() == event.KindKeepalive {
		_, err := io.WriteString(w, ": keepalive\n\n")
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("sse: marshal %s event: %w", ev.GetKind(), err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.GetKind(), data)
	return err
}
