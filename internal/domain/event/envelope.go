package event

import (
	"encoding/json"
	"fmt"
)

// Envelope is the bus and history wire format: kind-tagged JSON so receiving
// instances can rebuild the concrete event.
type Envelope struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	OccurredAt int64           `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Encode wraps an event into its transit envelope.
func Encode(ev Eventer) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("event: marshal %s payload: %w", ev.GetKind(), err)
	}
	return json.Marshal(Envelope{
		ID:         ev.GetID(),
		Kind:       ev.GetKind(),
		OccurredAt: ev.GetOccurredAt(),
		Payload:    body,
	})
}

// Decode rebuilds a concrete event from its envelope. Unknown kinds are a
// terminal decode failure; callers ack and drop rather than retry.
func Decode(data []byte) (Eventer, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("event: unmarshal envelope: %w", err)
	}

	var ev Eventer
	switch env.Kind {
	case KindChat:
		ev = &ChatEvent{At: env.OccurredAt}
	case KindSystem:
		ev = &SystemEvent{At: env.OccurredAt}
	case KindError:
		ev = &ErrorEvent{At: env.OccurredAt}
	case KindUserList:
		ev = &UserListEvent{At: env.OccurredAt}
	case KindSnapshot:
		ev = &SnapshotEvent{At: env.OccurredAt}
	default:
		return nil, fmt.Errorf("event: unknown kind %q", env.Kind)
	}

	if err := json.Unmarshal(env.Payload, ev); err != nil {
		return nil, fmt.Errorf("event: unmarshal %s payload: %w", env.Kind, err)
	}
	return ev, nil
}
