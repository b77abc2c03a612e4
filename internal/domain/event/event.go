package event

// Kind doubles as the SSE event name and the "type" discriminator clients
// switch on.
type Kind string

const (
	KindSystem    Kind = "system"
	KindChat      Kind = "chat"
	KindError     Kind = "error"
	KindUserList  Kind = "user_list"
	KindSnapshot  Kind = "cmd_result_list_users"
	KindKeepalive Kind = "keepalive"
)

// Topic is the single bus topic all cross-instance chat events travel on.
const Topic = "chat.events.v1"

// Eventer defines the contract for all data packets flowing through the
// session hub and the bus.
type Eventer interface {
	GetID() string
	GetKind() Kind
	GetOccurredAt() int64
}

// Exportable marks events that are re-published on the cross-instance bus.
// An empty routing key tells the fan-out to skip publishing: private replies
// and keepalives stay on the instance that produced them.
type Exportable interface {
	GetRoutingKey() string
}
