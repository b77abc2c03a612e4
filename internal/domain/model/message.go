package model

// ChatMessage is the core entity of the channel: one user-authored line,
// stamped server-side. Role is a snapshot taken at send time; later role
// changes do not rewrite history.
type ChatMessage struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"` // RFC 3339, UTC
}
