package model

type ActionType string

const (
	ActionJoin      ActionType = "join"
	ActionPing      ActionType = "ping"
	ActionLeave     ActionType = "leave"
	ActionChat      ActionType = "chat"
	ActionAdmin     ActionType = "cmd_admin"
	ActionOp        ActionType = "cmd_op"
	ActionDeop      ActionType = "cmd_deop"
	ActionBan       ActionType = "cmd_ban"
	ActionUnban     ActionType = "cmd_unban"
	ActionListUsers ActionType = "cmd_list_users"
)

// Action is one inbound write request, referencing the streaming connection it
// was issued from. The session behind ClientID may live on another instance;
// handlers must tolerate not holding it locally.
type Action struct {
	ClientID   string     `json:"clientId"`
	Type       ActionType `json:"type"`
	Content    string     `json:"content,omitempty"`
	Username   string     `json:"username,omitempty"`
	Secret     string     `json:"secret,omitempty"`
	TargetUser string     `json:"targetUser,omitempty"`
}
