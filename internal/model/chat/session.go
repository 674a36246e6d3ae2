package chat

import "time"

// State describes where a session is in its request/response cycle.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingReply State = "awaiting_reply"
)

// SessionInfo describes a live widget session to API clients.
type SessionInfo struct {
	ID         string    `json:"id"`
	ProfileID  string    `json:"profileId"`
	State      State     `json:"state"`
	Turns      int       `json:"turns"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}
