package domain

import "time"

// Role is the author of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// SessionSummary describes one live session for the stats endpoint
type SessionSummary struct {
	ID           string    `json:"id"`
	Turns        int       `json:"turns"`
	ShownCount   int       `json:"shownCount"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// SessionStats is the response of the stats endpoint
type SessionStats struct {
	TotalSessions int              `json:"totalSessions"`
	Sessions      []SessionSummary `json:"sessions"`
}
