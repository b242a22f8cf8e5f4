package store

import (
	"time"

	"github.com/google/uuid"
)

// Message roles persisted in the messages table.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Feedback ratings persisted in the feedback table.
const (
	RatingUp   = "up"
	RatingDown = "down"
)

// Session is one conversation thread.
type Session struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Citation points at the source material an answer drew from.
// Deduplicated by (source, page) before persisting.
type Citation struct {
	Source     string  `json:"source"`
	Title      string  `json:"title,omitempty"`
	Page       int     `json:"page,omitempty"`
	Section    string  `json:"section,omitempty"`
	Similarity float64 `json:"similarity"`
}

// Message is one turn in a session, user or assistant.
type Message struct {
	ID        uuid.UUID  `json:"id"`
	SessionID uuid.UUID  `json:"session_id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Citations []Citation `json:"citations"`
	CreatedAt time.Time  `json:"created_at"`
}

// Feedback is a thumbs rating on one assistant message.
type Feedback struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	MessageID uuid.UUID `json:"message_id"`
	Rating    string    `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RequestLog is one API request latency record.
type RequestLog struct {
	Endpoint   string
	SessionID  uuid.UUID // zero value means no session
	LatencyMS  int
	StatusCode int
	Error      string
}
