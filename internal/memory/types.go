package memory

import (
	"context"
	"time"

	"github.com/antoniostano/aegis/internal/moderation"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one immutable message in a session's history. A served assistant
// turn always carries the output verdict that released it.
type Turn struct {
	ID          string              `json:"turn_id"`
	SessionID   string              `json:"session_id"`
	Role        Role                `json:"role"`
	Text        string              `json:"text"`
	PIIRedacted bool                `json:"pii_redacted"`
	Verdict     *moderation.Verdict `json:"moderation_verdict,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Store keeps per-session ordered turn history under a bounded retention
// policy: when a session exceeds the cap, the oldest turns are dropped first.
// Readers observe either the pre-append or post-append history, never a
// partial write.
type Store interface {
	Append(ctx context.Context, turn Turn) error
	History(ctx context.Context, sessionID string) ([]Turn, error)
	Close() error
}
