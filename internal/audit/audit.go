// Package audit records one immutable entry per processed turn.
package audit

import (
	"context"
	"time"

	"github.com/antoniostano/aegis/internal/moderation"
)

// Action is the terminal outcome of a turn.
type Action string

const (
	ActionServed        Action = "served"
	ActionBlockedInput  Action = "blocked_input"
	ActionBlockedOutput Action = "blocked_output"
	ActionError         Action = "error"
)

// Record is a single audit entry. Every turn produces exactly one,
// whatever its outcome.
type Record struct {
	TurnID        string              `json:"turn_id"`
	SessionID     string              `json:"session_id"`
	Action        Action              `json:"action"`
	InputVerdict  *moderation.Verdict `json:"input_verdict,omitempty"`
	OutputVerdict *moderation.Verdict `json:"output_verdict,omitempty"`
	ErrorCode     string              `json:"error_code,omitempty"`
	LatencyMS     int64               `json:"latency_ms"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Sink persists audit records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}
