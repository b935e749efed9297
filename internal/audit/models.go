// Package audit records verification attempts: who asked, what happened, and
// why. Events flow through a channel-fed worker so the request path never
// blocks on audit persistence.
package audit

import "time"

// Outcomes for verification attempts.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Event is one audit trail entry. Keep it transport-agnostic so stores and
// sinks can fan out.
type Event struct {
	Timestamp time.Time
	RequestID string
	AccountID string
	Action    string
	Outcome   string
	Reason    string
	ClientIP  string
}
