package domain

import (
	"encoding/json"
	"time"
)

// MaxDeliveryAttempts bounds the retry budget per queued delivery.
// An attempt that reaches this count stays queued for inspection but
// is never retried again.
const MaxDeliveryAttempts = 5

// DeliveryAttempt is one failed webhook delivery waiting for retry.
type DeliveryAttempt struct {
	ID            int64           `json:"id"`
	UUID          string          `json:"uuid"`
	Payload       json.RawMessage `json:"payload"`
	TargetEventID string          `json:"target_event_id"`
	AttemptCount  int             `json:"attempt_count"`
	FirstFailedAt time.Time       `json:"first_failed_at"`
	LastAttemptAt time.Time       `json:"last_attempt_at"`
	LastResponse  string          `json:"last_response,omitempty"`
}

// Exhausted reports whether the retry budget is spent.
func (a *DeliveryAttempt) Exhausted() bool {
	return a.AttemptCount >= MaxDeliveryAttempts
}

// SweepResult summarizes one retry sweep.
type SweepResult struct {
	Retried   int `json:"retried"`
	Succeeded int `json:"succeeded"`
}
