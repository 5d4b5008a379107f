package models

import (
	"time"

	"github.com/google/uuid"
)

// Match status enum. Accepted and auto_assigned are the only states that
// advance the parent job; at most one of them may exist per job.
const (
	MatchStatusPending      = "pending"
	MatchStatusAccepted     = "accepted"
	MatchStatusDeclined     = "declined"
	MatchStatusExpired      = "expired"
	MatchStatusAutoAssigned = "auto_assigned"
)

// DefaultHoldDuration is the acceptance window for a pending offer.
const DefaultHoldDuration = 20 * time.Minute

type JobMatch struct {
	ID           uuid.UUID  `json:"id"`
	JobID        uuid.UUID  `json:"job_id"`
	FreelancerID uuid.UUID  `json:"freelancer_id"`
	MatchScore   float64    `json:"match_score"`
	Status       string     `json:"status"`
	ExpiresAt    time.Time  `json:"expires_at"`
	AcceptedAt   *time.Time `json:"accepted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Active reports whether the match locks its freelancer to the job.
func (m *JobMatch) Active() bool {
	return m.Status == MatchStatusAccepted || m.Status == MatchStatusAutoAssigned
}

// Resolved reports whether the match can no longer be accepted or declined.
func (m *JobMatch) Resolved() bool {
	return m.Status != MatchStatusPending
}
