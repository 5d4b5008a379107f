package models

import (
	"time"

	"github.com/google/uuid"
)

// JobReview is the client's current decision on a submitted deliverable.
// One row per (job, client), upserted: a re-submission replaces the
// decision rather than appending a history.
type JobReview struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"job_id"`
	ClientID     uuid.UUID `json:"client_id"`
	FreelancerID uuid.UUID `json:"freelancer_id"`
	MetCriteria  bool      `json:"met_criteria"`
	Feedback     string    `json:"feedback,omitempty"`
	Rating       *int      `json:"rating,omitempty"` // 1-5, only meaningful when MetCriteria
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
