package models

import (
	"time"

	"github.com/google/uuid"
)

// JobChecklistItem is an observational milestone for the active deliverable.
// Items never gate state-machine transitions.
type JobChecklistItem struct {
	ID          uuid.UUID  `json:"id"`
	JobID       uuid.UUID  `json:"job_id"`
	Item        string     `json:"item"`
	Completed   bool       `json:"completed"`
	CompletedBy *uuid.UUID `json:"completed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Position    int        `json:"position"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
