package models

import (
	"time"

	"github.com/google/uuid"
)

// JobDeliverable records a file the freelancer uploaded for a job. Storage
// itself is external; only the reference is kept here. A job can only move
// to submitted once a deliverable with IsFinal exists.
type JobDeliverable struct {
	ID         uuid.UUID `json:"id"`
	JobID      uuid.UUID `json:"job_id"`
	UploadedBy uuid.UUID `json:"uploaded_by"`
	FileURL    string    `json:"file_url"`
	FileName   string    `json:"file_name"`
	FileSize   *int64    `json:"file_size,omitempty"`
	Version    int       `json:"version"`
	IsFinal    bool      `json:"is_final"`
	CreatedAt  time.Time `json:"created_at"`
}
