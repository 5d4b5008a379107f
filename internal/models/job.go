package models

import (
	"time"

	"github.com/google/uuid"
)

// Job status enum. Transitions are enforced by services.Lifecycle; nothing
// else writes the status column.
const (
	JobStatusDraft             = "draft"
	JobStatusBriefComplete     = "brief_complete"
	JobStatusPaymentPending    = "payment_pending"
	JobStatusMatched           = "matched"
	JobStatusInProgress        = "in_progress"
	JobStatusSubmitted         = "submitted"
	JobStatusAccepted          = "accepted"
	JobStatusRevisionRequested = "revision_requested"
	JobStatusCompleted         = "completed"
	JobStatusCancelled         = "cancelled"
)

// Deliverable types drive required skills, pricing, and checklist templates.
const (
	DeliverableLandingPage = "landing_page"
	DeliverableAdOneMin    = "ad_1min"
	DeliverableBugFix      = "bug_fix"
	DeliverableDesign      = "design"
	DeliverableOther       = "other"
)

const (
	PriorityNormal = "normal"
	PriorityFast   = "fast"
)

// DefaultMaxRevisions applies when a job is created without an explicit cap.
const DefaultMaxRevisions = 2

// MaxAcceptanceCriteria caps the criteria list on any job past draft.
const MaxAcceptanceCriteria = 5

type Job struct {
	ID                 uuid.UUID  `json:"id"`
	ClientID           uuid.UUID  `json:"client_id"`
	OneLineRequest     string     `json:"one_line_request"`
	Objective          string     `json:"objective"`
	DeliverableType    string     `json:"deliverable_type"`
	AcceptanceCriteria []string   `json:"acceptance_criteria"`
	Budget             *int       `json:"budget,omitempty"`
	Deadline           time.Time  `json:"deadline"`
	Priority           string     `json:"priority"`
	Status             string     `json:"status"`
	EstimatedPrice     *int       `json:"estimated_price,omitempty"`
	FinalPrice         *int       `json:"final_price,omitempty"`
	RevisionCount      int        `json:"revision_count"`
	MaxRevisions       int        `json:"max_revisions"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Terminal reports whether the job can no longer change status.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusCancelled
}
