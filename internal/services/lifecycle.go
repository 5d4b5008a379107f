package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/briefmatch/backend/internal/events"
	"github.com/briefmatch/backend/internal/models"
)

// legalTransitions is the authoritative job status table. Anything outside it
// fails with InvalidTransitionError; transitions never silently no-op.
// Cancellation is legal from every non-terminal state.
var legalTransitions = map[string][]string{
	models.JobStatusDraft:             {models.JobStatusBriefComplete, models.JobStatusPaymentPending, models.JobStatusCancelled},
	models.JobStatusBriefComplete:     {models.JobStatusPaymentPending, models.JobStatusCancelled},
	models.JobStatusPaymentPending:    {models.JobStatusMatched, models.JobStatusCancelled},
	models.JobStatusMatched:           {models.JobStatusInProgress, models.JobStatusCancelled},
	models.JobStatusInProgress:        {models.JobStatusSubmitted, models.JobStatusCancelled},
	models.JobStatusSubmitted:         {models.JobStatusAccepted, models.JobStatusRevisionRequested, models.JobStatusCancelled},
	models.JobStatusAccepted:          {models.JobStatusCompleted, models.JobStatusCancelled},
	models.JobStatusRevisionRequested: {models.JobStatusInProgress, models.JobStatusCancelled},
}

// CanTransition reports whether from -> to is in the lifecycle table.
func CanTransition(from, to string) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// advanceJob mutates the in-memory job status after validating the
// transition. Persisting is the caller's job, under the job row lock.
func advanceJob(j *models.Job, to string) error {
	if !CanTransition(j.Status, to) {
		return &InvalidTransitionError{From: j.Status, To: to}
	}
	j.Status = to
	return nil
}

// TxBeginner abstracts transaction creation so tests don't need a
// pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LifecycleJobRepo is the job repository surface the lifecycle service needs.
type LifecycleJobRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error
}

// LifecycleMatchRepo resolves the job's locked freelancer.
type LifecycleMatchRepo interface {
	ListByJobIDTx(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) ([]*models.JobMatch, error)
}

// LifecycleChecklistRepo seeds the milestone template when work starts.
type LifecycleChecklistRepo interface {
	SeedTx(ctx context.Context, tx pgx.Tx, jobID uuid.UUID, items []string) error
}

// LifecycleDeliverableRepo gates submission on a final deliverable.
type LifecycleDeliverableRepo interface {
	HasFinal(ctx context.Context, jobID uuid.UUID) (bool, error)
}

// Lifecycle owns the job status column. All transitions run under the job
// row lock so they are linearizable per job; operations on different jobs
// never contend.
type Lifecycle struct {
	Pool         TxBeginner
	Jobs         LifecycleJobRepo
	Matches      LifecycleMatchRepo
	Checklists   LifecycleChecklistRepo
	Deliverables LifecycleDeliverableRepo
	Broker       events.Broker
	Logger       *slog.Logger
}

func NewLifecycle(pool TxBeginner, jobs LifecycleJobRepo, matches LifecycleMatchRepo, checklists LifecycleChecklistRepo, deliverables LifecycleDeliverableRepo, broker events.Broker, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{Pool: pool, Jobs: jobs, Matches: matches, Checklists: checklists, Deliverables: deliverables, Broker: broker, Logger: logger}
}

// activeMatch returns the job's single accepted/auto_assigned match, or nil.
func activeMatch(matches []*models.JobMatch) *models.JobMatch {
	for _, m := range matches {
		if m.Active() {
			return m
		}
	}
	return nil
}

// StartWork moves a job to in_progress on behalf of its locked freelancer
// and seeds the checklist from the deliverable-type template. Legal from
// matched (first start) and revision_requested (resuming after a revision).
func (l *Lifecycle) StartWork(ctx context.Context, jobID, freelancerID uuid.UUID) (*models.Job, error) {
	tx, err := l.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	job, err := l.Jobs.GetByIDForUpdate(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	from := job.Status

	matches, err := l.Matches.ListByJobIDTx(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	active := activeMatch(matches)
	if active == nil {
		return nil, fmt.Errorf("job %s has no locked freelancer", jobID)
	}
	if active.FreelancerID != freelancerID {
		return nil, fmt.Errorf("freelancer %s is not assigned to job %s", freelancerID, jobID)
	}

	if err := advanceJob(job, models.JobStatusInProgress); err != nil {
		return nil, err
	}
	if err := l.Jobs.SetStatusTx(ctx, tx, jobID, job.Status); err != nil {
		return nil, err
	}
	if err := l.Checklists.SeedTx(ctx, tx, jobID, ChecklistTemplate(job.DeliverableType)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	l.publish(ctx, events.JobStatusChanged(jobID, from, job.Status))
	return job, nil
}

// SubmitWork moves an in_progress job to submitted. Requires at least one
// deliverable flagged final.
func (l *Lifecycle) SubmitWork(ctx context.Context, jobID, freelancerID uuid.UUID) (*models.Job, error) {
	hasFinal, err := l.Deliverables.HasFinal(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !hasFinal {
		return nil, fmt.Errorf("job %s has no final deliverable", jobID)
	}

	tx, err := l.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	job, err := l.Jobs.GetByIDForUpdate(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	from := job.Status

	matches, err := l.Matches.ListByJobIDTx(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	active := activeMatch(matches)
	if active == nil || active.FreelancerID != freelancerID {
		return nil, fmt.Errorf("freelancer %s is not assigned to job %s", freelancerID, jobID)
	}

	if err := advanceJob(job, models.JobStatusSubmitted); err != nil {
		return nil, err
	}
	if err := l.Jobs.SetStatusTx(ctx, tx, jobID, job.Status); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	l.publish(ctx, events.JobStatusChanged(jobID, from, job.Status))
	return job, nil
}

// Cancel moves any non-terminal job to cancelled by explicit client or admin
// action.
func (l *Lifecycle) Cancel(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	tx, err := l.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	job, err := l.Jobs.GetByIDForUpdate(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	from := job.Status
	if err := advanceJob(job, models.JobStatusCancelled); err != nil {
		return nil, err
	}
	if err := l.Jobs.SetStatusTx(ctx, tx, jobID, job.Status); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	l.publish(ctx, events.JobStatusChanged(jobID, from, job.Status))
	return job, nil
}

func (l *Lifecycle) publish(ctx context.Context, ev events.Event) {
	if l.Broker == nil {
		return
	}
	if err := l.Broker.Publish(ctx, ev); err != nil {
		l.Logger.Warn("publish event failed", "kind", ev.Kind, "job_id", ev.JobID, "error", err)
	}
}
