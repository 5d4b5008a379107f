package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/briefmatch/backend/internal/events"
	"github.com/briefmatch/backend/internal/models"
)

// ReviewJobRepo is the job surface the review gate needs.
type ReviewJobRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error
	SetRevisionCountTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, count int) error
}

// ReviewStore persists the client's decision.
type ReviewStore interface {
	UpsertTx(ctx context.Context, tx pgx.Tx, rev *models.JobReview) error
}

// EscrowReleaser releases the job's escrow inside the caller's transaction.
type EscrowReleaser interface {
	ReleaseTx(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (*models.Transaction, error)
}

// ReviewDecision is the client's verdict on a submitted deliverable.
type ReviewDecision struct {
	MetCriteria bool
	Feedback    string
	Rating      *int // 1-5, only read when MetCriteria
}

// ReviewGate is the only path out of submitted. Acceptance completes the job
// and releases escrow atomically; rejection re-opens work until the revision
// cap, after which nothing moves without a human.
type ReviewGate struct {
	Pool    TxBeginner
	Jobs    ReviewJobRepo
	Matches LifecycleMatchRepo
	Reviews ReviewStore
	Escrow  EscrowReleaser
	Broker  events.Broker
	Logger  *slog.Logger

	now func() time.Time
}

func NewReviewGate(pool TxBeginner, jobs ReviewJobRepo, matches LifecycleMatchRepo, reviews ReviewStore, escrow EscrowReleaser, broker events.Broker, logger *slog.Logger) *ReviewGate {
	return &ReviewGate{Pool: pool, Jobs: jobs, Matches: matches, Reviews: reviews, Escrow: escrow, Broker: broker, Logger: logger, now: time.Now}
}

// SubmitReview records the client's decision and advances the job. One
// review row per (job, client): a later decision replaces the earlier one.
// On rejection past max_revisions everything rolls back, the decision
// included, and the job stays in submitted awaiting escalation.
func (g *ReviewGate) SubmitReview(ctx context.Context, jobID, clientID uuid.UUID, decision ReviewDecision) (*models.Job, error) {
	if decision.Rating != nil && (*decision.Rating < 1 || *decision.Rating > 5) {
		return nil, fmt.Errorf("rating %d out of range", *decision.Rating)
	}

	tx, err := g.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	job, err := g.Jobs.GetByIDForUpdate(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != clientID {
		return nil, fmt.Errorf("job %s does not belong to client %s", jobID, clientID)
	}
	if job.Status != models.JobStatusSubmitted {
		return nil, &InvalidTransitionError{From: job.Status, To: models.JobStatusAccepted}
	}

	matches, err := g.Matches.ListByJobIDTx(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	active := activeMatch(matches)
	if active == nil {
		return nil, fmt.Errorf("job %s has no locked freelancer", jobID)
	}

	review := &models.JobReview{
		ID:           uuid.New(),
		JobID:        jobID,
		ClientID:     clientID,
		FreelancerID: active.FreelancerID,
		MetCriteria:  decision.MetCriteria,
		Feedback:     decision.Feedback,
	}
	if decision.MetCriteria {
		review.Rating = decision.Rating
	}
	if err := g.Reviews.UpsertTx(ctx, tx, review); err != nil {
		return nil, err
	}

	if decision.MetCriteria {
		return g.acceptTx(ctx, tx, job)
	}
	return g.rejectTx(ctx, tx, job)
}

// acceptTx drives submitted -> accepted -> completed and releases escrow,
// all under the job lock the caller holds.
func (g *ReviewGate) acceptTx(ctx context.Context, tx pgx.Tx, job *models.Job) (*models.Job, error) {
	if err := advanceJob(job, models.JobStatusAccepted); err != nil {
		return nil, err
	}
	txn, err := g.Escrow.ReleaseTx(ctx, tx, job.ID)
	if err != nil {
		return nil, err
	}
	if err := advanceJob(job, models.JobStatusCompleted); err != nil {
		return nil, err
	}
	if err := g.Jobs.SetStatusTx(ctx, tx, job.ID, job.Status); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	g.publish(ctx, events.JobStatusChanged(job.ID, models.JobStatusSubmitted, models.JobStatusAccepted))
	g.publish(ctx, events.JobStatusChanged(job.ID, models.JobStatusAccepted, models.JobStatusCompleted))
	g.publish(ctx, events.TransactionStatusChanged(job.ID, txn.ID, models.TransactionPaid, models.TransactionReleased))
	g.Logger.Info("work accepted", "job_id", job.ID, "transaction_id", txn.ID, "amount", txn.Amount)
	return job, nil
}

// rejectTx drives submitted -> revision_requested, enforcing the revision
// cap.
func (g *ReviewGate) rejectTx(ctx context.Context, tx pgx.Tx, job *models.Job) (*models.Job, error) {
	if job.RevisionCount+1 > job.MaxRevisions {
		return nil, ErrRevisionLimitExceeded
	}
	job.RevisionCount++
	if err := g.Jobs.SetRevisionCountTx(ctx, tx, job.ID, job.RevisionCount); err != nil {
		return nil, err
	}
	if err := advanceJob(job, models.JobStatusRevisionRequested); err != nil {
		return nil, err
	}
	if err := g.Jobs.SetStatusTx(ctx, tx, job.ID, job.Status); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	g.publish(ctx, events.JobStatusChanged(job.ID, models.JobStatusSubmitted, models.JobStatusRevisionRequested))
	g.Logger.Info("revision requested", "job_id", job.ID, "revision", job.RevisionCount, "max", job.MaxRevisions)
	return job, nil
}

func (g *ReviewGate) publish(ctx context.Context, ev events.Event) {
	if g.Broker == nil {
		return
	}
	if err := g.Broker.Publish(ctx, ev); err != nil {
		g.Logger.Warn("publish event failed", "kind", ev.Kind, "job_id", ev.JobID, "error", err)
	}
}
