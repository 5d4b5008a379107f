package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/briefmatch/backend/internal/events"
	"github.com/briefmatch/backend/internal/models"
)

// HoldJobRepo is the job surface the hold manager needs.
type HoldJobRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error
}

// HoldMatchRepo is the match surface the hold manager needs.
type HoldMatchRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.JobMatch, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.JobMatch, error)
	ListByJobIDTx(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) ([]*models.JobMatch, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, acceptedAt *time.Time) error
}

// BatchRegenerator produces a replacement offer batch once the current one
// is fully resolved.
type BatchRegenerator interface {
	RegenerateBatch(ctx context.Context, job *models.Job) ([]*models.JobMatch, error)
}

// HoldService resolves time-limited offers. Every resolution locks the job
// row before the match row, so concurrent accepts, declines and expiry
// sweeps on the same job serialize and exactly one accept can win.
type HoldService struct {
	Pool       TxBeginner
	Jobs       HoldJobRepo
	Matches    HoldMatchRepo
	Checklists LifecycleChecklistRepo
	Regen      BatchRegenerator
	Broker     events.Broker
	Logger     *slog.Logger

	now func() time.Time
}

func NewHoldService(pool TxBeginner, jobs HoldJobRepo, matches HoldMatchRepo, checklists LifecycleChecklistRepo, regen BatchRegenerator, broker events.Broker, logger *slog.Logger) *HoldService {
	return &HoldService{Pool: pool, Jobs: jobs, Matches: matches, Checklists: checklists, Regen: regen, Broker: broker, Logger: logger, now: time.Now}
}

// Accept resolves an offer in the freelancer's favor. The losing siblings of
// the batch are withdrawn in the same transaction. A hold that lapsed before
// the accept arrives loses even if no expiry sweep has run yet.
func (s *HoldService) Accept(ctx context.Context, matchID, freelancerID uuid.UUID) (*models.JobMatch, error) {
	// The job id is needed before any lock is taken; the match row itself is
	// re-read under lock below.
	peek, err := s.Matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if peek.FreelancerID != freelancerID {
		return nil, fmt.Errorf("match %s does not belong to freelancer %s", matchID, freelancerID)
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	job, err := s.Jobs.GetByIDForUpdate(ctx, tx, peek.JobID)
	if err != nil {
		return nil, err
	}
	match, err := s.Matches.GetByIDForUpdate(ctx, tx, matchID)
	if err != nil {
		return nil, err
	}

	if match.Status != models.MatchStatusPending {
		return nil, ErrMatchAlreadyResolved
	}
	now := s.now()
	if !now.Before(match.ExpiresAt) {
		// The hold lapsed; resolve it here rather than waiting for the sweep.
		if err := s.Matches.SetStatusTx(ctx, tx, matchID, models.MatchStatusExpired, nil); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		s.publish(ctx, events.MatchStatusChanged(job.ID, matchID, models.MatchStatusPending, models.MatchStatusExpired))
		return nil, ErrMatchAlreadyResolved
	}
	if job.Status != models.JobStatusMatched {
		return nil, ErrMatchAlreadyResolved
	}

	if err := s.Matches.SetStatusTx(ctx, tx, matchID, models.MatchStatusAccepted, &now); err != nil {
		return nil, err
	}
	withdrawn, err := s.withdrawSiblingsTx(ctx, tx, job.ID, matchID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	match.Status = models.MatchStatusAccepted
	match.AcceptedAt = &now
	s.publish(ctx, events.MatchStatusChanged(job.ID, matchID, models.MatchStatusPending, models.MatchStatusAccepted))
	for _, id := range withdrawn {
		s.publish(ctx, events.MatchStatusChanged(job.ID, id, models.MatchStatusPending, models.MatchStatusExpired))
	}
	s.Logger.Info("match accepted", "job_id", job.ID, "match_id", matchID, "freelancer_id", freelancerID)
	return match, nil
}

// Decline resolves an offer against the freelancer. When the whole batch is
// resolved afterwards, a replacement batch is generated from the remaining
// pool.
func (s *HoldService) Decline(ctx context.Context, matchID, freelancerID uuid.UUID) error {
	peek, err := s.Matches.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if peek.FreelancerID != freelancerID {
		return fmt.Errorf("match %s does not belong to freelancer %s", matchID, freelancerID)
	}
	return s.resolve(ctx, peek.JobID, matchID, models.MatchStatusDeclined)
}

// ExpireMatch resolves a lapsed hold. Idempotent: called both by the
// scheduled timer and as a side effect of a late accept, and a match already
// resolved is a no-op.
func (s *HoldService) ExpireMatch(ctx context.Context, matchID uuid.UUID) error {
	peek, err := s.Matches.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if peek.Status != models.MatchStatusPending {
		return nil
	}
	err = s.resolve(ctx, peek.JobID, matchID, models.MatchStatusExpired)
	if errors.Is(err, ErrMatchAlreadyResolved) {
		return nil
	}
	return err
}

// resolve marks a pending match declined or expired under the job lock and
// regenerates the batch when nothing is left holding the job.
func (s *HoldService) resolve(ctx context.Context, jobID, matchID uuid.UUID, to string) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	job, err := s.Jobs.GetByIDForUpdate(ctx, tx, jobID)
	if err != nil {
		return err
	}
	match, err := s.Matches.GetByIDForUpdate(ctx, tx, matchID)
	if err != nil {
		return err
	}
	if match.Status != models.MatchStatusPending {
		return ErrMatchAlreadyResolved
	}
	if to == models.MatchStatusExpired && s.now().Before(match.ExpiresAt) {
		// Timer fired early; the hold still stands.
		return nil
	}
	if err := s.Matches.SetStatusTx(ctx, tx, matchID, to, nil); err != nil {
		return err
	}

	matches, err := s.Matches.ListByJobIDTx(ctx, tx, jobID)
	if err != nil {
		return err
	}
	batchDone := job.Status == models.JobStatusMatched && !batchLiveExcept(matches, matchID, s.now())

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.publish(ctx, events.MatchStatusChanged(jobID, matchID, models.MatchStatusPending, to))

	if batchDone && s.Regen != nil {
		if _, err := s.Regen.RegenerateBatch(ctx, job); err != nil {
			if errors.Is(err, ErrNoEligibleFreelancers) {
				// Candidate pool is exhausted; the job needs a manual
				// assignment or a refund.
				s.Logger.Warn("offer pool exhausted", "job_id", jobID)
				return nil
			}
			return err
		}
	}
	return nil
}

// AutoAssign is the admin override for a stalled job: the best still-pending
// offer is locked immediately and work starts without the freelancer's
// acknowledgement.
func (s *HoldService) AutoAssign(ctx context.Context, jobID uuid.UUID) (*models.JobMatch, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	job, err := s.Jobs.GetByIDForUpdate(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	matches, err := s.Matches.ListByJobIDTx(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if m := activeMatch(matches); m != nil {
		return nil, ErrMatchAlreadyResolved
	}

	// ListByJobIDTx orders by score descending, so the first pending match
	// is the best remaining candidate.
	var best *models.JobMatch
	for _, m := range matches {
		if m.Status == models.MatchStatusPending {
			best = m
			break
		}
	}
	if best == nil {
		return nil, ErrNoEligibleFreelancers
	}

	now := s.now()
	if err := s.Matches.SetStatusTx(ctx, tx, best.ID, models.MatchStatusAutoAssigned, &now); err != nil {
		return nil, err
	}
	withdrawn, err := s.withdrawSiblingsTx(ctx, tx, jobID, best.ID)
	if err != nil {
		return nil, err
	}

	from := job.Status
	if err := advanceJob(job, models.JobStatusInProgress); err != nil {
		return nil, err
	}
	if err := s.Jobs.SetStatusTx(ctx, tx, jobID, job.Status); err != nil {
		return nil, err
	}
	if err := s.Checklists.SeedTx(ctx, tx, jobID, ChecklistTemplate(job.DeliverableType)); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	best.Status = models.MatchStatusAutoAssigned
	best.AcceptedAt = &now
	s.publish(ctx, events.MatchStatusChanged(jobID, best.ID, models.MatchStatusPending, models.MatchStatusAutoAssigned))
	for _, id := range withdrawn {
		s.publish(ctx, events.MatchStatusChanged(jobID, id, models.MatchStatusPending, models.MatchStatusExpired))
	}
	s.publish(ctx, events.JobStatusChanged(jobID, from, job.Status))
	s.Logger.Info("match auto-assigned", "job_id", jobID, "match_id", best.ID, "freelancer_id", best.FreelancerID)
	return best, nil
}

// withdrawSiblingsTx expires the other pending offers of a batch once one of
// them wins.
func (s *HoldService) withdrawSiblingsTx(ctx context.Context, tx pgx.Tx, jobID, winnerID uuid.UUID) ([]uuid.UUID, error) {
	matches, err := s.Matches.ListByJobIDTx(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	var withdrawn []uuid.UUID
	for _, m := range matches {
		if m.ID == winnerID || m.Status != models.MatchStatusPending {
			continue
		}
		if err := s.Matches.SetStatusTx(ctx, tx, m.ID, models.MatchStatusExpired, nil); err != nil {
			return nil, err
		}
		withdrawn = append(withdrawn, m.ID)
	}
	return withdrawn, nil
}

// batchLiveExcept is batchLive ignoring one match, used while that match's
// new status is only in-memory.
func batchLiveExcept(matches []*models.JobMatch, except uuid.UUID, now time.Time) bool {
	for _, m := range matches {
		if m.ID == except {
			continue
		}
		if m.Active() {
			return true
		}
		if m.Status == models.MatchStatusPending && now.Before(m.ExpiresAt) {
			return true
		}
	}
	return false
}

func (s *HoldService) publish(ctx context.Context, ev events.Event) {
	if s.Broker == nil {
		return
	}
	if err := s.Broker.Publish(ctx, ev); err != nil {
		s.Logger.Warn("publish event failed", "kind", ev.Kind, "job_id", ev.JobID, "error", err)
	}
}
