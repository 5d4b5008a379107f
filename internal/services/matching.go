package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/briefmatch/backend/internal/events"
	"github.com/briefmatch/backend/internal/models"
	"github.com/briefmatch/backend/internal/scheduler"
)

// DefaultMinMatchScore is the score floor: candidates below it are never
// offered. 0.1 sits just above the availability-only score of a freelancer
// with no skill overlap and a failed history, so hopeless matches are
// filtered while every plausible newcomer still clears it.
const DefaultMinMatchScore = 0.1

// DefaultBatchSize is how many offers a batch contains.
const DefaultBatchSize = 3

// scoreConcurrency bounds concurrent historical-aggregate loads.
const scoreConcurrency = 8

// MatcherUserRepo supplies the candidate pool.
type MatcherUserRepo interface {
	ListFreelancers(ctx context.Context) ([]*models.User, error)
}

// MatcherMatchRepo is the match repository surface the engine needs.
type MatcherMatchRepo interface {
	ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*models.JobMatch, error)
	CreateTx(ctx context.Context, tx pgx.Tx, m *models.JobMatch) error
	OfferedFreelancerIDs(ctx context.Context, jobID uuid.UUID) ([]uuid.UUID, error)
	CompletionStats(ctx context.Context, freelancerID uuid.UUID) (reviewed, met int, err error)
	ResponseStats(ctx context.Context, freelancerID uuid.UUID) (avgHours float64, accepts int, err error)
	CountActiveByFreelancer(ctx context.Context, freelancerID, excludeJobID uuid.UUID) (int, error)
}

// MatcherConfig carries the tunable matching knobs.
type MatcherConfig struct {
	BatchSize    int
	HoldDuration time.Duration
	MinScore     float64
}

func (c MatcherConfig) withDefaults() MatcherConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.HoldDuration <= 0 {
		c.HoldDuration = models.DefaultHoldDuration
	}
	if c.MinScore <= 0 {
		c.MinScore = DefaultMinMatchScore
	}
	return c
}

// Matcher scores and ranks freelancers for a job and creates time-limited
// offer batches.
type Matcher struct {
	Pool           TxBeginner
	Users          MatcherUserRepo
	Matches        MatcherMatchRepo
	ScheduleExpiry scheduler.InsertExpireMatchTxFunc
	Broker         events.Broker
	Logger         *slog.Logger
	Config         MatcherConfig

	now func() time.Time
}

func NewMatcher(pool TxBeginner, users MatcherUserRepo, matches MatcherMatchRepo, scheduleExpiry scheduler.InsertExpireMatchTxFunc, broker events.Broker, logger *slog.Logger, cfg MatcherConfig) *Matcher {
	return &Matcher{
		Pool:           pool,
		Users:          users,
		Matches:        matches,
		ScheduleExpiry: scheduleExpiry,
		Broker:         broker,
		Logger:         logger,
		Config:         cfg.withDefaults(),
		now:            time.Now,
	}
}

type candidate struct {
	freelancer *models.User
	score      float64
}

// GenerateMatches produces the offer batch for a job. Idempotent at the job
// level: if a live batch (any active offer, or a pending one whose hold has
// not lapsed) already exists, it is returned unchanged. Returns
// ErrNoEligibleFreelancers when no candidate clears the score floor; the
// caller surfaces the manual assignment or refund pathway.
func (m *Matcher) GenerateMatches(ctx context.Context, job *models.Job) ([]*models.JobMatch, error) {
	existing, err := m.Matches.ListByJobID(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if batchLive(existing, m.now()) {
		return existing, nil
	}
	return m.generate(ctx, job, nil)
}

// RegenerateBatch creates a fresh batch after every offer in the previous one
// expired or was declined, excluding freelancers already offered this job.
func (m *Matcher) RegenerateBatch(ctx context.Context, job *models.Job) ([]*models.JobMatch, error) {
	offered, err := m.Matches.OfferedFreelancerIDs(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	exclude := make(map[uuid.UUID]bool, len(offered))
	for _, id := range offered {
		exclude[id] = true
	}
	return m.generate(ctx, job, exclude)
}

func batchLive(matches []*models.JobMatch, now time.Time) bool {
	for _, match := range matches {
		if match.Active() {
			return true
		}
		if match.Status == models.MatchStatusPending && now.Before(match.ExpiresAt) {
			return true
		}
	}
	return false
}

func (m *Matcher) generate(ctx context.Context, job *models.Job, exclude map[uuid.UUID]bool) ([]*models.JobMatch, error) {
	freelancers, err := m.Users.ListFreelancers(ctx)
	if err != nil {
		return nil, err
	}

	pool := make([]*models.User, 0, len(freelancers))
	for _, f := range freelancers {
		if !exclude[f.ID] {
			pool = append(pool, f)
		}
	}
	if len(pool) == 0 {
		return nil, ErrNoEligibleFreelancers
	}

	// Each candidate's aggregates are independent reads, so score the whole
	// pool concurrently.
	candidates := make([]candidate, len(pool))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scoreConcurrency)
	for i, f := range pool {
		i, f := i, f
		g.Go(func() error {
			sig, err := m.loadSignals(gctx, f.ID, job.ID)
			if err != nil {
				return err
			}
			candidates[i] = candidate{freelancer: f, score: Score(job, f, sig)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Highest score first; ties break on freelancer id so batches are
	// deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].freelancer.ID.String() < candidates[j].freelancer.ID.String()
	})

	top := make([]candidate, 0, m.Config.BatchSize)
	for _, c := range candidates {
		if c.score < m.Config.MinScore {
			continue
		}
		top = append(top, c)
		if len(top) == m.Config.BatchSize {
			break
		}
	}
	if len(top) == 0 {
		return nil, ErrNoEligibleFreelancers
	}

	expiresAt := m.now().Add(m.Config.HoldDuration)
	batch := make([]*models.JobMatch, 0, len(top))

	tx, err := m.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for _, c := range top {
		match := &models.JobMatch{
			ID:           uuid.New(),
			JobID:        job.ID,
			FreelancerID: c.freelancer.ID,
			MatchScore:   c.score,
			Status:       models.MatchStatusPending,
			ExpiresAt:    expiresAt,
		}
		if err := m.Matches.CreateTx(ctx, tx, match); err != nil {
			return nil, err
		}
		if m.ScheduleExpiry != nil {
			args := scheduler.ExpireMatchArgs{MatchID: match.ID, JobID: job.ID}
			if err := m.ScheduleExpiry(ctx, tx, args, expiresAt); err != nil {
				return nil, err
			}
		}
		batch = append(batch, match)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	for _, match := range batch {
		m.publish(ctx, events.MatchStatusChanged(job.ID, match.ID, "", models.MatchStatusPending))
	}
	m.Logger.Info("match batch generated", "job_id", job.ID, "offers", len(batch), "expires_at", expiresAt)
	return batch, nil
}

// loadSignals fetches the historical aggregates scoring needs for one
// candidate.
func (m *Matcher) loadSignals(ctx context.Context, freelancerID, jobID uuid.UUID) (FreelancerSignals, error) {
	var sig FreelancerSignals
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reviewed, met, err := m.Matches.CompletionStats(gctx, freelancerID)
		if err != nil {
			return err
		}
		if reviewed > 0 {
			sig.HasReviews = true
			sig.CompletionRate = float64(met) / float64(reviewed)
		}
		return nil
	})
	g.Go(func() error {
		avgHours, accepts, err := m.Matches.ResponseStats(gctx, freelancerID)
		if err != nil {
			return err
		}
		if accepts > 0 {
			sig.HasAccepts = true
			sig.AvgResponseHours = avgHours
		}
		return nil
	})
	g.Go(func() error {
		active, err := m.Matches.CountActiveByFreelancer(gctx, freelancerID, jobID)
		if err != nil {
			return err
		}
		sig.ActiveMatches = active
		return nil
	})
	if err := g.Wait(); err != nil {
		return FreelancerSignals{}, err
	}
	return sig, nil
}

func (m *Matcher) publish(ctx context.Context, ev events.Event) {
	if m.Broker == nil {
		return
	}
	if err := m.Broker.Publish(ctx, ev); err != nil {
		m.Logger.Warn("publish event failed", "kind", ev.Kind, "job_id", ev.JobID, "error", err)
	}
}
