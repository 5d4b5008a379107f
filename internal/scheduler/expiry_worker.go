// Package scheduler owns the server-side hold timers. Every pending match
// gets one scheduled job firing at its expires_at; clients only observe the
// resulting state, they never drive expiry.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
)

type ExpireMatchArgs struct {
	MatchID uuid.UUID `json:"match_id"`
	JobID   uuid.UUID `json:"job_id"`
}

func (ExpireMatchArgs) Kind() string { return "expire_match" }

// InsertExpireMatchTxFunc schedules an expiry job inside the caller's
// transaction, so offers and their timers commit atomically. Provided by main
// as a closure over river.Client.InsertTx with ScheduledAt = runAt.
type InsertExpireMatchTxFunc func(ctx context.Context, tx pgx.Tx, args ExpireMatchArgs, runAt time.Time) error

// MatchExpirer is the hold-manager contract the worker needs.
type MatchExpirer interface {
	ExpireMatch(ctx context.Context, matchID uuid.UUID) error
}

type ExpireMatchWorker struct {
	river.WorkerDefaults[ExpireMatchArgs]
	holds  MatchExpirer
	logger *slog.Logger
}

func NewExpireMatchWorker(holds MatchExpirer, logger *slog.Logger) *ExpireMatchWorker {
	return &ExpireMatchWorker{holds: holds, logger: logger}
}

// Work fires at the match's expires_at. ExpireMatch is idempotent: if the
// offer resolved in the meantime this is a no-op.
func (w *ExpireMatchWorker) Work(ctx context.Context, job *river.Job[ExpireMatchArgs]) error {
	if err := w.holds.ExpireMatch(ctx, job.Args.MatchID); err != nil {
		w.logger.Error("expire match failed", "match_id", job.Args.MatchID, "job_id", job.Args.JobID, "error", err)
		return err
	}
	return nil
}
