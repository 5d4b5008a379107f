package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/briefmatch/backend/internal/models"
)

type MatchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

const matchColumns = `id, job_id, freelancer_id, match_score, status, expires_at, accepted_at, created_at, updated_at`

func scanMatch(row pgx.Row) (*models.JobMatch, error) {
	var m models.JobMatch
	err := row.Scan(&m.ID, &m.JobID, &m.FreelancerID, &m.MatchScore, &m.Status, &m.ExpiresAt, &m.AcceptedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateTx inserts one offer of a batch inside the caller's transaction, so a
// batch and its expiry jobs commit atomically.
func (r *MatchRepo) CreateTx(ctx context.Context, tx pgx.Tx, m *models.JobMatch) error {
	return tx.QueryRow(ctx, `
		INSERT INTO job_matches (id, job_id, freelancer_id, match_score, status, expires_at, accepted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, m.ID, m.JobID, m.FreelancerID, m.MatchScore, m.Status, m.ExpiresAt, m.AcceptedAt).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *MatchRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.JobMatch, error) {
	return scanMatch(r.pool.QueryRow(ctx, `SELECT `+matchColumns+` FROM job_matches WHERE id = $1`, id))
}

// GetByIDForUpdate locks the match row. Accept, decline, and expiry all
// resolve through this lock. Call within a transaction.
func (r *MatchRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.JobMatch, error) {
	return scanMatch(tx.QueryRow(ctx, `SELECT `+matchColumns+` FROM job_matches WHERE id = $1 FOR UPDATE`, id))
}

func (r *MatchRepo) ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*models.JobMatch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+matchColumns+` FROM job_matches
		WHERE job_id = $1 ORDER BY match_score DESC, freelancer_id ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMatches(rows)
}

// ListByJobIDTx is ListByJobID under the caller's transaction, for batch
// re-evaluation while holding the job row lock.
func (r *MatchRepo) ListByJobIDTx(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) ([]*models.JobMatch, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+matchColumns+` FROM job_matches
		WHERE job_id = $1 ORDER BY match_score DESC, freelancer_id ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMatches(rows)
}

// SetStatusTx resolves a match. acceptedAt is non-nil only for accept and
// auto-assign.
func (r *MatchRepo) SetStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, acceptedAt *time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE job_matches SET status = $2, accepted_at = COALESCE($3, accepted_at), updated_at = now()
		WHERE id = $1
	`, id, status, acceptedAt)
	return err
}

// OfferedFreelancerIDs returns every freelancer who has ever held an offer
// for the job, so batch regeneration does not re-offer someone who declined
// or let the hold lapse.
func (r *MatchRepo) OfferedFreelancerIDs(ctx context.Context, jobID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT freelancer_id FROM job_matches WHERE job_id = $1`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CompletionStats returns how many of the freelancer's locked jobs were
// reviewed and how many of those met criteria.
func (r *MatchRepo) CompletionStats(ctx context.Context, freelancerID uuid.UUID) (reviewed, met int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(jr.id), COUNT(jr.id) FILTER (WHERE jr.met_criteria)
		FROM job_matches jm
		JOIN job_reviews jr ON jr.job_id = jm.job_id
		WHERE jm.freelancer_id = $1 AND jm.status IN ($2, $3)
	`, freelancerID, models.MatchStatusAccepted, models.MatchStatusAutoAssigned).Scan(&reviewed, &met)
	return reviewed, met, err
}

// ResponseStats returns the freelancer's average hours from offer creation to
// acceptance, and how many accepted offers that average covers.
func (r *MatchRepo) ResponseStats(ctx context.Context, freelancerID uuid.UUID) (avgHours float64, accepts int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (accepted_at - created_at)) / 3600.0), 0), COUNT(*)
		FROM job_matches
		WHERE freelancer_id = $1 AND accepted_at IS NOT NULL
	`, freelancerID).Scan(&avgHours, &accepts)
	return avgHours, accepts, err
}

// CountActiveByFreelancer counts the freelancer's active matches on jobs
// other than the one being scored.
func (r *MatchRepo) CountActiveByFreelancer(ctx context.Context, freelancerID, excludeJobID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM job_matches
		WHERE freelancer_id = $1 AND job_id <> $2 AND status IN ($3, $4)
	`, freelancerID, excludeJobID, models.MatchStatusAccepted, models.MatchStatusAutoAssigned).Scan(&n)
	return n, err
}

// ListPendingByFreelancer returns open offers awaiting the freelancer's
// decision.
func (r *MatchRepo) ListPendingByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*models.JobMatch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+matchColumns+` FROM job_matches
		WHERE freelancer_id = $1 AND status = $2 AND expires_at > now()
		ORDER BY expires_at ASC
	`, freelancerID, models.MatchStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMatches(rows)
}

func collectMatches(rows pgx.Rows) ([]*models.JobMatch, error) {
	var list []*models.JobMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
