package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/briefmatch/backend/internal/models"
)

type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

const jobColumns = `id, client_id, one_line_request, objective, deliverable_type, acceptance_criteria, budget, deadline, priority, status, estimated_price, final_price, revision_count, max_revisions, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.ClientID, &j.OneLineRequest, &j.Objective, &j.DeliverableType, &j.AcceptanceCriteria, &j.Budget, &j.Deadline, &j.Priority, &j.Status, &j.EstimatedPrice, &j.FinalPrice, &j.RevisionCount, &j.MaxRevisions, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JobRepo) Create(ctx context.Context, j *models.Job) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO jobs (id, client_id, one_line_request, objective, deliverable_type, acceptance_criteria, budget, deadline, priority, status, estimated_price, final_price, revision_count, max_revisions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`, j.ID, j.ClientID, j.OneLineRequest, j.Objective, j.DeliverableType, j.AcceptanceCriteria, j.Budget, j.Deadline, j.Priority, j.Status, j.EstimatedPrice, j.FinalPrice, j.RevisionCount, j.MaxRevisions).Scan(&j.CreatedAt, &j.UpdatedAt)
}

func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
}

// GetByIDForUpdate locks the job row. Every status transition runs through
// this lock, which is the per-job serialization boundary. Call within a
// transaction.
func (r *JobRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error) {
	return scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id))
}

// SetStatusTx writes the status decided by the lifecycle service. Call after
// GetByIDForUpdate in the same transaction.
func (r *JobRepo) SetStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error {
	_, err := tx.Exec(ctx, `UPDATE jobs SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

// SetRevisionCountTx persists an incremented revision counter alongside a
// revision_requested transition.
func (r *JobRepo) SetRevisionCountTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, count int) error {
	_, err := tx.Exec(ctx, `UPDATE jobs SET revision_count = $2, updated_at = now() WHERE id = $1`, id, count)
	return err
}

func (r *JobRepo) ListByClientID(ctx context.Context, clientID uuid.UUID) ([]*models.Job, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE client_id = $1 ORDER BY created_at DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (r *JobRepo) List(ctx context.Context) ([]*models.Job, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

func collectJobs(rows pgx.Rows) ([]*models.Job, error) {
	var list []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, j)
	}
	return list, rows.Err()
}
