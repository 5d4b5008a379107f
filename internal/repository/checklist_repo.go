package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/briefmatch/backend/internal/models"
)

type ChecklistRepo struct {
	pool *pgxpool.Pool
}

func NewChecklistRepo(pool *pgxpool.Pool) *ChecklistRepo {
	return &ChecklistRepo{pool: pool}
}

// SeedTx inserts the milestone template for a job, skipping entirely if any
// items already exist (seeding is idempotent).
func (r *ChecklistRepo) SeedTx(ctx context.Context, tx pgx.Tx, jobID uuid.UUID, items []string) error {
	var existing int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM job_checklists WHERE job_id = $1`, jobID).Scan(&existing); err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}
	for i, item := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO job_checklists (id, job_id, item, completed, position)
			VALUES ($1, $2, $3, FALSE, $4)
		`, uuid.New(), jobID, item, i); err != nil {
			return err
		}
	}
	return nil
}

func (r *ChecklistRepo) ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*models.JobChecklistItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, job_id, item, completed, completed_by, completed_at, position, created_at, updated_at
		FROM job_checklists WHERE job_id = $1 ORDER BY position ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.JobChecklistItem
	for rows.Next() {
		var it models.JobChecklistItem
		if err := rows.Scan(&it.ID, &it.JobID, &it.Item, &it.Completed, &it.CompletedBy, &it.CompletedAt, &it.Position, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &it)
	}
	return list, rows.Err()
}

func (r *ChecklistRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.JobChecklistItem, error) {
	var it models.JobChecklistItem
	err := r.pool.QueryRow(ctx, `
		SELECT id, job_id, item, completed, completed_by, completed_at, position, created_at, updated_at
		FROM job_checklists WHERE id = $1
	`, id).Scan(&it.ID, &it.JobID, &it.Item, &it.Completed, &it.CompletedBy, &it.CompletedAt, &it.Position, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// SetCompleted toggles a milestone. completedBy is recorded only when
// completing; clearing resets both fields.
func (r *ChecklistRepo) SetCompleted(ctx context.Context, id uuid.UUID, completed bool, completedBy uuid.UUID) error {
	if completed {
		now := time.Now().UTC()
		_, err := r.pool.Exec(ctx, `
			UPDATE job_checklists SET completed = TRUE, completed_by = $2, completed_at = $3, updated_at = now()
			WHERE id = $1
		`, id, completedBy, now)
		return err
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE job_checklists SET completed = FALSE, completed_by = NULL, completed_at = NULL, updated_at = now()
		WHERE id = $1
	`, id)
	return err
}
