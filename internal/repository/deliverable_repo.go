package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/briefmatch/backend/internal/models"
)

type DeliverableRepo struct {
	pool *pgxpool.Pool
}

func NewDeliverableRepo(pool *pgxpool.Pool) *DeliverableRepo {
	return &DeliverableRepo{pool: pool}
}

// Create records an upload, assigning the next version number for the job.
func (r *DeliverableRepo) Create(ctx context.Context, d *models.JobDeliverable) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO job_deliverables (id, job_id, uploaded_by, file_url, file_name, file_size, version, is_final)
		VALUES ($1, $2, $3, $4, $5, $6,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM job_deliverables WHERE job_id = $2),
			$7)
		RETURNING version, created_at
	`, d.ID, d.JobID, d.UploadedBy, d.FileURL, d.FileName, d.FileSize, d.IsFinal).Scan(&d.Version, &d.CreatedAt)
}

func (r *DeliverableRepo) ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*models.JobDeliverable, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, job_id, uploaded_by, file_url, file_name, file_size, version, is_final, created_at
		FROM job_deliverables WHERE job_id = $1 ORDER BY version DESC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.JobDeliverable
	for rows.Next() {
		var d models.JobDeliverable
		if err := rows.Scan(&d.ID, &d.JobID, &d.UploadedBy, &d.FileURL, &d.FileName, &d.FileSize, &d.Version, &d.IsFinal, &d.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &d)
	}
	return list, rows.Err()
}

// HasFinal reports whether the job has at least one deliverable flagged as
// final. Gates the in_progress -> submitted transition.
func (r *DeliverableRepo) HasFinal(ctx context.Context, jobID uuid.UUID) (bool, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM job_deliverables WHERE job_id = $1 AND is_final
	`, jobID).Scan(&n)
	return n > 0, err
}
