package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/briefmatch/backend/internal/models"
)

type ReviewRepo struct {
	pool *pgxpool.Pool
}

func NewReviewRepo(pool *pgxpool.Pool) *ReviewRepo {
	return &ReviewRepo{pool: pool}
}

// UpsertTx writes the client's current decision for a job. Conflict key is
// (job_id, client_id): a second review replaces the first rather than
// appending a history of votes.
func (r *ReviewRepo) UpsertTx(ctx context.Context, tx pgx.Tx, rev *models.JobReview) error {
	return tx.QueryRow(ctx, `
		INSERT INTO job_reviews (id, job_id, client_id, freelancer_id, met_criteria, feedback, rating)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id, client_id) DO UPDATE
		SET met_criteria = EXCLUDED.met_criteria,
		    feedback = EXCLUDED.feedback,
		    rating = EXCLUDED.rating,
		    updated_at = now()
		RETURNING id, created_at, updated_at
	`, rev.ID, rev.JobID, rev.ClientID, rev.FreelancerID, rev.MetCriteria, rev.Feedback, rev.Rating).Scan(&rev.ID, &rev.CreatedAt, &rev.UpdatedAt)
}

func (r *ReviewRepo) GetByJobAndClient(ctx context.Context, jobID, clientID uuid.UUID) (*models.JobReview, error) {
	var rev models.JobReview
	err := r.pool.QueryRow(ctx, `
		SELECT id, job_id, client_id, freelancer_id, met_criteria, COALESCE(feedback, ''), rating, created_at, updated_at
		FROM job_reviews WHERE job_id = $1 AND client_id = $2
	`, jobID, clientID).Scan(&rev.ID, &rev.JobID, &rev.ClientID, &rev.FreelancerID, &rev.MetCriteria, &rev.Feedback, &rev.Rating, &rev.CreatedAt, &rev.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (r *ReviewRepo) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*models.JobReview, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, job_id, client_id, freelancer_id, met_criteria, COALESCE(feedback, ''), rating, created_at, updated_at
		FROM job_reviews WHERE freelancer_id = $1 ORDER BY created_at DESC
	`, freelancerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.JobReview
	for rows.Next() {
		var rev models.JobReview
		if err := rows.Scan(&rev.ID, &rev.JobID, &rev.ClientID, &rev.FreelancerID, &rev.MetCriteria, &rev.Feedback, &rev.Rating, &rev.CreatedAt, &rev.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &rev)
	}
	return list, rows.Err()
}
