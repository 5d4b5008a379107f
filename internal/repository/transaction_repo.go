package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/briefmatch/backend/internal/models"
)

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const txnColumns = `id, job_id, client_id, amount, status, payment_method, payment_reference, admin_verified_at, released_at, created_at, updated_at`

func scanTxn(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.JobID, &t.ClientID, &t.Amount, &t.Status, &t.PaymentMethod, &t.PaymentReference, &t.AdminVerifiedAt, &t.ReleasedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTx inserts the job's escrow record. The job_id unique constraint
// enforces at most one transaction per job.
func (r *TransactionRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO transactions (id, job_id, client_id, amount, status, payment_method, payment_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, t.ID, t.JobID, t.ClientID, t.Amount, t.Status, t.PaymentMethod, t.PaymentReference).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return scanTxn(r.pool.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id = $1`, id))
}

func (r *TransactionRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Transaction, error) {
	return scanTxn(r.pool.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE job_id = $1`, jobID))
}

// GetByIDForUpdate locks the transaction row for a status change. Call within
// a transaction.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Transaction, error) {
	return scanTxn(tx.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
}

// GetByJobIDForUpdate locks the job's transaction row. Call within a
// transaction.
func (r *TransactionRepo) GetByJobIDForUpdate(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (*models.Transaction, error) {
	return scanTxn(tx.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE job_id = $1 FOR UPDATE`, jobID))
}

// MarkPaidTx records admin verification. Only rows still pending are touched;
// the caller checks the prior status under lock.
func (r *TransactionRepo) MarkPaidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, verifiedAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE transactions SET status = $2, admin_verified_at = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, models.TransactionPaid, verifiedAt, models.TransactionPending)
	return err
}

// MarkReleasedTx releases escrow to the freelancer on acceptance.
func (r *TransactionRepo) MarkReleasedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, releasedAt time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE transactions SET status = $2, released_at = $3, updated_at = now()
		WHERE id = $1 AND status = $4
	`, id, models.TransactionReleased, releasedAt, models.TransactionPaid)
	return err
}

// MarkRefundedTx returns funds to the client by admin action.
func (r *TransactionRepo) MarkRefundedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE transactions SET status = $2, updated_at = now() WHERE id = $1
	`, id, models.TransactionRefunded)
	return err
}

// ListByStatus returns transactions awaiting a given status, newest first.
// Admin verification queues are built from the pending list.
func (r *TransactionRepo) ListByStatus(ctx context.Context, status string) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+txnColumns+` FROM transactions WHERE status = $1 ORDER BY created_at DESC
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Transaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
