package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/briefmatch/backend/internal/events"
	"github.com/briefmatch/backend/internal/models"
)

// EscrowJobRepo is the job surface escrow needs.
type EscrowJobRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error)
	SetStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error
}

// EscrowTransactionRepo is the transaction surface escrow needs.
type EscrowTransactionRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Transaction, error)
	GetByJobIDForUpdate(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (*models.Transaction, error)
	MarkPaidTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, verifiedAt time.Time) error
	MarkReleasedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, releasedAt time.Time) error
	MarkRefundedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// EscrowMatcher kicks off matching once a payment verifies.
type EscrowMatcher interface {
	GenerateMatches(ctx context.Context, job *models.Job) ([]*models.JobMatch, error)
}

// Escrow owns the money side of a job: one transaction per job, created when
// the client commits to the final price, advanced only by admin action.
// Amounts are integer currency units; no arithmetic is ever done on floats.
type Escrow struct {
	Pool         TxBeginner
	Jobs         EscrowJobRepo
	Transactions EscrowTransactionRepo
	Matcher      EscrowMatcher
	Broker       events.Broker
	Logger       *slog.Logger

	now func() time.Time
}

func NewEscrow(pool TxBeginner, jobs EscrowJobRepo, transactions EscrowTransactionRepo, matcher EscrowMatcher, broker events.Broker, logger *slog.Logger) *Escrow {
	return &Escrow{Pool: pool, Jobs: jobs, Transactions: transactions, Matcher: matcher, Broker: broker, Logger: logger, now: time.Now}
}

// paymentReference derives a short human-readable reference the client
// quotes when sending the payment.
func paymentReference() string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "PAY-" + token[:12]
}

// CreateTransaction locks the final price and opens the pending escrow
// transaction, moving the job to payment_pending. A job can hold exactly one
// transaction.
func (e *Escrow) CreateTransaction(ctx context.Context, jobID uuid.UUID, paymentMethod string) (*models.Transaction, error) {
	switch paymentMethod {
	case models.PaymentPayPal, models.PaymentMobileMoney, models.PaymentBankTransfer:
	default:
		return nil, fmt.Errorf("unsupported payment method %q", paymentMethod)
	}

	tx, err := e.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	job, err := e.Jobs.GetByIDForUpdate(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if existing, err := e.Transactions.GetByJobIDForUpdate(ctx, tx, jobID); err == nil && existing != nil {
		return nil, ErrTransactionExists
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if job.FinalPrice == nil || *job.FinalPrice <= 0 {
		return nil, fmt.Errorf("job %s has no final price", jobID)
	}

	from := job.Status
	if err := advanceJob(job, models.JobStatusPaymentPending); err != nil {
		return nil, err
	}
	if err := e.Jobs.SetStatusTx(ctx, tx, jobID, job.Status); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		ID:               uuid.New(),
		JobID:            jobID,
		ClientID:         job.ClientID,
		Amount:           *job.FinalPrice,
		Status:           models.TransactionPending,
		PaymentMethod:    paymentMethod,
		PaymentReference: paymentReference(),
	}
	if err := e.Transactions.CreateTx(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	e.publish(ctx, events.JobStatusChanged(jobID, from, job.Status))
	e.publish(ctx, events.TransactionStatusChanged(jobID, txn.ID, "", models.TransactionPending))
	e.Logger.Info("transaction created", "job_id", jobID, "transaction_id", txn.ID, "amount", txn.Amount, "reference", txn.PaymentReference)
	return txn, nil
}

// VerifyPayment is the admin confirmation that the money arrived. The
// transaction moves to paid and the job to matched in one database
// transaction; matching runs after commit, so a crash between the two leaves
// a job the matcher picks up idempotently on the next call.
//
// Every writer locks job row then transaction row, so the unlocked read here
// only serves to find the job id; the status is re-checked under the lock.
func (e *Escrow) VerifyPayment(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	ref, err := e.Transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	tx, err := e.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	job, err := e.Jobs.GetByIDForUpdate(ctx, tx, ref.JobID)
	if err != nil {
		return nil, err
	}
	txn, err := e.Transactions.GetByIDForUpdate(ctx, tx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Status != models.TransactionPending {
		return nil, fmt.Errorf("transaction %s is %s, not pending", transactionID, txn.Status)
	}
	from := job.Status
	if err := advanceJob(job, models.JobStatusMatched); err != nil {
		return nil, err
	}

	now := e.now()
	if err := e.Transactions.MarkPaidTx(ctx, tx, transactionID, now); err != nil {
		return nil, err
	}
	if err := e.Jobs.SetStatusTx(ctx, tx, job.ID, job.Status); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	txn.Status = models.TransactionPaid
	txn.AdminVerifiedAt = &now
	e.publish(ctx, events.TransactionStatusChanged(job.ID, transactionID, models.TransactionPending, models.TransactionPaid))
	e.publish(ctx, events.JobStatusChanged(job.ID, from, job.Status))
	e.Logger.Info("payment verified", "job_id", job.ID, "transaction_id", transactionID)

	if e.Matcher != nil {
		if _, err := e.Matcher.GenerateMatches(ctx, job); err != nil {
			if errors.Is(err, ErrNoEligibleFreelancers) {
				e.Logger.Warn("no eligible freelancers after payment", "job_id", job.ID)
			} else {
				e.Logger.Error("matching after payment failed", "job_id", job.ID, "error", err)
			}
		}
	}
	return txn, nil
}

// ReleaseTx moves the job's escrow from paid to released inside the caller's
// transaction. Called by the acceptance flow under the job lock it already
// holds. ErrPaymentNotVerified when the money never verified.
func (e *Escrow) ReleaseTx(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (*models.Transaction, error) {
	txn, err := e.Transactions.GetByJobIDForUpdate(ctx, tx, jobID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotVerified
		}
		return nil, err
	}
	if txn.Status != models.TransactionPaid {
		return nil, ErrPaymentNotVerified
	}
	now := e.now()
	if err := e.Transactions.MarkReleasedTx(ctx, tx, txn.ID, now); err != nil {
		return nil, err
	}
	txn.Status = models.TransactionReleased
	txn.ReleasedAt = &now
	return txn, nil
}

// Refund is the admin escape hatch: the transaction moves to refunded and a
// job still in flight is cancelled with it. Locks the job row before the
// transaction row, same order as every other writer.
func (e *Escrow) Refund(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error) {
	ref, err := e.Transactions.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	tx, err := e.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	job, err := e.Jobs.GetByIDForUpdate(ctx, tx, ref.JobID)
	if err != nil {
		return nil, err
	}
	txn, err := e.Transactions.GetByIDForUpdate(ctx, tx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Status != models.TransactionPending && txn.Status != models.TransactionPaid {
		return nil, fmt.Errorf("transaction %s is %s, not refundable", transactionID, txn.Status)
	}

	fromTxn := txn.Status
	if err := e.Transactions.MarkRefundedTx(ctx, tx, transactionID); err != nil {
		return nil, err
	}

	fromJob := job.Status
	cancelled := false
	if !job.Terminal() {
		if err := advanceJob(job, models.JobStatusCancelled); err != nil {
			return nil, err
		}
		if err := e.Jobs.SetStatusTx(ctx, tx, job.ID, job.Status); err != nil {
			return nil, err
		}
		cancelled = true
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	txn.Status = models.TransactionRefunded
	e.publish(ctx, events.TransactionStatusChanged(job.ID, transactionID, fromTxn, models.TransactionRefunded))
	if cancelled {
		e.publish(ctx, events.JobStatusChanged(job.ID, fromJob, job.Status))
	}
	e.Logger.Info("transaction refunded", "job_id", job.ID, "transaction_id", transactionID)
	return txn, nil
}

func (e *Escrow) publish(ctx context.Context, ev events.Event) {
	if e.Broker == nil {
		return
	}
	if err := e.Broker.Publish(ctx, ev); err != nil {
		e.Logger.Warn("publish event failed", "kind", ev.Kind, "job_id", ev.JobID, "error", err)
	}
}
