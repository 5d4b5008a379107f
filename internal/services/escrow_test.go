package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/briefmatch/backend/internal/events"
	"github.com/briefmatch/backend/internal/models"
)

type mockGenerator struct {
	calls int
	err   error
}

func (m *mockGenerator) GenerateMatches(context.Context, *models.Job) ([]*models.JobMatch, error) {
	m.calls++
	return nil, m.err
}

func intPtr(v int) *int { return &v }

func newEscrowFixture(job *models.Job, txns ...*models.Transaction) (*Escrow, *mockJobs, *mockTxns, *mockGenerator, *events.MemoryBroker) {
	jobs := newMockJobs(job)
	transactions := newMockTxns(txns...)
	gen := &mockGenerator{}
	broker := events.NewMemoryBroker()
	e := NewEscrow(mockPool{}, jobs, transactions, gen, broker, testLogger())
	return e, jobs, transactions, gen, broker
}

func TestCreateTransaction(t *testing.T) {
	job := &models.Job{
		ID:         uuid.New(),
		ClientID:   uuid.New(),
		Status:     models.JobStatusBriefComplete,
		FinalPrice: intPtr(225),
	}
	e, jobs, txns, _, broker := newEscrowFixture(job)

	txn, err := e.CreateTransaction(context.Background(), job.ID, models.PaymentPayPal)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if txn.Amount != 225 || txn.Status != models.TransactionPending || txn.ClientID != job.ClientID {
		t.Fatalf("transaction = %+v", txn)
	}
	if !strings.HasPrefix(txn.PaymentReference, "PAY-") || len(txn.PaymentReference) != 16 {
		t.Fatalf("payment reference = %q", txn.PaymentReference)
	}
	if jobs.get(job.ID).Status != models.JobStatusPaymentPending {
		t.Fatal("job not moved to payment_pending")
	}
	if txns.get(txn.ID).Status != models.TransactionPending {
		t.Fatal("transaction not persisted")
	}
	if evs := broker.Published(); len(evs) != 2 {
		t.Fatalf("published %d events, want 2", len(evs))
	}
}

func TestCreateTransactionBadMethod(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusBriefComplete, FinalPrice: intPtr(100)}
	e, _, _, _, _ := newEscrowFixture(job)

	if _, err := e.CreateTransaction(context.Background(), job.ID, "cash"); err == nil {
		t.Fatal("expected error for unsupported payment method")
	}
}

func TestCreateTransactionDuplicate(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusPaymentPending, FinalPrice: intPtr(100)}
	existing := &models.Transaction{ID: uuid.New(), JobID: job.ID, Amount: 100, Status: models.TransactionPending}
	e, _, _, _, _ := newEscrowFixture(job, existing)

	if _, err := e.CreateTransaction(context.Background(), job.ID, models.PaymentPayPal); !errors.Is(err, ErrTransactionExists) {
		t.Fatalf("err = %v, want ErrTransactionExists", err)
	}
}

func TestCreateTransactionNoFinalPrice(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusBriefComplete}
	e, _, _, _, _ := newEscrowFixture(job)

	if _, err := e.CreateTransaction(context.Background(), job.ID, models.PaymentPayPal); err == nil {
		t.Fatal("expected error without a final price")
	}
}

func TestVerifyPayment(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusPaymentPending, FinalPrice: intPtr(100)}
	txn := &models.Transaction{ID: uuid.New(), JobID: job.ID, Amount: 100, Status: models.TransactionPending}
	e, jobs, txns, gen, _ := newEscrowFixture(job, txn)

	got, err := e.VerifyPayment(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if got.Status != models.TransactionPaid || got.AdminVerifiedAt == nil {
		t.Fatalf("transaction = %+v", got)
	}
	if txns.get(txn.ID).Status != models.TransactionPaid {
		t.Fatal("paid status not persisted")
	}
	if jobs.get(job.ID).Status != models.JobStatusMatched {
		t.Fatal("job not moved to matched")
	}
	if gen.calls != 1 {
		t.Fatalf("matcher calls = %d, want 1", gen.calls)
	}
}

func TestVerifyPaymentOnlyPending(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusMatched, FinalPrice: intPtr(100)}
	txn := &models.Transaction{ID: uuid.New(), JobID: job.ID, Amount: 100, Status: models.TransactionPaid}
	e, _, _, gen, _ := newEscrowFixture(job, txn)

	if _, err := e.VerifyPayment(context.Background(), txn.ID); err == nil {
		t.Fatal("expected error verifying a non-pending transaction")
	}
	if gen.calls != 0 {
		t.Fatal("matcher ran for a failed verification")
	}
}

func TestVerifyPaymentPoolExhaustedIsNotAnError(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusPaymentPending, FinalPrice: intPtr(100)}
	txn := &models.Transaction{ID: uuid.New(), JobID: job.ID, Amount: 100, Status: models.TransactionPending}
	e, _, _, gen, _ := newEscrowFixture(job, txn)
	gen.err = ErrNoEligibleFreelancers

	if _, err := e.VerifyPayment(context.Background(), txn.ID); err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
}

func TestReleaseTx(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusSubmitted, FinalPrice: intPtr(100)}
	txn := &models.Transaction{ID: uuid.New(), JobID: job.ID, Amount: 100, Status: models.TransactionPaid}
	e, _, txns, _, _ := newEscrowFixture(job, txn)

	got, err := e.ReleaseTx(context.Background(), noopTx{}, job.ID)
	if err != nil {
		t.Fatalf("ReleaseTx: %v", err)
	}
	if got.Status != models.TransactionReleased || got.ReleasedAt == nil {
		t.Fatalf("transaction = %+v", got)
	}
	if txns.get(txn.ID).Status != models.TransactionReleased {
		t.Fatal("released status not persisted")
	}
}

func TestReleaseTxRequiresPaid(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusSubmitted, FinalPrice: intPtr(100)}
	txn := &models.Transaction{ID: uuid.New(), JobID: job.ID, Amount: 100, Status: models.TransactionPending}
	e, _, _, _, _ := newEscrowFixture(job, txn)

	if _, err := e.ReleaseTx(context.Background(), noopTx{}, job.ID); !errors.Is(err, ErrPaymentNotVerified) {
		t.Fatalf("err = %v, want ErrPaymentNotVerified", err)
	}
}

func TestReleaseTxNoTransaction(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusSubmitted}
	e, _, _, _, _ := newEscrowFixture(job)

	if _, err := e.ReleaseTx(context.Background(), noopTx{}, job.ID); !errors.Is(err, ErrPaymentNotVerified) {
		t.Fatalf("err = %v, want ErrPaymentNotVerified", err)
	}
}

func TestRefundCancelsJob(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusMatched, FinalPrice: intPtr(100)}
	txn := &models.Transaction{ID: uuid.New(), JobID: job.ID, Amount: 100, Status: models.TransactionPaid}
	e, jobs, txns, _, broker := newEscrowFixture(job, txn)

	got, err := e.Refund(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if got.Status != models.TransactionRefunded || txns.get(txn.ID).Status != models.TransactionRefunded {
		t.Fatal("transaction not refunded")
	}
	if jobs.get(job.ID).Status != models.JobStatusCancelled {
		t.Fatal("job not cancelled with the refund")
	}
	if evs := broker.Published(); len(evs) != 2 {
		t.Fatalf("published %d events, want 2", len(evs))
	}
}

func TestRefundTerminalJobLeavesStatus(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusCancelled, FinalPrice: intPtr(100)}
	txn := &models.Transaction{ID: uuid.New(), JobID: job.ID, Amount: 100, Status: models.TransactionPending}
	e, jobs, _, _, _ := newEscrowFixture(job, txn)

	if _, err := e.Refund(context.Background(), txn.ID); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if jobs.get(job.ID).Status != models.JobStatusCancelled {
		t.Fatal("terminal job status changed")
	}
}

// lockLog records the order row locks are taken in across repos.
type lockLog struct {
	mu    sync.Mutex
	order []string
}

func (l *lockLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = append(l.order, name)
}

type lockTrackingJobs struct {
	*mockJobs
	log *lockLog
}

func (j *lockTrackingJobs) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error) {
	j.log.add("job")
	return j.mockJobs.GetByIDForUpdate(ctx, tx, id)
}

type lockTrackingTxns struct {
	*mockTxns
	log *lockLog
}

func (t *lockTrackingTxns) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Transaction, error) {
	t.log.add("txn")
	return t.mockTxns.GetByIDForUpdate(ctx, tx, id)
}

func (t *lockTrackingTxns) GetByJobIDForUpdate(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (*models.Transaction, error) {
	t.log.add("txn")
	return t.mockTxns.GetByJobIDForUpdate(ctx, tx, jobID)
}

// Every writer must lock the job row before the transaction row, or a
// concurrent verify/refund and acceptance release deadlock on each other.
func TestAdminEscrowPathsLockJobRowFirst(t *testing.T) {
	cases := []struct {
		name      string
		jobStatus string
		txnStatus string
		call      func(e *Escrow, txnID uuid.UUID) error
	}{
		{
			name:      "verify",
			jobStatus: models.JobStatusPaymentPending,
			txnStatus: models.TransactionPending,
			call: func(e *Escrow, txnID uuid.UUID) error {
				_, err := e.VerifyPayment(context.Background(), txnID)
				return err
			},
		},
		{
			name:      "refund",
			jobStatus: models.JobStatusMatched,
			txnStatus: models.TransactionPaid,
			call: func(e *Escrow, txnID uuid.UUID) error {
				_, err := e.Refund(context.Background(), txnID)
				return err
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := &models.Job{ID: uuid.New(), Status: tc.jobStatus, FinalPrice: intPtr(100)}
			txn := &models.Transaction{ID: uuid.New(), JobID: job.ID, Amount: 100, Status: tc.txnStatus}
			log := &lockLog{}
			jobs := &lockTrackingJobs{mockJobs: newMockJobs(job), log: log}
			txns := &lockTrackingTxns{mockTxns: newMockTxns(txn), log: log}
			e := NewEscrow(mockPool{}, jobs, txns, &mockGenerator{}, events.NewMemoryBroker(), testLogger())

			if err := tc.call(e, txn.ID); err != nil {
				t.Fatalf("%s: %v", tc.name, err)
			}
			want := []string{"job", "txn"}
			if !reflect.DeepEqual(log.order, want) {
				t.Fatalf("lock order = %v, want %v", log.order, want)
			}
		})
	}
}

func TestRefundReleasedTransactionFails(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusCompleted, FinalPrice: intPtr(100)}
	txn := &models.Transaction{ID: uuid.New(), JobID: job.ID, Amount: 100, Status: models.TransactionReleased}
	e, _, _, _, _ := newEscrowFixture(job, txn)

	if _, err := e.Refund(context.Background(), txn.ID); err == nil {
		t.Fatal("expected error refunding a released transaction")
	}
}
