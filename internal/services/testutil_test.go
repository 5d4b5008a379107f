package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/briefmatch/backend/internal/models"
)

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type mockPool struct{}

func (mockPool) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------------------------------------------------------------------------
// In-memory job store
// ---------------------------------------------------------------------------

type mockJobs struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*models.Job
}

func newMockJobs(jobs ...*models.Job) *mockJobs {
	m := &mockJobs{jobs: make(map[uuid.UUID]*models.Job)}
	for _, j := range jobs {
		cp := *j
		m.jobs[j.ID] = &cp
	}
	return m
}

func (m *mockJobs) get(id uuid.UUID) *models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.jobs[id]
	return &cp
}

func (m *mockJobs) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	cp := *j
	return &cp, nil
}

func (m *mockJobs) SetStatusTx(_ context.Context, _ pgx.Tx, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	j.Status = status
	return nil
}

func (m *mockJobs) SetRevisionCountTx(_ context.Context, _ pgx.Tx, id uuid.UUID, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	j.RevisionCount = count
	return nil
}

// ---------------------------------------------------------------------------
// In-memory match store with configurable aggregates
// ---------------------------------------------------------------------------

type freelancerStats struct {
	reviewed, met int
	avgHours      float64
	accepts       int
	active        int
}

type mockMatches struct {
	mu      sync.Mutex
	matches map[uuid.UUID]*models.JobMatch
	stats   map[uuid.UUID]freelancerStats
}

func newMockMatches(matches ...*models.JobMatch) *mockMatches {
	m := &mockMatches{
		matches: make(map[uuid.UUID]*models.JobMatch),
		stats:   make(map[uuid.UUID]freelancerStats),
	}
	for _, mm := range matches {
		cp := *mm
		m.matches[mm.ID] = &cp
	}
	return m
}

func (m *mockMatches) get(id uuid.UUID) *models.JobMatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.matches[id]
	return &cp
}

func (m *mockMatches) setStats(freelancerID uuid.UUID, s freelancerStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[freelancerID] = s
}

func (m *mockMatches) byJob(jobID uuid.UUID) []*models.JobMatch {
	var out []*models.JobMatch
	for _, mm := range m.matches {
		if mm.JobID == jobID {
			cp := *mm
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MatchScore != out[j].MatchScore {
			return out[i].MatchScore > out[j].MatchScore
		}
		return out[i].FreelancerID.String() < out[j].FreelancerID.String()
	})
	return out
}

func (m *mockMatches) ListByJobID(_ context.Context, jobID uuid.UUID) ([]*models.JobMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byJob(jobID), nil
}

func (m *mockMatches) ListByJobIDTx(_ context.Context, _ pgx.Tx, jobID uuid.UUID) ([]*models.JobMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byJob(jobID), nil
}

func (m *mockMatches) CreateTx(_ context.Context, _ pgx.Tx, mm *models.JobMatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *mm
	m.matches[mm.ID] = &cp
	return nil
}

func (m *mockMatches) GetByID(_ context.Context, id uuid.UUID) (*models.JobMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mm, ok := m.matches[id]
	if !ok {
		return nil, fmt.Errorf("match %s not found", id)
	}
	cp := *mm
	return &cp, nil
}

func (m *mockMatches) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*models.JobMatch, error) {
	return m.GetByID(ctx, id)
}

func (m *mockMatches) SetStatusTx(_ context.Context, _ pgx.Tx, id uuid.UUID, status string, acceptedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mm, ok := m.matches[id]
	if !ok {
		return fmt.Errorf("match %s not found", id)
	}
	mm.Status = status
	if acceptedAt != nil {
		mm.AcceptedAt = acceptedAt
	}
	return nil
}

func (m *mockMatches) OfferedFreelancerIDs(_ context.Context, jobID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, mm := range m.matches {
		if mm.JobID == jobID && !seen[mm.FreelancerID] {
			seen[mm.FreelancerID] = true
			out = append(out, mm.FreelancerID)
		}
	}
	return out, nil
}

func (m *mockMatches) CompletionStats(_ context.Context, freelancerID uuid.UUID) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats[freelancerID]
	return s.reviewed, s.met, nil
}

func (m *mockMatches) ResponseStats(_ context.Context, freelancerID uuid.UUID) (float64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats[freelancerID]
	return s.avgHours, s.accepts, nil
}

func (m *mockMatches) CountActiveByFreelancer(_ context.Context, freelancerID, _ uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats[freelancerID].active, nil
}

func (m *mockMatches) ListPendingByFreelancer(_ context.Context, freelancerID uuid.UUID) ([]*models.JobMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.JobMatch
	for _, mm := range m.matches {
		if mm.FreelancerID == freelancerID && mm.Status == models.MatchStatusPending {
			cp := *mm
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Remaining small mocks
// ---------------------------------------------------------------------------

type mockUsers struct {
	freelancers []*models.User
}

func (m *mockUsers) ListFreelancers(context.Context) ([]*models.User, error) {
	return m.freelancers, nil
}

type mockChecklists struct {
	mu     sync.Mutex
	seeded map[uuid.UUID][]string
}

func newMockChecklists() *mockChecklists {
	return &mockChecklists{seeded: make(map[uuid.UUID][]string)}
}

func (m *mockChecklists) SeedTx(_ context.Context, _ pgx.Tx, jobID uuid.UUID, items []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seeded[jobID]; ok {
		return nil
	}
	m.seeded[jobID] = items
	return nil
}

func (m *mockChecklists) items(jobID uuid.UUID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seeded[jobID]
}

type mockDeliverables struct {
	finalByJob map[uuid.UUID]bool
}

func (m *mockDeliverables) HasFinal(_ context.Context, jobID uuid.UUID) (bool, error) {
	return m.finalByJob[jobID], nil
}

type mockTxns struct {
	mu    sync.Mutex
	txns  map[uuid.UUID]*models.Transaction
	byJob map[uuid.UUID]uuid.UUID
}

func newMockTxns(txns ...*models.Transaction) *mockTxns {
	m := &mockTxns{txns: make(map[uuid.UUID]*models.Transaction), byJob: make(map[uuid.UUID]uuid.UUID)}
	for _, t := range txns {
		cp := *t
		m.txns[t.ID] = &cp
		m.byJob[t.JobID] = t.ID
	}
	return m
}

func (m *mockTxns) get(id uuid.UUID) *models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.txns[id]
	return &cp
}

func (m *mockTxns) CreateTx(_ context.Context, _ pgx.Tx, t *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byJob[t.JobID]; ok {
		return fmt.Errorf("duplicate transaction for job %s", t.JobID)
	}
	cp := *t
	m.txns[t.ID] = &cp
	m.byJob[t.JobID] = t.ID
	return nil
}

func (m *mockTxns) GetByID(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txns[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *mockTxns) GetByJobID(_ context.Context, jobID uuid.UUID) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byJob[jobID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *m.txns[id]
	return &cp, nil
}

func (m *mockTxns) GetByIDForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txns[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (m *mockTxns) GetByJobIDForUpdate(ctx context.Context, _ pgx.Tx, jobID uuid.UUID) (*models.Transaction, error) {
	return m.GetByJobID(ctx, jobID)
}

func (m *mockTxns) MarkPaidTx(_ context.Context, _ pgx.Tx, id uuid.UUID, verifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txns[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if t.Status == models.TransactionPending {
		t.Status = models.TransactionPaid
		t.AdminVerifiedAt = &verifiedAt
	}
	return nil
}

func (m *mockTxns) MarkReleasedTx(_ context.Context, _ pgx.Tx, id uuid.UUID, releasedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txns[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if t.Status == models.TransactionPaid {
		t.Status = models.TransactionReleased
		t.ReleasedAt = &releasedAt
	}
	return nil
}

func (m *mockTxns) MarkRefundedTx(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txns[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.Status = models.TransactionRefunded
	return nil
}

type mockReviews struct {
	mu      sync.Mutex
	reviews map[string]*models.JobReview
}

func newMockReviews() *mockReviews {
	return &mockReviews{reviews: make(map[string]*models.JobReview)}
}

func reviewKey(jobID, clientID uuid.UUID) string {
	return jobID.String() + "/" + clientID.String()
}

func (m *mockReviews) UpsertTx(_ context.Context, _ pgx.Tx, rev *models.JobReview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rev
	m.reviews[reviewKey(rev.JobID, rev.ClientID)] = &cp
	return nil
}

func (m *mockReviews) get(jobID, clientID uuid.UUID) *models.JobReview {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reviews[reviewKey(jobID, clientID)]
}
