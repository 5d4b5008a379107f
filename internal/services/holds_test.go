package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/briefmatch/backend/internal/events"
	"github.com/briefmatch/backend/internal/models"
)

type mockRegen struct {
	calls int
	err   error
}

func (m *mockRegen) RegenerateBatch(context.Context, *models.Job) ([]*models.JobMatch, error) {
	m.calls++
	return nil, m.err
}

func pendingMatch(jobID uuid.UUID, score float64, expiresAt time.Time) *models.JobMatch {
	return &models.JobMatch{
		ID:           uuid.New(),
		JobID:        jobID,
		FreelancerID: uuid.New(),
		MatchScore:   score,
		Status:       models.MatchStatusPending,
		ExpiresAt:    expiresAt,
	}
}

func newHoldFixture(job *models.Job, matches ...*models.JobMatch) (*HoldService, *mockJobs, *mockMatches, *mockRegen, *events.MemoryBroker) {
	jobs := newMockJobs(job)
	ms := newMockMatches(matches...)
	regen := &mockRegen{}
	broker := events.NewMemoryBroker()
	s := NewHoldService(mockPool{}, jobs, ms, newMockChecklists(), regen, broker, testLogger())
	return s, jobs, ms, regen, broker
}

func TestAcceptWinsAndWithdrawsSiblings(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusMatched, DeliverableType: models.DeliverableOther}
	expires := time.Now().Add(10 * time.Minute)
	winner := pendingMatch(job.ID, 0.9, expires)
	loser1 := pendingMatch(job.ID, 0.8, expires)
	loser2 := pendingMatch(job.ID, 0.7, expires)
	s, _, ms, _, broker := newHoldFixture(job, winner, loser1, loser2)

	got, err := s.Accept(context.Background(), winner.ID, winner.FreelancerID)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if got.Status != models.MatchStatusAccepted || got.AcceptedAt == nil {
		t.Fatalf("accepted match = %+v", got)
	}
	if ms.get(winner.ID).Status != models.MatchStatusAccepted {
		t.Fatal("winner not persisted as accepted")
	}
	for _, loser := range []*models.JobMatch{loser1, loser2} {
		if ms.get(loser.ID).Status != models.MatchStatusExpired {
			t.Fatalf("sibling %s not withdrawn", loser.ID)
		}
	}
	// One accept event plus one withdrawal per sibling.
	if evs := broker.Published(); len(evs) != 3 {
		t.Fatalf("published %d events, want 3", len(evs))
	}
}

func TestAcceptWrongFreelancer(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusMatched}
	match := pendingMatch(job.ID, 0.9, time.Now().Add(10*time.Minute))
	s, _, _, _, _ := newHoldFixture(job, match)

	if _, err := s.Accept(context.Background(), match.ID, uuid.New()); err == nil {
		t.Fatal("expected ownership error")
	}
}

func TestAcceptResolvedMatch(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusMatched}
	match := pendingMatch(job.ID, 0.9, time.Now().Add(10*time.Minute))
	match.Status = models.MatchStatusDeclined
	s, _, _, _, _ := newHoldFixture(job, match)

	if _, err := s.Accept(context.Background(), match.ID, match.FreelancerID); !errors.Is(err, ErrMatchAlreadyResolved) {
		t.Fatalf("err = %v, want ErrMatchAlreadyResolved", err)
	}
}

func TestAcceptLapsedHold(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusMatched}
	match := pendingMatch(job.ID, 0.9, time.Now().Add(-time.Minute))
	s, _, ms, _, broker := newHoldFixture(job, match)

	_, err := s.Accept(context.Background(), match.ID, match.FreelancerID)
	if !errors.Is(err, ErrMatchAlreadyResolved) {
		t.Fatalf("err = %v, want ErrMatchAlreadyResolved", err)
	}
	// The lapsed hold is resolved in place instead of waiting for the sweep.
	if ms.get(match.ID).Status != models.MatchStatusExpired {
		t.Fatal("lapsed match not marked expired")
	}
	if evs := broker.Published(); len(evs) != 1 || evs[0].ToStatus != models.MatchStatusExpired {
		t.Fatalf("events = %v", evs)
	}
}

func TestDeclineRegeneratesWhenBatchDone(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusMatched}
	last := pendingMatch(job.ID, 0.9, time.Now().Add(10*time.Minute))
	s, _, ms, regen, _ := newHoldFixture(job, last)

	if err := s.Decline(context.Background(), last.ID, last.FreelancerID); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if ms.get(last.ID).Status != models.MatchStatusDeclined {
		t.Fatal("match not declined")
	}
	if regen.calls != 1 {
		t.Fatalf("regen calls = %d, want 1", regen.calls)
	}
}

func TestDeclineKeepsBatchWhenSiblingsLive(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusMatched}
	expires := time.Now().Add(10 * time.Minute)
	declining := pendingMatch(job.ID, 0.9, expires)
	sibling := pendingMatch(job.ID, 0.8, expires)
	s, _, _, regen, _ := newHoldFixture(job, declining, sibling)

	if err := s.Decline(context.Background(), declining.ID, declining.FreelancerID); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if regen.calls != 0 {
		t.Fatal("regenerated while a sibling hold is still live")
	}
}

func TestDeclinePoolExhaustedIsNotAnError(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusMatched}
	last := pendingMatch(job.ID, 0.9, time.Now().Add(10*time.Minute))
	s, _, _, regen, _ := newHoldFixture(job, last)
	regen.err = ErrNoEligibleFreelancers

	if err := s.Decline(context.Background(), last.ID, last.FreelancerID); err != nil {
		t.Fatalf("Decline: %v", err)
	}
}

func TestExpireMatch(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusMatched}
	lapsed := pendingMatch(job.ID, 0.9, time.Now().Add(-time.Minute))
	s, _, ms, regen, _ := newHoldFixture(job, lapsed)

	if err := s.ExpireMatch(context.Background(), lapsed.ID); err != nil {
		t.Fatalf("ExpireMatch: %v", err)
	}
	if ms.get(lapsed.ID).Status != models.MatchStatusExpired {
		t.Fatal("match not expired")
	}
	if regen.calls != 1 {
		t.Fatalf("regen calls = %d, want 1", regen.calls)
	}

	// Second sweep on the same match is a no-op.
	if err := s.ExpireMatch(context.Background(), lapsed.ID); err != nil {
		t.Fatalf("repeat ExpireMatch: %v", err)
	}
	if regen.calls != 1 {
		t.Fatal("idempotent expiry regenerated again")
	}
}

func TestExpireMatchEarlyTimer(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusMatched}
	holding := pendingMatch(job.ID, 0.9, time.Now().Add(10*time.Minute))
	s, _, ms, _, _ := newHoldFixture(job, holding)

	if err := s.ExpireMatch(context.Background(), holding.ID); err != nil {
		t.Fatalf("ExpireMatch: %v", err)
	}
	if ms.get(holding.ID).Status != models.MatchStatusPending {
		t.Fatal("early timer expired a live hold")
	}
}

func TestAutoAssign(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusMatched, DeliverableType: models.DeliverableLandingPage}
	expires := time.Now().Add(-time.Minute)
	best := pendingMatch(job.ID, 0.9, expires)
	second := pendingMatch(job.ID, 0.8, expires)
	s, jobs, ms, _, broker := newHoldFixture(job, best, second)
	checklists := s.Checklists.(*mockChecklists)

	got, err := s.AutoAssign(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("AutoAssign: %v", err)
	}
	if got.ID != best.ID || got.Status != models.MatchStatusAutoAssigned {
		t.Fatalf("assigned %+v, want best pending match auto_assigned", got)
	}
	if ms.get(second.ID).Status != models.MatchStatusExpired {
		t.Fatal("runner-up not withdrawn")
	}
	if jobs.get(job.ID).Status != models.JobStatusInProgress {
		t.Fatal("job not moved to in_progress")
	}
	if items := checklists.items(job.ID); len(items) == 0 {
		t.Fatal("checklist not seeded")
	}
	// Assignment, one withdrawal, and the job transition.
	if evs := broker.Published(); len(evs) != 3 {
		t.Fatalf("published %d events, want 3", len(evs))
	}
}

func TestAutoAssignAlreadyAssigned(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusInProgress}
	active := pendingMatch(job.ID, 0.9, time.Now())
	active.Status = models.MatchStatusAccepted
	s, _, _, _, _ := newHoldFixture(job, active)

	if _, err := s.AutoAssign(context.Background(), job.ID); !errors.Is(err, ErrMatchAlreadyResolved) {
		t.Fatalf("err = %v, want ErrMatchAlreadyResolved", err)
	}
}

func TestAutoAssignNoPendingOffers(t *testing.T) {
	job := &models.Job{ID: uuid.New(), Status: models.JobStatusMatched}
	declined := pendingMatch(job.ID, 0.9, time.Now())
	declined.Status = models.MatchStatusDeclined
	s, _, _, _, _ := newHoldFixture(job, declined)

	if _, err := s.AutoAssign(context.Background(), job.ID); !errors.Is(err, ErrNoEligibleFreelancers) {
		t.Fatalf("err = %v, want ErrNoEligibleFreelancers", err)
	}
}
