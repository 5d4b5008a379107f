// Package events carries status-change notifications out of the core.
// Transport and rendering are external: the core only publishes typed events
// to a Broker. Delivery is best-effort; domain state never depends on it.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	KindJobStatusChanged         = "job.status_changed"
	KindMatchStatusChanged       = "match.status_changed"
	KindTransactionStatusChanged = "transaction.status_changed"
)

// Event is a single status change on a job, match, or transaction.
type Event struct {
	Kind       string    `json:"kind"`
	JobID      uuid.UUID `json:"job_id"`
	SubjectID  uuid.UUID `json:"subject_id"` // match or transaction id; equals JobID for job events
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Broker publishes events to whatever transport is configured.
type Broker interface {
	Publish(ctx context.Context, ev Event) error
}

// JobStatusChanged builds a job lifecycle event.
func JobStatusChanged(jobID uuid.UUID, from, to string) Event {
	return Event{Kind: KindJobStatusChanged, JobID: jobID, SubjectID: jobID, FromStatus: from, ToStatus: to, OccurredAt: time.Now().UTC()}
}

// MatchStatusChanged builds a match offer event.
func MatchStatusChanged(jobID, matchID uuid.UUID, from, to string) Event {
	return Event{Kind: KindMatchStatusChanged, JobID: jobID, SubjectID: matchID, FromStatus: from, ToStatus: to, OccurredAt: time.Now().UTC()}
}

// TransactionStatusChanged builds an escrow event.
func TransactionStatusChanged(jobID, txnID uuid.UUID, from, to string) Event {
	return Event{Kind: KindTransactionStatusChanged, JobID: jobID, SubjectID: txnID, FromStatus: from, ToStatus: to, OccurredAt: time.Now().UTC()}
}

// MemoryBroker fans events out to in-process subscribers. Used when no AMQP
// broker is configured, and by tests to observe published events.
type MemoryBroker struct {
	mu   sync.Mutex
	subs []chan Event
	log  []Event
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{}
}

func (b *MemoryBroker) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = append(b.log, ev)
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default: // slow subscriber, drop
		}
	}
	return nil
}

// Subscribe returns a buffered channel receiving all future events.
func (b *MemoryBroker) Subscribe() <-chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Published returns a copy of every event published so far.
func (b *MemoryBroker) Published() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.log))
	copy(out, b.log)
	return out
}
