package services

import (
	"errors"
	"fmt"
)

// Domain errors. Each has a defined user-facing recovery path and is returned
// to the caller, never panicked and never retried blindly.
var (
	// ErrMatchAlreadyResolved is returned when an accept or decline races a
	// prior resolution (another acceptance, a decline, or expiry). Surfaced
	// to the user as "offer no longer available".
	ErrMatchAlreadyResolved = errors.New("match already resolved")

	// ErrNoEligibleFreelancers is returned when matching produced zero
	// candidates. Callers surface the manual-assignment / refund pathway.
	ErrNoEligibleFreelancers = errors.New("no eligible freelancers")

	// ErrRevisionLimitExceeded is returned when a rejecting review would push
	// revision_count past max_revisions. Fatal to the automated flow; the job
	// stays in submitted and requires human escalation.
	ErrRevisionLimitExceeded = errors.New("revision limit exceeded")

	// ErrPaymentNotVerified is returned on any attempt to advance past
	// payment_pending without an admin-verified transaction. Retryable once
	// verification happens.
	ErrPaymentNotVerified = errors.New("payment not verified")

	// ErrTransactionExists is returned when a second transaction is created
	// for a job that already has one.
	ErrTransactionExists = errors.New("transaction already exists for job")

	// ErrValidation wraps schema-validation failures on external payloads,
	// such as oracle responses.
	ErrValidation = errors.New("validation failed")
)

// InvalidTransitionError reports a job status transition outside the
// lifecycle table. It names both statuses so callers can render the conflict.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid job transition from %q to %q", e.From, e.To)
}
