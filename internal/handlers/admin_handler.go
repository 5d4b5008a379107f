package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/briefmatch/backend/internal/models"
	"github.com/briefmatch/backend/internal/services"
)

// AdminEscrow is the escrow subset admins drive.
type AdminEscrow interface {
	VerifyPayment(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
	Refund(ctx context.Context, transactionID uuid.UUID) (*models.Transaction, error)
}

// AdminHolds drives the manual assignment override.
type AdminHolds interface {
	AutoAssign(ctx context.Context, jobID uuid.UUID) (*models.JobMatch, error)
}

// TransactionLister feeds the admin verification queue.
type TransactionLister interface {
	ListByStatus(ctx context.Context, status string) ([]*models.Transaction, error)
}

// AdminHandler serves the admin back office: payment verification, refunds,
// manual assignment. Routes must be mounted behind RequireRole(admin).
type AdminHandler struct {
	Escrow       AdminEscrow
	Holds        AdminHolds
	Transactions TransactionLister
	Logger       *slog.Logger
}

// ListTransactions handles GET /api/v1/admin/transactions?status=pending.
func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.TransactionPending
	}
	switch status {
	case models.TransactionPending, models.TransactionPaid, models.TransactionReleased, models.TransactionRefunded:
	default:
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	txns, err := h.Transactions.ListByStatus(r.Context(), status)
	if err != nil {
		h.Logger.Error("list transactions", "status", status, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": txns})
}

// VerifyPayment handles POST /api/v1/admin/transactions/{id}/verify.
func (h *AdminHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	txnID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	txn, err := h.Escrow.VerifyPayment(r.Context(), txnID)
	if err != nil {
		var ite *services.InvalidTransitionError
		if errors.As(err, &ite) {
			writeError(w, http.StatusConflict, ite.Error())
			return
		}
		h.Logger.Error("verify payment", "transaction_id", txnID, "error", err)
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// Refund handles POST /api/v1/admin/transactions/{id}/refund.
func (h *AdminHandler) Refund(w http.ResponseWriter, r *http.Request) {
	txnID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	txn, err := h.Escrow.Refund(r.Context(), txnID)
	if err != nil {
		h.Logger.Error("refund", "transaction_id", txnID, "error", err)
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

// AutoAssign handles POST /api/v1/admin/jobs/{id}/auto-assign.
func (h *AdminHandler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	match, err := h.Holds.AutoAssign(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMatchAlreadyResolved):
			writeError(w, http.StatusConflict, "job already has an assigned freelancer")
		case errors.Is(err, services.ErrNoEligibleFreelancers):
			writeError(w, http.StatusConflict, "no pending offers to assign")
		default:
			h.Logger.Error("auto-assign", "job_id", jobID, "error", err)
			writeError(w, http.StatusConflict, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, match)
}
