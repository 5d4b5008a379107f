package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/briefmatch/backend/internal/middleware"
	"github.com/briefmatch/backend/internal/models"
	"github.com/briefmatch/backend/internal/services"
)

// MatchRepoForHandler is the match repository subset the handler needs.
type MatchRepoForHandler interface {
	ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*models.JobMatch, error)
	ListPendingByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*models.JobMatch, error)
}

// HoldResolver resolves offers on behalf of freelancers and force-assigns
// the best pending offer.
type HoldResolver interface {
	Accept(ctx context.Context, matchID, freelancerID uuid.UUID) (*models.JobMatch, error)
	Decline(ctx context.Context, matchID, freelancerID uuid.UUID) error
	AutoAssign(ctx context.Context, jobID uuid.UUID) (*models.JobMatch, error)
}

// BatchGenerator produces (or returns) the offer batch for a paid job.
type BatchGenerator interface {
	GenerateMatches(ctx context.Context, job *models.Job) ([]*models.JobMatch, error)
}

// MatchHandler serves the freelancer-facing offer endpoints and the client's
// view of a job's batch.
type MatchHandler struct {
	Jobs    JobRepoForHandler
	Matches MatchRepoForHandler
	Holds   HoldResolver
	Matcher BatchGenerator
	Logger  *slog.Logger
}

// loadOwnedJob fetches the job and enforces client ownership (admins pass).
// On failure it writes the response and returns nil.
func (h *MatchHandler) loadOwnedJob(w http.ResponseWriter, r *http.Request) *models.Job {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil
	}
	jobID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return nil
	}
	job, err := h.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return nil
	}
	if id.Role != models.RoleAdmin && job.ClientID != id.UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return nil
	}
	return job
}

// GenerateMatches handles POST /api/v1/jobs/{id}/matches. Idempotent: a job with
// a live batch gets that batch back unchanged.
func (h *MatchHandler) GenerateMatches(w http.ResponseWriter, r *http.Request) {
	job := h.loadOwnedJob(w, r)
	if job == nil {
		return
	}
	if job.Status != models.JobStatusMatched {
		writeError(w, http.StatusConflict, "job is not awaiting matches")
		return
	}
	matches, err := h.Matcher.GenerateMatches(r.Context(), job)
	if err != nil {
		if errors.Is(err, services.ErrNoEligibleFreelancers) {
			writeError(w, http.StatusConflict, "no eligible freelancers available")
			return
		}
		h.Logger.Error("generate matches", "job_id", job.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate matches")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

// AutoAssign handles POST /api/v1/jobs/{id}/auto-assign: the client skips the
// hold window and locks the best still-pending offer.
func (h *MatchHandler) AutoAssign(w http.ResponseWriter, r *http.Request) {
	job := h.loadOwnedJob(w, r)
	if job == nil {
		return
	}
	match, err := h.Holds.AutoAssign(r.Context(), job.ID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMatchAlreadyResolved):
			writeError(w, http.StatusConflict, "job already has an assigned freelancer")
		case errors.Is(err, services.ErrNoEligibleFreelancers):
			writeError(w, http.StatusConflict, "no pending offers to assign")
		default:
			h.Logger.Error("auto assign", "job_id", job.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to auto-assign")
		}
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// ListOffers handles GET /api/v1/matches: the freelancer's open offers.
func (h *MatchHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	matches, err := h.Matches.ListPendingByFreelancer(r.Context(), id.UserID)
	if err != nil {
		h.Logger.Error("list offers", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list offers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

// ListJobMatches handles GET /api/v1/jobs/{id}/matches: the client's view of the
// batch.
func (h *MatchHandler) ListJobMatches(w http.ResponseWriter, r *http.Request) {
	job := h.loadOwnedJob(w, r)
	if job == nil {
		return
	}
	matches, err := h.Matches.ListByJobID(r.Context(), job.ID)
	if err != nil {
		h.Logger.Error("list job matches", "job_id", job.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list matches")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"matches": matches})
}

// AcceptOffer handles POST /api/v1/matches/{id}/accept.
func (h *MatchHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	matchID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}
	match, err := h.Holds.Accept(r.Context(), matchID, id.UserID)
	if err != nil {
		if errors.Is(err, services.ErrMatchAlreadyResolved) {
			writeError(w, http.StatusConflict, "offer no longer available")
			return
		}
		h.Logger.Error("accept offer", "match_id", matchID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, match)
}

// DeclineOffer handles POST /api/v1/matches/{id}/decline.
func (h *MatchHandler) DeclineOffer(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	matchID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}
	if err := h.Holds.Decline(r.Context(), matchID, id.UserID); err != nil {
		if errors.Is(err, services.ErrMatchAlreadyResolved) {
			writeError(w, http.StatusConflict, "offer no longer available")
			return
		}
		h.Logger.Error("decline offer", "match_id", matchID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.MatchStatusDeclined})
}
