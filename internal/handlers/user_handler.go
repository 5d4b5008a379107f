package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/briefmatch/backend/internal/middleware"
	"github.com/briefmatch/backend/internal/models"
)

// UserRepoForHandler is the user repository subset the handler needs.
type UserRepoForHandler interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateSkills(ctx context.Context, id uuid.UUID, skills []string) error
}

// ReviewHistoryRepo lists the reviews left on a freelancer's work.
type ReviewHistoryRepo interface {
	ListByFreelancer(ctx context.Context, freelancerID uuid.UUID) ([]*models.JobReview, error)
}

// UserHandler serves the profile endpoints.
type UserHandler struct {
	Users   UserRepoForHandler
	Reviews ReviewHistoryRepo
	Logger  *slog.Logger
}

// GetMe handles GET /api/v1/users/me.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.Users.GetByID(r.Context(), id.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListMyReviews handles GET /api/v1/users/me/reviews: the client decisions left on
// the freelancer's past work.
func (h *UserHandler) ListMyReviews(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	reviews, err := h.Reviews.ListByFreelancer(r.Context(), id.UserID)
	if err != nil {
		h.Logger.Error("list reviews", "user_id", id.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reviews": reviews})
}

type updateSkillsRequest struct {
	Skills []string `json:"skills"`
}

// UpdateSkills handles PATCH /api/v1/users/me/skills. Skills feed match scoring,
// so only freelancers carry them.
func (h *UserHandler) UpdateSkills(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req updateSkillsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.Users.UpdateSkills(r.Context(), id.UserID, req.Skills); err != nil {
		h.Logger.Error("update skills", "user_id", id.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update skills")
		return
	}
	user, err := h.Users.GetByID(r.Context(), id.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
