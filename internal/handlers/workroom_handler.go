package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/briefmatch/backend/internal/middleware"
	"github.com/briefmatch/backend/internal/models"
	"github.com/briefmatch/backend/internal/services"
)

// WorkLifecycle is the lifecycle subset the workroom needs.
type WorkLifecycle interface {
	StartWork(ctx context.Context, jobID, freelancerID uuid.UUID) (*models.Job, error)
	SubmitWork(ctx context.Context, jobID, freelancerID uuid.UUID) (*models.Job, error)
}

// DeliverableRepoForHandler stores uploaded deliverable references.
type DeliverableRepoForHandler interface {
	Create(ctx context.Context, d *models.JobDeliverable) error
	ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*models.JobDeliverable, error)
}

// ChecklistRepoForHandler reads and toggles milestone items.
type ChecklistRepoForHandler interface {
	ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*models.JobChecklistItem, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.JobChecklistItem, error)
	SetCompleted(ctx context.Context, id uuid.UUID, completed bool, completedBy uuid.UUID) error
}

// JobLookup fetches a job by id.
type JobLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// MatchLookup lists a job's matches.
type MatchLookup interface {
	ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*models.JobMatch, error)
}

// WorkroomHandler serves the endpoints the assigned freelancer works
// through: start, deliverables, checklist, submit.
type WorkroomHandler struct {
	Lifecycle    WorkLifecycle
	Jobs         JobLookup
	Matches      MatchLookup
	Deliverables DeliverableRepoForHandler
	Checklists   ChecklistRepoForHandler
	Logger       *slog.Logger
}

// assignedFreelancer returns the job's locked freelancer, uuid.Nil when no
// match is active.
func (h *WorkroomHandler) assignedFreelancer(ctx context.Context, jobID uuid.UUID) (uuid.UUID, error) {
	matches, err := h.Matches.ListByJobID(ctx, jobID)
	if err != nil {
		return uuid.Nil, err
	}
	for _, m := range matches {
		if m.Active() {
			return m.FreelancerID, nil
		}
	}
	return uuid.Nil, nil
}

// loadWorkroomJob fetches the job and enforces workroom access: the assigned
// freelancer, the job's client, or an admin. On failure it writes the
// response and returns nil.
func (h *WorkroomHandler) loadWorkroomJob(w http.ResponseWriter, r *http.Request, jobID uuid.UUID, id *middleware.Identity) *models.Job {
	job, err := h.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return nil
	}
	if id.Role == models.RoleAdmin || job.ClientID == id.UserID {
		return job
	}
	assigned, err := h.assignedFreelancer(r.Context(), jobID)
	if err != nil {
		h.Logger.Error("resolve assigned freelancer", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return nil
	}
	if assigned != id.UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return nil
	}
	return job
}

// StartWork handles POST /api/v1/jobs/{id}/start.
func (h *WorkroomHandler) StartWork(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	jobID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := h.Lifecycle.StartWork(r.Context(), jobID, id.UserID)
	if err != nil {
		var ite *services.InvalidTransitionError
		if errors.As(err, &ite) {
			writeError(w, http.StatusConflict, ite.Error())
			return
		}
		h.Logger.Error("start work", "job_id", jobID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// SubmitWork handles POST /api/v1/jobs/{id}/submit.
func (h *WorkroomHandler) SubmitWork(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	jobID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := h.Lifecycle.SubmitWork(r.Context(), jobID, id.UserID)
	if err != nil {
		var ite *services.InvalidTransitionError
		if errors.As(err, &ite) {
			writeError(w, http.StatusConflict, ite.Error())
			return
		}
		h.Logger.Error("submit work", "job_id", jobID, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// --- POST /api/v1/jobs/{id}/deliverables ---

type createDeliverableRequest struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
	FileSize *int64 `json:"file_size"`
	IsFinal  bool   `json:"is_final"`
}

// CreateDeliverable handles POST /api/v1/jobs/{id}/deliverables.
func (h *WorkroomHandler) CreateDeliverable(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	jobID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	if _, err := h.Jobs.GetByID(r.Context(), jobID); err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	assigned, err := h.assignedFreelancer(r.Context(), jobID)
	if err != nil {
		h.Logger.Error("resolve assigned freelancer", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if assigned == uuid.Nil || assigned != id.UserID {
		writeError(w, http.StatusForbidden, "only the assigned freelancer can upload deliverables")
		return
	}
	var req createDeliverableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.FileURL == "" {
		writeError(w, http.StatusBadRequest, "file_url is required")
		return
	}
	d := &models.JobDeliverable{
		ID:         uuid.New(),
		JobID:      jobID,
		UploadedBy: id.UserID,
		FileName:   req.FileName,
		FileURL:    req.FileURL,
		FileSize:   req.FileSize,
		IsFinal:    req.IsFinal,
	}
	if err := h.Deliverables.Create(r.Context(), d); err != nil {
		h.Logger.Error("create deliverable", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save deliverable")
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// ListDeliverables handles GET /api/v1/jobs/{id}/deliverables.
func (h *WorkroomHandler) ListDeliverables(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	jobID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	if h.loadWorkroomJob(w, r, jobID, id) == nil {
		return
	}
	list, err := h.Deliverables.ListByJobID(r.Context(), jobID)
	if err != nil {
		h.Logger.Error("list deliverables", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list deliverables")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deliverables": list})
}

// ListChecklist handles GET /api/v1/jobs/{id}/checklist.
func (h *WorkroomHandler) ListChecklist(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	jobID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	if h.loadWorkroomJob(w, r, jobID, id) == nil {
		return
	}
	items, err := h.Checklists.ListByJobID(r.Context(), jobID)
	if err != nil {
		h.Logger.Error("list checklist", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list checklist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// --- PATCH /api/v1/checklist/{id} ---

type toggleChecklistRequest struct {
	Completed bool `json:"completed"`
}

// ToggleChecklistItem handles PATCH /api/v1/checklist/{id}. Checklist items are
// informational; toggling one never changes job status.
func (h *WorkroomHandler) ToggleChecklistItem(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	itemID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	item, err := h.Checklists.GetByID(r.Context(), itemID)
	if err != nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if h.loadWorkroomJob(w, r, item.JobID, id) == nil {
		return
	}
	var req toggleChecklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.Checklists.SetCompleted(r.Context(), itemID, req.Completed, id.UserID); err != nil {
		h.Logger.Error("toggle checklist item", "item_id", itemID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update item")
		return
	}
	item, err = h.Checklists.GetByID(r.Context(), itemID)
	if err != nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}
