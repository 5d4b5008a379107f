package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/briefmatch/backend/internal/middleware"
	"github.com/briefmatch/backend/internal/models"
	"github.com/briefmatch/backend/internal/services"
)

// JobRepoForHandler is the job repository subset the handler needs.
type JobRepoForHandler interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListByClientID(ctx context.Context, clientID uuid.UUID) ([]*models.Job, error)
	List(ctx context.Context) ([]*models.Job, error)
}

// BriefAnalyzer turns raw briefs into structured suggestions.
type BriefAnalyzer interface {
	Analyze(ctx context.Context, brief string) *services.BriefSuggestion
}

// EscrowForHandler is the escrow subset the job handler needs.
type EscrowForHandler interface {
	CreateTransaction(ctx context.Context, jobID uuid.UUID, paymentMethod string) (*models.Transaction, error)
}

// ReviewSubmitter is the acceptance gate.
type ReviewSubmitter interface {
	SubmitReview(ctx context.Context, jobID, clientID uuid.UUID, decision services.ReviewDecision) (*models.Job, error)
}

// JobCanceller cancels a non-terminal job.
type JobCanceller interface {
	Cancel(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
}

// ReviewLookup fetches the client's stored decision on a job.
type ReviewLookup interface {
	GetByJobAndClient(ctx context.Context, jobID, clientID uuid.UUID) (*models.JobReview, error)
}

// JobHandler serves brief intake and the client-facing job endpoints.
type JobHandler struct {
	Jobs        JobRepoForHandler
	Briefs      BriefAnalyzer
	Escrow      EscrowForHandler
	Reviews     ReviewSubmitter
	ReviewStore ReviewLookup
	Lifecycle   JobCanceller
	Logger      *slog.Logger
}

// --- POST /api/v1/briefs/analyze ---

type analyzeBriefRequest struct {
	Brief    string `json:"brief"`
	Deadline string `json:"deadline"` // RFC 3339, optional
	Priority string `json:"priority"` // optional, defaults to normal
}

type analyzeBriefResponse struct {
	Suggestion    *services.BriefSuggestion `json:"suggestion"`
	PriceEstimate *services.PriceEstimate   `json:"price_estimate,omitempty"`
	DeadlineLabel string                    `json:"deadline_label,omitempty"`
}

// AnalyzeBrief handles POST /api/v1/briefs/analyze. The price preview is only
// included when a deadline is supplied.
func (h *JobHandler) AnalyzeBrief(w http.ResponseWriter, r *http.Request) {
	var req analyzeBriefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Brief == "" {
		writeError(w, http.StatusBadRequest, "brief is required")
		return
	}

	suggestion := h.Briefs.Analyze(r.Context(), req.Brief)
	resp := analyzeBriefResponse{Suggestion: suggestion}

	if req.Deadline != "" {
		deadline, err := time.Parse(time.RFC3339, req.Deadline)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid deadline")
			return
		}
		hours := time.Until(deadline).Hours()
		est := services.CalculatePriceEstimate(suggestion.DeliverableType, hours, req.Priority)
		resp.PriceEstimate = &est
		resp.DeadlineLabel = services.DeadlineLabel(hours)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- POST /api/v1/jobs ---

type createJobRequest struct {
	OneLineRequest     string   `json:"one_line_request"`
	Objective          string   `json:"objective"`
	DeliverableType    string   `json:"deliverable_type"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	Budget             *int     `json:"budget"`
	Deadline           string   `json:"deadline"` // RFC 3339
	Priority           string   `json:"priority"`
	MaxRevisions       *int     `json:"max_revisions"`
}

// CreateJob handles POST /api/v1/jobs. Fields the client omits are filled from
// the brief analysis; the job lands in brief_complete once type and criteria
// are known, otherwise it stays a draft.
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.OneLineRequest == "" {
		writeError(w, http.StatusBadRequest, "one_line_request is required")
		return
	}
	deadline, err := time.Parse(time.RFC3339, req.Deadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid deadline")
		return
	}
	if !deadline.After(time.Now()) {
		writeError(w, http.StatusBadRequest, "deadline must be in the future")
		return
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if priority != models.PriorityNormal && priority != models.PriorityFast {
		writeError(w, http.StatusBadRequest, "invalid priority")
		return
	}
	if req.Budget != nil && *req.Budget <= 0 {
		writeError(w, http.StatusBadRequest, "budget must be positive")
		return
	}

	deliverableType := req.DeliverableType
	objective := req.Objective
	criteria := req.AcceptanceCriteria
	if deliverableType == "" || len(criteria) == 0 {
		suggestion := h.Briefs.Analyze(r.Context(), req.OneLineRequest)
		if deliverableType == "" {
			deliverableType = suggestion.DeliverableType
		}
		if len(criteria) == 0 {
			criteria = suggestion.AcceptanceCriteria
		}
		if objective == "" {
			objective = suggestion.Objective
		}
	}

	hours := time.Until(deadline).Hours()
	est := services.CalculatePriceEstimate(deliverableType, hours, priority)

	maxRevisions := models.DefaultMaxRevisions
	if req.MaxRevisions != nil && *req.MaxRevisions >= 0 {
		maxRevisions = *req.MaxRevisions
	}

	status := models.JobStatusDraft
	if deliverableType != "" && len(criteria) > 0 {
		status = models.JobStatusBriefComplete
	}
	if status != models.JobStatusDraft && len(criteria) > models.MaxAcceptanceCriteria {
		writeError(w, http.StatusBadRequest, "too many acceptance criteria")
		return
	}

	// The agreed budget is what escrow will charge; the estimate only stands
	// in when the client leaves the budget blank.
	price := est.EstimatedPrice
	if req.Budget != nil {
		price = *req.Budget
	}
	job := &models.Job{
		ID:                 uuid.New(),
		ClientID:           id.UserID,
		OneLineRequest:     req.OneLineRequest,
		Objective:          objective,
		DeliverableType:    deliverableType,
		AcceptanceCriteria: criteria,
		Budget:             req.Budget,
		Deadline:           deadline,
		Priority:           priority,
		Status:             status,
		EstimatedPrice:     &est.EstimatedPrice,
		FinalPrice:         &price,
		MaxRevisions:       maxRevisions,
	}
	if err := h.Jobs.Create(r.Context(), job); err != nil {
		h.Logger.Error("create job", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"job":            job,
		"price_estimate": est,
		"deadline_label": services.DeadlineLabel(hours),
	})
}

// --- GET /api/v1/jobs ---

// ListJobs returns the caller's jobs; admins see everything.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var (
		jobs []*models.Job
		err  error
	)
	if id.Role == models.RoleAdmin {
		jobs, err = h.Jobs.List(r.Context())
	} else {
		jobs, err = h.Jobs.ListByClientID(r.Context(), id.UserID)
	}
	if err != nil {
		h.Logger.Error("list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs})
}

// --- GET /api/v1/jobs/{id} ---

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := h.loadVisibleJob(w, r, jobID)
	if job == nil || err != nil {
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// --- POST /api/v1/jobs/{id}/payment ---

type createPaymentRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// CreatePayment handles POST /api/v1/jobs/{id}/payment: the client commits to
// the final price and receives the pending transaction with its payment
// reference.
func (h *JobHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := h.loadVisibleJob(w, r, jobID)
	if job == nil || err != nil {
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	txn, err := h.Escrow.CreateTransaction(r.Context(), jobID, req.PaymentMethod)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTransactionExists):
			writeError(w, http.StatusConflict, "transaction already exists for job")
		default:
			var ite *services.InvalidTransitionError
			if errors.As(err, &ite) {
				writeError(w, http.StatusConflict, ite.Error())
				return
			}
			h.Logger.Error("create transaction", "job_id", jobID, "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

// --- POST /api/v1/jobs/{id}/review ---

type reviewRequest struct {
	MetCriteria bool   `json:"met_criteria"`
	Feedback    string `json:"feedback"`
	Rating      *int   `json:"rating"`
}

// SubmitReview handles POST /api/v1/jobs/{id}/review: the client's verdict on
// submitted work.
func (h *JobHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
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

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	job, err := h.Reviews.SubmitReview(r.Context(), jobID, id.UserID, services.ReviewDecision{
		MetCriteria: req.MetCriteria,
		Feedback:    req.Feedback,
		Rating:      req.Rating,
	})
	if err != nil {
		var ite *services.InvalidTransitionError
		switch {
		case errors.Is(err, services.ErrRevisionLimitExceeded):
			writeError(w, http.StatusConflict, "revision limit exceeded, contact support")
		case errors.Is(err, services.ErrPaymentNotVerified):
			writeError(w, http.StatusConflict, "payment not verified")
		case errors.As(err, &ite):
			writeError(w, http.StatusConflict, ite.Error())
		default:
			h.Logger.Error("submit review", "job_id", jobID, "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// --- GET /api/v1/jobs/{id}/review ---

// GetReview returns the owning client's stored decision on the job, 404 when
// no review has been submitted yet.
func (h *JobHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := h.loadVisibleJob(w, r, jobID)
	if job == nil || err != nil {
		return
	}
	review, err := h.ReviewStore.GetByJobAndClient(r.Context(), jobID, job.ClientID)
	if err != nil {
		writeError(w, http.StatusNotFound, "no review for job")
		return
	}
	writeJSON(w, http.StatusOK, review)
}

// --- POST /api/v1/jobs/{id}/cancel ---

func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, err := h.loadVisibleJob(w, r, jobID)
	if job == nil || err != nil {
		return
	}

	job, err = h.Lifecycle.Cancel(r.Context(), jobID)
	if err != nil {
		var ite *services.InvalidTransitionError
		if errors.As(err, &ite) {
			writeError(w, http.StatusConflict, ite.Error())
			return
		}
		h.Logger.Error("cancel job", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// loadVisibleJob fetches the job and enforces that the caller owns it or is
// an admin. On failure it writes the response and returns nil.
func (h *JobHandler) loadVisibleJob(w http.ResponseWriter, r *http.Request, jobID uuid.UUID) (*models.Job, error) {
	id := middleware.IdentityFromCtx(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, errors.New("unauthorized")
	}
	job, err := h.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return nil, err
	}
	if id.Role != models.RoleAdmin && job.ClientID != id.UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return nil, errors.New("forbidden")
	}
	return job, nil
}
