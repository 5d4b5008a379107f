package router

import (
	"net/http"

	"github.com/briefmatch/backend/internal/auth"
	"github.com/briefmatch/backend/internal/handlers"
	"github.com/briefmatch/backend/internal/middleware"
	"github.com/briefmatch/backend/internal/models"
)

// Handlers carries every handler the API mounts.
type Handlers struct {
	Auth     *auth.Handler
	Users    *handlers.UserHandler
	Jobs     *handlers.JobHandler
	Matches  *handlers.MatchHandler
	Workroom *handlers.WorkroomHandler
	Admin    *handlers.AdminHandler
}

// New returns the http.Handler serving the API under /api/v1. Everything except
// auth requires a valid token; admin routes additionally require the admin
// role.
func New(h Handlers, validator middleware.TokenValidator) http.Handler {
	mux := http.NewServeMux()

	authn := middleware.JWTAuth(validator)
	client := middleware.RequireRole(models.RoleClient, models.RoleAdmin)
	freelancer := middleware.RequireRole(models.RoleFreelancer)
	admin := middleware.RequireRole(models.RoleAdmin)

	mux.HandleFunc("POST /api/v1/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/v1/auth/login", h.Auth.Login)

	mux.Handle("GET /api/v1/users/me", authn(http.HandlerFunc(h.Users.GetMe)))
	mux.Handle("PATCH /api/v1/users/me/skills", authn(freelancer(http.HandlerFunc(h.Users.UpdateSkills))))
	mux.Handle("GET /api/v1/users/me/reviews", authn(freelancer(http.HandlerFunc(h.Users.ListMyReviews))))

	// Brief intake and client job flow.
	mux.Handle("POST /api/v1/briefs/analyze", authn(http.HandlerFunc(h.Jobs.AnalyzeBrief)))
	mux.Handle("POST /api/v1/jobs", authn(client(http.HandlerFunc(h.Jobs.CreateJob))))
	mux.Handle("GET /api/v1/jobs", authn(http.HandlerFunc(h.Jobs.ListJobs)))
	mux.Handle("GET /api/v1/jobs/{id}", authn(http.HandlerFunc(h.Jobs.GetJob)))
	mux.Handle("POST /api/v1/jobs/{id}/payment", authn(client(http.HandlerFunc(h.Jobs.CreatePayment))))
	mux.Handle("POST /api/v1/jobs/{id}/review", authn(client(http.HandlerFunc(h.Jobs.SubmitReview))))
	mux.Handle("GET /api/v1/jobs/{id}/review", authn(http.HandlerFunc(h.Jobs.GetReview)))
	mux.Handle("POST /api/v1/jobs/{id}/cancel", authn(http.HandlerFunc(h.Jobs.CancelJob)))
	mux.Handle("GET /api/v1/jobs/{id}/matches", authn(http.HandlerFunc(h.Matches.ListJobMatches)))
	mux.Handle("POST /api/v1/jobs/{id}/matches", authn(client(http.HandlerFunc(h.Matches.GenerateMatches))))
	mux.Handle("POST /api/v1/jobs/{id}/auto-assign", authn(client(http.HandlerFunc(h.Matches.AutoAssign))))

	// Freelancer offer flow.
	mux.Handle("GET /api/v1/matches", authn(freelancer(http.HandlerFunc(h.Matches.ListOffers))))
	mux.Handle("POST /api/v1/matches/{id}/accept", authn(freelancer(http.HandlerFunc(h.Matches.AcceptOffer))))
	mux.Handle("POST /api/v1/matches/{id}/decline", authn(freelancer(http.HandlerFunc(h.Matches.DeclineOffer))))

	// Workroom.
	mux.Handle("POST /api/v1/jobs/{id}/start", authn(freelancer(http.HandlerFunc(h.Workroom.StartWork))))
	mux.Handle("POST /api/v1/jobs/{id}/submit", authn(freelancer(http.HandlerFunc(h.Workroom.SubmitWork))))
	mux.Handle("POST /api/v1/jobs/{id}/deliverables", authn(freelancer(http.HandlerFunc(h.Workroom.CreateDeliverable))))
	mux.Handle("GET /api/v1/jobs/{id}/deliverables", authn(http.HandlerFunc(h.Workroom.ListDeliverables)))
	mux.Handle("GET /api/v1/jobs/{id}/checklist", authn(http.HandlerFunc(h.Workroom.ListChecklist)))
	mux.Handle("PATCH /api/v1/checklist/{id}", authn(http.HandlerFunc(h.Workroom.ToggleChecklistItem)))

	// Admin back office.
	mux.Handle("GET /api/v1/admin/jobs", authn(admin(http.HandlerFunc(h.Jobs.ListJobs))))
	mux.Handle("GET /api/v1/admin/transactions", authn(admin(http.HandlerFunc(h.Admin.ListTransactions))))
	mux.Handle("POST /api/v1/admin/transactions/{id}/verify", authn(admin(http.HandlerFunc(h.Admin.VerifyPayment))))
	mux.Handle("POST /api/v1/admin/transactions/{id}/refund", authn(admin(http.HandlerFunc(h.Admin.Refund))))
	mux.Handle("POST /api/v1/admin/jobs/{id}/auto-assign", authn(admin(http.HandlerFunc(h.Admin.AutoAssign))))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}
