package routes

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"TRIPCOLLAB_BACK-END/internal/config"
	"TRIPCOLLAB_BACK-END/internal/handlers"
	"TRIPCOLLAB_BACK-END/internal/middleware"
)

// Handlers groups every HTTP handler the API exposes
type Handlers struct {
	Auth          *handlers.AuthHandler
	GoogleAuth    *handlers.GoogleAuthHandler
	Health        *handlers.HealthHandler
	Plans         *handlers.PlansHandler
	Invitations   *handlers.InvitationsHandler
	Activity      *handlers.ActivityHandler
	Notifications *handlers.NotificationsHandler
	Live          *handlers.LiveHandler
}

// SetupRoutes configures all application routes
func SetupRoutes(h Handlers, jwtCfg *config.JWTConfig) *http.ServeMux {
	mux := http.NewServeMux()
	auth := func(fn http.HandlerFunc) http.HandlerFunc {
		return middleware.AuthMiddleware(fn, jwtCfg)
	}

	// Health check routes
	mux.HandleFunc("GET /healthz", h.Health.HealthCheck)
	mux.HandleFunc("GET /livez", h.Health.LivenessCheck)
	mux.HandleFunc("GET /readyz", h.Health.ReadinessCheck)

	// Authentication routes
	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.HandleFunc("GET /api/auth/me", auth(h.Auth.Me))
	if h.GoogleAuth != nil {
		mux.HandleFunc("GET /api/auth/google/login", h.GoogleAuth.GoogleLogin)
		mux.HandleFunc("GET /api/auth/google/callback", h.GoogleAuth.GoogleCallback)
	}

	// Plan routes
	mux.HandleFunc("POST /api/plans", auth(h.Plans.CreatePlan))
	mux.HandleFunc("GET /api/plans", auth(h.Plans.ListPlans))
	mux.HandleFunc("GET /api/plans/{id}", auth(h.Plans.PlanDetail))
	mux.HandleFunc("PATCH /api/plans/{id}", auth(h.Plans.UpdatePlan))
	mux.HandleFunc("POST /api/plans/{id}/collaboration", auth(h.Plans.StartCollaboration))
	mux.HandleFunc("GET /api/plans/{id}/readiness", auth(h.Plans.Readiness))
	mux.HandleFunc("GET /api/plans/{id}/preview", auth(h.Plans.Preview))
	mux.HandleFunc("POST /api/plans/{id}/confirm", auth(h.Plans.Confirm))
	mux.HandleFunc("POST /api/plans/{id}/conclude", auth(h.Plans.Conclude))

	// Proposal and vote routes
	mux.HandleFunc("GET /api/plans/{id}/proposals", auth(h.Plans.ProposalBoard))
	mux.HandleFunc("POST /api/plans/{id}/proposals", auth(h.Plans.AddProposal))
	mux.HandleFunc("POST /api/plans/{id}/proposals/seed", auth(h.Plans.SeedProposals))
	mux.HandleFunc("DELETE /api/plans/{id}/proposals/{pid}", auth(h.Plans.DeleteProposal))
	mux.HandleFunc("POST /api/plans/{id}/proposals/{pid}/votes", auth(h.Plans.Vote))
	mux.HandleFunc("GET /api/plans/{id}/proposals/{pid}/votes", auth(h.Plans.ListVotes))

	// Membership routes
	mux.HandleFunc("GET /api/plans/{id}/members", auth(h.Invitations.ListMembers))
	mux.HandleFunc("GET /api/plans/{id}/invitations", auth(h.Invitations.ListPlanInvitations))
	mux.HandleFunc("POST /api/plans/{id}/invitations", auth(h.Invitations.Invite))
	mux.HandleFunc("GET /api/invitations", auth(h.Invitations.ListMyInvitations))
	mux.HandleFunc("POST /api/invitations/{iid}/accept", auth(h.Invitations.Accept))
	mux.HandleFunc("POST /api/invitations/{iid}/decline", auth(h.Invitations.Decline))

	// Messages, expenses, feedback
	mux.HandleFunc("GET /api/plans/{id}/messages", auth(h.Activity.ListMessages))
	mux.HandleFunc("POST /api/plans/{id}/messages", auth(h.Activity.PostMessage))
	mux.HandleFunc("PATCH /api/plans/{id}/messages/{mid}", auth(h.Activity.EditMessage))
	mux.HandleFunc("DELETE /api/plans/{id}/messages/{mid}", auth(h.Activity.DeleteMessage))
	mux.HandleFunc("GET /api/plans/{id}/expenses", auth(h.Activity.ListExpenses))
	mux.HandleFunc("POST /api/plans/{id}/expenses", auth(h.Activity.LogExpense))
	mux.HandleFunc("GET /api/plans/{id}/expenses/summary", auth(h.Activity.ExpenseSummary))
	mux.HandleFunc("GET /api/plans/{id}/feedback", auth(h.Activity.ListFeedback))
	mux.HandleFunc("POST /api/plans/{id}/feedback", auth(h.Activity.SubmitFeedback))

	// Notification routes
	mux.HandleFunc("GET /api/notifications", auth(h.Notifications.ListNotifications))
	mux.HandleFunc("POST /api/notifications/{id}/read", auth(h.Notifications.MarkRead))
	mux.HandleFunc("POST /api/notifications/read-all", auth(h.Notifications.MarkAllRead))

	// Live channel
	mux.HandleFunc("GET /api/plans/{id}/live", auth(h.Live.Live))

	// Swagger UI
	mux.Handle("GET /swagger/", httpSwagger.WrapHandler)

	// Root route
	mux.HandleFunc("GET /{$}", rootHandler)

	return mux
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Trip collaboration backend is running."))
}
