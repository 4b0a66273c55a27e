package handler

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aryan0dhankhar/landledger/internal/observability/metrics"
	"github.com/aryan0dhankhar/landledger/internal/security/audit"
	"github.com/aryan0dhankhar/landledger/internal/security/middleware"
	"github.com/aryan0dhankhar/landledger/internal/security/ratelimit"
)

// RouterDeps bundles everything the HTTP surface is built from
type RouterDeps struct {
	Auth         *AuthHandler
	Lands        *LandHandler
	Verification *VerificationHandler
	Transfers    *TransferHandler
	Dashboard    *DashboardHandler
	Admin        *AdminHandler
	Health       *HealthHandler

	Sessions       middleware.SessionValidator
	Users          middleware.ActorLoader
	Limiter        *ratelimit.Limiter
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter registers every route and wraps the mux in the middleware chain:
// request id -> CORS -> audit -> JWT -> rate limit -> content type -> metrics -> mux
func NewRouter(d RouterDeps) http.Handler {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", d.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", d.Auth.Login)
	mux.HandleFunc("POST /api/auth/logout", d.Auth.Logout)
	mux.HandleFunc("GET /api/auth/me", d.Auth.Me)
	mux.HandleFunc("PUT /api/auth/profile", d.Auth.UpdateProfile)
	mux.HandleFunc("PUT /api/auth/password", d.Auth.ChangePassword)

	mux.HandleFunc("POST /api/lands/register", d.Lands.Register)
	mux.HandleFunc("GET /api/lands/my-lands", d.Lands.MyLands)
	mux.HandleFunc("GET /api/lands/{id}", d.Lands.Get)
	mux.HandleFunc("POST /api/lands/{id}/documents/upload-url", d.Lands.UploadURL)

	mux.HandleFunc("POST /api/lands/verify/{landId}", d.Verification.Select)
	mux.HandleFunc("POST /api/verification/stages/{stage}", d.Verification.StartStage)
	mux.HandleFunc("GET /api/verification/current", d.Verification.Current)
	mux.HandleFunc("GET /ws/verification", d.Verification.Stream)

	mux.HandleFunc("GET /api/transfers", d.Transfers.List)
	mux.HandleFunc("POST /api/transfers/initiate", d.Transfers.Initiate)

	mux.Handle("GET /api/dashboard", d.Dashboard)

	mux.HandleFunc("GET /api/admin/users", d.Admin.Users)
	mux.HandleFunc("GET /api/admin/lands", d.Admin.Lands)
	mux.HandleFunc("GET /api/admin/transfers", d.Admin.Transfers)
	mux.HandleFunc("DELETE /api/admin/users/{id}", d.Admin.DeleteUser)

	mux.HandleFunc("GET /healthz", d.Health.Health)
	mux.HandleFunc("GET /readyz", d.Health.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = metrics.HTTPMetricsMiddleware(mux)
	h = middleware.ValidateJSONContentType(log)(h)
	if d.Limiter != nil {
		h = middleware.RateLimitMiddleware(d.Limiter, log)(h)
	}
	h = middleware.JWTMiddleware(d.Sessions, d.Users, log)(h)
	h = middleware.AuditMiddleware(audit.NewLogger(log))(h)
	h = middleware.CORS(d.AllowedOrigins)(h)
	h = middleware.RequestID(log)(h)
	return h
}
