// Package httpapi exposes the TradeFlow JSON API.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tradeflow-ai/tradeflow/internal/auth"
	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/errors"
	"github.com/tradeflow-ai/tradeflow/internal/google"
	"github.com/tradeflow-ai/tradeflow/internal/httputil"
	"github.com/tradeflow-ai/tradeflow/internal/logging"
	"github.com/tradeflow-ai/tradeflow/internal/metrics"
	"github.com/tradeflow-ai/tradeflow/internal/middleware"
	"github.com/tradeflow-ai/tradeflow/internal/quota"
	"github.com/tradeflow-ai/tradeflow/internal/upload"
)

const defaultJSONMaxBytes int64 = 1 << 20

// Deps are the collaborators the API is built from.
type Deps struct {
	Repo    database.RepositoryInterface
	Auth    *auth.Service
	Quota   *quota.Service
	Uploads *upload.Processor
	// Google is nil when the connect flow is not configured.
	Google *google.Service
	Logger *logging.Logger

	// RateLimiter is optional.
	RateLimiter *middleware.RateLimiter

	CookieName     string
	SecureCookies  bool
	AllowedOrigins []string
	JSONMaxBytes   int64
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	repo          database.RepositoryInterface
	auth          *auth.Service
	quota         *quota.Service
	uploads       *upload.Processor
	google        *google.Service
	logger        *logging.Logger
	cookieName    string
	secureCookies bool
	jsonMaxBytes  int64
}

// Routes reachable without a session.
var publicPaths = []string{
	"/health",
	"/metrics",
	"/api/auth/sign-up/email",
	"/api/auth/sign-in/email",
	"/api/auth/sign-out",
	"/api/auth/get-session",
	"/api/billing/plans",
	google.CallbackPath,
}

// NewHandler returns the router serving the complete API.
func NewHandler(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &handler{
		repo:          d.Repo,
		auth:          d.Auth,
		quota:         d.Quota,
		uploads:       d.Uploads,
		google:        d.Google,
		logger:        logger,
		cookieName:    d.CookieName,
		secureCookies: d.SecureCookies,
		jsonMaxBytes:  d.JSONMaxBytes,
	}
	if h.jsonMaxBytes <= 0 {
		h.jsonMaxBytes = defaultJSONMaxBytes
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteServiceError(w, r, errors.NotFound("Not found"))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorResponse(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	router.Use(middleware.LoggingMiddleware(logger), middleware.MetricsMiddleware())
	router.Use(middleware.NewAuthMiddleware(d.Auth, d.CookieName, logger, publicPaths).Handler)
	if d.RateLimiter != nil {
		router.Use(d.RateLimiter.Handler)
	}

	router.HandleFunc("/health", h.health).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/sign-up/email", h.signUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/sign-in/email", h.signIn).Methods(http.MethodPost)
	api.HandleFunc("/auth/sign-out", h.signOut).Methods(http.MethodPost)
	api.HandleFunc("/auth/get-session", h.getSession).Methods(http.MethodGet)
	api.HandleFunc("/auth/google/callback", h.googleCallback).Methods(http.MethodGet)
	api.HandleFunc("/billing/plans", h.listPlans).Methods(http.MethodGet)

	// User-scoped routes.
	user := api.NewRoute().Subrouter()
	user.Use(middleware.RequireUserID)
	user.HandleFunc("/auth/google", h.googleConnect).Methods(http.MethodGet)

	user.HandleFunc("/me", h.getProfile).Methods(http.MethodGet)
	user.HandleFunc("/me", h.updateProfile).Methods(http.MethodPatch)

	user.HandleFunc("/clients", h.getClients).Methods(http.MethodGet)
	user.HandleFunc("/clients", h.createClient).Methods(http.MethodPost)
	user.HandleFunc("/clients", h.updateClient).Methods(http.MethodPut)
	user.HandleFunc("/clients", h.deleteClient).Methods(http.MethodDelete)

	user.HandleFunc("/po-history", h.getPOHistory).Methods(http.MethodGet)
	user.HandleFunc("/po-history", h.createPOHistory).Methods(http.MethodPost)
	user.HandleFunc("/po-history", h.updatePOHistory).Methods(http.MethodPut)
	user.HandleFunc("/po-history", h.deletePOHistory).Methods(http.MethodDelete)

	user.HandleFunc("/user-quotas", h.getQuota).Methods(http.MethodGet)
	user.HandleFunc("/user-quotas", h.upsertQuota).Methods(http.MethodPost)

	user.HandleFunc("/billing/subscribe", h.subscribe).Methods(http.MethodPost)

	user.HandleFunc("/uploads", h.uploadDocuments).Methods(http.MethodPost)

	user.HandleFunc("/google-integrations", h.getIntegration).Methods(http.MethodGet)
	user.HandleFunc("/google-integrations", h.upsertIntegration).Methods(http.MethodPost)
	user.HandleFunc("/google-integrations", h.deleteIntegration).Methods(http.MethodDelete)

	user.HandleFunc("/dashboard/stats", h.dashboardStats).Methods(http.MethodGet)

	return middleware.NewCORSMiddleware(d.AllowedOrigins).Handler(router)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if err := h.repo.Ping(r.Context()); err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Warn("Database ping failed")
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, map[string]string{"status": status})
}
