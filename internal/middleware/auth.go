// Package middleware provides HTTP middleware for the TradeFlow API.
package middleware

import (
	"context"
	"net/http"

	"github.com/tradeflow-ai/tradeflow/internal/auth"
	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/errors"
	internalhttputil "github.com/tradeflow-ai/tradeflow/internal/httputil"
	"github.com/tradeflow-ai/tradeflow/internal/logging"
)

// Authenticator resolves a bearer token to a live session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*database.Session, error)
}

// AuthMiddleware authenticates requests against the session store.
type AuthMiddleware struct {
	authenticator Authenticator
	cookieName    string
	logger        *logging.Logger
	skipPaths     map[string]bool
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authenticator Authenticator, cookieName string, logger *logging.Logger, skipPaths []string) *AuthMiddleware {
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}

	return &AuthMiddleware{
		authenticator: authenticator,
		cookieName:    cookieName,
		logger:        logger,
		skipPaths:     skip,
	}
}

// Handler returns the middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token := auth.TokenFromRequest(r, m.cookieName)
		if token == "" {
			m.respondError(w, r, errors.Unauthorized(""))
			return
		}

		session, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			m.respondError(w, r, err)
			return
		}

		ctx := logging.WithUserID(r.Context(), session.UserID)
		ctx = logging.WithSessionID(ctx, session.ID)

		m.logger.WithContext(ctx).WithField("session_id", session.ID).Debug("Authentication successful")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// respondError sends an error response. Every authentication failure is
// reported to the client the same way.
func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("Authentication failed", err)
	}
	if serviceErr.HTTPStatus == http.StatusUnauthorized {
		serviceErr = errors.Unauthorized("")
	}

	internalhttputil.WriteErrorResponse(w, r, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("Authentication failed")
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	return logging.GetUserID(ctx)
}

// RequireUserID rejects requests that reach a user-scoped route without an
// authenticated user, e.g. a path wrongly listed as public.
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			internalhttputil.WriteServiceError(w, r, errors.Unauthorized(""))
			return
		}
		next.ServeHTTP(w, r)
	})
}
