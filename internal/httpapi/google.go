package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/errors"
	"github.com/tradeflow-ai/tradeflow/internal/google"
)

var errGoogleDisabled = errors.New(CodeGoogleDisabled, http.StatusServiceUnavailable, "Google integration is not configured")

func (h *handler) getIntegration(w http.ResponseWriter, r *http.Request) {
	integration, err := h.repo.GetGoogleIntegration(r.Context(), userID(r))
	if err != nil {
		if database.IsNotFound(err) {
			h.writeJSON(w, http.StatusOK, nil)
			return
		}
		h.writeError(w, r, err, "")
		return
	}
	h.writeJSON(w, http.StatusOK, integration)
}

func (h *handler) upsertIntegration(w http.ResponseWriter, r *http.Request) {
	f, err := h.readFields(r)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := f.rejectUserID(); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	access, _, err := f.str("accessToken")
	if err != nil || access == nil || strings.TrimSpace(*access) == "" {
		h.writeError(w, r, errors.BadRequest(CodeMissingAccessToken, "Access token is required"), "")
		return
	}
	refresh, _, err := f.str("refreshToken")
	if err != nil || refresh == nil || strings.TrimSpace(*refresh) == "" {
		h.writeError(w, r, errors.BadRequest(CodeMissingRefreshToken, "Refresh token is required"), "")
		return
	}
	integration := &database.GoogleIntegration{
		UserID:       userID(r),
		AccessToken:  strings.TrimSpace(*access),
		RefreshToken: strings.TrimSpace(*refresh),
	}
	if raw, ok := f["isActive"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &integration.IsActive); err != nil {
			h.writeError(w, r, errors.BadRequest(errors.CodeInvalidField, "isActive must be a boolean"), "")
			return
		}
	}

	created, err := h.repo.UpsertGoogleIntegration(r.Context(), integration)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, integration)
}

func (h *handler) deleteIntegration(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.DeleteGoogleIntegration(r.Context(), userID(r)); err != nil {
		h.writeError(w, r, err, "Google integration not found")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Google integration disconnected"})
}

func (h *handler) googleConnect(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.writeError(w, r, errGoogleDisabled, "")
		return
	}
	uid := userID(r)
	q := r.URL.Query()
	if requested := q.Get("user_id"); requested != "" && requested != uid {
		h.logger.LogSecurityEvent(r.Context(), "google_connect_user_mismatch", map[string]interface{}{
			"requested_user_id": requested,
		})
		h.writeError(w, r, errors.Forbidden("Cannot connect Google for another user"), "")
		return
	}

	authURL, err := h.google.AuthURL(r.Context(), uid, q.Get("redirect_uri"))
	if err != nil {
		if stderrors.Is(err, google.ErrInvalidRedirect) {
			h.writeError(w, r, errors.BadRequest(errors.CodeInvalidField, err.Error()), "")
			return
		}
		h.writeError(w, r, errors.Internal("Failed to start Google authorization", err), "")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"url": authURL})
}

func (h *handler) googleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.writeError(w, r, errGoogleDisabled, "")
		return
	}
	q := r.URL.Query()
	target := h.google.HandleCallback(r.Context(), google.CallbackParams{
		Code:  q.Get("code"),
		State: q.Get("state"),
		Error: q.Get("error"),
	})
	http.Redirect(w, r, target, http.StatusFound)
}
