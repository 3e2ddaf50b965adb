package httpapi

import (
	"net/http"
	"strings"

	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/errors"
)

type profileResponse struct {
	User        *database.User              `json:"user"`
	Quota       *database.UserQuota         `json:"quota"`
	Integration *database.GoogleIntegration `json:"integration"`
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := userID(r)

	user, err := h.repo.GetUser(ctx, uid)
	if err != nil {
		h.writeError(w, r, err, "User not found")
		return
	}
	q, err := h.quota.Get(ctx, uid)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	integration, err := h.repo.GetGoogleIntegration(ctx, uid)
	if err != nil && !database.IsNotFound(err) {
		h.writeError(w, r, err, "")
		return
	}
	h.writeJSON(w, http.StatusOK, profileResponse{User: user, Quota: q, Integration: integration})
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	f, err := h.readFields(r)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := f.rejectUserID(); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	name, hasName, err := f.str("name")
	if err != nil || (hasName && (name == nil || strings.TrimSpace(*name) == "")) {
		h.writeError(w, r, errors.BadRequest(errors.CodeInvalidField, "Name cannot be empty"), "")
		return
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		name = &trimmed
	}
	// An empty or null image clears the avatar.
	image, hasImage, err := f.str("image")
	if err != nil {
		h.writeError(w, r, errors.BadRequest(errors.CodeInvalidField, "Image must be a string"), "")
		return
	}
	if hasImage {
		cleared := ""
		if image = nullableText(image); image == nil {
			image = &cleared
		}
	}

	user, err := h.repo.UpdateUserProfile(r.Context(), userID(r), name, image)
	if err != nil {
		h.writeError(w, r, err, "User not found")
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}
