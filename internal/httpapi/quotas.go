package httpapi

import (
	"net/http"

	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/errors"
	"github.com/tradeflow-ai/tradeflow/internal/quota"
)

func (h *handler) getQuota(w http.ResponseWriter, r *http.Request) {
	q, err := h.quota.Get(r.Context(), userID(r))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	h.writeJSON(w, http.StatusOK, q)
}

func (h *handler) upsertQuota(w http.ResponseWriter, r *http.Request) {
	f, err := h.readFields(r)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := f.rejectUserID(); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	var update database.QuotaUpdate
	for _, c := range []struct {
		key  string
		code errors.ErrorCode
		msg  string
		dst  **int
	}{
		{"monthlyQuota", CodeInvalidMonthlyQuota, "Monthly quota must be a non-negative number", &update.MonthlyQuota},
		{"remainingCredits", CodeInvalidRemainingCredits, "Remaining credits must be a non-negative number", &update.RemainingCredits},
		{"monthlyCredits", CodeInvalidMonthlyCredits, "Monthly credits must be a non-negative number", &update.MonthlyCredits},
	} {
		v, ok := f.nonNegativeInt(c.key)
		if !ok {
			h.writeError(w, r, errors.BadRequest(c.code, c.msg), "")
			return
		}
		*c.dst = v
	}

	q, created, err := h.repo.UpsertQuota(r.Context(), userID(r), update)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, q)
}

func (h *handler) listPlans(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"plans": quota.Plans()})
}

func (h *handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Plan string `json:"plan"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	q, plan, err := h.quota.Subscribe(r.Context(), userID(r), req.Plan)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"plan":  plan,
		"quota": q,
	})
}
