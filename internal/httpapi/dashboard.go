package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/tradeflow-ai/tradeflow/internal/database"
)

type dashboardStats struct {
	TotalCredits       int             `json:"totalCredits"`
	UsedCredits        int             `json:"usedCredits"`
	RemainingCredits   int             `json:"remainingCredits"`
	TotalPOs           int             `json:"totalPOs"`
	CompletedPOs       int             `json:"completedPOs"`
	SuccessRate        float64         `json:"successRate"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	ActiveIntegrations int             `json:"activeIntegrations"`
}

func (h *handler) dashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := userID(r)

	q, err := h.quota.Get(ctx, uid)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	po, err := h.repo.GetPOStats(ctx, uid)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	active := 0
	integration, err := h.repo.GetGoogleIntegration(ctx, uid)
	switch {
	case err == nil && integration.IsActive:
		active = 1
	case err != nil && !database.IsNotFound(err):
		h.writeError(w, r, err, "")
		return
	}

	h.writeJSON(w, http.StatusOK, computeStats(q, po, active))
}

func computeStats(q *database.UserQuota, po *database.POStats, activeIntegrations int) dashboardStats {
	used := q.MonthlyQuota - q.RemainingCredits
	if used < 0 {
		used = 0
	}
	rate := 100.0
	if po.Total > 0 {
		rate, _ = decimal.NewFromInt(int64(po.Completed)).
			Div(decimal.NewFromInt(int64(po.Total))).
			Mul(decimal.NewFromInt(100)).
			Round(1).
			Float64()
	}
	return dashboardStats{
		TotalCredits:       q.MonthlyQuota,
		UsedCredits:        used,
		RemainingCredits:   q.RemainingCredits,
		TotalPOs:           po.Total,
		CompletedPOs:       po.Completed,
		SuccessRate:        rate,
		TotalAmount:        po.CompletedAmount.Round(2),
		ActiveIntegrations: activeIntegrations,
	}
}
