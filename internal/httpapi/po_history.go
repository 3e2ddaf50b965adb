package httpapi

import (
	"net/http"
	"strings"

	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/errors"
)

const recordNotFound = "Record not found"

var (
	errInvalidAmount = errors.BadRequest(CodeInvalidAmount, "Amount must be a positive number")
	errInvalidStatus = errors.BadRequest(CodeInvalidStatus,
		"Status must be one of pending, processing, completed, failed, cancelled")
)

func poStatus(f fields) (*string, error) {
	s, ok, err := f.str("status")
	if !ok {
		return nil, nil
	}
	if err != nil || s == nil {
		return nil, errInvalidStatus
	}
	status := strings.ToLower(strings.TrimSpace(*s))
	if !database.ValidStatus(status) {
		return nil, errInvalidStatus
	}
	return &status, nil
}

func (h *handler) getPOHistory(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("id") {
		id, err := queryID(r)
		if err != nil {
			h.writeError(w, r, err, "")
			return
		}
		rec, err := h.repo.GetPOHistory(r.Context(), userID(r), id)
		if err != nil {
			h.writeError(w, r, err, recordNotFound)
			return
		}
		h.writeJSON(w, http.StatusOK, rec)
		return
	}

	list, err := h.repo.ListPOHistory(r.Context(), userID(r), listOptions(r))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if list == nil {
		list = []database.POHistory{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *handler) createPOHistory(w http.ResponseWriter, r *http.Request) {
	f, err := h.readFields(r)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := f.rejectUserID(); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	poNumber, _, err := f.str("poNumber")
	if err != nil || poNumber == nil || strings.TrimSpace(*poNumber) == "" {
		h.writeError(w, r, errors.BadRequest(errors.CodeMissingField, "PO Number is required"), "")
		return
	}
	if !f.has("amount") || isNull(f["amount"]) {
		h.writeError(w, r, errors.BadRequest(errors.CodeMissingField, "Amount is required"), "")
		return
	}
	amount, ok := f.amount("amount")
	if !ok {
		h.writeError(w, r, errInvalidAmount, "")
		return
	}
	status, err := poStatus(f)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	description, _, err := f.str("description")
	if err != nil {
		h.writeError(w, r, errors.BadRequest(errors.CodeInvalidField, err.Error()), "")
		return
	}

	rec := &database.POHistory{
		UserID:      userID(r),
		PONumber:    strings.TrimSpace(*poNumber),
		Description: nullableText(description),
		Amount:      amount,
		Status:      database.StatusCompleted,
	}
	if status != nil {
		rec.Status = *status
	}
	if err := h.repo.CreatePOHistory(r.Context(), rec); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	h.writeJSON(w, http.StatusCreated, rec)
}

func (h *handler) updatePOHistory(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	f, err := h.readFields(r)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := f.rejectUserID(); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	var update database.POUpdate
	if poNumber, ok, err := f.str("poNumber"); ok {
		if err != nil || poNumber == nil || strings.TrimSpace(*poNumber) == "" {
			h.writeError(w, r, errors.BadRequest(errors.CodeInvalidField, "PO Number cannot be empty"), "")
			return
		}
		trimmed := strings.TrimSpace(*poNumber)
		update.PONumber = &trimmed
	}
	if description, ok, err := f.str("description"); ok {
		if err != nil {
			h.writeError(w, r, errors.BadRequest(errors.CodeInvalidField, err.Error()), "")
			return
		}
		desc := nullableText(description)
		update.Description = &desc
	}
	if f.has("amount") {
		amount, ok := f.amount("amount")
		if !ok {
			h.writeError(w, r, errInvalidAmount, "")
			return
		}
		update.Amount = &amount
	}
	if update.Status, err = poStatus(f); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	rec, err := h.repo.UpdatePOHistory(r.Context(), userID(r), id, update)
	if err != nil {
		h.writeError(w, r, err, recordNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *handler) deletePOHistory(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	rec, err := h.repo.DeletePOHistory(r.Context(), userID(r), id)
	if err != nil {
		h.writeError(w, r, err, recordNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "PO history record deleted successfully",
		"record":  rec,
	})
}
