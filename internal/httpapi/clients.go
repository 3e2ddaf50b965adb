package httpapi

import (
	"net/http"
	"strings"

	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/errors"
)

const clientNotFound = "Client not found"

// clientField reads an optional text column. Absent keys return nil; empty
// or null values clear the column.
func clientField(f fields, key string, lower bool) (**string, error) {
	val, ok, err := f.str(key)
	if err != nil {
		return nil, errors.BadRequest(errors.CodeInvalidField, err.Error())
	}
	if !ok {
		return nil, nil
	}
	val = nullableText(val)
	if val != nil && lower {
		l := strings.ToLower(*val)
		val = &l
	}
	return &val, nil
}

func deref(p **string) *string {
	if p == nil {
		return nil
	}
	return *p
}

func (h *handler) getClients(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("id") {
		id, err := queryID(r)
		if err != nil {
			h.writeError(w, r, err, "")
			return
		}
		c, err := h.repo.GetClient(r.Context(), userID(r), id)
		if err != nil {
			h.writeError(w, r, err, clientNotFound)
			return
		}
		h.writeJSON(w, http.StatusOK, c)
		return
	}

	list, err := h.repo.ListClients(r.Context(), userID(r), listOptions(r))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if list == nil {
		list = []database.Client{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *handler) createClient(w http.ResponseWriter, r *http.Request) {
	f, err := h.readFields(r)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if err := f.rejectUserID(); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	name, _, err := f.str("name")
	if err != nil || name == nil || strings.TrimSpace(*name) == "" {
		h.writeError(w, r, errors.BadRequest(errors.CodeMissingField, "Name is required"), "")
		return
	}
	client := &database.Client{UserID: userID(r), Name: strings.TrimSpace(*name)}
	for _, opt := range []struct {
		key   string
		lower bool
		dst   **string
	}{
		{"company", false, &client.Company},
		{"email", true, &client.Email},
		{"phone", false, &client.Phone},
	} {
		v, err := clientField(f, opt.key, opt.lower)
		if err != nil {
			h.writeError(w, r, err, "")
			return
		}
		*opt.dst = deref(v)
	}

	if err := h.repo.CreateClient(r.Context(), client); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	h.writeJSON(w, http.StatusCreated, client)
}

func (h *handler) updateClient(w http.ResponseWriter, r *http.Request) {
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

	var update database.ClientUpdate
	name, hasName, err := f.str("name")
	if hasName {
		if err != nil || name == nil || strings.TrimSpace(*name) == "" {
			h.writeError(w, r, errors.BadRequest(errors.CodeInvalidField, "Name cannot be empty"), "")
			return
		}
		trimmed := strings.TrimSpace(*name)
		update.Name = &trimmed
	}
	if update.Company, err = clientField(f, "company", false); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if update.Email, err = clientField(f, "email", true); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if update.Phone, err = clientField(f, "phone", false); err != nil {
		h.writeError(w, r, err, "")
		return
	}

	c, err := h.repo.UpdateClient(r.Context(), userID(r), id, update)
	if err != nil {
		h.writeError(w, r, err, clientNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

func (h *handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := queryID(r)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	c, err := h.repo.DeleteClient(r.Context(), userID(r), id)
	if err != nil {
		h.writeError(w, r, err, clientNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Client deleted successfully",
		"deletedClient": c,
	})
}
