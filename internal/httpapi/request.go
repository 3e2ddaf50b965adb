package httpapi

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/errors"
	"github.com/tradeflow-ai/tradeflow/internal/httputil"
	"github.com/tradeflow-ai/tradeflow/internal/middleware"
)

// Error codes specific to the resource endpoints.
const (
	CodeInvalidJSON             errors.ErrorCode = "INVALID_JSON"
	CodeInvalidAmount           errors.ErrorCode = "INVALID_AMOUNT"
	CodeInvalidStatus           errors.ErrorCode = "INVALID_STATUS"
	CodeInvalidMonthlyQuota     errors.ErrorCode = "INVALID_MONTHLY_QUOTA"
	CodeInvalidRemainingCredits errors.ErrorCode = "INVALID_REMAINING_CREDITS"
	CodeInvalidMonthlyCredits   errors.ErrorCode = "INVALID_MONTHLY_CREDITS"
	CodeMissingAccessToken      errors.ErrorCode = "MISSING_ACCESS_TOKEN"
	CodeMissingRefreshToken     errors.ErrorCode = "MISSING_REFRESH_TOKEN"
	CodeGoogleDisabled          errors.ErrorCode = "GOOGLE_NOT_CONFIGURED"
	CodeInvalidUpload           errors.ErrorCode = "INVALID_UPLOAD"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

var (
	errUserIDNotAllowed = errors.BadRequest(errors.CodeUserIDNotAllowed, "User ID cannot be provided in request body")
	errInvalidID        = errors.BadRequest(errors.CodeInvalidID, "Valid ID is required")
)

// fields is a decoded JSON object whose values are decoded on demand, so
// handlers can tell an absent key from an explicit null.
type fields map[string]json.RawMessage

// decodeBody reads the request body as JSON into v.
func (h *handler) decodeBody(r *http.Request, v interface{}) error {
	if _, err := httputil.DecodeJSONBody(r, h.jsonMaxBytes, v); err != nil {
		if stderrors.Is(err, httputil.ErrBodyTooLarge) {
			return errors.New(CodeInvalidJSON, http.StatusRequestEntityTooLarge, "Request body too large")
		}
		return errors.BadRequest(CodeInvalidJSON, "Request body must be a JSON object")
	}
	return nil
}

// readFields decodes the request body as a JSON object.
func (h *handler) readFields(r *http.Request) (fields, error) {
	var f fields
	if err := h.decodeBody(r, &f); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errors.BadRequest(CodeInvalidJSON, "Request body must be a JSON object")
	}
	return f, nil
}

func (f fields) has(key string) bool {
	_, ok := f[key]
	return ok
}

// rejectUserID refuses bodies that try to set the owner.
func (f fields) rejectUserID() error {
	if f.has("userId") || f.has("user_id") {
		return errUserIDNotAllowed
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// str returns the string at key. ok is false when the key is absent; a null
// value yields a nil pointer.
func (f fields) str(key string) (val *string, ok bool, err error) {
	raw, ok := f[key]
	if !ok {
		return nil, false, nil
	}
	if isNull(raw) {
		return nil, true, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, true, fmt.Errorf("%s must be a string", key)
	}
	return &s, true, nil
}

// nullableText trims s and maps empty values to nil.
func nullableText(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// nonNegativeInt decodes a JSON number that must be a whole number >= 0.
func (f fields) nonNegativeInt(key string) (*int, bool) {
	raw, ok := f[key]
	if !ok {
		return nil, true
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return nil, false
	}
	v, err := strconv.ParseInt(n.String(), 10, 32)
	if err != nil || v < 0 {
		return nil, false
	}
	i := int(v)
	return &i, true
}

// amount decodes an amount given as a JSON number or numeric string. It is
// rounded to cents and must be positive and no larger than database.MaxAmount.
func (f fields) amount(key string) (decimal.Decimal, bool) {
	raw := f[key]
	if isNull(raw) {
		return decimal.Zero, false
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(bytes.TrimSpace(raw)); err != nil {
		return decimal.Zero, false
	}
	d = d.Round(2)
	if !database.ValidAmount(d) {
		return decimal.Zero, false
	}
	return d, true
}

// queryID parses the ?id= parameter.
func queryID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// listOptions reads limit, offset and search. Out of range values fall back
// to the defaults.
func listOptions(r *http.Request) database.ListOptions {
	q := r.URL.Query()
	opts := database.ListOptions{Limit: defaultLimit, Search: strings.TrimSpace(q.Get("search"))}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		opts.Limit = min(n, maxLimit)
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		opts.Offset = n
	}
	return opts
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// userID returns the authenticated caller. The auth middleware guarantees it
// on protected routes.
func userID(r *http.Request) string {
	return middleware.GetUserID(r.Context())
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	httputil.WriteJSON(w, status, v)
}

// writeError renders err. Repository not-found errors become notFound when
// given; anything without a service error is logged and reported as a 500.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if notFound != "" && database.IsNotFound(err) {
		httputil.WriteServiceError(w, r, errors.NotFound(notFound))
		return
	}
	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Internal("Internal server error", err)
	}
	if se.HTTPStatus >= http.StatusInternalServerError {
		h.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
			"path":   r.URL.Path,
			"method": r.Method,
		}).Error("Request failed")
	}
	httputil.WriteServiceError(w, r, se)
}

