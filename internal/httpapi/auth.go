package httpapi

import (
	"net/http"

	"github.com/tradeflow-ai/tradeflow/internal/auth"
)

func (h *handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.auth.SignUp(r.Context(), auth.SignUpInput{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	auth.SetSessionCookie(w, h.cookieName, res.Token, res.Session.ExpiresAt, h.secureCookies)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		RememberMe *bool  `json:"rememberMe"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.auth.SignIn(r.Context(), auth.SignInInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	auth.SetSessionCookie(w, h.cookieName, res.Token, res.Session.ExpiresAt, h.secureCookies)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *handler) signOut(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r, h.cookieName)
	if err := h.auth.SignOut(r.Context(), token); err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Warn("Sign out failed")
	}
	auth.ClearSessionCookie(w, h.cookieName, h.secureCookies)
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.auth.GetSession(r.Context(), auth.TokenFromRequest(r, h.cookieName))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if view == nil {
		h.writeJSON(w, http.StatusOK, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// decode reads a JSON body into v and reports a 400 on failure.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := h.decodeBody(r, v); err != nil {
		h.writeError(w, r, err, "")
		return false
	}
	return true
}
