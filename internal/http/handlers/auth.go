package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/permale/atelier/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks the operator credentials and sets the session cookie.
func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if !a.Verifier.Verify(strings.TrimSpace(req.Email), req.Password) {
		a.Logger.Warn().Str("email", req.Email).Msg("auth: login rejected")
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
		return
	}

	token := auth.NewTokenAt(strings.ToLower(strings.TrimSpace(req.Email)), time.Now())
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.TokenTTL / time.Second),
		HttpOnly: true,
		Secure:   a.Production,
		SameSite: http.SameSiteStrictMode,
	})
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Logout clears the session cookie.
func (a *App) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.Production,
		SameSite: http.SameSiteStrictMode,
	})
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
