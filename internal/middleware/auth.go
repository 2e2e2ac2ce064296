package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/permale/atelier/internal/auth"
)

// RequireAuth rejects requests without a valid session cookie. The public
// surface (intake form, presentation pages, webhook) is mounted outside this
// middleware.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(auth.CookieName)
		if err != nil || !auth.ValidToken(cookie.Value, time.Now()) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "authentication required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
