package ui

import (
	"net/http"

	"github.com/me/folio/internal/auth"
)

// RequireIdentity redirects to the login page when the request carries no
// identity. The gate already enforces this for admin paths; this check
// keeps the admin pages closed if they are ever mounted outside it.
func (ui *UI) RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.IdentityFromContext(r.Context()) == nil {
			http.Redirect(w, r, ui.policy.LoginPath(), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
