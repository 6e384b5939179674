package api

import (
	"net/http"
)

type Authentication interface {
	ValidateDIDToken(w http.ResponseWriter, r *http.Request)
	ValidateJWTToken(w http.ResponseWriter, r *http.Request)
	CurrentUser(w http.ResponseWriter, r *http.Request)
	BearerAuth(next http.Handler) http.Handler
}

// SetupRoutes registers the Magic endpoints on mux and returns it wrapped in
// the bearer token middleware.
func SetupRoutes(mux *http.ServeMux, a Authentication) http.Handler {
	mux.HandleFunc("POST /magic/validate/did", a.ValidateDIDToken)
	mux.HandleFunc("POST /magic/validate/jwt", a.ValidateJWTToken)
	mux.HandleFunc("GET /api/me", a.CurrentUser)
	return a.BearerAuth(mux)
}
