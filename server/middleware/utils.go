package middlewares

import (
	"net/http"

	"github.com/vidfetch/vidfetch/server/config"
)

func ApplyAuthenticationByConfig(next http.Handler) http.Handler {
	auth := config.Instance().Authentication

	if auth.RequireAuth {
		return Authenticated([]byte(auth.JWTSecret))(next)
	}
	return next
}
