package user

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/vidfetch/vidfetch/server/config"
	middlewares "github.com/vidfetch/vidfetch/server/middleware"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HashPassword returns the bcrypt hash stored in authentication.password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func checkCredentials(auth config.AuthConfig, req LoginRequest) bool {
	userOK := subtle.ConstantTimeCompare([]byte(auth.Username), []byte(req.Username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(auth.PasswordHash), []byte(req.Password)) == nil
	return userOK && passOK
}

func Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	auth := config.Instance().Authentication
	if !auth.RequireAuth {
		http.Error(w, "authentication is disabled", http.StatusNotFound)
		return
	}
	if !checkCredentials(auth, req) {
		http.Error(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	now := time.Now()
	token, err := middlewares.IssueToken([]byte(auth.JWTSecret), req.Username, now)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	expiresAt := now.Add(middlewares.TokenTTL)
	http.SetCookie(w, &http.Cookie{
		Name:     middlewares.TokenCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  expiresAt,
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(loginResponse{Token: token, ExpiresAt: expiresAt}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middlewares.TokenCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}
