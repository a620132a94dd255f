package handlers

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"unicode"

	"github.com/apnisec/apiserver/internal/services"
	"github.com/apnisec/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// AuthHandler serves registration, login, logout, and current-user
// lookup.
type AuthHandler struct {
	authService *services.AuthService
}

// AuthRouter mounts the auth routes. Public routes are rate limited by
// client IP; authenticated routes run the auth middleware first so the
// limit is keyed per user.
func AuthRouter(r chi.Router, authService *services.AuthService, requireAuth, rateLimit func(http.Handler) http.Handler) {
	h := &AuthHandler{authService: authService}

	r.With(rateLimit).Post("/register", h.Register)
	r.With(rateLimit).Post("/login", h.Login)
	r.With(requireAuth, rateLimit).Post("/logout", h.Logout)
	r.With(requireAuth, rateLimit).Get("/me", h.Me)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authPayload pairs the account with its freshly issued token.
type authPayload struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if message, ok := validateEmail(req.Email); !ok {
		writeError(w, http.StatusBadRequest, message)
		return
	}
	if message, ok := validateNewPassword(req.Password); !ok {
		writeError(w, http.StatusBadRequest, message)
		return
	}

	user, token, err := h.authService.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, authPayload{User: user, Token: token}, "User registered successfully")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if message, ok := validateEmail(req.Email); !ok {
		writeError(w, http.StatusBadRequest, message)
		return
	}
	if strings.TrimSpace(req.Password) == "" {
		writeError(w, http.StatusBadRequest, "Password is required")
		return
	}

	user, token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, authPayload{User: user, Token: token}, "Login successful")
}

// Logout is stateless on the server side; tokens simply expire. The
// endpoint exists so clients have a uniform place to end a session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, nil, "Logout successful")
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	authUser, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	user, err := h.authService.CurrentUser(r.Context(), authUser.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, "")
}

func validateEmail(email string) (string, bool) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "Email is required", false
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "Please provide a valid email address", false
	}
	return "", true
}

// validateNewPassword enforces the registration password policy:
// minimum length, at least one letter, at least one digit.
func validateNewPassword(password string) (string, bool) {
	if password == "" {
		return "Password is required", false
	}
	if len(password) < 6 {
		return "Password must be at least 6 characters long", false
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		return "Password must contain at least one letter", false
	}
	if !hasDigit {
		return "Password must contain at least one number", false
	}
	return "", true
}
