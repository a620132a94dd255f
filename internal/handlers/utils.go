package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/apnisec/apiserver/internal/apperr"
	"github.com/apnisec/apiserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

// devMode controls whether unexpected error detail is surfaced to
// clients. Off in production.
var devMode bool

// SetDevMode toggles error detail in 500 responses.
func SetDevMode(enabled bool) {
	devMode = enabled
}

// AuthUser is the identity extracted from a verified bearer token.
type AuthUser struct {
	ID    int
	Email string
}

func userFromContext(ctx context.Context) (AuthUser, error) {
	user, ok := ctx.Value(contextUserKey).(AuthUser)
	if !ok || user.ID < 1 {
		return AuthUser{}, errors.New("missing authenticated user")
	}
	return user, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, types.APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.APIResponse{
		Success: false,
		Error:   message,
	})
}

// writeServiceError translates a service fault into the envelope.
// Handlers never branch on error internals; everything funnels
// through here.
func writeServiceError(w http.ResponseWriter, err error) {
	if apperr.IsFault(err) {
		writeError(w, apperr.Status(err), err.Error())
		return
	}

	log.Printf("handlers: unexpected error: %v", err)
	message := "Internal server error"
	if devMode {
		message = err.Error()
	}
	writeError(w, http.StatusInternalServerError, message)
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
