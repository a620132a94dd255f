package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/apnisec/apiserver/internal/services"
	"github.com/apnisec/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// UserHandler serves the profile routes.
type UserHandler struct {
	userService *services.UserService
}

// UserRouter mounts the profile routes. All of them require auth.
func UserRouter(r chi.Router, userService *services.UserService, requireAuth, rateLimit func(http.Handler) http.Handler) {
	h := &UserHandler{userService: userService}

	r.Use(requireAuth, rateLimit)
	r.Get("/profile", h.GetProfile)
	r.Put("/profile", h.UpdateProfile)
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	authUser, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	profile, err := h.userService.GetProfile(r.Context(), authUser.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, profile, "")
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	authUser, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	var patch types.ProfilePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := h.userService.UpdateProfile(r.Context(), authUser.ID, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, profile, "Profile updated successfully")
}
