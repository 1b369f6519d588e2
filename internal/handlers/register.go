package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/api/middleware"
)

// RegisterRequest optionally overrides the profile carried by the token.
type RegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RegisterResponse represents the registration response.
type RegisterResponse struct {
	ID         string `json:"uid"`
	Created    bool   `json:"created"`
	ProfileURL string `json:"profile_url"`
}

// Register records the caller in the directory on first sign-in. It is
// idempotent: an existing profile is returned untouched.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		h.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user := principal.Identity
	user.Provider = principal.Provider
	if name := sanitizeName(req.Name); name != "" {
		user.DisplayName = name
	}
	user.DisplayName = sanitizeName(user.DisplayName)
	if req.Email != "" {
		user.Email = req.Email
	}
	if !isValidEmail(user.Email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}

	created, err := h.dir.EnsureUser(r.Context(), &user)
	if err != nil {
		h.Fail(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.logger.Info().Str("user_id", user.ID).Str("provider", user.Provider).Msg("directory entry created")
	}
	h.JSON(w, status, RegisterResponse{
		ID:         user.ID,
		Created:    created,
		ProfileURL: fmt.Sprintf("/users/%s", user.ID),
	})
}
