package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/api/middleware"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/directory"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/models"
)

// UserResponse represents a directory profile.
type UserResponse struct {
	ID          string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"photoURL,omitempty"`
	JoinedAt    string `json:"joinedAt"`
}

// UserSearchResponse represents the result of a directory prefix search.
type UserSearchResponse struct {
	Prefix  string                  `json:"prefix"`
	Results []models.DirectoryEntry `json:"results"`
	Total   int                     `json:"total"`
}

// GetUser handles profile lookup.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.Error(w, http.StatusBadRequest, "user id is required")
		return
	}

	user, err := h.dir.GetUser(r.Context(), id)
	if err != nil {
		h.Fail(w, err)
		return
	}

	h.JSON(w, http.StatusOK, UserResponse{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		AvatarURL:   user.AvatarURL,
		JoinedAt:    user.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// SearchUsers handles case-sensitive display name prefix search. The
// caller never appears in their own results.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if len(prefix) > 100 {
		h.Error(w, http.StatusBadRequest, "prefix too long (max 100 characters)")
		return
	}

	limit := h.opts.SearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}

	var self string
	if p := middleware.GetPrincipalFromContext(r.Context()); p != nil {
		self = p.Identity.ID
	}

	results, err := directory.Query(r.Context(), h.dir, prefix, self, limit)
	if err != nil {
		h.Fail(w, err)
		return
	}

	h.JSON(w, http.StatusOK, UserSearchResponse{
		Prefix:  prefix,
		Results: results,
		Total:   len(results),
	})
}
