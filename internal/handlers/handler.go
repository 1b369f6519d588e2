package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/api/middleware"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/apperr"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Options configures the engine sessions the handlers host.
type Options struct {
	Logger zerolog.Logger

	// Limiter throttles websocket commands per user. Nil disables it.
	Limiter *middleware.RateLimiter

	SearchDebounce time.Duration
	SearchLimit    int
	TrendLimit     int
	AllowedOrigins []string
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	dir    store.Directory
	live   store.LiveStore
	opts   Options
	logger zerolog.Logger
}

// NewHandler creates a new Handler with the given stores.
func NewHandler(dir store.Directory, live store.LiveStore, opts Options) *Handler {
	return &Handler{
		dir:    dir,
		live:   live,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "handlers").Logger(),
	}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// Fail maps an engine error onto a status code and error body.
func (h *Handler) Fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("request failed")
	}
	h.JSON(w, status, map[string]string{"error": errorMessage(err), "kind": errorKind(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrTransientIO):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	if kind := apperr.KindOf(err); kind != "" {
		return kind
	}
	return "internal"
}

// errorMessage hides driver details of transient and unclassified errors.
func errorMessage(err error) string {
	switch errorKind(err) {
	case "transient":
		return "temporarily unavailable, try again"
	case "internal":
		return "internal error"
	default:
		return err.Error()
	}
}

// sanitizeName trims and limits name to 100 bytes, removing control characters.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	// Cut on a rune boundary so the stored name stays valid UTF-8.
	if len(name) > 100 {
		end := 0
		for end < len(name) {
			_, size := utf8.DecodeRuneInString(name[end:])
			if end+size > 100 {
				break
			}
			end += size
		}
		name = name[:end]
	}

	return name
}

// isValidEmail validates email addresses using RFC 5322 pattern.
func isValidEmail(email string) bool {
	if email == "" {
		return true // Empty is valid (optional field)
	}
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
