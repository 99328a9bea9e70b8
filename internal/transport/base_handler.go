package transport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	appErrors "github.com/frahmantamala/admin-console/internal"
	"github.com/frahmantamala/admin-console/pkg/logger"
)

const maxBodyBytes = 1 << 20

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes {"error": message}.
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	if status >= http.StatusInternalServerError {
		h.Logger.Error("http error", "status", status, "message", message)
	} else {
		h.Logger.Debug("http error", "status", status, "message", message)
	}
	h.WriteJSON(w, status, appErrors.Response{Error: message})
}

// HandleServiceError maps err to a status and error body. Errors that are not
// AppErrors become a generic 500 so internals never leak to the client.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	log := logger.From(r.Context())

	appErr, ok := appErrors.IsAppError(err)
	if !ok {
		log.Error(op+": unexpected error", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "Internal server error.")
		return
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Error(op+": request failed", "code", appErr.Code, "error", err)
	} else {
		log.Warn(op+": request rejected", "code", appErr.Code, "error", err)
	}
	status, body := appErr.ToHTTPResponse()
	h.WriteJSON(w, status, body)
}

// DecodeJSON reads a JSON request body into dst.
func (h *BaseHandler) DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return appErrors.NewValidationError("Request body is required.", appErrors.ErrCodeValidationFailed)
		}
		return appErrors.NewValidationError("Invalid request body.", appErrors.ErrCodeValidationFailed).WithCause(err)
	}
	return nil
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}

	return strings.TrimSpace(authHeader[7:])
}

// ExtractToken prefers the Authorization header and falls back to the named cookie.
func (h *BaseHandler) ExtractToken(r *http.Request, cookieName string) string {
	if token := h.ExtractTokenFromHeader(r); token != "" {
		return token
	}
	if cookieName == "" {
		return ""
	}
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
