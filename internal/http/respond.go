package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dotanscherzer/projects-Dasboard/internal/provider"
	"github.com/dotanscherzer/projects-Dasboard/internal/repository"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/auth"
	"github.com/dotanscherzer/projects-Dasboard/internal/service/automation"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, repository.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, automation.ErrMissingSignature),
		errors.Is(err, automation.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, provider.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case provider.StatusCode(err) != 0:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Unexpected errors are logged and
// hidden from the caller.
func (r *Router) fail(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		r.logger.Error("request failed", "path", req.URL.Path, "error", err)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}
