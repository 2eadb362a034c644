package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/scene-rotator/internal/rotation"
)

// Error is the body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeUnavailable    = "service_unavailable"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// domainError maps a rotation sentinel to a response. An empty message
// passes the wrapped error text through.
type domainError struct {
	target  error
	status  int
	code    string
	message string
}

var domainErrors = []domainError{
	{rotation.ErrGroupNotFound, http.StatusNotFound, ErrCodeNotFound, "group not found"},
	{rotation.ErrInvalidName, http.StatusBadRequest, ErrCodeBadRequest, "name is required"},
	{rotation.ErrInvalidScene, http.StatusBadRequest, ErrCodeBadRequest, "scene names must not be empty"},
	{rotation.ErrInvalidIndex, http.StatusBadRequest, ErrCodeBadRequest, ""},
	{rotation.ErrInvalidInterval, http.StatusUnprocessableEntity, ErrCodeValidation, "interval_ms must be positive"},
	{rotation.ErrHostUnavailable, http.StatusServiceUnavailable, ErrCodeUnavailable, "OBS is not connected"},
}

// writeDomainError answers with the mapping for err, or a 500 carrying fallback.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	for _, d := range domainErrors {
		if !errors.Is(err, d.target) {
			continue
		}
		msg := d.message
		if msg == "" {
			msg = err.Error()
		}
		writeError(w, d.status, d.code, msg)
		return
	}
	writeInternalError(w, fallback)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized also sets the bearer challenge header.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="scenerotator"`)
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}
