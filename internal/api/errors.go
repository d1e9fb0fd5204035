// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/chatdj/internal/log"
	"github.com/ManuGH/chatdj/internal/router"
)

// apiError is the body of every failed request.
type apiError struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the error body with the request id of r.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, apiError{
		Error:     msg,
		Code:      code,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

// statusForCode maps router error codes to HTTP status.
func statusForCode(code string) int {
	switch code {
	case router.CodeInvalid, router.CodeFormat, router.CodeOutOfRange:
		return http.StatusBadRequest
	case router.CodeNotFound:
		return http.StatusNotFound
	case router.CodeRateLimited:
		return http.StatusTooManyRequests
	case router.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
