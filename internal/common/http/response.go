// Package http provides standardized HTTP utilities for the tab service
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/baely/tab/internal/common/errors"
)

// JSON writes a JSON response
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("Failed to encode response", "error", err)
		}
	}
}

// Text writes a plain text response
func Text(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// Ack writes the plain "ACK" success body
func Ack(w http.ResponseWriter) {
	Text(w, http.StatusOK, "ACK")
}

// Error writes the error message as a plain text response
func Error(w http.ResponseWriter, err error, statusCode int) {
	Text(w, statusCode, err.Error())
}

// StatusCode determines the appropriate status code based on error type
func StatusCode(err error) int {
	switch {
	case errors.Is(err, errors.ErrInternal):
		return http.StatusInternalServerError
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errors.ErrAlreadyExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// HandleError writes err with the status code matching its category.
// Internal errors are not echoed to the client.
func HandleError(w http.ResponseWriter, err error) {
	statusCode := StatusCode(err)
	if statusCode == http.StatusInternalServerError {
		Error(w, errors.ErrInternal, statusCode)
		return
	}
	Error(w, err, statusCode)
}

// NewRouter creates a new Chi router with standard middleware
func NewRouter() *chi.Mux {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	return r
}
