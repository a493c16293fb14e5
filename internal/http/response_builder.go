// Package http exposes the card, purchase, invoice and category operations
// as a JSON API.
//
// This file holds the response side: a small builder for JSON replies and
// the mapping from domain errors to status codes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"cardbill/internal/core"
	"cardbill/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body with status 204 writes no payload.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil && b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// badRequestError marks malformed input: bad JSON, unparseable path or query values.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &badRequestError{msg: msg}
}

// ErrorResponse creates a standard JSON error reply.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorResponse{Error: message})
}

// statusFor maps an error to its HTTP status and client-facing body.
func statusFor(err error) (int, errorResponse) {
	var bre *badRequestError
	var ve *core.ValidationError
	switch {
	case errors.As(err, &bre):
		return http.StatusBadRequest, errorResponse{Error: bre.msg}
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, errorResponse{Error: ve.Err.Error(), Field: ve.Field}
	case errors.Is(err, core.ErrCardNotFound):
		return http.StatusNotFound, errorResponse{Error: core.ErrCardNotFound.Error()}
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: core.ErrNotFound.Error()}
	case errors.Is(err, core.ErrCategoryExists):
		return http.StatusConflict, errorResponse{Error: core.ErrCategoryExists.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
	}
}

// writeError replies with the mapped status; server errors are logged with the request logger.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, operation, log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()))
	}
	NewJSONResponse().Status(status).Body(body).Write(w)
}
