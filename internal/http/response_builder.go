// Package http provides the JSON API server and its handlers.
//
// This file implements the Builder Pattern for constructing JSON responses
// and the mapping from domain errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"mahal/internal/core"
	"mahal/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *JSONResponseBuilder) JSON(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// ErrorBody is the JSON error payload.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).JSON(ErrorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// ErrorFromDomain maps a service error to its response. The second result
// is the error category for logging.
func ErrorFromDomain(err error) (*JSONResponseBuilder, string) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		return NewJSONResponse().Status(http.StatusUnprocessableEntity).
			JSON(ErrorBody{Error: ve.Message, Field: ve.Field}), log.ErrorTypeValidation
	case errors.Is(err, core.ErrInvalidAmount):
		return NewJSONResponse().Status(http.StatusUnprocessableEntity).
			JSON(ErrorBody{Error: "amount must be greater than zero", Field: "amount"}), log.ErrorTypeValidation
	case errors.Is(err, core.ErrDuplicateIdentifier):
		return NewJSONResponse().Status(http.StatusConflict).
			JSON(ErrorBody{Error: core.ErrDuplicateIdentifier.Error(), Field: "registrationCode"}), log.ErrorTypeConflict
	case errors.Is(err, core.ErrDuplicateEmail):
		return NewJSONResponse().Status(http.StatusConflict).
			JSON(ErrorBody{Error: core.ErrDuplicateEmail.Error(), Field: "email"}), log.ErrorTypeConflict
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("not found"), log.ErrorTypeNotFound
	case errors.Is(err, core.ErrAllocationExhausted):
		return ErrorResponse(http.StatusServiceUnavailable, "no registration code available, retry").
			Header("Retry-After", "1"), log.ErrorTypeExhausted
	default:
		return InternalServerError("internal error"), log.ErrorTypeInternal
	}
}

// writeError logs err at a level matching its category and writes the
// mapped response.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp, errorType := ErrorFromDomain(err)
	logger := log.FromContext(r.Context())
	fields := log.NewFields().WithOperation(op).WithErrorType(errorType).WithError(err)
	if errorType == log.ErrorTypeInternal {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, fields)
	} else {
		logger.WarnContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}
	resp.Write(w)
}
