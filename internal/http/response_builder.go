// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing JSON responses
// and the mapping from domain errors to status codes and error bodies.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"orcamento/internal/core"
	"orcamento/internal/log"
)

// Error codes carried in error bodies
const (
	CodeBadRequest       = "bad_request"
	CodeValidation       = "validation_error"
	CodeNotFound         = "not_found"
	CodeForbidden        = "forbidden"
	CodeUnauthorized     = "unauthorized"
	CodeRateLimited      = "rate_limited"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeInternal         = "internal_error"
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

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
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
		_, _ = w.Write([]byte(`{"error":{"code":"internal_error","message":"failed to encode response"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, message, field string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: ErrorDetail{Code: code, Message: message, Field: field}})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeBadRequest, message, "")
}

// UnauthorizedError creates a 401 Unauthorized error response.
func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, CodeUnauthorized, message, "")
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message, "")
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", "")
}

// InternalServerError creates a 500 response with a generic message.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, "internal server error", "")
}

// badRequest marks malformed requests that never reached domain validation.
type badRequest struct {
	msg string
	err error
}

func (e *badRequest) Error() string { return e.msg }
func (e *badRequest) Unwrap() error { return e.err }

// errorFor maps an error to its response. Unknown errors become a 500 with a
// generic message.
func errorFor(err error) *JSONResponseBuilder {
	var (
		br *badRequest
		ve *core.ValidationError
		nf *core.NotFoundError
		ae *core.AuthorizationError
	)
	switch {
	case errors.As(err, &br):
		return BadRequestError(br.msg)
	case errors.As(err, &ve):
		return ErrorResponse(http.StatusUnprocessableEntity, CodeValidation, ve.Message, ve.Field)
	case errors.As(err, &nf):
		return ErrorResponse(http.StatusNotFound, CodeNotFound, nf.Error(), "")
	case errors.As(err, &ae):
		return ErrorResponse(http.StatusForbidden, CodeForbidden, "access to "+ae.Resource+" "+ae.ID+" is not allowed", "")
	default:
		return InternalServerError()
	}
}

// writeError logs err and writes the mapped response. Server errors are
// reported to Sentry.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorFor(err)
	ctx := r.Context()
	logger := log.FromContext(ctx)

	if resp.statusCode >= http.StatusInternalServerError {
		errorType := log.ErrorTypeInternal
		var asm *core.AssemblyError
		if errors.As(err, &asm) {
			errorType = log.ErrorTypeAssembly
		}
		logger.ErrorContext(ctx, "Request failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, errorType,
			log.FieldPath, r.URL.Path)

		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.CaptureException(err)
		} else {
			sentry.CaptureException(err)
		}
	} else {
		logger.DebugContext(ctx, "Request rejected", log.FieldError, err.Error(), log.FieldStatusCode, resp.statusCode)
	}
	resp.Write(w)
}
