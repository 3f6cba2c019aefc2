// Package http serves the duo ledger as a JSON API.
//
// This file holds the response builder shared by every handler and the
// mapping from domain errors to status codes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"duoaccount/internal/core"
	"duoaccount/internal/ledger"
	"duoaccount/internal/settings"
	"duoaccount/internal/storage"
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

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response. A nil body writes no content.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func LockedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusLocked, "ledger is locked")
}

func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrEmptyLabel,
	core.ErrLabelTooLong,
	core.ErrUnknownParticipant,
	core.ErrUnknownCategory,
	settings.ErrInvalidPIN,
	settings.ErrInvalidDuoID,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusFor maps an error to its HTTP status. Not found is checked before
// write failures since the store wraps it.
func statusFor(err error) int {
	switch {
	case isValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidBackup):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNothingToSettle), errors.Is(err, ledger.ErrImportPending),
		errors.Is(err, settings.ErrNoPIN):
		return http.StatusConflict
	case errors.Is(err, settings.ErrWrongPIN):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrWriteFailed):
		return http.StatusBadGateway
	case errors.Is(err, ledger.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// messageFor keeps internal detail out of 5xx responses.
func messageFor(err error, status int) string {
	switch {
	case errors.Is(err, ledger.ErrInvalidBackup):
		return ledger.ErrInvalidBackup.Error()
	case status == http.StatusBadGateway:
		return "failed to save to the shared ledger"
	case status >= 500:
		return http.StatusText(status)
	}
	return err.Error()
}

// FromError builds the error response for err.
func FromError(err error) *JSONResponseBuilder {
	status := statusFor(err)
	return ErrorResponse(status, messageFor(err, status))
}
