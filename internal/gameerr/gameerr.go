// Package gameerr classifies failures surfaced by the action gateway and
// the realtime channel so callers can decide whether a retry makes sense.
package gameerr

import (
	"fmt"
	"net/http"
)

type Code string

const (
	CodeNetwork     Code = "NETWORK_ERROR"
	CodeTimeout     Code = "CONNECTION_TIMEOUT"
	CodePermission  Code = "PERMISSION_DENIED"
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeNotFound    Code = "NOT_FOUND"
	CodeServer      Code = "INTERNAL_SERVER_ERROR"
	CodeUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeUnknown     Code = "UNKNOWN_ERROR"
)

type Error struct {
	Code    Code
	Message string
	Status  int // HTTP status when the error came from the gateway, else 0
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the caller may reasonably retry the action.
// Validation, permission and not-found failures will fail the same way
// again; transport-level trouble may clear up.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeNetwork, CodeTimeout, CodeUnavailable:
		return true
	default:
		return false
	}
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// FromStatus classifies an unexpected HTTP response status.
func FromStatus(status int, message string) *Error {
	e := &Error{Message: message, Status: status}
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Code = CodeValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Code = CodePermission
	case status == http.StatusNotFound:
		e.Code = CodeNotFound
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway || status == http.StatusGatewayTimeout:
		e.Code = CodeUnavailable
	case status >= 500:
		e.Code = CodeServer
	default:
		e.Code = CodeUnknown
	}
	return e
}

// userMessages maps codes to copy fit for direct display.
var userMessages = map[Code]string{
	CodeNetwork:     "Network connection error. Please check your internet connection.",
	CodeTimeout:     "The server took too long to respond. Please try again.",
	CodePermission:  "You don't have permission to do that in this room.",
	CodeValidation:  "That input was not accepted. Please check it and try again.",
	CodeNotFound:    "Room or player not found. It may have already closed.",
	CodeServer:      "Something went wrong on the server. Please try again later.",
	CodeUnavailable: "The game server is temporarily unavailable.",
	CodeUnknown:     "An unexpected error occurred.",
}

// UserMessage returns a display string for the code.
func UserMessage(code Code) string {
	if m, ok := userMessages[code]; ok {
		return m
	}
	return userMessages[CodeUnknown]
}
