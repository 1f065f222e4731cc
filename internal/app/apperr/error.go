package apperr

import "net/http"

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func NotFound(code, message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Status: http.StatusConflict, Code: code, Message: message}
}

// Invalid reports a single bad field as a 422 VALIDATION_ERROR.
func Invalid(field, problem string) *Error {
	return &Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    "VALIDATION_ERROR",
		Message: "invalid " + field,
		Details: map[string]any{field: problem},
	}
}

// Validation reports every problem in details at once. It returns nil when details is empty.
func Validation(details map[string]any) *Error {
	if len(details) == 0 {
		return nil
	}
	if len(details) == 1 {
		for field, problem := range details {
			return &Error{
				Status:  http.StatusUnprocessableEntity,
				Code:    "VALIDATION_ERROR",
				Message: "invalid " + field,
				Details: map[string]any{field: problem},
			}
		}
	}
	return &Error{
		Status:  http.StatusUnprocessableEntity,
		Code:    "VALIDATION_ERROR",
		Message: "invalid request",
		Details: details,
	}
}

// TransportFailure is used when a single mail send fails.
func TransportFailure(reason string) *Error {
	return &Error{
		Status:  http.StatusBadGateway,
		Code:    "TRANSPORT_FAILURE",
		Message: reason,
	}
}
