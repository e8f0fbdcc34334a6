// Package errors defines the service error taxonomy and its HTTP mapping.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code identifies an error class across the service boundary.
type Code string

const (
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeTokenExpired      Code = "TOKEN_EXPIRED"
	CodeTokenMalformed    Code = "TOKEN_MALFORMED"
	CodePrincipalNotFound Code = "PRINCIPAL_NOT_FOUND"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeInternal          Code = "INTERNAL_ERROR"
)

// ServiceError is the uniform error carried from services to the transport
// layer. HTTPStatus is the status the transport should respond with.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches a key/value pair for diagnostics. Returns the receiver
// so calls can be chained.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// GetServiceError extracts a ServiceError from an error chain, or nil.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if stderrors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// Unauthorized signals a missing or unusable credential.
func Unauthorized(message string) *ServiceError {
	return &ServiceError{Code: CodeUnauthorized, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// TokenExpired signals a token whose expiry instant has passed.
func TokenExpired() *ServiceError {
	return &ServiceError{Code: CodeTokenExpired, Message: "token expired", HTTPStatus: http.StatusUnauthorized}
}

// TokenMalformed signals a token that failed structural or signature checks.
func TokenMalformed(err error) *ServiceError {
	return &ServiceError{Code: CodeTokenMalformed, Message: "invalid token", HTTPStatus: http.StatusUnauthorized, Err: err}
}

// PrincipalNotFound signals a verified token whose subject no longer exists.
func PrincipalNotFound(handle string) *ServiceError {
	e := &ServiceError{Code: CodePrincipalNotFound, Message: "principal not found", HTTPStatus: http.StatusUnauthorized}
	return e.WithDetails("handle", handle)
}

// NotFound signals a missing resource. Ownership mismatches use the same
// error so callers cannot distinguish foreign records from absent ones.
func NotFound(message string) *ServiceError {
	return &ServiceError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// Conflict signals a uniqueness violation.
func Conflict(message string) *ServiceError {
	return &ServiceError{Code: CodeConflict, Message: message, HTTPStatus: http.StatusConflict}
}

// Validation signals a rejected payload.
func Validation(message string) *ServiceError {
	return &ServiceError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusUnprocessableEntity}
}

// Internal signals an unexpected failure. The request fails but the process
// keeps serving.
func Internal(message string, err error) *ServiceError {
	return &ServiceError{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, Err: err}
}
