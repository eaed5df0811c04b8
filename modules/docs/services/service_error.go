package services

import (
	"fmt"
	"net/http"
)

// Error codes surfaced by the docs module. Each maps to exactly one of the
// error kinds the API contract distinguishes: validation, authorization,
// conflict, not-found, storage.
const (
	CodeInvalidBody   = "DOCS_CR_INVALID_BODY"
	CodeInvalidField  = "DOCS_CR_INVALID_FIELD"
	CodeForbidden     = "DOCS_CR_FORBIDDEN"
	CodeNotFound      = "DOCS_CR_NOT_FOUND"
	CodeCommentGone   = "DOCS_COMMENT_NOT_FOUND"
	CodeStepConflict  = "DOCS_CR_STEP_CONFLICT"
	CodeTerminal      = "DOCS_CR_TERMINAL"
	CodeNotDraft      = "DOCS_CR_NOT_DRAFT"
	CodeStorageFailed = "DOCS_STORAGE_FAILED"
	CodeNoActor       = "DOCS_NO_ACTOR"
	CodeInternal      = "DOCS_INTERNAL"
)

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

func errValidation(message string) *ServiceError {
	return newServiceError(http.StatusBadRequest, CodeInvalidBody, message, nil)
}

func errFieldInvalid(cause error) *ServiceError {
	return newServiceError(http.StatusUnprocessableEntity, CodeInvalidField, cause.Error(), cause)
}

func errForbidden(message string) *ServiceError {
	return newServiceError(http.StatusForbidden, CodeForbidden, message, nil)
}

func errNotFound(cause error) *ServiceError {
	return newServiceError(http.StatusNotFound, CodeNotFound, "change request not found", cause)
}

func errStepConflict(message string, cause error) *ServiceError {
	return newServiceError(http.StatusConflict, CodeStepConflict, message, cause)
}

func errTerminal(status string) *ServiceError {
	return newServiceError(http.StatusConflict, CodeTerminal, fmt.Sprintf("request is %s and accepts no further transitions", status), nil)
}

func errStorage(cause error) *ServiceError {
	return newServiceError(http.StatusBadGateway, CodeStorageFailed, "failed to store proposed file", cause)
}

func errNoActor(cause error) *ServiceError {
	return newServiceError(http.StatusUnauthorized, CodeNoActor, "caller identity is missing", cause)
}
