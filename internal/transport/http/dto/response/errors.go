package response

import (
	"errors"
	"fmt"
)

// Application codes the backend uses.
const (
	CodeBadRequest          = 1001
	CodeNotFound            = 1002
	CodeConflict            = 1003
	CodeUnauthorized        = 2001
	CodeForbidden           = 2002
	CodeNotInitialized      = 3001
	CodeAlreadyInitialized  = 3002
	CodePublicGalleryClosed = 3003
	CodeInternal            = 5001
)

type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// Is lets errors.Is match on code alone.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrNotFound            = &APIError{Code: CodeNotFound}
	ErrConflict            = &APIError{Code: CodeConflict}
	ErrNotInitialized      = &APIError{Code: CodeNotInitialized}
	ErrAlreadyInitialized  = &APIError{Code: CodeAlreadyInitialized}
	ErrPublicGalleryClosed = &APIError{Code: CodePublicGalleryClosed}
)

// Message returns the server supplied text of an application error so it can
// be shown verbatim, or the error text for anything else.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
