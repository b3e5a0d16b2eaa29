// Package errors classifies service failures into categories that map onto
// HTTP status codes.
package errors

import (
	"errors"
	"net/http"
)

// Category defines error category
type Category int

const (
	// CategoryNoError marks a request that completed without error.
	CategoryNoError Category = iota
	// CategoryDataError covers invalid input: malformed payloads, bad
	// parameters, amounts the ledger refuses.
	CategoryDataError
	// CategoryUnauthorized means the caller presented no valid credentials.
	CategoryUnauthorized
	// CategoryResourceNotFound means the ledger, token or record does not exist.
	CategoryResourceNotFound
	// CategoryDataConflict means the request collides with existing state.
	CategoryDataConflict
	// CategoryDependencyFailure means a remote ledger or chain call failed.
	CategoryDependencyFailure
	// CategoryGeneralError means the service failed in an unexpected way.
	CategoryGeneralError
)

func (c Category) String() string {
	switch c {
	case CategoryNoError:
		return "CategoryNoError"
	case CategoryDataError:
		return "CategoryDataError"
	case CategoryUnauthorized:
		return "CategoryUnauthorized"
	case CategoryResourceNotFound:
		return "CategoryResourceNotFound"
	case CategoryDataConflict:
		return "CategoryDataConflict"
	case CategoryDependencyFailure:
		return "CategoryDependencyFailure"
	default:
		return "CategoryGeneralError"
	}
}

// ServiceError carries a category, a message safe to show to callers and
// the underlying cause for logs.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is reports whether target carries the same message as err.
func (err ServiceError) Is(target error) bool {
	return err.Message == target.Error()
}

// Is checks that err is a ServiceError of category cat.
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Category == cat
}

func newError(cat Category, err error, message, fallback string) error {
	if err == nil {
		err = errors.New(fallback + message)
	}
	return &ServiceError{Category: cat, Message: message, Err: err}
}

// GeneralError hides err behind "Internal Server Error"; err is only logged.
func GeneralError(err error) error {
	if err == nil {
		err = errors.New("internal server error")
	}
	return &ServiceError{
		Category: CategoryGeneralError,
		Message:  "Internal Server Error",
		Err:      err,
	}
}

// BadRequestError returns a CategoryDataError with message shown to the caller.
func BadRequestError(err error, message string) error {
	return newError(CategoryDataError, err, message, "bad request: ")
}

// UnAuthorizedError returns a CategoryUnauthorized error.
func UnAuthorizedError(err error, message string) error {
	return newError(CategoryUnauthorized, err, message, "unauthorized: ")
}

// ResourceNotFoundError returns a CategoryResourceNotFound error.
func ResourceNotFoundError(err error, message string) error {
	return newError(CategoryResourceNotFound, err, message, "not found: ")
}

// ConflictError returns a CategoryDataConflict error.
func ConflictError(err error, message string) error {
	return newError(CategoryDataConflict, err, message, "conflict: ")
}

// DependencyError returns a CategoryDependencyFailure error.
func DependencyError(err error, message string) error {
	return newError(CategoryDependencyFailure, err, message, "dependency failure: ")
}

// StatusCode returns the HTTP status code for the error category
func (err ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryDataError:
		return http.StatusBadRequest
	case CategoryUnauthorized:
		return http.StatusUnauthorized
	case CategoryResourceNotFound:
		return http.StatusNotFound
	case CategoryDataConflict:
		return http.StatusConflict
	case CategoryDependencyFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
