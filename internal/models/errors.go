package models

import (
	"errors"
	"net/http"
)

var ErrNotFound = errors.New("requested resource not found")
var ErrForbidden = errors.New("user does not have permission to access this resource")
var ErrConflict = errors.New("resource conflict, item already exists")
var ErrValidation = errors.New("invalid input")

// Authorization failures. ErrWrongRole and ErrNotOwner both match ErrForbidden.
var ErrUnauthenticated = errors.New("authentication required")
var ErrWrongRole = &kindError{msg: "role not permitted for this operation", parent: ErrForbidden}
var ErrNotOwner = &kindError{msg: "actor does not own this resource", parent: ErrForbidden}

// ErrInvalidState is returned when an operation is not legal from the
// resource's current status. The stored status is left unchanged.
var ErrInvalidState = errors.New("operation not allowed in current state")

// ErrNotOnboarded means the authenticated user has no Partner record.
var ErrNotOnboarded = &kindError{msg: "partner profile not found for user", parent: ErrForbidden}

// ErrInconsistentState is reported when history records disagree with the
// canonical order status.
var ErrInconsistentState = errors.New("order history disagrees with order status")

var ErrPaymentFailed = errors.New("payment could not be processed")

// kindError is a sentinel that also matches a broader parent sentinel.
type kindError struct {
	msg    string
	parent error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.parent }

// HTTPStatus maps a service error onto the response status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrInconsistentState), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrPaymentFailed):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
