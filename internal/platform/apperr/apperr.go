// Package apperr defines the error kinds shared by the intake core and the
// HTTP layer. Callers wrap a kind with fmt.Errorf("...: %w", apperr.ErrX)
// and classify with errors.Is.
package apperr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	// ErrNotFound is returned when a patient, staff member, record, facility
	// or session id does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is not allowed in the
	// current lifecycle state of its target.
	ErrInvalidState = errors.New("invalid state")

	// ErrConfiguration marks a malformed decision tree or facility file.
	ErrConfiguration = errors.New("configuration error")

	// ErrPersistence marks a failed write to the persistence collaborator.
	// The in-memory mutation it accompanies has already been applied.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvalidInput marks a request that failed validation.
	ErrInvalidInput = errors.New("invalid input")
)

// HTTPStatus maps an error to the status code handlers should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTP converts err into an echo.HTTPError carrying the mapped status.
func ToHTTP(err error) error {
	if err == nil {
		return nil
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return echo.NewHTTPError(HTTPStatus(err), err.Error())
}
