package appointments

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingFields is returned when a required field is blank or no procedure was selected
	ErrMissingFields = errors.New("appointments: all fields are required and a procedure must be selected")

	// ErrUnknownProcedure is returned when the procedure is outside the bookable set
	ErrUnknownProcedure = errors.New("appointments: unknown procedure")

	// ErrInvalidPhone is returned when the phone number fails format validation
	ErrInvalidPhone = errors.New("appointments: invalid phone number")

	// ErrNotFound is returned when no appointment has the requested id
	ErrNotFound = errors.New("appointments: appointment not found")

	// ErrEmptySearchTerm is returned when a search term is blank
	ErrEmptySearchTerm = errors.New("appointments: search term is required")

	// ErrNothingToExport is returned when exporting an empty collection
	ErrNothingToExport = errors.New("appointments: no appointments to export")

	// ErrDuplicateID is returned when a replacement collection reuses an id
	ErrDuplicateID = errors.New("appointments: duplicate appointment id")
)

// ValidationError reports the first field that rejected an AddRequest.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v (%s)", e.Err, e.Field)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError reports a delete against an id the store does not hold.
type NotFoundError struct {
	ID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("appointments: appointment %d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// IsValidationError reports whether err came from field validation.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
