package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every specific error below wraps exactly one of them, so callers can branch
// with errors.Is on either the specific error or its kind.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failure")
	ErrProcessing  = errors.New("processing failure")
)

var (
	ErrUnknownCategory      = fmt.Errorf("%w: unknown vehicle category", ErrValidation)
	ErrMissingInput         = fmt.Errorf("%w: missing required input", ErrValidation)
	ErrInvalidTimeRange     = fmt.Errorf("%w: exit time is before entry time", ErrValidation)
	ErrEmptyVehicleID       = fmt.Errorf("%w: vehicle registration number is empty", ErrValidation)
	ErrInvalidPrice         = fmt.Errorf("%w: price cannot be negative", ErrValidation)
	ErrVehicleAlreadyParked = fmt.Errorf("%w: vehicle already has an open ticket", ErrValidation)

	ErrNoSpotAvailable = fmt.Errorf("%w: no spot available", ErrNotFound)
	ErrSpotTaken       = fmt.Errorf("%w: spot was claimed by another vehicle", ErrNoSpotAvailable)
	ErrNoActiveTicket  = fmt.Errorf("%w: no active ticket for vehicle", ErrNotFound)
	ErrTicketNotFound  = fmt.Errorf("%w: ticket", ErrNotFound)
	ErrSpotNotFound    = fmt.Errorf("%w: spot", ErrNotFound)
)
