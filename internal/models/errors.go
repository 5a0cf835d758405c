package models

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrCapacityExceeded = errors.New("insufficient seats")
	ErrValidation       = errors.New("validation error")

	// ErrVehicleUnavailable is returned when a vehicle cannot back a new ride.
	ErrVehicleUnavailable = errors.New("vehicle unavailable")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrVehicleUnavailable)
}

func IsCapacityExceeded(err error) bool { return errors.Is(err, ErrCapacityExceeded) }

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
