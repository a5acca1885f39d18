package tracker

import (
	"errors"

	"orthotracker/internal/ports"
)

var (
	// ErrInvalidInput wraps every input validation failure.
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbidden          = errors.New("forbidden")

	ErrUserNotFound      = ports.ErrUserNotFound
	ErrHospitalExists    = ports.ErrHospitalExists
	ErrHospitalNotFound  = ports.ErrHospitalNotFound
	ErrProcedureNotFound = ports.ErrProcedureNotFound
	ErrRuleNotFound      = ports.ErrRuleNotFound
	ErrInvalidToken      = ports.ErrInvalidToken
)
