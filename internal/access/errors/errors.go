package errors

import "errors"

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	ErrPatientNotFound = errors.New("patient not found")

	ErrTerminalNotFound = errors.New("terminal not found")

	ErrIntegrationNotFound = errors.New("integration token not recognized")

	ErrInvalidID = errors.New("invalid document ID format")

	ErrDuplicateToken = errors.New("qr token already exists")

	ErrDuplicateTerminal = errors.New("terminal with this IP or MAC already registered")

	ErrTokenGeneration = errors.New("could not generate a unique qr token")
)
