package leads

import "errors"

var (
	// ErrInvalidName is returned when the patient name is empty
	ErrInvalidName = errors.New("name is required")

	// ErrMissingUserID is returned when the sender id is empty
	ErrMissingUserID = errors.New("user id is required")

	// ErrMissingSlot is returned when period or slot is empty
	ErrMissingSlot = errors.New("period and slot are required")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")
)
