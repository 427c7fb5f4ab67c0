package leads

import "errors"

var (
	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrMissingTenant is returned when the tenant id is empty
	ErrMissingTenant = errors.New("tenant id is required")

	// ErrMissingPhone is returned when the phone number is empty
	ErrMissingPhone = errors.New("phone is required")
)
