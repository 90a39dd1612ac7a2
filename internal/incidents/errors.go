package incidents

import "errors"

// Validation errors.
var (
	ErrTitleRequired    = errors.New("title cannot be empty")
	ErrServicesRequired = errors.New("at least one affected service is required")
	ErrInvalidImpact    = errors.New("invalid impact")
	ErrInvalidStatus    = errors.New("invalid incident status")
)

// Repository errors.
var (
	ErrIncidentNotFound = errors.New("incident not found")
	ErrAlreadyResolved  = errors.New("incident already resolved")
)
