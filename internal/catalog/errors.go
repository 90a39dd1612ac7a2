package catalog

import "errors"

// Catalog errors.
var (
	ErrServiceNotFound = errors.New("service not found")
	ErrNameRequired    = errors.New("service name cannot be empty")
	ErrInvalidStatus   = errors.New("invalid service status")
	ErrNoChanges       = errors.New("nothing to update")
)
