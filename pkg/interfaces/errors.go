package interfaces

import "errors"

// Common interface errors used across components
var (
	ErrMatchNotFound = errors.New("match not found")
)
