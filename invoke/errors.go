package invoke

import "errors"

var (
	// ErrMissingService indicates ClientConfig.Service is empty.
	ErrMissingService = errors.New("invoke: service name is required")

	// ErrMissingMethod indicates a call was made without a method name.
	ErrMissingMethod = errors.New("invoke: method name is required")
)
