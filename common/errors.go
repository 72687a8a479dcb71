package common

import "errors"

// Error taxonomy shared by every compositor package. Callers match with errors.Is.
var (
	// ErrCapabilityUnsupported is returned when no GPU adapter or device can be obtained.
	// It is fatal and not retried; the session owner is expected to pick another renderer.
	ErrCapabilityUnsupported = errors.New("alphavid: gpu capability unsupported")

	// ErrConfiguration is returned for malformed descriptors and configs, such as
	// non-positive reference sizes or a uniform destination of the wrong length.
	ErrConfiguration = errors.New("alphavid: invalid configuration")

	// ErrResourceExhausted is returned when a request would exceed a device limit.
	ErrResourceExhausted = errors.New("alphavid: device resource limit exceeded")

	// ErrInvalidState is returned when an operation is called in the wrong lifecycle state.
	ErrInvalidState = errors.New("alphavid: invalid lifecycle state")
)
