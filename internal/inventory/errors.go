package inventory

import "errors"

var (
	// ErrResolutionFailed is returned when the owning service of an object
	// cannot be determined: the mapper is unreachable, times out, or
	// answers with an error.
	ErrResolutionFailed = errors.New("inventory: service resolution failed")

	// ErrNoOwner is returned, alongside ErrResolutionFailed, when the mapper
	// answers but no service owns the requested path and interface.
	ErrNoOwner = errors.New("inventory: no owner registered")

	// ErrCallRejected is returned when a Notify call does not succeed.
	ErrCallRejected = errors.New("inventory: notify call rejected")
)
