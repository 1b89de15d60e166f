package presence

import (
	"errors"
	"fmt"
)

var (
	// ErrSensorOwned is returned when a sensor is handed to a second policy.
	ErrSensorOwned = errors.New("presence: sensor already owned by a policy")

	// ErrNoSensors is returned when a policy is built without sensors.
	ErrNoSensors = errors.New("presence: policy needs at least one sensor")

	// ErrSensorStart wraps every hardware or subscription acquisition failure
	// returned by a sensor's Start.
	ErrSensorStart = errors.New("presence: sensor start failed")

	// ErrInvalidFan is returned when a FanEnclosure is missing required wiring.
	ErrInvalidFan = errors.New("presence: invalid fan")

	// ErrNotRunning is returned by Service.Status while the loop is not
	// running.
	ErrNotRunning = errors.New("presence: service not running")
)

// UpdateErrorKind classifies why an inventory update attempt was abandoned.
type UpdateErrorKind int

const (
	// ResolutionFailed means the owner of the inventory manager could not be
	// resolved through the object mapper.
	ResolutionFailed UpdateErrorKind = iota + 1

	// CallRejected means the Notify call to the inventory manager failed.
	CallRejected
)

func (k UpdateErrorKind) String() string {
	switch k {
	case ResolutionFailed:
		return "resolution_failed"
	case CallRejected:
		return "call_rejected"
	default:
		return "unknown"
	}
}

// UpdateError describes an abandoned inventory update. The confirmed state
// of the fan is unchanged when one is produced.
type UpdateError struct {
	Kind    UpdateErrorKind
	FanPath string
	Want    State
	Err     error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("presence: updating %s to %s: %s: %v", e.FanPath, e.Want, e.Kind, e.Err)
}

func (e *UpdateError) Unwrap() error {
	return e.Err
}

// failureKind names the class of an abandoned update for logs, telemetry
// and health reports. It is empty for a nil error.
func failureKind(err error) string {
	if err == nil {
		return ""
	}
	var updateErr *UpdateError
	if errors.As(err, &updateErr) {
		return updateErr.Kind.String()
	}
	return UpdateErrorKind(0).String()
}
