package presence

import "sync"

// PresenceSensor is one source of a fan's presence signal.
//
// All methods except Name are loop-owned. Implementations are always used
// by pointer; that pointer is the identity the sensor reports itself by in
// StateChanged.
type PresenceSensor interface {
	// Start acquires the sensor's resources, subscribes to its events and
	// returns the current reading. A non-nil error wraps ErrSensorStart.
	Start() (bool, error)

	// Stop releases the event subscription. Idempotent, and safe when
	// Start never succeeded.
	Stop()

	// Present returns the cached reading without doing any I/O.
	Present() bool

	// Fail is invoked by a policy that judged this sensor faulty.
	Fail()

	// LogConflict records that this sensor disagrees with the vote for fanPath.
	LogConflict(fanPath string)

	// Name identifies the sensor in logs and telemetry.
	Name() string

	// bind attaches the owning policy. Only one bind ever succeeds.
	bind(listener StateListener) error
}

// StateListener receives a sensor's reading whenever it changes.
type StateListener interface {
	StateChanged(present bool, sensor PresenceSensor)
}

// Poster queues a callback on the event loop. *event.Loop satisfies it.
type Poster interface {
	Post(fn func()) bool
}

// owner pins a sensor to the single policy that bound it.
type owner struct {
	mu       sync.Mutex
	listener StateListener
}

func (o *owner) bind(listener StateListener) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.listener != nil {
		return ErrSensorOwned
	}
	o.listener = listener
	return nil
}

func (o *owner) notify(present bool, sensor PresenceSensor) {
	o.mu.Lock()
	listener := o.listener
	o.mu.Unlock()
	if listener != nil {
		listener.StateChanged(present, sensor)
	}
}
