package presence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/fanpresence/internal/inventory"
)

// fakeSensor is a sensor whose reading the test sets directly.
type fakeSensor struct {
	owner
	name      string
	present   bool
	startErr  error
	starts    int
	stops     int
	fails     int
	conflicts []string
}

func newFakeSensor(name string, present bool) *fakeSensor {
	return &fakeSensor{name: name, present: present}
}

func (s *fakeSensor) Start() (bool, error) {
	s.starts++
	if s.startErr != nil {
		return false, s.startErr
	}
	return s.present, nil
}

func (s *fakeSensor) Stop()                      { s.stops++ }
func (s *fakeSensor) Present() bool              { return s.present }
func (s *fakeSensor) Fail()                      { s.fails++ }
func (s *fakeSensor) LogConflict(fanPath string) { s.conflicts = append(s.conflicts, fanPath) }
func (s *fakeSensor) Name() string               { return s.name }

// set changes the reading and notifies the owning policy.
func (s *fakeSensor) set(present bool) {
	s.present = present
	s.notify(present, s)
}

// fakeRegistry plays both the object mapper and the inventory manager.
type fakeRegistry struct {
	owner      string
	ownerErr   error
	notifyErr  error
	lookups    int
	notified   []inventory.ObjectMap
	services   []string
	blockOwner bool

	// onNotify runs inside Notify before it returns.
	onNotify func()
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{owner: "xyz.openbmc_project.Inventory.Manager"}
}

func (r *fakeRegistry) Owner(ctx context.Context, path, iface string) (string, error) {
	r.lookups++
	if r.blockOwner {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if r.ownerErr != nil {
		return "", r.ownerErr
	}
	return r.owner, nil
}

func (r *fakeRegistry) Notify(_ context.Context, service string, objects inventory.ObjectMap) error {
	if r.notifyErr != nil {
		return r.notifyErr
	}
	r.services = append(r.services, service)
	r.notified = append(r.notified, objects)
	if r.onNotify != nil {
		r.onNotify()
	}
	return nil
}

func (r *fakeRegistry) Path() string      { return "/xyz/openbmc_project/inventory" }
func (r *fakeRegistry) Interface() string { return "xyz.openbmc_project.Inventory.Manager" }

// lastPresent returns the Present property of the last notification.
func (r *fakeRegistry) lastPresent(t *testing.T, path string) bool {
	t.Helper()
	if len(r.notified) == 0 {
		t.Fatal("no notification sent")
	}
	props := r.notified[len(r.notified)-1][path][testItemInterface]
	present, ok := props[inventory.PropertyPresent].(bool)
	if !ok {
		t.Fatalf("notification has no Present for %s: %v", path, r.notified[len(r.notified)-1])
	}
	return present
}

// fakeRecorder records transitions, optionally failing.
type fakeRecorder struct {
	states []State
	err    error
}

func (r *fakeRecorder) RecordTransition(_ context.Context, _, _ string, state State) error {
	if r.err != nil {
		return r.err
	}
	r.states = append(r.states, state)
	return nil
}

// recordingTelemetry counts each kind of telemetry write.
type recordingTelemetry struct {
	mu        sync.Mutex
	presence  []bool
	conflicts []string
	failures  []string
	updates   []string
}

func (r *recordingTelemetry) WriteFanPresence(_, _ string, present bool) {
	r.mu.Lock()
	r.presence = append(r.presence, present)
	r.mu.Unlock()
}

func (r *recordingTelemetry) WriteSensorConflict(_, sensor string, _, _ bool) {
	r.mu.Lock()
	r.conflicts = append(r.conflicts, sensor)
	r.mu.Unlock()
}

func (r *recordingTelemetry) WriteSensorFailure(_, sensor, reason string) {
	r.mu.Lock()
	r.failures = append(r.failures, sensor+":"+reason)
	r.mu.Unlock()
}

func (r *recordingTelemetry) WriteUpdateFailure(_, kind string, _ error) {
	r.mu.Lock()
	r.updates = append(r.updates, kind)
	r.mu.Unlock()
}

// recordingListener captures StateChanged calls.
type recordingListener struct {
	mu      sync.Mutex
	changes []bool
}

func (l *recordingListener) StateChanged(present bool, _ PresenceSensor) {
	l.mu.Lock()
	l.changes = append(l.changes, present)
	l.mu.Unlock()
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.changes)
}

const (
	testFanPath       = "/system/chassis/motherboard/fan0"
	testFanName       = "Fan 0"
	testItemInterface = "xyz.openbmc_project.Inventory.Item"
)

var errBroker = errors.New("broker unreachable")

// newTestFan builds an AnyOf fan over sensors backed by registry.
func newTestFan(t *testing.T, registry *fakeRegistry, sensors ...PresenceSensor) *FanEnclosure {
	t.Helper()
	policy, err := NewAnyOf(PolicyConfig{FanPath: testFanPath, Sensors: sensors})
	if err != nil {
		t.Fatalf("NewAnyOf() error = %v", err)
	}
	fan, err := NewFanEnclosure(FanEnclosureConfig{
		Name:          testFanName,
		Path:          testFanPath,
		Policy:        policy,
		Locator:       registry,
		Notifier:      registry,
		ItemInterface: testItemInterface,
	})
	if err != nil {
		t.Fatalf("NewFanEnclosure() error = %v", err)
	}
	return fan
}
