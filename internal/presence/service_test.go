package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/fanpresence/internal/event"
)

// runService runs svc in the background until the test ends.
func runService(t *testing.T, svc *Service) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	// Run queues the fan start before the loop comes up.
	waitFor(t, "loop start", svc.loop.Running)

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(time.Second):
			t.Error("Run() did not return")
		}
	})
}

func TestNewService_RequiresLoop(t *testing.T) {
	if _, err := NewService(ServiceConfig{}); err == nil {
		t.Error("NewService() without loop error = nil")
	}
}

func TestService_StatusBeforeRun(t *testing.T) {
	svc, err := NewService(ServiceConfig{Loop: event.NewLoop(1)})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	if _, err := svc.Status(ctx); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Status() error = %v, want ErrNotRunning", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Status() waited on a loop that is not running")
	}
}

func TestService_StartsFansAndReportsStatus(t *testing.T) {
	loop := event.NewLoop(16)
	registry := newFakeRegistry()
	present := newTestFan(t, registry, newFakeSensor("a", true), newFakeSensor("b", false))
	absent := newTestFan(t, registry, newFakeSensor("c", false))

	svc, err := NewService(ServiceConfig{Loop: loop, Fans: []*FanEnclosure{present, absent}})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	runService(t, svc)

	st, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Fans != 2 || st.Present != 1 || st.Pending != 0 || st.Conflicts != 1 || st.Failures != 0 {
		t.Errorf("Status() = %+v, want 2 fans, 1 present, 1 conflicting", st)
	}
	if len(st.Details) != 2 {
		t.Fatalf("Details = %d, want 2", len(st.Details))
	}
	first := st.Details[0]
	if first.Path != testFanPath || first.Name != testFanName || !first.Present || !first.Conflict {
		t.Errorf("Details[0] = %+v", first)
	}
	if first.ActiveSensor != "" || first.LastFailure != "" {
		t.Errorf("Details[0] = %+v, want no active sensor and no failure", first)
	}
	if len(svc.Fans()) != 2 {
		t.Errorf("Fans() = %d, want 2", len(svc.Fans()))
	}
}

func TestService_ResyncRetriesFailedUpdate(t *testing.T) {
	loop := event.NewLoop(16)
	registry := newFakeRegistry()
	registry.ownerErr = errBroker
	fan := newTestFan(t, registry, newFakeSensor("a", true))

	svc, err := NewService(ServiceConfig{Loop: loop, Fans: []*FanEnclosure{fan}})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	runService(t, svc)

	st, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Pending != 1 || st.Failures != 1 {
		t.Fatalf("Status() = %+v, want one pending fan and one failure", st)
	}

	if err := loop.Do(context.Background(), func() { registry.ownerErr = nil }); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !svc.Resync() {
		t.Fatal("Resync() = false on running service")
	}

	st, err = svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Pending != 0 || st.Present != 1 {
		t.Errorf("Status() after resync = %+v, want present and nothing pending", st)
	}
}

func TestService_StatusDetails(t *testing.T) {
	loop := event.NewLoop(16)
	registry := newFakeRegistry()
	registry.notifyErr = errors.New("rejected")

	primary := newFakeSensor("tach", false)
	backup := newFakeSensor("gpio", true)
	policy, err := NewFallback(PolicyConfig{FanPath: testFanPath, Sensors: []PresenceSensor{primary, backup}})
	if err != nil {
		t.Fatalf("NewFallback() error = %v", err)
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

	svc, err := NewService(ServiceConfig{Loop: loop, Fans: []*FanEnclosure{fan}})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	runService(t, svc)
	loop.Post(func() { panic("sensor callback bug") })

	st, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.LoopPanics != 1 {
		t.Errorf("LoopPanics = %d, want 1", st.LoopPanics)
	}
	if len(st.Details) != 1 {
		t.Fatalf("Details = %d, want 1", len(st.Details))
	}
	d := st.Details[0]
	if d.ActiveSensor != "gpio" {
		t.Errorf("ActiveSensor = %q, want the backup after failover", d.ActiveSensor)
	}
	if d.LastFailure != "call_rejected" || !d.Pending || d.Present {
		t.Errorf("Details[0] = %+v, want a pending fan after a rejected call", d)
	}

	if err := loop.Do(context.Background(), func() { registry.notifyErr = nil }); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	svc.Resync()

	st, err = svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if d := st.Details[0]; d.LastFailure != "" || !d.Present || d.Pending {
		t.Errorf("Details[0] after resync = %+v, want present with no failure", d)
	}
}

func TestService_PeriodicResync(t *testing.T) {
	loop := event.NewLoop(16)
	registry := newFakeRegistry()
	registry.notifyErr = errors.New("rejected")
	fan := newTestFan(t, registry, newFakeSensor("a", true))

	svc, err := NewService(ServiceConfig{
		Loop:           loop,
		Fans:           []*FanEnclosure{fan},
		ResyncInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	runService(t, svc)

	if err := loop.Do(context.Background(), func() { registry.notifyErr = nil }); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	waitFor(t, "periodic resync", func() bool {
		st, err := svc.Status(context.Background())
		return err == nil && st.Present == 1
	})
}

func TestService_StopEndsRun(t *testing.T) {
	loop := event.NewLoop(4)
	sensor := newFakeSensor("a", false)
	fan := newTestFan(t, newFakeRegistry(), sensor)

	svc, err := NewService(ServiceConfig{Loop: loop, Fans: []*FanEnclosure{fan}})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(context.Background()) }()

	waitFor(t, "fan start", func() bool {
		var starts int
		err := loop.Do(context.Background(), func() { starts = sensor.starts })
		return err == nil && starts == 1
	})
	svc.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after Stop()")
	}
	if sensor.stops != 1 {
		t.Errorf("sensor stops = %d, want 1", sensor.stops)
	}
	if svc.Resync() {
		t.Error("Resync() = true after Stop()")
	}
}
