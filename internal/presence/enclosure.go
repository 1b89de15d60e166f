package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/fanpresence/internal/inventory"
)

// Locator resolves the service currently owning an object path and
// interface. *inventory.Mapper satisfies it.
type Locator interface {
	Owner(ctx context.Context, path, iface string) (string, error)
}

// Notifier delivers an object map to the inventory manager run by service.
// *inventory.Manager satisfies it.
type Notifier interface {
	Notify(ctx context.Context, service string, objects inventory.ObjectMap) error
	Path() string
	Interface() string
}

// FanEnclosureConfig configures one fan.
type FanEnclosureConfig struct {
	// Name is published as the PrettyName property.
	Name string

	// Path is the fan's inventory object path.
	Path string

	Policy   RedundancyPolicy
	Locator  Locator
	Notifier Notifier

	// ItemInterface carries Present and PrettyName in the object map.
	ItemInterface string

	// CallTimeout bounds each remote call. Zero means no bound beyond ctx.
	CallTimeout time.Duration

	// Recorder, when set, receives every confirmed transition.
	Recorder TransitionRecorder

	Logger    Logger
	Telemetry Telemetry
}

// FanEnclosure owns the confirmed presence of one fan and keeps the
// inventory registry in step with its policy's vote. Every method except
// Name and Path is loop-owned.
type FanEnclosure struct {
	cfg       FanEnclosureConfig
	logger    Logger
	telemetry Telemetry

	confirmed State
	lastErr   error
	updates   uint64
	failures  uint64
}

// NewFanEnclosure validates cfg and creates a fan in the NotPresent state.
func NewFanEnclosure(cfg FanEnclosureConfig) (*FanEnclosure, error) {
	switch {
	case cfg.Path == "":
		return nil, fmt.Errorf("%w: path is required", ErrInvalidFan)
	case cfg.Policy == nil:
		return nil, fmt.Errorf("%w: %s has no policy", ErrInvalidFan, cfg.Path)
	case cfg.Locator == nil || cfg.Notifier == nil:
		return nil, fmt.Errorf("%w: %s has no inventory client", ErrInvalidFan, cfg.Path)
	case cfg.ItemInterface == "":
		return nil, fmt.Errorf("%w: %s has no item interface", ErrInvalidFan, cfg.Path)
	}

	return &FanEnclosure{
		cfg:       cfg,
		logger:    loggerOr(cfg.Logger),
		telemetry: telemetryOr(cfg.Telemetry),
		confirmed: NotPresent,
	}, nil
}

// Name returns the fan's pretty name.
func (f *FanEnclosure) Name() string {
	return f.cfg.Name
}

// Path returns the fan's inventory object path.
func (f *FanEnclosure) Path() string {
	return f.cfg.Path
}

// Policy returns the fan's redundancy policy.
func (f *FanEnclosure) Policy() RedundancyPolicy {
	return f.cfg.Policy
}

// Start hooks the policy's change notifications to UpdateInventory, starts
// the sensors and publishes the initial vote.
func (f *FanEnclosure) Start(ctx context.Context) {
	f.cfg.Policy.SetOnChange(func() { f.UpdateInventory(ctx) })
	f.cfg.Policy.Monitor()

	f.logger.Info("fan presence monitoring started",
		"fan", f.cfg.Path,
		"name", f.cfg.Name,
		"vote", f.cfg.Policy.Vote(),
	)
	f.UpdateInventory(ctx)
}

// Stop stops the fan's sensors.
func (f *FanEnclosure) Stop() {
	f.cfg.Policy.SetOnChange(nil)
	f.cfg.Policy.Stop()
}

// State returns the last confirmed presence.
func (f *FanEnclosure) State() State {
	return f.confirmed
}

// Pending reports whether the vote differs from the confirmed presence.
func (f *FanEnclosure) Pending() bool {
	return f.cfg.Policy.Vote() != f.confirmed
}

// LastError returns the error of the most recent abandoned update, or nil
// once an update has succeeded since.
func (f *FanEnclosure) LastError() error {
	return f.lastErr
}

// Stats returns the number of confirmed transitions and abandoned updates.
func (f *FanEnclosure) Stats() (updates, failures uint64) {
	return f.updates, f.failures
}

// status reports the fan for Service.Status.
func (f *FanEnclosure) status() FanStatus {
	fs := FanStatus{
		Path:        f.cfg.Path,
		Name:        f.cfg.Name,
		Present:     f.State() == Present,
		Pending:     f.Pending(),
		Conflict:    f.cfg.Policy.Conflict(),
		LastFailure: failureKind(f.LastError()),
	}
	if p, ok := f.cfg.Policy.(activePolicy); ok {
		fs.ActiveSensor = p.Active().Name()
	}
	return fs
}

// UpdateInventory publishes the current vote if it differs from the
// confirmed presence. The confirmed presence only moves after the
// inventory manager accepted the notification; a failed attempt is logged
// and left for the next trigger to retry.
//
// Readings arriving while the calls are in flight queue on the loop behind
// this update and trigger the next one when they are applied.
func (f *FanEnclosure) UpdateInventory(ctx context.Context) {
	want := f.cfg.Policy.Vote()
	if want == f.confirmed {
		return
	}

	if err := f.publish(ctx, want); err != nil {
		f.fail(err)
		return
	}
	f.commit(ctx, want)
}

// publish runs one resolution and notify attempt for want.
func (f *FanEnclosure) publish(ctx context.Context, want State) error {
	objects := inventory.ItemObject(f.cfg.Path, f.cfg.ItemInterface, want.Bool(), f.cfg.Name)

	service, err := f.locate(ctx)
	if err != nil {
		return &UpdateError{Kind: ResolutionFailed, FanPath: f.cfg.Path, Want: want, Err: err}
	}

	if err := f.notify(ctx, service, objects); err != nil {
		return &UpdateError{Kind: CallRejected, FanPath: f.cfg.Path, Want: want, Err: err}
	}
	return nil
}

func (f *FanEnclosure) locate(ctx context.Context) (string, error) {
	ctx, cancel := f.callContext(ctx)
	defer cancel()
	return f.cfg.Locator.Owner(ctx, f.cfg.Notifier.Path(), f.cfg.Notifier.Interface())
}

func (f *FanEnclosure) notify(ctx context.Context, service string, objects inventory.ObjectMap) error {
	ctx, cancel := f.callContext(ctx)
	defer cancel()
	return f.cfg.Notifier.Notify(ctx, service, objects)
}

func (f *FanEnclosure) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, f.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func (f *FanEnclosure) commit(ctx context.Context, state State) {
	previous := f.confirmed
	f.confirmed = state
	f.lastErr = nil
	f.updates++

	f.logger.Info("fan presence updated",
		"fan", f.cfg.Path,
		"name", f.cfg.Name,
		"from", previous,
		"to", state,
	)
	f.telemetry.WriteFanPresence(f.cfg.Path, f.cfg.Name, state.Bool())

	if f.cfg.Recorder == nil {
		return
	}
	if err := f.cfg.Recorder.RecordTransition(ctx, f.cfg.Path, f.cfg.Name, state); err != nil {
		f.logger.Warn("recording fan presence transition failed",
			"fan", f.cfg.Path,
			"error", err,
		)
	}
}

func (f *FanEnclosure) fail(err error) {
	f.lastErr = err
	f.failures++

	kind := failureKind(err)

	f.logger.Error("fan inventory update failed; will retry",
		"fan", f.cfg.Path,
		"kind", kind,
		"error", err,
	)
	f.telemetry.WriteUpdateFailure(f.cfg.Path, kind, err)
}
