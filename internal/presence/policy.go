package presence

import (
	"fmt"
)

// RedundancyPolicy reduces the readings of one fan's sensors to one vote.
// Every method is loop-owned.
type RedundancyPolicy interface {
	StateListener

	// Monitor starts every sensor and evaluates the readings once.
	Monitor()

	// Vote returns the presence the current readings add up to.
	Vote() State

	// Conflict reports whether the readings disagreed at the last evaluation.
	Conflict() bool

	// SetOnChange registers the callback run after every reading change.
	SetOnChange(fn func())

	// Stop stops every sensor.
	Stop()

	// Sensors returns the sensors in configuration order. Sensors that
	// failed to start appear as their Null stand-ins.
	Sensors() []PresenceSensor
}

// PolicyConfig configures a redundancy policy for one fan.
type PolicyConfig struct {
	// FanPath is the inventory path conflicts are reported against.
	FanPath string

	// Sensors are bound to the policy for the life of the process.
	Sensors []PresenceSensor

	Logger    Logger
	Telemetry Telemetry
}

// policyCore holds what every policy shares: ownership of the sensors,
// start-failure substitution and conflict reporting.
type policyCore struct {
	fanPath   string
	sensors   []PresenceSensor
	onChange  func()
	conflict  bool
	logger    Logger
	telemetry Telemetry
}

func newPolicyCore(listener StateListener, cfg PolicyConfig) (policyCore, error) {
	if len(cfg.Sensors) == 0 {
		return policyCore{}, ErrNoSensors
	}
	for _, s := range cfg.Sensors {
		if err := s.bind(listener); err != nil {
			return policyCore{}, fmt.Errorf("binding %s to %s: %w", s.Name(), cfg.FanPath, err)
		}
	}
	return policyCore{
		fanPath:   cfg.FanPath,
		sensors:   append([]PresenceSensor(nil), cfg.Sensors...),
		logger:    loggerOr(cfg.Logger),
		telemetry: telemetryOr(cfg.Telemetry),
	}, nil
}

// start starts every sensor, replacing each one whose Start fails with a
// Null stand-in that reads absent until the process restarts.
func (p *policyCore) start(listener StateListener) {
	for i, s := range p.sensors {
		if _, err := s.Start(); err != nil {
			p.logger.Error("presence sensor failed to start; treating as not present",
				"fan", p.fanPath,
				"sensor", s.Name(),
				"error", err,
			)
			p.telemetry.WriteSensorFailure(p.fanPath, s.Name(), "start")
			s.Stop()

			standIn := NewNull(s.Name())
			standIn.bind(listener) //nolint:errcheck // Fresh stand-in is unbound
			p.sensors[i] = standIn
		}
	}
}

func (p *policyCore) owns(sensor PresenceSensor) bool {
	for _, s := range p.sensors {
		if s == sensor {
			return true
		}
	}
	return false
}

// anyPresent reports whether at least one sensor reads present.
func (p *policyCore) anyPresent() bool {
	for _, s := range p.sensors {
		if s.Present() {
			return true
		}
	}
	return false
}

// reportConflicts flags every sensor whose reading differs from vote.
func (p *policyCore) reportConflicts(vote State) {
	p.conflict = false
	for _, s := range p.sensors {
		if s.Present() != vote.Bool() {
			p.conflict = true
			break
		}
	}
	if !p.conflict {
		return
	}

	for _, s := range p.sensors {
		reading := s.Present()
		if reading == vote.Bool() {
			continue
		}
		s.LogConflict(p.fanPath)
		p.telemetry.WriteSensorConflict(p.fanPath, s.Name(), reading, vote.Bool())
	}
}

func (p *policyCore) changed() {
	if p.onChange != nil {
		p.onChange()
	}
}

func (p *policyCore) Conflict() bool {
	return p.conflict
}

func (p *policyCore) SetOnChange(fn func()) {
	p.onChange = fn
}

func (p *policyCore) Stop() {
	for _, s := range p.sensors {
		s.Stop()
	}
}

func (p *policyCore) Sensors() []PresenceSensor {
	return append([]PresenceSensor(nil), p.sensors...)
}
