package presence

// Fallback trusts one sensor at a time, in configuration order. When the
// active sensor reads absent while another reads present, the active
// sensor is failed and the first present sensor takes over.
type Fallback struct {
	policyCore
	active int
}

// NewFallback binds cfg.Sensors to a new Fallback policy. The first sensor
// starts out active.
func NewFallback(cfg PolicyConfig) (*Fallback, error) {
	p := &Fallback{}
	core, err := newPolicyCore(p, cfg)
	if err != nil {
		return nil, err
	}
	p.policyCore = core
	return p, nil
}

func (p *Fallback) Monitor() {
	p.start(p)
	p.evaluate()
}

func (p *Fallback) Vote() State {
	return StateOf(p.sensors[p.active].Present())
}

// Active returns the sensor whose reading is the vote.
func (p *Fallback) Active() PresenceSensor {
	return p.sensors[p.active]
}

func (p *Fallback) StateChanged(_ bool, sensor PresenceSensor) {
	if !p.owns(sensor) {
		return
	}
	p.evaluate()
	p.changed()
}

func (p *Fallback) evaluate() {
	active := p.sensors[p.active]
	if !active.Present() {
		for i, s := range p.sensors {
			if i == p.active || !s.Present() {
				continue
			}
			p.logger.Warn("presence sensor failed over",
				"fan", p.fanPath,
				"from", active.Name(),
				"to", s.Name(),
			)
			active.Fail()
			p.telemetry.WriteSensorFailure(p.fanPath, active.Name(), "failover")
			p.active = i
			break
		}
	}
	p.reportConflicts(p.Vote())
}
