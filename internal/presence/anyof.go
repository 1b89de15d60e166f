package presence

// AnyOf votes Present when at least one sensor reads present, and
// NotPresent only when every sensor reads absent. It never fails a sensor.
type AnyOf struct {
	policyCore
}

// NewAnyOf binds cfg.Sensors to a new AnyOf policy.
func NewAnyOf(cfg PolicyConfig) (*AnyOf, error) {
	p := &AnyOf{}
	core, err := newPolicyCore(p, cfg)
	if err != nil {
		return nil, err
	}
	p.policyCore = core
	return p, nil
}

func (p *AnyOf) Monitor() {
	p.start(p)
	p.reportConflicts(p.Vote())
}

func (p *AnyOf) Vote() State {
	return StateOf(p.anyPresent())
}

func (p *AnyOf) StateChanged(_ bool, sensor PresenceSensor) {
	if !p.owns(sensor) {
		return
	}
	p.reportConflicts(p.Vote())
	p.changed()
}
