package main

import (
	"fmt"

	"github.com/nerrad567/fanpresence/internal/infrastructure/config"
	"github.com/nerrad567/fanpresence/internal/infrastructure/logging"
	"github.com/nerrad567/fanpresence/internal/presence"
)

// fanDeps carries the shared collaborators every fan is built from.
type fanDeps struct {
	loop      presence.Poster
	bus       presence.Subscriber
	qos       byte
	locator   presence.Locator
	notifier  presence.Notifier
	recorder  presence.TransitionRecorder
	telemetry presence.Telemetry
	logger    *logging.Logger

	// opener overrides how GPIO input devices are opened.
	opener presence.LineOpener
}

// buildFans creates one FanEnclosure per configured fan, each with its own
// policy and freshly constructed sensors.
func buildFans(cfg *config.Config, deps fanDeps) ([]*presence.FanEnclosure, error) {
	fans := make([]*presence.FanEnclosure, 0, len(cfg.Fans))

	for _, fc := range cfg.Fans {
		log := deps.logger.ForFan(fc.Path)

		sensors := make([]presence.PresenceSensor, 0, len(fc.Sensors))
		for i, sc := range fc.Sensors {
			sensors = append(sensors, buildSensor(fc.Path, i, sc, deps, log.ForSensor(sc.Type, i)))
		}

		policyCfg := presence.PolicyConfig{
			FanPath:   fc.Path,
			Sensors:   sensors,
			Logger:    log,
			Telemetry: deps.telemetry,
		}
		policy, err := buildPolicy(fc.Policy, policyCfg)
		if err != nil {
			return nil, fmt.Errorf("fan %s: %w", fc.Path, err)
		}

		fan, err := presence.NewFanEnclosure(presence.FanEnclosureConfig{
			Name:          fc.Name,
			Path:          fc.Path,
			Policy:        policy,
			Locator:       deps.locator,
			Notifier:      deps.notifier,
			ItemInterface: cfg.Inventory.ItemInterface,
			CallTimeout:   cfg.GetCallTimeout(),
			Recorder:      deps.recorder,
			Logger:        log,
			Telemetry:     deps.telemetry,
		})
		if err != nil {
			return nil, err
		}
		fans = append(fans, fan)
	}

	return fans, nil
}

func buildPolicy(name string, cfg presence.PolicyConfig) (presence.RedundancyPolicy, error) {
	switch name {
	case config.PolicyFallback:
		return presence.NewFallback(cfg)
	case config.PolicyAnyOf, "":
		return presence.NewAnyOf(cfg)
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

// buildSensor creates the sensor at index of the fan at fanPath.
func buildSensor(fanPath string, index int, sc config.SensorConfig, deps fanDeps, log *logging.Logger) presence.PresenceSensor {
	switch sc.Type {
	case config.SensorTypeGPIO:
		return presence.NewGPIO(deps.loop, presence.GPIOConfig{
			Device:   sc.Device,
			Phys:     sc.Phys,
			Key:      sc.Key,
			Debounce: sc.GetDebounce(),
			Opener:   deps.opener,
			Logger:   log,
		})
	case config.SensorTypeTach:
		return presence.NewTach(deps.loop, deps.bus, presence.TachConfig{
			Feeds:  sc.Feeds,
			QoS:    deps.qos,
			Logger: log,
		})
	default:
		return presence.NewNull(nullSensorName(fanPath, index))
	}
}

// nullSensorName identifies a null sensor in logs and telemetry. Null
// sensors carry no hardware identity, so the fan and slot stand in for it.
func nullSensorName(fanPath string, index int) string {
	return fmt.Sprintf("null:%s:%d", fanPath, index)
}
