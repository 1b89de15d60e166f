package presence

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/fanpresence/internal/infrastructure/mqtt"
)

// Subscriber is the part of the MQTT client a Tach sensor needs.
// *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// TachConfig configures a tachometer presence sensor.
type TachConfig struct {
	// Feeds are the tach feed names, one topic each under platform/state/tach.
	Feeds []string

	QoS    byte
	Logger Logger
}

// tachReading is the payload published on a tach feed.
type tachReading struct {
	RPM float64 `json:"rpm"`
}

// Tach derives presence from fan tachometer feeds: the fan is present when
// any feed reports a non-zero speed. Feeds that have not reported yet count
// as zero.
type Tach struct {
	owner

	cfg    TachConfig
	loop   Poster
	bus    Subscriber
	logger Logger

	// Loop-owned.
	rpm     map[string]float64
	present bool
	running bool

	topics []string
}

// NewTach creates a Tach sensor reading feeds from bus.
func NewTach(loop Poster, bus Subscriber, cfg TachConfig) *Tach {
	return &Tach{
		cfg:    cfg,
		loop:   loop,
		bus:    bus,
		logger: loggerOr(cfg.Logger),
		rpm:    make(map[string]float64, len(cfg.Feeds)),
	}
}

// Start subscribes to every feed. Retained readings arrive through the
// loop afterwards, so Start reports the reading cached so far.
func (t *Tach) Start() (bool, error) {
	if t.running {
		return t.present, nil
	}

	topics := mqtt.Topics{}
	for _, feed := range t.cfg.Feeds {
		topic := topics.TachState(feed)
		if err := t.bus.Subscribe(topic, t.cfg.QoS, t.handler(feed)); err != nil {
			t.unsubscribe()
			return false, fmt.Errorf("%w: subscribing to %s: %v", ErrSensorStart, topic, err)
		}
		t.topics = append(t.topics, topic)
	}

	t.running = true
	return t.present, nil
}

func (t *Tach) handler(feed string) mqtt.MessageHandler {
	return func(_ string, payload []byte) error {
		var r tachReading
		if err := json.Unmarshal(payload, &r); err != nil {
			return fmt.Errorf("decoding tach reading for %s: %w", feed, err)
		}
		t.loop.Post(func() { t.apply(feed, r.RPM) })
		return nil
	}
}

// apply runs on the loop.
func (t *Tach) apply(feed string, rpm float64) {
	if !t.running {
		return
	}
	t.rpm[feed] = rpm

	present := false
	for _, v := range t.rpm {
		if v != 0 {
			present = true
			break
		}
	}
	if present == t.present {
		return
	}
	t.present = present
	t.logger.Debug("tach presence changed",
		"sensor", t.Name(),
		"present", present,
	)
	t.notify(present, t)
}

// Stop unsubscribes from every feed.
func (t *Tach) Stop() {
	t.running = false
	t.unsubscribe()
}

func (t *Tach) unsubscribe() {
	for _, topic := range t.topics {
		if err := t.bus.Unsubscribe(topic); err != nil {
			t.logger.Warn("tach unsubscribe failed", "topic", topic, "error", err)
		}
	}
	t.topics = nil
}

// Present returns the cached reading.
func (t *Tach) Present() bool {
	return t.present
}

// Fail is a no-op: a tach feed has no corrective action.
func (t *Tach) Fail() {}

// LogConflict reports the per-feed speeds behind the disagreeing reading.
func (t *Tach) LogConflict(fanPath string) {
	feeds := make([]any, 0, 2*len(t.cfg.Feeds))
	for _, feed := range t.cfg.Feeds {
		feeds = append(feeds, feed, t.rpm[feed])
	}
	t.logger.Warn("tach presence conflict",
		"fan", fanPath,
		"present", t.present,
		"rpm", feeds,
	)
}

// Name identifies the sensor by its feeds.
func (t *Tach) Name() string {
	return "tach:" + strings.Join(t.cfg.Feeds, ",")
}
