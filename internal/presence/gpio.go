package presence

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/nerrad567/fanpresence/internal/evdev"
)

const (
	// gpioWaitInterval bounds each WaitKey so the watcher notices Stop.
	gpioWaitInterval = 100 * time.Millisecond

	// gpioRetryDelay is the pause after a read error before waiting again.
	gpioRetryDelay = time.Second
)

// Line is a binary input line exposed as a key on an input device.
// *evdev.Device satisfies it.
type Line interface {
	KeyState(code uint16) (bool, error)
	WaitKey(code uint16, timeout time.Duration) (bool, error)
	Close() error
}

// LineOpener opens the input device at path.
type LineOpener func(path string) (Line, error)

// OpenEvdev opens a gpio-keys input device.
func OpenEvdev(path string) (Line, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// GPIOConfig configures a GPIO presence sensor.
type GPIOConfig struct {
	// Device is the input device the gpio-keys driver exposes the line on.
	Device string

	// Phys is the physical GPIO device named in failure callouts.
	Phys string

	// Key is the input key code mapped to the presence line.
	Key uint16

	// Debounce delays the re-read after an edge. Zero re-reads immediately.
	Debounce time.Duration

	// Opener defaults to OpenEvdev.
	Opener LineOpener

	Logger Logger
}

// GPIO reads presence from a GPIO line through the gpio-keys input driver.
// A line held high (key pressed) means the fan is present.
//
// A watcher goroutine blocks on the device and posts every new reading to
// the loop, which updates the cached reading and notifies the policy.
type GPIO struct {
	owner

	cfg    GPIOConfig
	loop   Poster
	logger Logger

	mu      sync.Mutex
	present bool
	running bool
	stop    chan struct{}
}

// NewGPIO creates a GPIO sensor that posts readings onto loop.
func NewGPIO(loop Poster, cfg GPIOConfig) *GPIO {
	if cfg.Opener == nil {
		cfg.Opener = OpenEvdev
	}
	return &GPIO{
		cfg:    cfg,
		loop:   loop,
		logger: loggerOr(cfg.Logger),
	}
}

// Start opens the device, reads the line and starts watching it.
func (g *GPIO) Start() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stop != nil {
		return g.present, nil
	}

	line, err := g.cfg.Opener(g.cfg.Device)
	if err != nil {
		return false, fmt.Errorf("%w: opening %s: %v", ErrSensorStart, g.cfg.Device, err)
	}

	present, err := line.KeyState(g.cfg.Key)
	if err != nil {
		line.Close() //nolint:errcheck // Already failing
		return false, fmt.Errorf("%w: reading key %d on %s: %v", ErrSensorStart, g.cfg.Key, g.cfg.Device, err)
	}

	g.present = present
	g.running = true
	g.stop = make(chan struct{})
	go g.watch(line, g.stop)

	return present, nil
}

// watch owns line and closes it on exit.
func (g *GPIO) watch(line Line, stop <-chan struct{}) {
	defer line.Close() //nolint:errcheck // Best effort on shutdown

	for {
		select {
		case <-stop:
			return
		default:
		}

		changed, err := line.WaitKey(g.cfg.Key, gpioWaitInterval)
		if err != nil {
			if errors.Is(err, evdev.ErrClosed) {
				return
			}
			g.logger.Warn("gpio presence wait failed",
				"device", g.cfg.Device,
				"key", g.cfg.Key,
				"error", err,
			)
			if !sleep(stop, gpioRetryDelay) {
				return
			}
			continue
		}
		if !changed {
			continue
		}

		if g.cfg.Debounce > 0 && !sleep(stop, g.cfg.Debounce) {
			return
		}

		present, err := line.KeyState(g.cfg.Key)
		if err != nil {
			g.logger.Warn("gpio presence read failed",
				"device", g.cfg.Device,
				"key", g.cfg.Key,
				"error", err,
			)
			continue
		}

		if !g.loop.Post(func() { g.apply(present) }) {
			return
		}
	}
}

// apply runs on the loop.
func (g *GPIO) apply(present bool) {
	g.mu.Lock()
	if !g.running || present == g.present {
		g.mu.Unlock()
		return
	}
	g.present = present
	g.mu.Unlock()

	g.logger.Debug("gpio presence changed",
		"sensor", g.Name(),
		"present", present,
	)
	g.notify(present, g)
}

// Stop signals the watcher to exit. The watcher closes the device.
func (g *GPIO) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.running = false
	if g.stop != nil {
		close(g.stop)
		g.stop = nil
	}
}

// Present returns the cached line state.
func (g *GPIO) Present() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.present
}

// Fail raises an error callout against the physical GPIO.
func (g *GPIO) Fail() {
	g.logger.Error("gpio presence sensor failed",
		"phys", g.cfg.Phys,
		"device", g.cfg.Device,
		"key", g.cfg.Key,
	)
}

// LogConflict reports that the line disagrees with the fan's vote.
func (g *GPIO) LogConflict(fanPath string) {
	g.logger.Warn("gpio presence conflict",
		"fan", fanPath,
		"phys", g.cfg.Phys,
		"device", g.cfg.Device,
		"key", g.cfg.Key,
		"present", g.Present(),
	)
}

// Name identifies the sensor by input device and key code.
func (g *GPIO) Name() string {
	return fmt.Sprintf("gpio:%s:%d", filepath.Base(g.cfg.Device), g.cfg.Key)
}

// sleep waits for d and reports false if stop closed first.
func sleep(stop <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}
