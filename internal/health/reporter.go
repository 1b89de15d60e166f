package health

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/fanpresence/internal/infrastructure/mqtt"
	"github.com/nerrad567/fanpresence/internal/presence"
)

const (
	defaultInterval = 30 * time.Second

	// statusTimeout bounds the wait for a fan summary from the event loop
	// and each dependency check.
	statusTimeout = 2 * time.Second
)

// Publisher sends health messages. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// FanSource summarises the monitored fans. *presence.Service satisfies it.
type FanSource interface {
	Status(ctx context.Context) (presence.Status, error)
}

// Checker verifies one dependency. *database.DB and *influxdb.Client
// satisfy it.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Check is a named dependency probed on every report.
type Check struct {
	Name    string
	Checker Checker
}

// Logger is the optional logging dependency of the reporter.
type Logger interface {
	Error(msg string, args ...any)
}

// Config holds the reporter's settings.
type Config struct {
	// ServiceID names the service in the topic and the payload.
	ServiceID string

	Version string

	// Interval defaults to 30 seconds.
	Interval time.Duration

	Publisher Publisher
	Fans      FanSource

	// Checks run in order; the first failure degrades the status.
	Checks []Check
}

// Reporter publishes health status periodically.
type Reporter struct {
	serviceID string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher Publisher
	fans      FanSource
	checks    []Check

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewReporter creates a reporter. Call Start to begin reporting.
func NewReporter(cfg Config) *Reporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Reporter{
		serviceID: cfg.ServiceID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		fans:      cfg.Fans,
		checks:    cfg.Checks,
		done:      make(chan struct{}),
	}
}

// SetLogger sets the logger used for publish failures.
func (r *Reporter) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

// Topic returns the topic health messages are published on.
func (r *Reporter) Topic() string {
	return mqtt.Topics{}.Health(r.serviceID)
}

// Start publishes the current status and then once per interval until ctx
// is cancelled or Stop is called.
func (r *Reporter) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call more than once.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()

		//nolint:errcheck // Best effort during shutdown
		r.publish(context.Background(), StatusStopping, "")
	})
}

// PublishStarting publishes a "starting" status.
func (r *Reporter) PublishStarting() error {
	return r.publish(context.Background(), StatusStarting, "service starting")
}

// PublishNow publishes the current status immediately.
func (r *Reporter) PublishNow(ctx context.Context) error {
	fans, err := r.fanStatus(ctx)
	status, reason := r.determineStatus(ctx, fans, err)
	return r.publishMessage(status, reason, fans)
}

func (r *Reporter) reportLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := r.PublishNow(ctx); err != nil {
		r.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			if err := r.PublishNow(ctx); err != nil {
				r.logError("failed to publish health", err)
			}
		}
	}
}

func (r *Reporter) fanStatus(ctx context.Context) (presence.Status, error) {
	if r.fans == nil {
		return presence.Status{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()
	return r.fans.Status(ctx)
}

func (r *Reporter) determineStatus(ctx context.Context, fans presence.Status, fanErr error) (Status, string) {
	if r.publisher == nil || !r.publisher.IsConnected() {
		return StatusDegraded, "MQTT disconnected"
	}
	if fanErr != nil {
		return StatusDegraded, "event loop unavailable"
	}
	for _, c := range r.checks {
		if err := r.runCheck(ctx, c.Checker); err != nil {
			return StatusDegraded, fmt.Sprintf("%s unhealthy: %v", c.Name, err)
		}
	}
	if fans.Pending > 0 {
		return StatusDegraded, fmt.Sprintf("%d fan(s) awaiting inventory update", fans.Pending)
	}
	return StatusHealthy, ""
}

func (r *Reporter) runCheck(ctx context.Context, c Checker) error {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()
	return c.HealthCheck(ctx)
}

// publish sends status with whatever fan summary is available.
func (r *Reporter) publish(ctx context.Context, status Status, reason string) error {
	fans, _ := r.fanStatus(ctx) //nolint:errcheck // Zero summary when the loop is gone
	return r.publishMessage(status, reason, fans)
}

func (r *Reporter) publishMessage(status Status, reason string, fans presence.Status) error {
	if r.publisher == nil {
		return nil
	}

	msg := NewMessage(r.serviceID, r.version, status, fans, r.startTime)
	msg.Reason = reason

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.publisher.Publish(r.Topic(), payload, 1, true)
}

func (r *Reporter) logError(msg string, err error) {
	r.loggerMu.RLock()
	logger := r.logger
	r.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
