package presence

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/fanpresence/internal/event"
)

// ServiceConfig configures the set of monitored fans.
type ServiceConfig struct {
	// Loop runs every sensor reading and inventory update. Sensors must
	// post onto the same loop.
	Loop *event.Loop

	Fans []*FanEnclosure

	// ResyncInterval re-runs every fan's inventory update on a timer so a
	// transition abandoned on a remote failure is retried without waiting
	// for the next sensor event. Zero disables it.
	ResyncInterval time.Duration

	Logger Logger
}

// Status is a point-in-time summary of every fan.
type Status struct {
	Fans      int
	Present   int
	Pending   int
	Conflicts int
	Failures  uint64

	// LoopPanics counts loop callbacks that panicked since the loop started.
	LoopPanics uint64

	Details []FanStatus
}

// FanStatus is one fan's entry in a Status.
type FanStatus struct {
	Path     string
	Name     string
	Present  bool
	Pending  bool
	Conflict bool

	// ActiveSensor names the sensor whose reading is the vote. Only set
	// for policies that trust one sensor at a time.
	ActiveSensor string

	// LastFailure is the kind of the most recent abandoned update. Empty
	// once an update has succeeded since.
	LastFailure string
}

// activePolicy is implemented by policies that trust one sensor at a time.
type activePolicy interface {
	Active() PresenceSensor
}

// Service starts and stops the fans on the loop.
type Service struct {
	loop   *event.Loop
	fans   []*FanEnclosure
	resync time.Duration
	logger Logger

	// Set by Run before the loop starts; read on the loop.
	ctx context.Context
}

// NewService creates a service for cfg.Fans.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Loop == nil {
		return nil, errors.New("presence: service needs an event loop")
	}
	return &Service{
		loop:   cfg.Loop,
		fans:   cfg.Fans,
		resync: cfg.ResyncInterval,
		logger: loggerOr(cfg.Logger),
		ctx:    context.Background(),
	}, nil
}

// Fans returns the monitored fans.
func (s *Service) Fans() []*FanEnclosure {
	return s.fans
}

// Run starts every fan and drives the loop until ctx is cancelled or Stop
// is called. The fans are stopped before Run returns.
func (s *Service) Run(ctx context.Context) error {
	s.ctx = ctx

	if !s.loop.Post(func() {
		for _, f := range s.fans {
			f.Start(ctx)
		}
		s.logger.Info("fan presence service started", "fans", len(s.fans))
	}) {
		return event.ErrStopped
	}
	s.loop.Every(ctx, s.resync, s.resyncAll)

	err := s.loop.Run(ctx)

	// Release watchers blocked on Post before stopping their sensors.
	s.loop.Stop()
	for _, f := range s.fans {
		f.Stop()
	}
	s.logger.Info("fan presence service stopped")

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Resync queues an inventory update for every fan. It is safe to call from
// any goroutine and returns false once the loop has stopped.
func (s *Service) Resync() bool {
	return s.loop.Post(s.resyncAll)
}

func (s *Service) resyncAll() {
	for _, f := range s.fans {
		f.UpdateInventory(s.ctx)
	}
}

// Status collects a summary of every fan on the loop. It fails fast with
// ErrNotRunning before Run has started the loop or after it has stopped.
func (s *Service) Status(ctx context.Context) (Status, error) {
	var st Status
	if !s.loop.Running() {
		return st, ErrNotRunning
	}
	err := s.loop.Do(ctx, func() {
		st.Fans = len(s.fans)
		st.Details = make([]FanStatus, 0, len(s.fans))
		for _, f := range s.fans {
			fs := f.status()
			if fs.Present {
				st.Present++
			}
			if fs.Pending {
				st.Pending++
			}
			if fs.Conflict {
				st.Conflicts++
			}
			_, failures := f.Stats()
			st.Failures += failures
			st.Details = append(st.Details, fs)
		}
	})
	_, st.LoopPanics = s.loop.Stats()
	return st, err
}

// Stop ends Run.
func (s *Service) Stop() {
	s.loop.Stop()
}
