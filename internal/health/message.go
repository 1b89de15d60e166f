package health

import (
	"time"

	"github.com/nerrad567/fanpresence/internal/presence"
)

// Status is the overall health of the service.
type Status string

const (
	// StatusHealthy means every fan's inventory entry matches its vote.
	StatusHealthy Status = "healthy"

	// StatusDegraded means the service runs but a dependency is unhealthy
	// or a fan's inventory update is still outstanding.
	StatusDegraded Status = "degraded"

	// StatusStarting is published before the fans are started.
	StatusStarting Status = "starting"

	// StatusStopping is published on graceful shutdown.
	StatusStopping Status = "stopping"
)

// Message is the retained health payload.
type Message struct {
	Service       string    `json:"service"`
	Version       string    `json:"version,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Status        Status    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	UptimeSeconds int64     `json:"uptime_seconds"`

	Fans           int    `json:"fans"`
	FansPresent    int    `json:"fans_present"`
	FansPending    int    `json:"fans_pending"`
	Conflicts      int    `json:"conflicts"`
	UpdateFailures uint64 `json:"update_failures"`
	LoopPanics     uint64 `json:"loop_panics"`

	FanDetails []FanHealth `json:"fan_details,omitempty"`
}

// FanHealth is one fan's entry in a health message.
type FanHealth struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	Present      bool   `json:"present"`
	Pending      bool   `json:"pending,omitempty"`
	Conflict     bool   `json:"conflict,omitempty"`
	ActiveSensor string `json:"active_sensor,omitempty"`
	LastFailure  string `json:"last_failure,omitempty"`
}

// NewMessage builds a health message from a fan summary.
func NewMessage(serviceID, version string, status Status, fans presence.Status, startTime time.Time) Message {
	msg := Message{
		Service:        serviceID,
		Version:        version,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		Fans:           fans.Fans,
		FansPresent:    fans.Present,
		FansPending:    fans.Pending,
		Conflicts:      fans.Conflicts,
		UpdateFailures: fans.Failures,
		LoopPanics:     fans.LoopPanics,
	}
	for _, f := range fans.Details {
		msg.FanDetails = append(msg.FanDetails, FanHealth{
			Path:         f.Path,
			Name:         f.Name,
			Present:      f.Present,
			Pending:      f.Pending,
			Conflict:     f.Conflict,
			ActiveSensor: f.ActiveSensor,
			LastFailure:  f.LastFailure,
		})
	}
	return msg
}
