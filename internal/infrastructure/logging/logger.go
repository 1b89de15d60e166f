package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/fanpresence/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "fan-presence"

// Attribute keys shared by every component that logs about a fan or one of
// its sensors, so entries can be filtered per fan across packages.
const (
	KeyFan         = "fan"
	KeySensorType  = "sensor_type"
	KeySensorIndex = "sensor_index"
)

// Logger wraps slog.Logger with the service's default fields.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to the configured output.
//
// The format is JSON unless cfg.Format is "text". Every entry carries the
// service name and version.
func New(cfg config.LoggingConfig, version string) *Logger {
	return newLogger(outputFor(cfg.Output), cfg, version)
}

func newLogger(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

func outputFor(name string) io.Writer {
	if strings.EqualFold(name, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// parseLevel converts a string log level to slog.Level.
// Unrecognised values give info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ForFan returns a logger tagging every entry with the fan's inventory path.
//
// Example:
//
//	fanLog := logger.ForFan("/system/chassis/motherboard/fan0")
//	fanLog.Info("fan presence updated", "to", "present")
func (l *Logger) ForFan(path string) *Logger {
	return l.With(KeyFan, path)
}

// ForSensor returns a logger tagging every entry with a sensor kind, such
// as "gpio" or "tach", and its position in the fan's sensor list.
func (l *Logger) ForSensor(kind string, index int) *Logger {
	return l.With(KeySensorType, kind, KeySensorIndex, index)
}

// Default creates a JSON logger at info level on stdout for use before
// configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
