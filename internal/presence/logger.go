package presence

// Logger is the logging dependency of this package.
// *logging.Logger and *slog.Logger both satisfy it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Telemetry receives presence events for time-series storage.
// *influxdb.Client satisfies it.
type Telemetry interface {
	WriteFanPresence(fanPath, name string, present bool)
	WriteSensorConflict(fanPath, sensor string, reading, vote bool)
	WriteSensorFailure(fanPath, sensor, reason string)
	WriteUpdateFailure(fanPath, kind string, err error)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type nopTelemetry struct{}

func (nopTelemetry) WriteFanPresence(string, string, bool)          {}
func (nopTelemetry) WriteSensorConflict(string, string, bool, bool) {}
func (nopTelemetry) WriteSensorFailure(string, string, string)      {}
func (nopTelemetry) WriteUpdateFailure(string, string, error)       {}

func loggerOr(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

func telemetryOr(t Telemetry) Telemetry {
	if t == nil {
		return nopTelemetry{}
	}
	return t
}
