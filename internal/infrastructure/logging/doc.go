// Package logging provides structured logging for the fan presence service.
//
// It wraps log/slog. Every entry carries the service name and version;
// ForFan and ForSensor add the fan path and sensor identity so a single
// fan's history can be followed across the presence, inventory and
// health packages.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	fanLog := logger.ForFan("/system/chassis/motherboard/fan0")
//	fanLog.Info("fan presence updated", "from", "not_present", "to", "present")
//	fanLog.ForSensor("tach", 1).Warn("presence sensors disagree", "rpm", 0)
package logging
