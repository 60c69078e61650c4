// Package logging provides structured logging for Gray Logic Motion.
//
// This package wraps Go's standard log/slog package so every component
// logs with the same shape.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Per-component child loggers
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
//	logger := logging.New(cfg.Logging, "1.0.0")
//	lightLog := logger.Component("lighting").With("controller", "hallway")
//	lightLog.Info("transition", "from", "idle", "to", "active_timer")
//
// Never log secrets, tokens or passwords.
package logging
