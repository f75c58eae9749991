// Package logging provides structured logging for the Gray Logic scheduler.
//
// It wraps log/slog so every component logs the same way:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Components that only need to emit records accept a narrow Logger
// interface (Debug/Info/Warn/Error) so *Logger and *slog.Logger both fit.
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("scheduled command executed", "entry_id", 42)
package logging
