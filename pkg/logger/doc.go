// Package logger builds configured log/slog loggers for the rest of the
// module.
//
// Every component in this module accepts a *slog.Logger through a functional
// option and falls back to slog.Default(); this package is where the actual
// logger gets created, typically once at process startup:
//
//	log := logger.New(
//		logger.WithLevel(slog.LevelDebug),
//		logger.WithFormat(logger.FormatText),
//		logger.WithAttr(slog.String("service", "notifier")),
//	)
//	logger.SetAsDefault(log)
//
// The Config struct carries `env` tags so settings can be loaded with
// pkg/config.
package logger
