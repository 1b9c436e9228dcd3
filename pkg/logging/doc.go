// Package logging provides structured logging configuration for crmmock.
//
// This package wraps log/slog so the fetcher, the GraphQL engine and the
// server lifecycle all log with the same handler and level.
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.ParseLevel(os.Getenv("LOG_LEVEL")),
//	    Format: logging.FormatJSON,
//	})
//
//	logger.Info("server started", "port", 4000)
//
// Components accept a *slog.Logger through an option. When none is given
// they fall back to logging.Nop().
package logging
