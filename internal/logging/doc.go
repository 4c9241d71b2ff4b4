// Package logging provides structured logging for inflow.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation. Watchers, the receiver and the downloader run for
// long stretches without user interaction; structured logs are the record
// of what they observed and when.
//
// # Basic Usage
//
// Create a logger writing to a log directory:
//
//	logger, err := logging.NewLogger("/var/log/inflow", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("watch started", "directory", "/incoming")
//
// # Context Propagation
//
// Create child loggers with persistent context attributes:
//
//	watchLogger := logger.WithComponent("watcher").WithDirectory("/incoming")
//	watchLogger.Debug("tick", "count", 12)
//
// Output:
//
//	{"time":"...","level":"DEBUG","msg":"tick","component":"watcher","directory":"/incoming","count":12}
//
// # Testing
//
// Use [NopLogger] to discard all log output in tests.
package logging
