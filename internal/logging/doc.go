// Package logging provides structured logging for rokuscan.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used throughout discovery: device events, discovery rounds
// and HTTP requests served to UI consumers.
//
// # Log Levels
//
//   - Debug: Per-candidate detail (SSDP responses, skipped devices, fetch errors)
//   - Info: Device found/expired, round summaries, state transitions
//   - Warn: Recoverable issues (invalid settings edits, source failures)
//   - Error: Startup failures
//
// # Configuration
//
// Logging is silent unless a level is provided, either directly or through the
// ROKUSCAN_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Domain Helpers
//
//	logging.LogDeviceEvent("device-found", device.ID, device.IP)
//	logging.LogRound(timeout, found)
//
// All functions are safe for concurrent use.
package logging
