// Package logger provides a structured logging interface for imgfetch.
//
// It wraps zerolog behind a small Logger interface so that controllers, the
// HTTP client and the CLI all log the same way:
//
//	log := logger.GetLogger().WithComponent("batch")
//	log.InfoWithFields("Job started", map[string]interface{}{
//	    "query":  "cats",
//	    "target": 10,
//	})
//
// Console output goes to stderr with colored levels; setting LoggingConfig.File
// switches to JSON lines appended to that file. Tests use NewTestLogger to
// capture and assert on messages, or NewNopLogger to discard them.
package logger
