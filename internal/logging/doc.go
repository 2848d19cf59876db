// Package logging provides structured logging for dirquery.
//
// Loggers are built from configuration:
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stderr",
//	})
//
// or directly over a writer, which is what tests use:
//
//	logger := logging.NewWriter(&buf, logging.LevelDebug, logging.FormatText)
//
// Key-value pairs follow the message:
//
//	logger.Debug("page fetched", "entries", 500, "cookie_len", 12)
//
// Text output puts ts, level, msg and request_id first and the remaining
// fields in key order:
//
//	2026-02-18T10:30:00Z [debug] page fetched request_id=0190... cookie_len=12 entries=500
//
// Each query gets its own request ID from GenerateRequestID. A logger can
// travel in a context with NewContext and FromContext; FromContext falls
// back to NewNop.
package logging
