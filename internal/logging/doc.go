// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// It also defines field helpers that keep sandbox-sensitive values out of
// logs: tokens are logged as their eight-character short form only.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("instance launched",
//	    logging.Instance(inst.ID),
//	    logging.Token(inst.Token),
//	)
package logging
