// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Engine components receive a *zap.Logger and derive a named child with
// Component, so region logs carry their kind and state key:
//
//	logger := logging.NewDefault()
//	regionLog := logging.Component(logger.Logger, "region", zap.String("state_key", key))
//	regionLog.Warn("push message failed", zap.Error(err))
package logging
