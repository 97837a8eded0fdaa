// Package logger builds the structured loggers used across stocksync.
//
// New returns a *slog.Logger configured through Option functions: output
// format (text or json), minimum level, static attributes and context
// extractors that pull request-scoped values (such as the operation id set
// with WithOperation) into every record.
//
// Attribute helpers (Error, Component, RequestID, ItemID, TableID, ...) keep
// key names consistent between packages:
//
//	log := logger.New(logger.WithEnvironment("development", "stocksync"))
//	log.Info("item updated", logger.ItemID(item.ID), logger.Duration(time.Since(start)))
//
// Error returns an empty attribute for a nil error, so it can be passed
// unconditionally.
package logger
