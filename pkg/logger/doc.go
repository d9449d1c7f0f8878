// Package logger builds *slog.Logger values with functional options and a
// handler decorator that copies request-scoped values from context.Context
// into every record.
//
// New picks a text or JSON handler, applies static attributes and wraps the
// result with LogHandlerDecorator, which runs the registered ContextExtractor
// callbacks on each Handle call. WithEnvironment selects a preset (text/debug
// for development, JSON/info elsewhere) from an environment name.
//
// attr.go holds constructors for the attribute keys used across the module
// (subject_id, request_id, endpoint, status_code, expires_at, delay ...) so
// that log keys stay consistent between packages.
//
// # Usage
//
//	log := logger.New(
//		logger.WithEnvironment(os.Getenv("AUTHCTL_ENV"), "authctl"),
//		logger.WithLevelName(os.Getenv("AUTHCTL_LOG_LEVEL")),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//
//	log.InfoContext(ctx, "session renewed",
//		logger.SubjectID(sess.SubjectID),
//		logger.ExpiresAt(sess.ExpiresAt),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
