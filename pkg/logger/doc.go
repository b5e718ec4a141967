// Package logger builds slog loggers preconfigured for the tenant stack.
//
// New returns a *slog.Logger assembled from functional options: output
// format (json or text), level, destination, static attributes and context
// extractors. Extractors pull request-scoped values out of the context at
// log time, so a logger created once at startup still annotates every
// record with the current tenant.
//
//	log := logger.New(
//		logger.WithTextFormat(),
//		logger.WithLevel(slog.LevelDebug),
//		logger.WithAttr(slog.String("service", "billing")),
//		logger.WithContextExtractors(tenant.LoggerExtractor()),
//	)
//
// Attr helpers (TenantID, Domain, Strategy, Error) keep log keys consistent
// across packages.
package logger
