// Package logger builds the *slog.Logger shared by the dispatcher, worker
// and redrive processes.
//
// New takes functional options for level, format, output and static
// attributes. WithEnvironment picks text output at debug level for
// development and JSON at info level for staging and production, and tags
// every record with the service name and environment.
//
// The handler returned by New is wrapped in a decorator that runs
// ContextExtractor callbacks on every record. WithJob stores a job id and
// type in a context.Context; the JobExtractor registered by default copies
// them onto every record logged with that context, so a worker handler
// that logs with ctx gets job_id and job_type for free.
//
// Attribute helpers (JobID, JobType, RoutingKey, Attempt, Error, ...) keep
// key names consistent across packages.
//
//	log := logger.New(logger.WithEnvironment(cfg.Env, cfg.Service))
//	log.InfoContext(ctx, "job published", logger.JobID(id), logger.RoutingKey(key))
package logger
