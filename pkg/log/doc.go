/*
Package log provides structured logging for the cluster using zerolog.

It wraps zerolog with a single global logger initialized via Init, plus
context-logger helpers (WithComponent, WithJobID, WithWorkerID, WithQueue,
WithNodeID) used by the orchestrator, manager, worker and node packages to
attach structured fields instead of formatting them into the message string.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	jl := log.WithComponent("manager").With().Str("job_id", id).Logger()
	jl.Info().Msg("job submitted")

Console output (human readable) is the default; setting JSONOutput switches
the global logger to JSON.
*/
package log
