// Package config builds the per-component Config structs (manager, worker,
// node, orchestrator) from environment variables and an optional YAML
// profile file, instead of the global settings object spec.md section 9
// flags for removal. See config.go for the full variable list.
package config
