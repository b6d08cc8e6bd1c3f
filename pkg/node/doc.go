// Package node implements the Node Agent (spec.md section 4.5): a per-host
// supervisor that materializes worker-type bundles from the Worker
// Registry into running Worker instances and tears them down on shutdown.
//
// There is no equivalent package in the teacher, which has no concept of a
// Worker Registry or per-host worker-type bundles; node.go is grounded on
// pkg/manager and pkg/worker's own construction style (a Config struct plus
// a constructor taking already-open dependencies) and on pkg/registry for
// the bundle shape it loads.
package node
