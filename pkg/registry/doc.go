// Package registry is the Worker Registry. See registry.go for the
// versioning contract; pkg/node consumes Load to materialise a
// types.ProxyWorker bundle before launching a worker process.
package registry
