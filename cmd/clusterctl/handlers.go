package main

import (
	"context"
	"fmt"

	"github.com/cuemby/clustercore/pkg/node"
	"github.com/cuemby/clustercore/pkg/worker"
)

// echoHandler is the example JobHandler registered under worker type "echo":
// it returns the job payload unchanged under an "echo" key. Deployments that
// need real job logic register their own handlers here; this one exists so
// the CLI is runnable out of the box.
func echoHandler(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{"echo": payload}, nil
}

// failHandler always returns an error, useful for exercising job.failed
// alerting end to end without standing up a real failing workload.
func failHandler(ctx context.Context, payload map[string]interface{}) (map[string]interface{}, error) {
	return nil, fmt.Errorf("fail handler: payload %v", payload)
}

// jobHandlers maps worker_type names a standalone "worker run" process can
// be started with to the compiled-in logic it runs.
var jobHandlers = map[string]worker.JobHandler{
	"echo": echoHandler,
	"fail": failHandler,
}

// workerFactories maps the class_ref a Node Agent may be asked to
// materialize (via launch_worker) to the JobHandler it produces. Go has no
// dynamic class loading, so every class_ref a deployment launches through a
// Node must have a factory registered here at process start, mirroring the
// compiled-in jobHandlers a standalone worker process is started with.
var workerFactories = map[string]node.WorkerFactory{
	"echo": func(params map[string]interface{}, sourceDir string) (worker.JobHandler, error) {
		return echoHandler, nil
	},
	"fail": func(params map[string]interface{}, sourceDir string) (worker.JobHandler, error) {
		return failHandler, nil
	},
}
