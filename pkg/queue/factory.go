package queue

import (
	"fmt"

	"github.com/cuemby/clustercore/pkg/queue/amqpqueue"
	"github.com/cuemby/clustercore/pkg/queue/local"
	"github.com/cuemby/clustercore/pkg/queue/redisqueue"
)

// NewBackend builds the Backend named by args["backend"] ("local", "redis",
// or "amqp"), using args["redis_url"]/args["amqp_url"] as the connection
// URI. This is the Go equivalent of constructing an Orchestrator consumer
// from the backend_args a worker's connect_to_cluster call receives
// (spec.md section 4.4) or a process's own QUEUE_BACKEND/*_URL env vars.
func NewBackend(args map[string]interface{}) (Backend, error) {
	name, _ := args["backend"].(string)
	switch name {
	case "", "local", "none":
		return local.New(), nil
	case "redis":
		uri, _ := args["redis_url"].(string)
		return redisqueue.New(uri)
	case "amqp":
		uri, _ := args["amqp_url"].(string)
		return amqpqueue.New(uri)
	default:
		return nil, fmt.Errorf("queue: unknown backend %q", name)
	}
}
