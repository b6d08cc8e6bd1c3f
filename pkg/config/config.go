package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/clustercore/pkg/log"
)

// Orchestrator configures which queue.Backend the Orchestrator binds to.
type Orchestrator struct {
	Backend  string `yaml:"backend"`  // "local", "redis" or "amqp"
	RedisURL string `yaml:"redisUrl"` // used when Backend == "redis"
	AMQPURL  string `yaml:"amqpUrl"`  // used when Backend == "amqp"
}

// Manager configures the Cluster Manager process.
type Manager struct {
	NodeID      string `yaml:"nodeId"`
	BindAddr    string `yaml:"bindAddr"`
	DataDir     string `yaml:"dataDir"`
	RegistryDir string `yaml:"registryDir"`
	Orchestrator
}

// Worker configures a Worker Runtime process.
type Worker struct {
	WorkerID   string `yaml:"workerId"`
	WorkerType string `yaml:"workerType"`
	BindAddr   string `yaml:"bindAddr"`
	ManagerURL string `yaml:"managerUrl"`
	Orchestrator
}

// Node configures a Node agent process.
type Node struct {
	NodeID      string `yaml:"nodeId"`
	BindAddr    string `yaml:"bindAddr"`
	ManagerURL  string `yaml:"managerUrl"`
	RegistryDir string `yaml:"registryDir"`
}

// Logging configures pkg/log, mirroring log.Config.
type Logging struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Metrics configures the Prometheus /metrics listener.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// profile is the shape of configs/<env>.yaml. Every field is optional; a
// zero-value field leaves the built-in default or env var override in
// place. Besides the shared logging and metrics sections, settings are
// component-scoped under manager:, worker: and node:.
type profile struct {
	Logging      Logging      `yaml:"logging"`
	Metrics      Metrics      `yaml:"metrics"`
	Orchestrator Orchestrator `yaml:"orchestrator"`
	Manager      Manager      `yaml:"manager"`
	Worker       Worker       `yaml:"worker"`
	Node         Node         `yaml:"node"`
}

// loadProfile reads configs/<env>.yaml if it exists. A missing file is not
// an error: the "local" profile has no file and relies entirely on the
// built-in defaults below.
func loadProfile(env string) (*profile, error) {
	path := fmt.Sprintf("configs/%s.yaml", env)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &profile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var p profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &p, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func coalesceBool(primary bool, fallback bool) bool {
	if primary {
		return primary
	}
	return fallback
}

func orchestratorFromEnv(p Orchestrator) Orchestrator {
	return Orchestrator{
		Backend:  getenv("QUEUE_BACKEND", coalesce(p.Backend, "local")),
		RedisURL: getenv("REDIS_URL", p.RedisURL),
		AMQPURL:  getenv("AMQP_URL", p.AMQPURL),
	}
}

// LoadManager builds a Manager config for ENV's profile, overridden by
// environment variables.
func LoadManager() (*Manager, error) {
	p, err := loadProfile(getenv("ENV", "local"))
	if err != nil {
		return nil, err
	}
	return &Manager{
		NodeID:       getenv("MANAGER_NODE_ID", p.Manager.NodeID),
		BindAddr:     getenv("MANAGER_BIND_ADDR", coalesce(p.Manager.BindAddr, ":7700")),
		DataDir:      getenv("STORE_DATA_DIR", coalesce(p.Manager.DataDir, "./data")),
		RegistryDir:  getenv("CLUSTER_REGISTRY_DIR", coalesce(p.Manager.RegistryDir, "./data/registry")),
		Orchestrator: orchestratorFromEnv(p.Manager.Orchestrator),
	}, nil
}

// LoadWorker builds a Worker config for ENV's profile, overridden by
// environment variables.
func LoadWorker() (*Worker, error) {
	p, err := loadProfile(getenv("ENV", "local"))
	if err != nil {
		return nil, err
	}
	return &Worker{
		WorkerID:     getenv("WORKER_ID", p.Worker.WorkerID),
		WorkerType:   getenv("WORKER_TYPE", p.Worker.WorkerType),
		BindAddr:     getenv("WORKER_BIND_ADDR", coalesce(p.Worker.BindAddr, ":7800")),
		ManagerURL:   getenv("CLUSTER_MANAGER_URL", coalesce(p.Worker.ManagerURL, "http://localhost:7700")),
		Orchestrator: orchestratorFromEnv(p.Worker.Orchestrator),
	}, nil
}

// LoadNode builds a Node config for ENV's profile, overridden by
// environment variables.
func LoadNode() (*Node, error) {
	p, err := loadProfile(getenv("ENV", "local"))
	if err != nil {
		return nil, err
	}
	return &Node{
		NodeID:      getenv("NODE_ID", p.Node.NodeID),
		BindAddr:    getenv("NODE_BIND_ADDR", coalesce(p.Node.BindAddr, ":7900")),
		ManagerURL:  getenv("CLUSTER_MANAGER_URL", coalesce(p.Node.ManagerURL, "http://localhost:7700")),
		RegistryDir: getenv("CLUSTER_REGISTRY_DIR", coalesce(p.Node.RegistryDir, "./data/registry")),
	}, nil
}

// LoadLogging builds a log.Config for ENV's profile, overridden by
// environment variables.
func LoadLogging() (log.Config, error) {
	p, err := loadProfile(getenv("ENV", "local"))
	if err != nil {
		return log.Config{}, err
	}
	level := getenv("LOG_LEVEL", coalesce(p.Logging.Level, "info"))
	jsonOut := getenvBool("LOG_JSON", coalesceBool(p.Logging.JSON, false))
	return log.Config{Level: log.Level(level), JSONOutput: jsonOut}, nil
}

// LoadMetrics builds a Metrics config for ENV's profile, overridden by
// environment variables.
func LoadMetrics() (*Metrics, error) {
	p, err := loadProfile(getenv("ENV", "local"))
	if err != nil {
		return nil, err
	}
	return &Metrics{Addr: getenv("METRICS_ADDR", coalesce(p.Metrics.Addr, ":9090"))}, nil
}
