// Package nomad is a minimal read-only client for the Nomad HTTP API,
// covering the job listing and job detail endpoints the reconciler needs.
package nomad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for Nomad API operations.
var (
	// ErrUnexpectedStatus is returned when Nomad answers with a non-2xx
	// status.
	ErrUnexpectedStatus = errors.New("unexpected nomad status")
)

// defaultTimeout bounds every request to the Nomad API.
const defaultTimeout = 30 * time.Second

// JobStub is one entry of the job list endpoint.
type JobStub struct {
	ID       string `json:"ID"`
	ParentID string `json:"ParentID"`
	Name     string `json:"Name"`
	Type     string `json:"Type"`
	Priority int    `json:"Priority"`
}

// Job is the job detail response.
type Job struct {
	ID         string      `json:"ID"`
	Name       string      `json:"Name"`
	ParentID   string      `json:"ParentID"`
	TaskGroups []TaskGroup `json:"TaskGroups"`
}

// TaskGroup is a named group of tasks within a job.
type TaskGroup struct {
	Name  string `json:"Name"`
	Count int    `json:"Count"`
	Tasks []Task `json:"Tasks"`
}

// Task is a single task with its driver configuration.
type Task struct {
	Name   string
	Config DriverConfig
}

// DriverConfig is the closed union of task driver configurations the
// reconciler understands. Exhaustive type switches over DockerConfig,
// RawExecConfig, and OtherConfig cover every value.
type DriverConfig interface {
	driverConfig()
}

// DockerConfig is the configuration of a docker-driver task.
type DockerConfig struct {
	Image string
}

// RawExecConfig is the (empty) configuration of a raw_exec-driver task.
type RawExecConfig struct{}

// OtherConfig marks a task whose driver this client does not model. The
// reconciler skips these.
type OtherConfig struct {
	Driver string
}

func (DockerConfig) driverConfig()  {}
func (RawExecConfig) driverConfig() {}
func (OtherConfig) driverConfig()   {}

// UnmarshalJSON decodes the Driver discriminator and the matching Config
// payload into the DriverConfig union.
func (t *Task) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name   string          `json:"Name"`
		Driver string          `json:"Driver"`
		Config json.RawMessage `json:"Config"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.Name = raw.Name

	switch raw.Driver {
	case "docker":
		var cfg struct {
			Image string `json:"image"`
		}
		if len(raw.Config) > 0 {
			if err := json.Unmarshal(raw.Config, &cfg); err != nil {
				return fmt.Errorf("decode docker config for task %q: %w", raw.Name, err)
			}
		}
		t.Config = DockerConfig{Image: cfg.Image}
	case "raw_exec":
		t.Config = RawExecConfig{}
	default:
		t.Config = OtherConfig{Driver: raw.Driver}
	}
	return nil
}

// ClientConfig configures the Nomad API client.
type ClientConfig struct {
	// Address is the base URL of the Nomad API, e.g. "http://localhost:4646".
	Address string

	// HTTPClient is the client used for requests. Defaults to a client with
	// a 30s timeout.
	HTTPClient *http.Client
}

// Client reads jobs from the Nomad API.
type Client interface {
	// Jobs lists every job known to the cluster.
	Jobs(ctx context.Context) ([]JobStub, error)

	// Job fetches the detail of a single job by ID.
	Job(ctx context.Context, id string) (Job, error)
}
