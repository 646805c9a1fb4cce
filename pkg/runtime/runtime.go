// Located in pkg/runtime/runtime.go
package runtime

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a handle no longer refers to a container.
var ErrNotFound = errors.New("container not found")

// CreateOptions defines the parameters for creating and starting a container.
type CreateOptions struct {
	Name    string
	Image   string
	Command []string
	EnvVars map[string]string
	Labels  map[string]string
	// ExposedPorts are container ports such as "27017/tcp".
	ExposedPorts []string
	// RandomizeHostPorts lets the runtime pick free host ports for ExposedPorts.
	RandomizeHostPorts bool
}

// Handle is an opaque reference to a started container.
type Handle struct {
	ID   string
	Name string
}

// Inspection is a snapshot of a container's runtime state.
type Inspection struct {
	ID       string
	Running  bool
	ExitCode int
	// Host is the address where published ports are reachable.
	Host string
	// Ports maps container ports ("27017/tcp") to host ports ("49153").
	Ports map[string]string
}

// ContainerRuntime defines the contract for container operations.
type ContainerRuntime interface {
	PullImage(ctx context.Context, image string) error
	CreateAndStart(ctx context.Context, opts CreateOptions) (Handle, error)
	Logs(ctx context.Context, h Handle, timestamps bool) (stdout, stderr string, err error)
	Inspect(ctx context.Context, h Handle) (Inspection, error)
	Terminate(ctx context.Context, h Handle) error
}
