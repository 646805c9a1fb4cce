package app

import (
	"fmt"
	"sort"
	"strings"

	dockerruntime "mongokit/internal/runtime"
	"mongokit/pkg/runtime"
)

// RuntimeConstructor creates a container runtime.
type RuntimeConstructor func() (runtime.ContainerRuntime, error)

// RuntimeFactory creates container runtimes by the name used in profiles and
// session state, decoupling the orchestrator from concrete runtime implementations.
type RuntimeFactory struct {
	constructors map[string]RuntimeConstructor
}

// NewRuntimeFactory creates a factory that knows the "docker" runtime.
func NewRuntimeFactory() *RuntimeFactory {
	f := &RuntimeFactory{constructors: map[string]RuntimeConstructor{}}
	f.Register("docker", func() (runtime.ContainerRuntime, error) {
		return dockerruntime.NewDockerRuntime()
	})
	return f
}

// Register adds or replaces the constructor for name.
func (f *RuntimeFactory) Register(name string, ctor RuntimeConstructor) {
	f.constructors[name] = ctor
}

// GetRuntime returns a new runtime for name.
func (f *RuntimeFactory) GetRuntime(name string) (runtime.ContainerRuntime, error) {
	ctor, ok := f.constructors[name]
	if !ok {
		return nil, fmt.Errorf("unsupported runtime: %s (available: %s)", name, strings.Join(f.names(), ", "))
	}
	rt, err := ctor()
	if err != nil {
		return nil, fmt.Errorf("failed to create %s runtime: %w", name, err)
	}
	return rt, nil
}

func (f *RuntimeFactory) names() []string {
	names := make([]string, 0, len(f.constructors))
	for name := range f.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
