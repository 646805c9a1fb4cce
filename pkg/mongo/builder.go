// Package mongo starts throwaway MongoDB containers for tests.
//
// A Builder is an immutable value: every With* call returns a new Builder and
// leaves the receiver untouched, so one base builder can be branched freely.
//
//	ctr, err := mongo.NewBuilder().WithImage("mongo:7.0").Build()
//	if err != nil { ... }
//	if err := ctr.Start(ctx); err != nil { ... }
//	defer ctr.Terminate(ctx)
//	uri, _ := ctr.ConnectionString(ctx)
package mongo

import (
	"fmt"
	"log/slog"
	"time"

	dockerruntime "mongokit/internal/runtime"
	"mongokit/pkg/launch"
	"mongokit/pkg/runtime"
	"mongokit/pkg/wait"
)

const (
	// DefaultImage is the MongoDB image started when none is configured.
	DefaultImage = "mongo:6.0"

	// DefaultPort is the port mongod listens on inside the container.
	DefaultPort = 27017

	// DefaultUsername and DefaultPassword are the root credentials NewBuilder starts with.
	DefaultUsername = "mongo"
	DefaultPassword = "mongo"

	// UsernameEnv and PasswordEnv are read by the official image to create the root user.
	UsernameEnv = "MONGO_INITDB_ROOT_USERNAME"
	PasswordEnv = "MONGO_INITDB_ROOT_PASSWORD"

	// ReadyMarker is logged by mongod each time a listener is bound.
	ReadyMarker = "Waiting for connections"

	// ModuleLabel marks containers started by this package.
	ModuleLabel = "org.mongokit.module"
)

type credentialMode int

const (
	defaultCredentials credentialMode = iota
	noDefaultCredentials
)

// Builder accumulates the launch configuration of a MongoDB container.
type Builder struct {
	cfg        launch.Config
	mode       credentialMode
	customWait bool
	runtime    runtime.ContainerRuntime
	logger     *slog.Logger
}

// NewBuilder returns a builder seeded with DefaultUsername and DefaultPassword.
func NewBuilder() Builder {
	return newBuilder(defaultCredentials)
}

// NewBuilderWithoutCredentials returns a builder that sets no credentials.
// Unless both WithUsername and WithPassword are called, MongoDB runs without authentication.
func NewBuilderWithoutCredentials() Builder {
	return newBuilder(noDefaultCredentials)
}

func newBuilder(mode credentialMode) Builder {
	b := Builder{mode: mode}.init()
	if mode == defaultCredentials {
		b = b.WithUsername(DefaultUsername).WithPassword(DefaultPassword)
	}
	return b
}

func (b Builder) init() Builder {
	return b.merge(launch.Config{
		Image:             launch.String(DefaultImage),
		ExposedPort:       launch.String(portSpec(DefaultPort)),
		RandomizeHostPort: launch.Bool(true),
		Labels:            map[string]string{ModuleLabel: "mongodb"},
		WaitStrategy:      launch.Strategy(defaultWaitStrategy(b.mode == defaultCredentials, portSpec(DefaultPort))),
	})
}

func (b Builder) merge(c launch.Config) Builder {
	b.cfg = launch.Merge(b.cfg, c)
	return b
}

// syncCredentials keeps the credential fields equal to credential variables in env.
func (b Builder) syncCredentials(env map[string]string) Builder {
	if name, ok := env[UsernameEnv]; ok {
		b = b.WithUsername(name)
	}
	if secret, ok := env[PasswordEnv]; ok {
		b = b.WithPassword(secret)
	}
	return b
}

// WithUsername sets the root username and the matching environment variable.
func (b Builder) WithUsername(name string) Builder {
	return b.merge(launch.Config{
		Username: launch.String(name),
		Env:      map[string]string{UsernameEnv: name},
	})
}

// WithPassword sets the root password and the matching environment variable.
func (b Builder) WithPassword(secret string) Builder {
	return b.merge(launch.Config{
		Password: launch.String(secret),
		Env:      map[string]string{PasswordEnv: secret},
	})
}

// WithImage sets the image reference.
func (b Builder) WithImage(image string) Builder {
	return b.merge(launch.Config{Image: launch.String(image)})
}

// WithName sets the container name.
func (b Builder) WithName(name string) Builder {
	return b.merge(launch.Config{Name: launch.String(name)})
}

// WithCommand overrides the image command.
func (b Builder) WithCommand(args ...string) Builder {
	return b.merge(launch.Config{Command: append([]string{}, args...)})
}

// WithExposedPort sets the container port mongod listens on and whether the host port is random.
func (b Builder) WithExposedPort(port int, randomize bool) Builder {
	return b.merge(launch.Config{
		ExposedPort:       launch.String(portSpec(port)),
		RandomizeHostPort: launch.Bool(randomize),
	})
}

// WithEnvironment sets one environment variable.
// UsernameEnv and PasswordEnv go through WithUsername and WithPassword.
func (b Builder) WithEnvironment(key, value string) Builder {
	switch key {
	case UsernameEnv:
		return b.WithUsername(value)
	case PasswordEnv:
		return b.WithPassword(value)
	}
	return b.merge(launch.Config{Env: map[string]string{key: value}})
}

// WithLabel sets one container label.
func (b Builder) WithLabel(key, value string) Builder {
	return b.merge(launch.Config{Labels: map[string]string{key: value}})
}

// WithWaitStrategy replaces the readiness condition. The strategy is used verbatim.
func (b Builder) WithWaitStrategy(s wait.Strategy) Builder {
	b = b.merge(launch.Config{WaitStrategy: launch.Strategy(s)})
	b.customWait = true
	return b
}

// WithStartupTimeout bounds how long Start waits for readiness.
func (b Builder) WithStartupTimeout(d time.Duration) Builder {
	s := b.currentWait().WithStartupTimeout(d)
	return b.merge(launch.Config{WaitStrategy: &s})
}

// WithPollInterval sets the delay between readiness checks.
func (b Builder) WithPollInterval(d time.Duration) Builder {
	s := b.currentWait().WithPollInterval(d)
	return b.merge(launch.Config{WaitStrategy: &s})
}

// WithRuntime sets the container runtime used by Build. The default is the local Docker daemon.
func (b Builder) WithRuntime(rt runtime.ContainerRuntime) Builder {
	b.runtime = rt
	return b
}

// WithLogger sets the logger handed to the container.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// CloneContainer merges generic container-creation settings into the configuration.
func (b Builder) CloneContainer(p launch.ContainerParams) Builder {
	if p.WaitStrategy != nil {
		b.customWait = true
	}
	b = b.merge(p.Config())
	return b.syncCredentials(p.Env)
}

// CloneResource merges generic resource settings into the configuration.
func (b Builder) CloneResource(p launch.ResourceParams) Builder {
	return b.merge(p.Config())
}

// Configuration returns a copy of the accumulated configuration.
func (b Builder) Configuration() launch.Config {
	return b.cfg.Clone()
}

// Resolve validates the configuration and returns the one a container is started with.
// While the wait strategy is the default one it follows the final credentials.
func (b Builder) Resolve() (launch.Config, error) {
	if err := b.Validate(); err != nil {
		return launch.Config{}, err
	}
	if b.customWait {
		return b.cfg.Clone(), nil
	}

	current := b.currentWait()
	s := defaultWaitStrategy(authEnabled(b.cfg), b.cfg.ExposedPortValue())
	s.StartupTimeout = current.StartupTimeout
	s.PollInterval = current.PollInterval
	return launch.Merge(b.cfg, launch.Config{WaitStrategy: &s}), nil
}

// Build validates the configuration and binds it to the runtime.
// Nothing is created until Start is called on the returned container.
func (b Builder) Build() (*Container, error) {
	cfg, err := b.Resolve()
	if err != nil {
		return nil, err
	}

	rt := b.runtime
	if rt == nil {
		docker, err := dockerruntime.NewDockerRuntime()
		if err != nil {
			return nil, fmt.Errorf("failed to create container runtime: %w", err)
		}
		rt = docker
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	return newContainer(cfg, rt, logger), nil
}

func (b Builder) currentWait() wait.Strategy {
	if b.cfg.WaitStrategy == nil {
		return defaultWaitStrategy(authEnabled(b.cfg), b.cfg.ExposedPortValue())
	}
	return b.cfg.WaitStrategy.Clone()
}

// defaultWaitStrategy waits for the port and for the readiness marker. With a root
// user the entrypoint starts mongod twice, once for initialisation and once for
// real, so the marker is logged twice; without one it is logged once.
func defaultWaitStrategy(auth bool, port string) wait.Strategy {
	occurrences := 1
	if auth {
		occurrences = 2
	}
	return wait.ForAll(
		wait.ForListeningPort(port),
		wait.ForLogMarker(ReadyMarker, occurrences),
	)
}

func authEnabled(cfg launch.Config) bool {
	return cfg.UsernameValue() != "" || cfg.PasswordValue() != ""
}

func portSpec(port int) string {
	return fmt.Sprintf("%d/tcp", port)
}
