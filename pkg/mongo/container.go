package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"net/url"
	"sync"

	"mongokit/pkg/launch"
	"mongokit/pkg/runtime"
	"mongokit/pkg/wait"
)

// ErrNotStarted is returned by accessors that need a running container.
var ErrNotStarted = errors.New("container has not been started")

// Container is a MongoDB container bound to a runtime.
type Container struct {
	cfg     launch.Config
	runtime runtime.ContainerRuntime
	logger  *slog.Logger

	mu      sync.Mutex
	handle  runtime.Handle
	started bool
}

func newContainer(cfg launch.Config, rt runtime.ContainerRuntime, logger *slog.Logger) *Container {
	return &Container{cfg: cfg, runtime: rt, logger: logger}
}

// Configuration returns a copy of the configuration the container is started with.
func (c *Container) Configuration() launch.Config {
	return c.cfg.Clone()
}

// CreateOptions returns the runtime options Start passes to the runtime.
func (c *Container) CreateOptions() runtime.CreateOptions {
	opts := runtime.CreateOptions{
		Name:               c.cfg.NameValue(),
		Image:              c.cfg.ImageValue(),
		Command:            append([]string(nil), c.cfg.Command...),
		EnvVars:            maps.Clone(c.cfg.Env),
		Labels:             maps.Clone(c.cfg.Labels),
		RandomizeHostPorts: c.cfg.RandomizeHostPortValue(),
	}
	if port := c.cfg.ExposedPortValue(); port != "" {
		opts.ExposedPorts = []string{port}
	}
	return opts
}

// Start pulls the image, starts the container and blocks until the wait strategy is satisfied.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("container already started")
	}
	c.started = true
	c.mu.Unlock()

	image := c.cfg.ImageValue()
	c.logger.Info("Pulling image", "image", image)
	if err := c.runtime.PullImage(ctx, image); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", image, err)
	}

	h, err := c.runtime.CreateAndStart(ctx, c.CreateOptions())
	if err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	c.mu.Lock()
	c.handle = h
	c.mu.Unlock()

	c.logger.Info("Waiting for MongoDB", "container", shortID(h.ID), "strategy", c.cfg.WaitStrategy.Kind.String())
	if err := wait.Until(ctx, *c.cfg.WaitStrategy, &target{rt: c.runtime, h: h}, c.logger); err != nil {
		return fmt.Errorf("container %s: %w", shortID(h.ID), err)
	}
	return nil
}

// Handle returns the runtime handle of a started container.
func (c *Container) Handle() (runtime.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle.ID == "" {
		return runtime.Handle{}, ErrNotStarted
	}
	return c.handle, nil
}

// Endpoint returns the host:port address mongod is reachable on.
func (c *Container) Endpoint(ctx context.Context) (string, error) {
	h, err := c.Handle()
	if err != nil {
		return "", err
	}
	return (&target{rt: c.runtime, h: h}).Endpoint(ctx, c.cfg.ExposedPortValue())
}

// Host returns the address published ports are reachable on.
func (c *Container) Host(ctx context.Context) (string, error) {
	endpoint, err := c.Endpoint(ctx)
	if err != nil {
		return "", err
	}
	host, _, err := net.SplitHostPort(endpoint)
	return host, err
}

// MappedPort returns the host port bound to the exposed mongod port.
func (c *Container) MappedPort(ctx context.Context) (string, error) {
	endpoint, err := c.Endpoint(ctx)
	if err != nil {
		return "", err
	}
	_, port, err := net.SplitHostPort(endpoint)
	return port, err
}

// ConnectionString returns a mongodb:// URI for the container, with credentials when authentication is on.
func (c *Container) ConnectionString(ctx context.Context) (string, error) {
	endpoint, err := c.Endpoint(ctx)
	if err != nil {
		return "", err
	}
	return ConnectionString(c.cfg, endpoint), nil
}

// ConnectionString formats the URI clients use to reach a server started from cfg at endpoint (host:port).
func ConnectionString(cfg launch.Config, endpoint string) string {
	u := url.URL{Scheme: "mongodb", Host: endpoint}
	if authEnabled(cfg) {
		u.User = url.UserPassword(cfg.UsernameValue(), cfg.PasswordValue())
	}
	return u.String()
}

// Logs returns everything the container has written so far.
func (c *Container) Logs(ctx context.Context) (stdout, stderr string, err error) {
	h, err := c.Handle()
	if err != nil {
		return "", "", err
	}
	return c.runtime.Logs(ctx, h, false)
}

// Terminate stops and removes the container. It is a no-op before Start created one.
func (c *Container) Terminate(ctx context.Context) error {
	h, err := c.Handle()
	if err != nil {
		return nil
	}
	c.logger.Info("Terminating container", "container", shortID(h.ID))
	if err := c.runtime.Terminate(ctx, h); err != nil {
		return fmt.Errorf("failed to terminate container %s: %w", shortID(h.ID), err)
	}
	return nil
}

// NewTarget returns the wait.Target view of a container started by rt.
func NewTarget(rt runtime.ContainerRuntime, h runtime.Handle) wait.Target {
	return &target{rt: rt, h: h}
}

// target adapts a runtime handle to wait.Target.
type target struct {
	rt runtime.ContainerRuntime
	h  runtime.Handle
}

func (t *target) Logs(ctx context.Context, timestamps bool) (string, string, error) {
	return t.rt.Logs(ctx, t.h, timestamps)
}

func (t *target) Endpoint(ctx context.Context, port string) (string, error) {
	info, err := t.rt.Inspect(ctx, t.h)
	if err != nil {
		return "", fmt.Errorf("failed to inspect container: %w", err)
	}
	if !info.Running {
		return "", fmt.Errorf("container exited with code %d", info.ExitCode)
	}
	hostPort := info.Ports[port]
	if hostPort == "" {
		return "", wait.ErrPortUnavailable
	}
	return net.JoinHostPort(info.Host, hostPort), nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
