package tcmongo

import (
	"context"
	"fmt"
	"maps"
	"net"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	tcwait "github.com/testcontainers/testcontainers-go/wait"

	"mongokit/pkg/launch"
	"mongokit/pkg/mongo"
)

// Container is a MongoDB container started by testcontainers-go.
type Container struct {
	testcontainers.Container
	cfg launch.Config
}

// Run resolves b and starts the container. On a start failure the returned
// container, when non-nil, must still be terminated.
func Run(ctx context.Context, b mongo.Builder) (*Container, error) {
	cfg, err := b.Resolve()
	if err != nil {
		return nil, err
	}
	strategy, err := Strategy(*cfg.WaitStrategy)
	if err != nil {
		return nil, err
	}

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: ContainerRequest(cfg, strategy),
		Started:          true,
	})
	var c *Container
	if ctr != nil {
		c = &Container{Container: ctr, cfg: cfg}
	}
	if err != nil {
		return c, fmt.Errorf("failed to run MongoDB container: %w", err)
	}
	return c, nil
}

// ContainerRequest maps a resolved configuration onto a testcontainers request.
func ContainerRequest(cfg launch.Config, strategy tcwait.Strategy) testcontainers.ContainerRequest {
	req := testcontainers.ContainerRequest{
		Image:      cfg.ImageValue(),
		Name:       cfg.NameValue(),
		Cmd:        append([]string(nil), cfg.Command...),
		Env:        maps.Clone(cfg.Env),
		Labels:     maps.Clone(cfg.Labels),
		WaitingFor: strategy,
	}
	if port := cfg.ExposedPortValue(); port != "" {
		if !cfg.RandomizeHostPortValue() {
			port = nat.Port(port).Port() + ":" + port
		}
		req.ExposedPorts = []string{port}
	}
	return req
}

// ConnectionString returns a mongodb:// URI for the container.
func (c *Container) ConnectionString(ctx context.Context) (string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := c.MappedPort(ctx, nat.Port(c.cfg.ExposedPortValue()))
	if err != nil {
		return "", fmt.Errorf("failed to get mapped port: %w", err)
	}
	return mongo.ConnectionString(c.cfg, net.JoinHostPort(host, port.Port())), nil
}
