package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"go.uber.org/multierr"

	"mongokit/pkg/runtime"
)

// stopTimeout is how many seconds a container gets to shut down before it is killed.
const stopTimeout = 10

// DockerRuntime implements the ContainerRuntime interface using Docker client.
type DockerRuntime struct {
	client *client.Client
}

// NewDockerRuntime creates a new DockerRuntime instance using client.FromEnv.
func NewDockerRuntime() (*DockerRuntime, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	// Check if Docker daemon is accessible
	if _, err := dockerClient.Ping(context.Background()); err != nil {
		dockerClient.Close()
		return nil, fmt.Errorf("failed to connect to Docker daemon: %w", err)
	}

	return &DockerRuntime{
		client: dockerClient,
	}, nil
}

// Close releases the underlying client.
func (d *DockerRuntime) Close() error {
	return d.client.Close()
}

// PullImage pulls a Docker image.
func (d *DockerRuntime) PullImage(ctx context.Context, imageName string) error {
	slog.Info("Pulling Docker image", "image", imageName)

	reader, err := d.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", imageName, err)
	}
	defer reader.Close()

	// The pull only completes once the progress stream is drained
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to stream image pull output: %w", err)
	}

	slog.Info("Successfully pulled Docker image", "image", imageName)
	return nil
}

// CreateAndStart creates a container from opts and starts it.
func (d *DockerRuntime) CreateAndStart(ctx context.Context, opts runtime.CreateOptions) (runtime.Handle, error) {
	slog.Info("Creating container", "image", opts.Image, "name", opts.Name, "ports", opts.ExposedPorts)

	exposed, bindings, err := portBindings(opts.ExposedPorts, opts.RandomizeHostPorts)
	if err != nil {
		return runtime.Handle{}, err
	}

	containerConfig := &container.Config{
		Image:        opts.Image,
		Cmd:          opts.Command,
		Env:          envList(opts.EnvVars),
		Labels:       opts.Labels,
		ExposedPorts: exposed,
	}
	hostConfig := &container.HostConfig{
		PortBindings: bindings,
	}

	resp, err := d.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, opts.Name)
	if err != nil {
		return runtime.Handle{}, fmt.Errorf("failed to create container: %w", err)
	}

	if err := d.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		// Clean up on start failure
		if removeErr := d.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true}); removeErr != nil {
			slog.Error("Failed to remove container after start failure", "containerID", resp.ID, "error", removeErr)
		}
		return runtime.Handle{}, fmt.Errorf("failed to start container: %w", err)
	}

	slog.Info("Container started", "containerID", resp.ID)
	return runtime.Handle{ID: resp.ID, Name: opts.Name}, nil
}

// Logs returns the complete stdout and stderr of a container.
func (d *DockerRuntime) Logs(ctx context.Context, h runtime.Handle, timestamps bool) (string, string, error) {
	reader, err := d.client.ContainerLogs(ctx, h.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: timestamps,
	})
	if err != nil {
		return "", "", d.wrapNotFound(err, "failed to get container logs", h)
	}
	defer reader.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return "", "", fmt.Errorf("failed to demultiplex container logs: %w", err)
	}
	return stdout.String(), stderr.String(), nil
}

// Inspect returns the running state and published ports of a container.
func (d *DockerRuntime) Inspect(ctx context.Context, h runtime.Handle) (runtime.Inspection, error) {
	info, err := d.client.ContainerInspect(ctx, h.ID)
	if err != nil {
		return runtime.Inspection{}, d.wrapNotFound(err, "failed to inspect container", h)
	}

	result := runtime.Inspection{
		ID:   info.ID,
		Host: daemonHost(d.client.DaemonHost()),
	}
	if info.State != nil {
		result.Running = info.State.Running
		result.ExitCode = info.State.ExitCode
	}
	if info.NetworkSettings != nil {
		result.Ports = publishedPorts(info.NetworkSettings.Ports)
	}
	return result, nil
}

// Terminate stops and removes a container. A container that no longer exists is not an error.
func (d *DockerRuntime) Terminate(ctx context.Context, h runtime.Handle) error {
	slog.Info("Removing container", "containerID", h.ID)

	var errs error
	timeout := stopTimeout
	if err := d.client.ContainerStop(ctx, h.ID, container.StopOptions{Timeout: &timeout}); err != nil && !client.IsErrNotFound(err) {
		errs = multierr.Append(errs, fmt.Errorf("failed to stop container: %w", err))
	}
	if err := d.client.ContainerRemove(ctx, h.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil && !client.IsErrNotFound(err) {
		errs = multierr.Append(errs, fmt.Errorf("failed to remove container: %w", err))
	}
	return errs
}

func (d *DockerRuntime) wrapNotFound(err error, msg string, h runtime.Handle) error {
	if client.IsErrNotFound(err) {
		return fmt.Errorf("%s %s: %w", msg, h.ID, runtime.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", msg, h.ID, err)
}

// portBindings builds the exposed port set and host bindings for container ports like "27017/tcp".
// A randomized binding leaves the host port empty so the daemon picks a free one.
func portBindings(ports []string, randomize bool) (nat.PortSet, nat.PortMap, error) {
	if len(ports) == 0 {
		return nil, nil, nil
	}

	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, spec := range ports {
		proto, number := nat.SplitProtoPort(spec)
		if number == "" {
			return nil, nil, fmt.Errorf("invalid exposed port %q", spec)
		}
		port, err := nat.NewPort(proto, number)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid exposed port %q: %w", spec, err)
		}

		hostPort := ""
		if !randomize {
			hostPort = port.Port()
		}
		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{HostPort: hostPort}}
	}
	return exposed, bindings, nil
}

// publishedPorts maps each container port to the first host port it is bound to.
func publishedPorts(ports nat.PortMap) map[string]string {
	out := make(map[string]string, len(ports))
	for port, bindings := range ports {
		for _, b := range bindings {
			if b.HostPort != "" {
				out[string(port)] = b.HostPort
				break
			}
		}
	}
	return out
}

// daemonHost returns the host published ports are reachable on for a daemon address.
func daemonHost(daemon string) string {
	u, err := url.Parse(daemon)
	if err != nil {
		return "localhost"
	}
	switch u.Scheme {
	case "tcp", "http", "https":
		if host := u.Hostname(); host != "" {
			return host
		}
	}
	return "localhost"
}

func envList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for key, value := range env {
		list = append(list, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(list)
	return list
}
