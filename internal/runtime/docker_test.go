package runtime

import (
	"strings"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortBindings(t *testing.T) {
	tests := []struct {
		name      string
		ports     []string
		randomize bool
		wantHost  string
		wantErr   bool
	}{
		{name: "randomized", ports: []string{"27017/tcp"}, randomize: true, wantHost: ""},
		{name: "fixed", ports: []string{"27017/tcp"}, randomize: false, wantHost: "27017"},
		{name: "protocol defaults to tcp", ports: []string{"27017"}, randomize: true, wantHost: ""},
		{name: "invalid port", ports: []string{"mongo/tcp"}, wantErr: true},
		{name: "empty port", ports: []string{""}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exposed, bindings, err := portBindings(tt.ports, tt.randomize)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			port := nat.Port("27017/tcp")
			assert.Contains(t, exposed, port)
			require.Len(t, bindings[port], 1)
			assert.Equal(t, tt.wantHost, bindings[port][0].HostPort)
		})
	}

	exposed, bindings, err := portBindings(nil, true)
	assert.NoError(t, err)
	assert.Nil(t, exposed)
	assert.Nil(t, bindings)
}

func TestPublishedPorts(t *testing.T) {
	ports := nat.PortMap{
		"27017/tcp": {{HostIP: "0.0.0.0", HostPort: "49153"}, {HostIP: "::", HostPort: "49153"}},
		"28017/tcp": nil,
	}

	assert.Equal(t, map[string]string{"27017/tcp": "49153"}, publishedPorts(ports))
}

func TestDaemonHost(t *testing.T) {
	tests := map[string]string{
		"unix:///var/run/docker.sock":    "localhost",
		"npipe:////./pipe/docker_engine": "localhost",
		"tcp://192.168.99.100:2376":      "192.168.99.100",
		"tcp://docker:2375":              "docker",
		"":                               "localhost",
	}
	for daemon, want := range tests {
		assert.Equal(t, want, daemonHost(daemon), daemon)
	}
}

func TestEnvList(t *testing.T) {
	got := envList(map[string]string{"B": "2", "A": "1"})
	assert.Equal(t, []string{"A=1", "B=2"}, got)
}

func TestNewDockerRuntime_RequiresDockerDaemon(t *testing.T) {
	// Either Docker is running or the error names the step that failed
	_, err := NewDockerRuntime()
	if err != nil {
		msg := err.Error()
		if !strings.HasPrefix(msg, "failed to create Docker client") && !strings.HasPrefix(msg, "failed to connect to Docker daemon") {
			t.Errorf("Unexpected error format: %s", msg)
		}
	}
}
