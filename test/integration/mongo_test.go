//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dockerruntime "mongokit/internal/runtime"
	"mongokit/pkg/mongo"
	"mongokit/pkg/wait"
)

func dockerOrSkip(t *testing.T) *dockerruntime.DockerRuntime {
	t.Helper()
	d, err := dockerruntime.NewDockerRuntime()
	if err != nil {
		t.Skipf("Docker not available: %s", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestMongo_ReadyMarkerCounts(t *testing.T) {
	d := dockerOrSkip(t)

	tests := []struct {
		name    string
		builder mongo.Builder
		markers int
		scheme  string
	}{
		{"with root user", mongo.NewBuilder(), 2, "mongodb://mongo:mongo@"},
		{"without credentials", mongo.NewBuilderWithoutCredentials(), 1, "mongodb://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
			defer cancel()

			ctr, err := tt.builder.WithRuntime(d).WithStartupTimeout(2 * time.Minute).Build()
			require.NoError(t, err)
			defer ctr.Terminate(context.Background())

			require.NoError(t, ctr.Start(ctx))

			stdout, stderr, err := ctr.Logs(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.markers, wait.CountMarker(stdout, stderr, mongo.ReadyMarker))

			uri, err := ctr.ConnectionString(ctx)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(uri, tt.scheme), uri)
		})
	}
}

func TestCLI_UpStatusDown(t *testing.T) {
	dockerOrSkip(t)
	binary := buildCLI(t)
	dir := t.TempDir()

	profile := `apiVersion: v1
kind: MongoProfile
metadata:
  name: integration-db
spec:
  readiness:
    timeout: 2m
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mongokit.yaml"), []byte(profile), 0644))
	t.Cleanup(func() { runCLI(t, binary, dir, "down") })

	output, err := runCLI(t, binary, dir, "up", "-f", "mongokit.yaml", "--detach")
	require.NoError(t, err, output)
	assert.Contains(t, output, "MongoDB is ready")
	assert.Contains(t, output, "mongodb://mongo:mongo@")

	output, err = runCLI(t, binary, dir, "status")
	require.NoError(t, err, output)
	assert.Contains(t, output, "integration-db")

	output, err = runCLI(t, binary, dir, "down")
	require.NoError(t, err, output)
	assert.Contains(t, output, "Removed")
	assert.NoFileExists(t, filepath.Join(dir, ".mongokit.state.json"))
}
