package tcmongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mongokit/pkg/mongo"
)

func TestContainerRequest(t *testing.T) {
	cfg, err := mongo.NewBuilder().WithName("mongo-req").WithLabel("team", "core").Resolve()
	require.NoError(t, err)

	req := ContainerRequest(cfg, nil)

	assert.Equal(t, mongo.DefaultImage, req.Image)
	assert.Equal(t, "mongo-req", req.Name)
	assert.Equal(t, []string{"27017/tcp"}, req.ExposedPorts)
	assert.Equal(t, "mongo", req.Env[mongo.UsernameEnv])
	assert.Equal(t, "mongo", req.Env[mongo.PasswordEnv])
	assert.Equal(t, "core", req.Labels["team"])
	assert.Empty(t, req.Cmd)
}

func TestContainerRequest_FixedHostPort(t *testing.T) {
	cfg, err := mongo.NewBuilder().WithExposedPort(27017, false).Resolve()
	require.NoError(t, err)

	assert.Equal(t, []string{"27017:27017/tcp"}, ContainerRequest(cfg, nil).ExposedPorts)
}

func TestRun_InvalidConfiguration(t *testing.T) {
	ctr, err := Run(context.Background(), mongo.NewBuilder().WithUsername(""))
	assert.Nil(t, ctr)
	assert.ErrorIs(t, err, mongo.ErrInvalidConfiguration)
}
