//go:build integration

package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildCLI compiles cmd/mongokit into a temporary directory and returns the binary path.
func buildCLI(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)

	binaryPath := filepath.Join(t.TempDir(), "mongokit")
	buildCmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/mongokit")
	buildCmd.Dir = filepath.Join(wd, "..", "..")
	output, err := buildCmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI binary: %s", output)
	return binaryPath
}

// runCLI runs the binary in dir with the error log redirected to dir.
func runCLI(t *testing.T, binary, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "MONGOKIT_LOG_DIR="+dir)
	output, err := cmd.CombinedOutput()
	return string(output), err
}
