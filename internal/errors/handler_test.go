package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mongokit/internal/ui"
)

func newTestHandler(t *testing.T) (*ErrorHandler, string, *bytes.Buffer) {
	t.Helper()
	logDir := filepath.Join(t.TempDir(), "logs")
	t.Setenv(LogDirEnv, logDir)

	var out bytes.Buffer
	handler, err := NewErrorHandlerWithConsole(ui.NewConsoleWithWriters(&out, &out))
	require.NoError(t, err)
	return handler, filepath.Join(logDir, logFileName), &out
}

func readLogEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestErrorHandler_Handle_MongoKitError(t *testing.T) {
	handler, logPath, out := newTestHandler(t)

	handler.Handle(NewNotReadyError(
		"MongoDB did not become ready",
		"the readiness marker was logged 1 time(s), expected 2",
		"Check the container logs with 'docker logs'",
		errors.New("container did not become ready"),
	))

	assert.Contains(t, out.String(), "Error: MongoDB did not become ready")
	assert.Contains(t, out.String(), "Suggestion: Check the container logs")

	entries := readLogEntries(t, logPath)
	require.Len(t, entries, 1)
	assert.Equal(t, "MongoKit error occurred", entries[0]["msg"])
	assert.Equal(t, "not_ready", entries[0]["type"])
	assert.Equal(t, "container did not become ready", entries[0]["error"])
}

func TestErrorHandler_Handle_GenericError(t *testing.T) {
	handler, logPath, out := newTestHandler(t)

	handler.Handle(errors.New("generic test error"))

	assert.Equal(t, "Error: generic test error\n", out.String())
	entries := readLogEntries(t, logPath)
	require.Len(t, entries, 1)
	assert.Equal(t, "generic", entries[0]["type"])
}

func TestErrorHandler_Handle_NilError(t *testing.T) {
	handler, _, out := newTestHandler(t)

	handler.Handle(nil)
	assert.Empty(t, out.String())
}

func TestKindName(t *testing.T) {
	tests := []struct {
		errorType error
		expected  string
	}{
		{ErrProfileNotFound, "profile_not_found"},
		{ErrProfileParseFailed, "profile_parse_failed"},
		{ErrConfigInvalid, "config_invalid"},
		{ErrRuntimeFailed, "runtime_failed"},
		{ErrNotReady, "not_ready"},
		{ErrStateFailed, "state_failed"},
		{errors.New("unknown"), "unknown"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, kindName(test.errorType))
	}
}

func TestGetDefaultHandler(t *testing.T) {
	t.Setenv(LogDirEnv, t.TempDir())
	resetDefaultHandler()
	defer resetDefaultHandler()

	handler1, err := GetDefaultHandler()
	require.NoError(t, err)
	handler2, err := GetDefaultHandler()
	require.NoError(t, err)

	assert.Same(t, handler1, handler2)
}

func TestHandleError(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")
	t.Setenv(LogDirEnv, logDir)
	resetDefaultHandler()
	defer resetDefaultHandler()

	HandleError(errors.New("test error for HandleError"))

	assert.FileExists(t, filepath.Join(logDir, logFileName))
}

func TestMongoKitError(t *testing.T) {
	originalErr := errors.New("original error message")
	err := NewRuntimeError("context", "cause", "suggestion", originalErr)

	assert.Equal(t, originalErr.Error(), err.Error())
	assert.Same(t, originalErr, err.Unwrap())
	assert.ErrorIs(t, err, ErrRuntimeFailed)
	assert.ErrorIs(t, err, originalErr)
	assert.NotErrorIs(t, err, ErrConfigInvalid)

	wrapped := fmt.Errorf("up: %w", err)
	var target *MongoKitError
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, "cause", target.Cause)
}

func TestErrorConstructors(t *testing.T) {
	originalErr := errors.New("test error")

	tests := []struct {
		name         string
		constructor  func(string, string, string, error) *MongoKitError
		expectedType error
	}{
		{"NewProfileError", NewProfileError, ErrProfileNotFound},
		{"NewParseError", NewParseError, ErrProfileParseFailed},
		{"NewConfigError", NewConfigError, ErrConfigInvalid},
		{"NewRuntimeError", NewRuntimeError, ErrRuntimeFailed},
		{"NewNotReadyError", NewNotReadyError, ErrNotReady},
		{"NewStateError", NewStateError, ErrStateFailed},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.constructor("context", "cause", "suggestion", originalErr)

			assert.Equal(t, test.expectedType, err.Type)
			assert.Equal(t, "context", err.Context)
			assert.Equal(t, "cause", err.Cause)
			assert.Equal(t, "suggestion", err.Suggestion)
			assert.Same(t, originalErr, err.OriginalErr)
		})
	}
}

func TestStandardLogDir(t *testing.T) {
	t.Run("environment variable override", func(t *testing.T) {
		t.Setenv(LogDirEnv, "/custom/log/dir")

		result, err := standardLogDir()
		require.NoError(t, err)
		assert.Equal(t, "/custom/log/dir", result)
	})

	t.Run("platform-specific directories", func(t *testing.T) {
		t.Setenv(LogDirEnv, "")
		t.Setenv("XDG_DATA_HOME", "")

		result, err := standardLogDir()
		require.NoError(t, err)

		homeDir, _ := os.UserHomeDir()
		switch runtime.GOOS {
		case "darwin":
			assert.Equal(t, filepath.Join(homeDir, "Library", "Logs", "MongoKit"), result)
		case "linux", "freebsd", "openbsd", "netbsd":
			assert.Equal(t, filepath.Join(homeDir, ".local", "share", "mongokit", "logs"), result)
		}
	})

	if runtime.GOOS == "linux" {
		t.Run("XDG data home", func(t *testing.T) {
			t.Setenv(LogDirEnv, "")
			t.Setenv("XDG_DATA_HOME", "/xdg/data")

			result, err := standardLogDir()
			require.NoError(t, err)
			assert.Equal(t, filepath.Join("/xdg/data", "mongokit", "logs"), result)
		})
	}
}

func TestResolveLogDir(t *testing.T) {
	t.Run("successful standard directory creation", func(t *testing.T) {
		logDir := filepath.Join(t.TempDir(), "logs")
		t.Setenv(LogDirEnv, logDir)

		result, fallbackUsed, err := resolveLogDir()
		require.NoError(t, err)
		assert.False(t, fallbackUsed)
		assert.Equal(t, logDir, result)
		assert.DirExists(t, logDir)
	})

	t.Run("fallback to current directory", func(t *testing.T) {
		// A directory below a regular file cannot be created, even as root
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0644))
		t.Setenv(LogDirEnv, filepath.Join(blocker, "logs"))

		result, fallbackUsed, err := resolveLogDir()
		require.NoError(t, err)
		assert.True(t, fallbackUsed)

		currentDir, _ := os.Getwd()
		assert.Equal(t, currentDir, result)
	})
}

func TestRotateIfFull(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	t.Run("no rotation needed for small file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(logPath, []byte(strings.Repeat("small log entry\n", 10)), 0644))

		require.NoError(t, rotateIfFull(logPath))
		assert.FileExists(t, logPath)
		assert.NoFileExists(t, logPath+".1")
	})

	t.Run("rotation needed for large file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(logPath, bytes.Repeat([]byte("x"), 10*1024*1024), 0644))

		require.NoError(t, rotateIfFull(logPath))
		assert.FileExists(t, logPath+".1")
		assert.NoFileExists(t, logPath)
	})

	t.Run("non-existent file", func(t *testing.T) {
		assert.NoError(t, rotateIfFull(filepath.Join(t.TempDir(), "missing.log")))
	})
}

func TestRotateLogs(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	files := []string{logPath, logPath + ".1", logPath + ".2", logPath + ".3", logPath + ".4"}
	for i, file := range files {
		require.NoError(t, os.WriteFile(file, []byte(fmt.Sprintf("Log file content %d\n", i)), 0644))
	}

	require.NoError(t, rotateLogs(logPath))

	for i := 1; i <= 4; i++ {
		content, err := os.ReadFile(fmt.Sprintf("%s.%d", logPath, i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("Log file content %d\n", i-1), string(content))
	}
	assert.NoFileExists(t, logPath+".5", "oldest log file is removed")
	assert.NoFileExists(t, logPath, "current log file is moved")
}

func TestOpenLogFile(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")
	t.Setenv(LogDirEnv, logDir)

	logFile, err := openLogFile()
	require.NoError(t, err)
	defer logFile.Close()

	assert.Equal(t, filepath.Join(logDir, logFileName), logFile.Name())
}
