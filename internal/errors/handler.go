package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"mongokit/internal/ui"
)

// LogDirEnv overrides the directory the error log is written to.
const LogDirEnv = "MONGOKIT_LOG_DIR"

const (
	logFileName = "mongokit.log"
	maxLogSize  = 10 << 20
	// keptLogs is the number of rotated files (mongokit.log.1 to .4) kept next to the live log.
	keptLogs = 4
)

var kindNames = map[error]string{
	ErrProfileNotFound:    "profile_not_found",
	ErrProfileParseFailed: "profile_parse_failed",
	ErrConfigInvalid:      "config_invalid",
	ErrRuntimeFailed:      "runtime_failed",
	ErrNotReady:           "not_ready",
	ErrStateFailed:        "state_failed",
}

// ErrorHandler prints errors for the user and records them as JSON in the error log.
type ErrorHandler struct {
	logger  *slog.Logger
	console *ui.Console
}

func NewErrorHandler() (*ErrorHandler, error) {
	return NewErrorHandlerWithConsole(ui.NewConsole())
}

// NewErrorHandlerWithConsole returns a handler printing to console and logging JSON to the log file.
func NewErrorHandlerWithConsole(console *ui.Console) (*ErrorHandler, error) {
	logFile, err := openLogFile()
	if err != nil {
		return nil, err
	}

	return &ErrorHandler{
		logger:  slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: slog.LevelInfo})),
		console: console,
	}, nil
}

func (h *ErrorHandler) Handle(err error) {
	if err == nil {
		return
	}

	var mkErr *MongoKitError
	if !errors.As(err, &mkErr) {
		h.logger.Error("Unhandled error occurred", "error", err.Error(), "type", "generic")
		h.console.PrintError(err.Error())
		return
	}

	h.logger.LogAttrs(context.Background(), slog.LevelError, "MongoKit error occurred", mkErr.logAttrs()...)
	h.console.PrintError(h.console.FormatErrorMessage(mkErr.Context, mkErr.Cause, mkErr.Suggestion))
}

func (e *MongoKitError) logAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("error", e.OriginalErr.Error()),
		slog.String("type", kindName(e.Type)),
		slog.String("context", e.Context),
	}
	if e.Cause != "" {
		attrs = append(attrs, slog.String("cause", e.Cause))
	}
	if e.Suggestion != "" {
		attrs = append(attrs, slog.String("suggestion", e.Suggestion))
	}
	return attrs
}

func kindName(kind error) string {
	if name, ok := kindNames[kind]; ok {
		return name
	}
	return "unknown"
}

// standardLogDir returns the per-user log directory of the platform, or $MONGOKIT_LOG_DIR when set.
func standardLogDir() (string, error) {
	if dir := os.Getenv(LogDirEnv); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "MongoKit"), nil
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, "MongoKit", "logs"), nil
	default:
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			dataHome = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(dataHome, "mongokit", "logs"), nil
	}
}

// ensureWritable creates dir if needed and checks a file can be created in it.
func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".mongokit-*")
	if err != nil {
		return err
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// resolveLogDir returns the standard log directory, or the working directory when
// the standard one cannot be used. fallback reports which one was picked.
func resolveLogDir() (dir string, fallback bool, err error) {
	dir, err = standardLogDir()
	if err == nil {
		if err = ensureWritable(dir); err == nil {
			return dir, false, nil
		}
	}

	cwd, cwdErr := os.Getwd()
	if cwdErr != nil {
		return "", true, fmt.Errorf("cannot determine current directory for fallback logging: %w", cwdErr)
	}
	fmt.Fprintf(os.Stderr, "Warning: cannot use log directory %q: %v. Falling back to current directory for logging.\n", dir, err)
	return cwd, true, nil
}

func rotatedName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}

// rotateLogs moves path to path.1, path.1 to path.2 and so on, dropping the oldest file.
func rotateLogs(path string) error {
	oldest := rotatedName(path, keptLogs)
	if err := os.Remove(oldest); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to remove old log file", "path", oldest, "error", err)
	}
	for n := keptLogs - 1; n >= 1; n-- {
		from, to := rotatedName(path, n), rotatedName(path, n+1)
		if err := os.Rename(from, to); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to rotate log file", "old", from, "new", to, "error", err)
		}
	}
	if err := os.Rename(path, rotatedName(path, 1)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// rotateIfFull rotates the log at path once it reaches maxLogSize.
func rotateIfFull(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() < maxLogSize {
		return nil
	}
	return rotateLogs(path)
}

func openLogFile() (*os.File, error) {
	dir, _, err := resolveLogDir()
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, logFileName)
	if err := rotateIfFull(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to rotate log file: %v\n", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}
