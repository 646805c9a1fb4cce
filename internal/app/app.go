package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	mkerrors "mongokit/internal/errors"
	"mongokit/internal/parser"
	"mongokit/internal/ui"
	"mongokit/pkg/launch"
	"mongokit/pkg/mongo"
	"mongokit/pkg/runtime"
	"mongokit/pkg/wait"
)

// DefaultRuntime is used by Probe when no runtime is named.
const DefaultRuntime = "docker"

// cleanupTimeout bounds removing a container after a failed start.
const cleanupTimeout = 30 * time.Second

// maxParallelTerminations caps concurrent removals in Down.
const maxParallelTerminations = 4

// App orchestrates the mongokit workflows over a runtime factory, a console and the session state file.
type App struct {
	runtimes  *RuntimeFactory
	console   *ui.Console
	stateFile string
	logger    *slog.Logger
}

// Option configures an App.
type Option func(*App)

// WithRuntimeFactory replaces the runtime factory.
func WithRuntimeFactory(f *RuntimeFactory) Option {
	return func(a *App) { a.runtimes = f }
}

// WithConsole replaces the console used for user-facing output.
func WithConsole(c *ui.Console) Option {
	return func(a *App) { a.console = c }
}

// WithStateFile sets the path of the session state file.
func WithStateFile(path string) Option {
	return func(a *App) { a.stateFile = path }
}

// WithLogger sets the logger handed to containers and pollers.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// New creates an App with the Docker runtime, a terminal console and the state file in the working directory.
func New(opts ...Option) *App {
	a := &App{
		runtimes:  NewRuntimeFactory(),
		console:   ui.NewConsole(),
		stateFile: StateFileName,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Up starts the MongoDB container described by the profile at profilePath,
// waits until it accepts connections and records it in the state file.
func (a *App) Up(ctx context.Context, profilePath string) (*Session, error) {
	slog.Info("Starting mongokit up", "profilePath", profilePath)

	p, err := parser.Parse(profilePath)
	if err != nil {
		if errors.Is(err, parser.ErrNotFound) {
			return nil, mkerrors.NewProfileError("Cannot read the profile", err.Error(),
				"Pass an existing profile with --file", err)
		}
		return nil, mkerrors.NewParseError("Invalid profile "+profilePath, err.Error(),
			"Fix the fields listed above and run the command again", err)
	}

	rt, err := a.runtimes.GetRuntime(p.Spec.Runtime)
	if err != nil {
		return nil, mkerrors.NewRuntimeError("Cannot reach the container runtime", err.Error(),
			"Make sure Docker is running and DOCKER_HOST points at it", err)
	}

	runID := uuid.NewString()
	ctr, err := builderFor(p).
		CloneResource(launch.ResourceParams{Labels: p.Metadata.Labels, SessionID: runID}).
		WithRuntime(rt).
		WithLogger(a.logger).
		Build()
	if err != nil {
		return nil, mkerrors.NewConfigError("Invalid MongoDB configuration in "+profilePath, err.Error(),
			"Set both spec.credentials.username and spec.credentials.password, or set spec.credentials.disabled", err)
	}

	a.console.PrintInfo(fmt.Sprintf("Starting %s for profile '%s'", p.Spec.Image, p.Metadata.Name))
	if err := ctr.Start(ctx); err != nil {
		a.cleanup(ctr)
		switch {
		case errors.Is(err, context.Canceled):
			return nil, err
		case errors.Is(err, wait.ErrNotReady):
			return nil, mkerrors.NewNotReadyError("MongoDB did not become ready", err.Error(),
				"Increase spec.readiness.timeout or inspect the container output", err)
		default:
			return nil, mkerrors.NewRuntimeError("Failed to start the MongoDB container", err.Error(),
				"Check that the image exists and that the host port is free", err)
		}
	}

	uri, err := ctr.ConnectionString(ctx)
	if err != nil {
		a.cleanup(ctr)
		return nil, mkerrors.NewRuntimeError("Cannot resolve the MongoDB address", err.Error(), "", err)
	}
	h, _ := ctr.Handle()

	session := Session{
		RunID:            runID,
		ProfileName:      p.Metadata.Name,
		ProfilePath:      profilePath,
		Runtime:          p.Spec.Runtime,
		ContainerID:      h.ID,
		ContainerName:    h.Name,
		Image:            p.Spec.Image,
		ConnectionString: uri,
		CreatedAt:        time.Now(),
	}
	if err := a.record(session); err != nil {
		a.cleanup(ctr)
		return nil, mkerrors.NewStateError("Cannot record the session", err.Error(),
			"Check that the working directory is writable", err)
	}

	a.console.PrintSuccess("MongoDB is ready")
	a.console.PrintFields([][2]string{
		{"Run ID", session.RunID},
		{"Container", shortID(session.ContainerID)},
		{"URI", session.ConnectionString},
	})
	slog.Info("mongokit up completed", "runId", runID, "containerID", h.ID)
	return &session, nil
}

// Down terminates the recorded sessions with the given run ids, or all of them when none are given.
// Every container is attempted; failures are combined and the failed sessions stay recorded.
func (a *App) Down(ctx context.Context, runIDs ...string) error {
	state, err := loadState(a.stateFile)
	if err != nil {
		return mkerrors.NewStateError("Cannot read the session state", err.Error(),
			"Remove "+a.stateFile+" and the containers labelled "+launch.SessionLabel+" manually", err)
	}

	sessions := state.find(runIDs)
	if len(sessions) == 0 {
		a.console.PrintInfo("No MongoDB sessions to stop")
		return nil
	}

	var (
		mu      sync.Mutex
		errs    error
		removed = map[string]bool{}
	)
	runtimes := map[string]runtime.ContainerRuntime{}

	var g errgroup.Group
	g.SetLimit(maxParallelTerminations)
	for _, s := range sessions {
		rt, ok := runtimes[s.Runtime]
		if !ok {
			rt, err = a.runtimes.GetRuntime(s.Runtime)
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("session %s: %w", s.RunID, err))
				mu.Unlock()
				continue
			}
			runtimes[s.Runtime] = rt
		}

		g.Go(func() error {
			err := rt.Terminate(ctx, runtime.Handle{ID: s.ContainerID, Name: s.ContainerName})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("session %s: %w", s.RunID, err))
				return nil
			}
			removed[s.RunID] = true
			return nil
		})
	}
	_ = g.Wait()

	state.remove(removed)
	if err := saveState(a.stateFile, state); err != nil {
		errs = multierr.Append(errs, err)
	}

	for _, s := range sessions {
		if removed[s.RunID] {
			a.console.PrintSuccess(fmt.Sprintf("Removed %s (%s)", shortID(s.ContainerID), s.ProfileName))
		}
	}

	if errs != nil {
		failed := len(sessions) - len(removed)
		return mkerrors.NewRuntimeError(fmt.Sprintf("Failed to stop %d of %d session(s)", failed, len(sessions)),
			errs.Error(), "Remove the remaining containers with 'docker rm -f'", errs)
	}
	return nil
}

// Sessions returns the recorded sessions.
func (a *App) Sessions() ([]Session, error) {
	state, err := loadState(a.stateFile)
	if err != nil {
		return nil, mkerrors.NewStateError("Cannot read the session state", err.Error(), "", err)
	}
	return state.Sessions, nil
}

// Status prints the recorded sessions.
func (a *App) Status() error {
	sessions, err := a.Sessions()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		a.console.PrintInfo("No MongoDB sessions recorded")
		return nil
	}
	for _, s := range sessions {
		a.console.PrintInfo(fmt.Sprintf("%s (%s)", s.ProfileName, s.Image))
		a.console.PrintFields([][2]string{
			{"Run ID", s.RunID},
			{"Container", shortID(s.ContainerID)},
			{"Runtime", s.Runtime},
			{"URI", s.ConnectionString},
			{"Created", s.CreatedAt.Format(time.RFC3339)},
		})
	}
	return nil
}

// ProbeOptions select the container Probe checks and how.
type ProbeOptions struct {
	// Target is a container id, or the run id of a recorded session.
	Target  string
	Runtime string
	// Occurrences is the number of readiness markers expected.
	Occurrences int
	// Wait keeps polling up to this long; zero checks once.
	Wait         time.Duration
	PollInterval time.Duration
}

// DefaultProbeOccurrences is the marker count of a server started with a root user.
const DefaultProbeOccurrences = 2

// Probe reports whether the container logs carry exactly the expected number of readiness markers.
func (a *App) Probe(ctx context.Context, opts ProbeOptions) (bool, error) {
	if opts.Occurrences <= 0 {
		opts.Occurrences = DefaultProbeOccurrences
	}
	h, runtimeName := a.resolveTarget(opts)

	rt, err := a.runtimes.GetRuntime(runtimeName)
	if err != nil {
		return false, mkerrors.NewRuntimeError("Cannot reach the container runtime", err.Error(),
			"Make sure Docker is running and DOCKER_HOST points at it", err)
	}
	target := mongo.NewTarget(rt, h)

	var ready bool
	if opts.Wait <= 0 {
		ready, err = wait.LogMarkerReady(ctx, target, mongo.ReadyMarker, opts.Occurrences)
	} else {
		strategy := wait.ForLogMarker(mongo.ReadyMarker, opts.Occurrences).
			WithStartupTimeout(opts.Wait).
			WithPollInterval(opts.PollInterval)
		err = wait.Until(ctx, strategy, target, a.logger)
		ready = err == nil
		if errors.Is(err, wait.ErrNotReady) {
			err = nil
		}
	}
	if err != nil {
		return false, mkerrors.NewRuntimeError("Cannot read the container output", err.Error(),
			"Check the container id with 'docker ps'", err)
	}

	if ready {
		a.console.PrintSuccess(fmt.Sprintf("%s is ready", shortID(h.ID)))
	} else {
		a.console.PrintWarning(fmt.Sprintf("%s is not ready", shortID(h.ID)))
	}
	return ready, nil
}

func (a *App) resolveTarget(opts ProbeOptions) (runtime.Handle, string) {
	runtimeName := opts.Runtime
	if state, err := loadState(a.stateFile); err == nil {
		for _, s := range state.Sessions {
			if s.RunID == opts.Target {
				if runtimeName == "" {
					runtimeName = s.Runtime
				}
				return runtime.Handle{ID: s.ContainerID, Name: s.ContainerName}, runtimeName
			}
		}
	}
	if runtimeName == "" {
		runtimeName = DefaultRuntime
	}
	return runtime.Handle{ID: opts.Target}, runtimeName
}

func (a *App) record(session Session) error {
	state, err := loadState(a.stateFile)
	if err != nil {
		return err
	}
	state.Sessions = append(state.Sessions, session)
	return saveState(a.stateFile, state)
}

// cleanup removes a container whose start failed. It runs on a fresh context
// so that a cancelled start is still cleaned up.
func (a *App) cleanup(ctr *mongo.Container) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := ctr.Terminate(ctx); err != nil {
		a.logger.Warn("Failed to remove container after failed start", "error", err)
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
