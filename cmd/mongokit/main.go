package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mongokit/internal/app"
	mkerrors "mongokit/internal/errors"
)

// version is set at build time via ldflags
var version = "dev"

// errNotReady makes probe exit non-zero without an error report; the console already said why.
var errNotReady = errors.New("container not ready")

func newRootCmd(opts ...app.Option) *cobra.Command {
	var (
		stateFile string
		verbose   bool
	)
	newApp := func() *app.App {
		return app.New(append([]app.Option{app.WithStateFile(stateFile)}, opts...)...)
	}

	rootCmd := &cobra.Command{
		Use:     "mongokit",
		Short:   "MongoKit - disposable MongoDB containers for test suites",
		Version: version,
		Long: `MongoKit starts throwaway MongoDB containers from a launch profile, waits until
the server accepts connections and prints a ready-to-use connection string.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&stateFile, "state-file", app.StateFileName, "Path to the session state file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every readiness attempt")

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Start a MongoDB container from a profile",
		Long: `Up starts the MongoDB container described by the profile and blocks until the
server accepts connections. Without --detach it then keeps running until interrupted
and removes the container on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			detach, _ := cmd.Flags().GetBool("detach")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a := newApp()
			session, err := a.Up(ctx, file)
			if err != nil {
				return err
			}
			if detach {
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop and remove the container")
			<-ctx.Done()

			downCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			return a.Down(downCtx, session.RunID)
		},
	}
	upCmd.Flags().StringP("file", "f", "", "Path to the profile YAML file (required)")
	upCmd.Flags().BoolP("detach", "d", false, "Leave the container running and return once it is ready")
	if err := upCmd.MarkFlagRequired("file"); err != nil {
		slog.Error("Failed to mark file flag as required for up command", "error", err)
	}

	downCmd := &cobra.Command{
		Use:   "down [run-id...]",
		Short: "Stop and remove recorded containers",
		Long:  `Down removes the containers of the given runs, or of every recorded run when none is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newApp().Down(cmd.Context(), args...)
		},
	}

	probeCmd := &cobra.Command{
		Use:   "probe <container-id|run-id>",
		Short: "Check whether a MongoDB container accepts connections",
		Long: `Probe reads the container output and reports ready when the "Waiting for connections"
marker appears exactly --count times. It exits with status 1 when the container is not ready.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			waitFor, _ := cmd.Flags().GetDuration("wait")
			interval, _ := cmd.Flags().GetDuration("interval")
			runtimeName, _ := cmd.Flags().GetString("runtime")

			ready, err := newApp().Probe(cmd.Context(), app.ProbeOptions{
				Target:       args[0],
				Runtime:      runtimeName,
				Occurrences:  count,
				Wait:         waitFor,
				PollInterval: interval,
			})
			if err != nil {
				return err
			}
			if !ready {
				return errNotReady
			}
			return nil
		},
	}
	probeCmd.Flags().Int("count", app.DefaultProbeOccurrences, "Number of readiness markers expected")
	probeCmd.Flags().Duration("wait", 0, "Keep probing for up to this long")
	probeCmd.Flags().Duration("interval", 500*time.Millisecond, "Delay between probes when --wait is set")
	probeCmd.Flags().String("runtime", "", "Container runtime (default: the session's runtime, or docker)")

	statusCmd := &cobra.Command{
		Use:     "status",
		Aliases: []string{"list"},
		Short:   "List recorded MongoDB sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newApp().Status()
		},
	}

	rootCmd.AddCommand(upCmd, downCmd, probeCmd, statusCmd)
	return rootCmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errNotReady) {
			mkerrors.HandleError(err)
		}
		os.Exit(1)
	}
}
