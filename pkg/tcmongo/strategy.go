// Package tcmongo runs the MongoDB launch configuration through testcontainers-go.
package tcmongo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/docker/go-connections/nat"
	tcwait "github.com/testcontainers/testcontainers-go/wait"

	"mongokit/pkg/wait"
)

var (
	_ tcwait.Strategy        = (*MarkerStrategy)(nil)
	_ tcwait.StrategyTimeout = (*MarkerStrategy)(nil)
)

// MarkerStrategy waits until a marker occurs exactly n times in the container output.
type MarkerStrategy struct {
	marker       string
	occurrences  int
	timeout      *time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

// ForReadyMarker returns a testcontainers strategy counting lines that contain marker.
func ForReadyMarker(marker string, n int) *MarkerStrategy {
	return &MarkerStrategy{marker: marker, occurrences: n}
}

// WithStartupTimeout bounds the wait.
func (s *MarkerStrategy) WithStartupTimeout(d time.Duration) *MarkerStrategy {
	s.timeout = &d
	return s
}

// WithPollInterval sets the delay between log reads.
func (s *MarkerStrategy) WithPollInterval(d time.Duration) *MarkerStrategy {
	s.pollInterval = d
	return s
}

// WithLogger sets the logger used for poll attempts.
func (s *MarkerStrategy) WithLogger(logger *slog.Logger) *MarkerStrategy {
	s.logger = logger
	return s
}

// Timeout returns the startup timeout, nil when unset.
func (s *MarkerStrategy) Timeout() *time.Duration {
	return s.timeout
}

func (s *MarkerStrategy) String() string {
	return fmt.Sprintf("%d occurrences of %q", s.occurrences, s.marker)
}

// WaitUntilReady implements tcwait.Strategy.
func (s *MarkerStrategy) WaitUntilReady(ctx context.Context, target tcwait.StrategyTarget) error {
	strategy := wait.ForLogMarker(s.marker, s.occurrences).WithPollInterval(s.pollInterval)
	if s.timeout != nil {
		strategy = strategy.WithStartupTimeout(*s.timeout)
	}
	return wait.Until(ctx, strategy, strategyTarget{target}, s.logger)
}

// Strategy converts s into the equivalent testcontainers strategy.
func Strategy(s wait.Strategy) (tcwait.Strategy, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wait strategy: %w", err)
	}
	return convert(s, s.StartupTimeout, s.PollInterval), nil
}

func convert(s wait.Strategy, timeout, interval time.Duration) tcwait.Strategy {
	if s.PollInterval > 0 {
		interval = s.PollInterval
	}

	switch s.Kind {
	case wait.KindPortOpen:
		hp := tcwait.ForListeningPort(nat.Port(s.Port))
		if timeout > 0 {
			hp = hp.WithStartupTimeout(timeout)
		}
		if interval > 0 {
			hp = hp.WithPollInterval(interval)
		}
		return hp
	case wait.KindLogMarker:
		m := ForReadyMarker(s.Marker, s.Occurrences).WithPollInterval(interval)
		if timeout > 0 {
			m = m.WithStartupTimeout(timeout)
		}
		return m
	default:
		// The composite carries the overall deadline; children only inherit the interval.
		children := make([]tcwait.Strategy, 0, len(s.Strategies))
		for _, child := range s.Strategies {
			children = append(children, convert(child, 0, interval))
		}
		all := tcwait.ForAll(children...)
		if timeout > 0 {
			all = all.WithDeadline(timeout)
		}
		return all
	}
}

// strategyTarget adapts a testcontainers target to wait.Target. Testcontainers
// exposes stdout and stderr as one stream, which is returned as stdout.
type strategyTarget struct {
	tcwait.StrategyTarget
}

func (t strategyTarget) Logs(ctx context.Context, _ bool) (string, string, error) {
	reader, err := t.StrategyTarget.Logs(ctx)
	if err != nil {
		return "", "", err
	}
	defer reader.Close()

	b, err := io.ReadAll(reader)
	if err != nil {
		return "", "", fmt.Errorf("failed to read log stream: %w", err)
	}
	return string(b), "", nil
}

func (t strategyTarget) Endpoint(ctx context.Context, port string) (string, error) {
	mapped, err := t.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return "", wait.ErrPortUnavailable
	}
	host, err := t.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get container host: %w", err)
	}
	return net.JoinHostPort(host, mapped.Port()), nil
}
