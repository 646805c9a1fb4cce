// Package wait decides when a started container is ready for clients.
//
// A Strategy is plain data drawn from a closed set of variants. Check evaluates
// one attempt of any variant against a Target and Poller re-runs Check until the
// strategy reports ready, the startup timeout elapses or the context is done.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultStartupTimeout = 60 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
)

// Kind identifies a strategy variant.
type Kind int

const (
	KindPortOpen Kind = iota + 1
	KindLogMarker
	KindAll
)

func (k Kind) String() string {
	switch k {
	case KindPortOpen:
		return "port-open"
	case KindLogMarker:
		return "log-marker"
	case KindAll:
		return "all"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Strategy is a readiness condition.
type Strategy struct {
	Kind Kind

	// Port is the container port checked by KindPortOpen, e.g. "27017/tcp".
	Port string

	// Marker and Occurrences configure KindLogMarker: ready when exactly
	// Occurrences log lines contain Marker.
	Marker      string
	Occurrences int

	// Strategies are the children of KindAll.
	Strategies []Strategy

	// StartupTimeout and PollInterval drive the Poller. Zero means default.
	StartupTimeout time.Duration
	PollInterval   time.Duration
}

// ForListeningPort waits until the host side of the container port accepts TCP connections.
func ForListeningPort(port string) Strategy {
	return Strategy{Kind: KindPortOpen, Port: port}
}

// ForLogMarker waits until marker has been logged exactly n times across stdout and stderr.
func ForLogMarker(marker string, n int) Strategy {
	return Strategy{Kind: KindLogMarker, Marker: marker, Occurrences: n}
}

// ForAll waits until every child strategy is ready.
func ForAll(strategies ...Strategy) Strategy {
	return Strategy{Kind: KindAll, Strategies: cloneAll(strategies)}
}

// WithStartupTimeout returns a copy of s with the startup timeout set.
func (s Strategy) WithStartupTimeout(d time.Duration) Strategy {
	c := s.Clone()
	c.StartupTimeout = d
	return c
}

// WithPollInterval returns a copy of s with the poll interval set.
func (s Strategy) WithPollInterval(d time.Duration) Strategy {
	c := s.Clone()
	c.PollInterval = d
	return c
}

// Clone returns a deep copy of s.
func (s Strategy) Clone() Strategy {
	s.Strategies = cloneAll(s.Strategies)
	return s
}

func cloneAll(in []Strategy) []Strategy {
	if in == nil {
		return nil
	}
	out := make([]Strategy, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// Validate reports a malformed strategy.
func (s Strategy) Validate() error {
	switch s.Kind {
	case KindPortOpen:
		if s.Port == "" {
			return errors.New("port-open strategy requires a port")
		}
	case KindLogMarker:
		if s.Marker == "" {
			return errors.New("log-marker strategy requires a marker")
		}
		if s.Occurrences < 1 {
			return fmt.Errorf("log-marker strategy requires at least one occurrence, got %d", s.Occurrences)
		}
	case KindAll:
		if len(s.Strategies) == 0 {
			return errors.New("composite strategy requires at least one child")
		}
		for _, child := range s.Strategies {
			if err := child.Validate(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown strategy kind %s", s.Kind)
	}
	if s.StartupTimeout < 0 || s.PollInterval < 0 {
		return errors.New("startup timeout and poll interval must not be negative")
	}
	return nil
}

// Target is the read-only view of a running container a strategy inspects.
type Target interface {
	// Logs returns the full stdout and stderr captured so far.
	Logs(ctx context.Context, timestamps bool) (stdout, stderr string, err error)

	// Endpoint returns the host:port address the given container port is reachable on.
	// It returns ErrPortUnavailable while the port is not bound on the host yet.
	Endpoint(ctx context.Context, port string) (string, error)
}

// ErrPortUnavailable is returned by Target.Endpoint while a port has no host binding.
var ErrPortUnavailable = errors.New("port not bound on host")

// Check evaluates a single attempt of s against t.
// A false result with a nil error means "not ready yet".
func Check(ctx context.Context, s Strategy, t Target) (bool, error) {
	switch s.Kind {
	case KindPortOpen:
		return portOpen(ctx, t, s.Port)
	case KindLogMarker:
		return LogMarkerReady(ctx, t, s.Marker, s.Occurrences)
	case KindAll:
		for _, child := range s.Strategies {
			ready, err := Check(ctx, child, t)
			if err != nil || !ready {
				return false, err
			}
		}
		return true, nil
	default:
		return false, fmt.Errorf("unknown strategy kind %s", s.Kind)
	}
}
