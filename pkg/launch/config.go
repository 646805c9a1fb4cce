// Package launch holds the immutable description of how to start a container
// and the right-biased merge that combines two descriptions.
package launch

import (
	"maps"
	"slices"

	"mongokit/pkg/wait"
)

// SessionLabel carries the session id set through ResourceParams.
const SessionLabel = "org.mongokit.session-id"

// Config is a launch configuration. A nil field is unset.
//
// Values are never modified after construction: Merge always allocates, and
// callers must treat the maps and slices they receive as read-only.
type Config struct {
	Image             *string
	Name              *string
	Command           []string
	ExposedPort       *string
	RandomizeHostPort *bool
	Env               map[string]string
	Labels            map[string]string
	WaitStrategy      *wait.Strategy
	Username          *string
	Password          *string
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Strategy returns a pointer to a deep copy of s.
func Strategy(s wait.Strategy) *wait.Strategy {
	c := s.Clone()
	return &c
}

// Merge combines old and new: each field set in new wins, unset fields fall back to old.
// Env and Labels merge key by key with the same bias.
func Merge(old, new Config) Config {
	return Config{
		Image:             pick(old.Image, new.Image),
		Name:              pick(old.Name, new.Name),
		Command:           pickSlice(old.Command, new.Command),
		ExposedPort:       pick(old.ExposedPort, new.ExposedPort),
		RandomizeHostPort: pick(old.RandomizeHostPort, new.RandomizeHostPort),
		Env:               mergeMaps(old.Env, new.Env),
		Labels:            mergeMaps(old.Labels, new.Labels),
		WaitStrategy:      pickStrategy(old.WaitStrategy, new.WaitStrategy),
		Username:          pick(old.Username, new.Username),
		Password:          pick(old.Password, new.Password),
	}
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	return Merge(Config{}, c)
}

// ImageValue returns the image or "" when unset.
func (c Config) ImageValue() string { return deref(c.Image) }

// NameValue returns the container name or "" when unset.
func (c Config) NameValue() string { return deref(c.Name) }

// ExposedPortValue returns the exposed port or "" when unset.
func (c Config) ExposedPortValue() string { return deref(c.ExposedPort) }

// UsernameValue returns the username or "" when unset.
func (c Config) UsernameValue() string { return deref(c.Username) }

// PasswordValue returns the password or "" when unset.
func (c Config) PasswordValue() string { return deref(c.Password) }

// RandomizeHostPortValue returns whether host ports are randomized; unset means false.
func (c Config) RandomizeHostPortValue() bool {
	return c.RandomizeHostPort != nil && *c.RandomizeHostPort
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func pick[T any](old, new *T) *T {
	src := old
	if new != nil {
		src = new
	}
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func pickSlice(old, new []string) []string {
	if new != nil {
		return slices.Clone(new)
	}
	return slices.Clone(old)
}

func pickStrategy(old, new *wait.Strategy) *wait.Strategy {
	src := old
	if new != nil {
		src = new
	}
	if src == nil {
		return nil
	}
	return Strategy(*src)
}

func mergeMaps(old, new map[string]string) map[string]string {
	if old == nil && new == nil {
		return nil
	}
	out := make(map[string]string, len(old)+len(new))
	maps.Copy(out, old)
	maps.Copy(out, new)
	return out
}
