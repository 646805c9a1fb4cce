package launch

import (
	"maps"

	"mongokit/pkg/wait"
)

// ContainerParams are generic container-creation settings. Zero values are unset.
type ContainerParams struct {
	Image             string
	Name              string
	Command           []string
	Env               map[string]string
	ExposedPort       string
	RandomizeHostPort *bool
	WaitStrategy      *wait.Strategy
}

// Config converts p into a partial launch configuration.
func (p ContainerParams) Config() Config {
	c := Config{
		Image:       optional(p.Image),
		Name:        optional(p.Name),
		ExposedPort: optional(p.ExposedPort),
		Env:         maps.Clone(p.Env),
	}
	if len(p.Command) > 0 {
		c.Command = append([]string(nil), p.Command...)
	}
	if p.RandomizeHostPort != nil {
		c.RandomizeHostPort = Bool(*p.RandomizeHostPort)
	}
	if p.WaitStrategy != nil {
		c.WaitStrategy = Strategy(*p.WaitStrategy)
	}
	return c
}

// ResourceParams are generic runtime resource settings. Zero values are unset.
type ResourceParams struct {
	Labels    map[string]string
	SessionID string
}

// Config converts p into a partial launch configuration.
func (p ResourceParams) Config() Config {
	var labels map[string]string
	if len(p.Labels) > 0 || p.SessionID != "" {
		labels = maps.Clone(p.Labels)
		if labels == nil {
			labels = map[string]string{}
		}
		if p.SessionID != "" {
			labels[SessionLabel] = p.SessionID
		}
	}
	return Config{Labels: labels}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return String(s)
}
