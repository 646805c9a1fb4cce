package app

import (
	"fmt"

	"mongokit/pkg/mongo"
	"mongokit/pkg/profile"
	"mongokit/pkg/wait"
)

// builderFor translates a parsed profile into a MongoDB builder.
func builderFor(p *profile.Profile) mongo.Builder {
	spec := p.Spec

	b := mongo.NewBuilder()
	if spec.Credentials.Disabled {
		b = mongo.NewBuilderWithoutCredentials()
	}
	if spec.Credentials.Username != "" {
		b = b.WithUsername(spec.Credentials.Username)
	}
	if spec.Credentials.Password != "" {
		b = b.WithPassword(spec.Credentials.Password)
	}

	b = b.WithImage(spec.Image).WithExposedPort(spec.Port, spec.RandomizeHostPort)
	if spec.Name != "" {
		b = b.WithName(spec.Name)
	}
	if len(spec.Command) > 0 {
		b = b.WithCommand(spec.Command...)
	}
	for key, value := range spec.Env {
		b = b.WithEnvironment(key, value)
	}

	readiness := spec.Readiness
	if readiness.Occurrences > 0 {
		return b.WithWaitStrategy(wait.ForAll(
			wait.ForListeningPort(fmt.Sprintf("%d/tcp", spec.Port)),
			wait.ForLogMarker(mongo.ReadyMarker, readiness.Occurrences),
		).WithStartupTimeout(readiness.Timeout).WithPollInterval(readiness.PollInterval))
	}
	return b.WithStartupTimeout(readiness.Timeout).WithPollInterval(readiness.PollInterval)
}
