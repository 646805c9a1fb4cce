package profile

import "time"

// Kind is the only accepted value of Profile.Kind.
const Kind = "MongoProfile"

// Profile is the root object describing a MongoDB launch.
// It's populated by parsing the user's mongokit.yaml file.
type Profile struct {
	APIVersion string   `yaml:"apiVersion" mapstructure:"apiVersion" validate:"required"`
	Kind       string   `yaml:"kind" mapstructure:"kind" validate:"required,eq=MongoProfile"`
	Metadata   Metadata `yaml:"metadata" mapstructure:"metadata" validate:"required"`
	Spec       Spec     `yaml:"spec" mapstructure:"spec"`
}

// Metadata contains profile-level metadata.
type Metadata struct {
	Name        string            `yaml:"name" mapstructure:"name" validate:"required"`
	Description string            `yaml:"description" mapstructure:"description"`
	Labels      map[string]string `yaml:"labels,omitempty" mapstructure:"labels"`
}

// Spec describes the container to start.
type Spec struct {
	Runtime           string            `yaml:"runtime" mapstructure:"runtime" validate:"required"`
	Image             string            `yaml:"image" mapstructure:"image" validate:"required"`
	Name              string            `yaml:"name" mapstructure:"name"`
	Command           []string          `yaml:"command,omitempty" mapstructure:"command"`
	Port              int               `yaml:"port" mapstructure:"port" validate:"required,min=1,max=65535"`
	RandomizeHostPort bool              `yaml:"randomizeHostPort" mapstructure:"randomizeHostPort"`
	Credentials       Credentials       `yaml:"credentials" mapstructure:"credentials"`
	Env               map[string]string `yaml:"env,omitempty" mapstructure:"env"`
	Readiness         Readiness         `yaml:"readiness" mapstructure:"readiness"`
}

// Credentials configures the root user. Empty fields keep the defaults
// unless Disabled is set, in which case MongoDB runs without authentication.
type Credentials struct {
	Disabled bool   `yaml:"disabled" mapstructure:"disabled"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// Readiness tunes how long and how often the container is polled.
type Readiness struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"min=0"`
	PollInterval time.Duration `yaml:"pollInterval" mapstructure:"pollInterval" validate:"min=0"`
	// Occurrences overrides how many readiness markers are expected.
	Occurrences int `yaml:"occurrences,omitempty" mapstructure:"occurrences" validate:"min=0"`
}
