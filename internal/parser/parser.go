package parser

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"mongokit/pkg/profile"
)

// ErrNotFound is returned when the profile file does not exist.
var ErrNotFound = errors.New("profile file not found")

// EnvPrefix prefixes environment variables that override profile keys,
// e.g. MONGOKIT_SPEC_IMAGE for spec.image.
const EnvPrefix = "MONGOKIT"

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Parse reads and validates a profile YAML file, returning the parsed Profile struct or an error.
func Parse(filePath string) (*profile.Profile, error) {
	// Check if file exists
	if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filePath)
	}

	v := newViper()
	v.SetConfigFile(filePath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filePath)
		}
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	var p profile.Profile
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("failed to parse profile file - malformed YAML: %w", err)
	}
	if err := restoreMapKeys(filePath, &p); err != nil {
		return nil, err
	}

	if err := validate.Struct(&p); err != nil {
		return nil, formatValidationError(err)
	}

	return &p, nil
}

// profileMaps holds the map fields of a profile. viper lowercases every key it reads,
// so environment variable names and labels are decoded again from the raw YAML.
type profileMaps struct {
	Metadata struct {
		Labels map[string]string `yaml:"labels"`
	} `yaml:"metadata"`
	Spec struct {
		Env map[string]string `yaml:"env"`
	} `yaml:"spec"`
}

func restoreMapKeys(filePath string, p *profile.Profile) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read profile file: %w", err)
	}

	var maps profileMaps
	if err := yaml.Unmarshal(data, &maps); err != nil {
		return fmt.Errorf("failed to parse profile file - malformed YAML: %w", err)
	}
	p.Metadata.Labels = maps.Metadata.Labels
	p.Spec.Env = maps.Spec.Env
	return nil
}

// newViper returns a viper instance with profile defaults and environment overrides.
// Every overridable key needs a default, otherwise viper does not consult the environment on Unmarshal.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("spec.runtime", "docker")
	v.SetDefault("spec.image", "mongo:6.0")
	v.SetDefault("spec.port", 27017)
	v.SetDefault("spec.randomizeHostPort", true)
	v.SetDefault("spec.credentials.disabled", false)
	v.SetDefault("spec.credentials.username", "")
	v.SetDefault("spec.credentials.password", "")
	v.SetDefault("spec.readiness.timeout", "60s")
	v.SetDefault("spec.readiness.pollInterval", "500ms")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var errorMessages []string
		for _, e := range validationErrors {
			errorMessages = append(errorMessages, formatFieldError(e))
		}

		if len(errorMessages) == 1 {
			return fmt.Errorf("validation error: %s", errorMessages[0])
		}

		var b strings.Builder
		b.WriteString("validation errors:\n")
		for _, msg := range errorMessages {
			fmt.Fprintf(&b, "  - %s\n", msg)
		}
		return errors.New(b.String())
	}
	return fmt.Errorf("validation failed: %w", err)
}

// formatFieldError formats a single validation error into a user-friendly message.
func formatFieldError(e validator.FieldError) string {
	field := e.Field()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required but missing", field)
	case "eq":
		return fmt.Sprintf("field '%s' must be '%s'", field, e.Param())
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s", field, e.Param())
	default:
		return fmt.Sprintf("field '%s' failed validation (%s)", field, e.Tag())
	}
}
