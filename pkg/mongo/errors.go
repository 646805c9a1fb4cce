package mongo

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfiguration is matched by every error Validate returns.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// ConfigError names the configuration field that failed validation.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("name")
	})
	return v
}

// strictCredentials is checked when the builder was seeded with default credentials.
type strictCredentials struct {
	Image    string `name:"image" validate:"required"`
	Username string `name:"username" validate:"required"`
	Password string `name:"password" validate:"required"`
}

// optionalCredentials allows running without authentication, but not half of it.
type optionalCredentials struct {
	Image    string `name:"image" validate:"required"`
	Username string `name:"username" validate:"required_with=Password"`
	Password string `name:"password" validate:"required_with=Username"`
}

// Validate reports the first configuration problem that would prevent a container from starting.
func (b Builder) Validate() error {
	var subject any
	if b.mode == defaultCredentials {
		subject = strictCredentials{
			Image:    b.cfg.ImageValue(),
			Username: b.cfg.UsernameValue(),
			Password: b.cfg.PasswordValue(),
		}
	} else {
		subject = optionalCredentials{
			Image:    b.cfg.ImageValue(),
			Username: b.cfg.UsernameValue(),
			Password: b.cfg.PasswordValue(),
		}
	}

	if err := validate.Struct(subject); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ConfigError{Field: verrs[0].Field(), Message: "must not be empty"}
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	if b.cfg.WaitStrategy == nil {
		return &ConfigError{Field: "wait strategy", Message: "must not be empty"}
	}
	if err := b.cfg.WaitStrategy.Validate(); err != nil {
		return &ConfigError{Field: "wait strategy", Message: err.Error()}
	}
	if b.cfg.ExposedPortValue() == "" {
		return &ConfigError{Field: "exposed port", Message: "must not be empty"}
	}
	return nil
}
