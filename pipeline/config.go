package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vocabstream/vocabstream/writer"
)

const (
	// DefaultMaxErrors is the number of errors kept in a Result when the
	// config does not say otherwise.
	DefaultMaxErrors = 100

	// DefaultDrainTimeout is the grace period given to deferred writers to
	// flush once the entries are exhausted.
	DefaultDrainTimeout = 30 * time.Second
)

var validate = validator.New()

// Spec names a plugin type and its args.
type Spec = writer.Spec

// Config describes a datastream. It is not modified by a run.
type Config struct {
	Readers      []Spec `json:"readers" yaml:"readers" validate:"required,min=1,dive"`
	Transformers []Spec `json:"transformers,omitempty" yaml:"transformers,omitempty" validate:"dive"`
	Writers      []Spec `json:"writers" yaml:"writers" validate:"required,min=1,dive"`

	// FailFast aborts the run on the first failed entry.
	FailFast bool `json:"fail_fast,omitempty" yaml:"fail_fast,omitempty"`
	// MaxErrors caps the errors kept in the Result, 0 means
	// DefaultMaxErrors and -1 keeps them all.
	MaxErrors    int    `json:"max_errors,omitempty" yaml:"max_errors,omitempty" validate:"gte=-1"`
	DrainTimeout string `json:"drain_timeout,omitempty" yaml:"drain_timeout,omitempty"`
}

// InvalidConfigError is returned when a Config fails validation.
type InvalidConfigError struct {
	Reason string
}

func (e InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid pipeline config, %s", e.Reason)
}

// LoadConfig reads a YAML or JSON config from path.
func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(b)
}

// ParseConfig expands ${VAR} references with the environment and decodes b,
// which holds YAML or JSON.
func ParseConfig(b []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &c); err != nil {
		return c, InvalidConfigError{Reason: err.Error()}
	}
	return c, c.Validate()
}

// Validate checks the structure of c. Plugin types and args are checked by
// New against a Registry.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return InvalidConfigError{Reason: err.Error()}
	}
	if _, err := c.drainTimeout(); err != nil {
		return err
	}
	return nil
}

func (c Config) maxErrors() int {
	if c.MaxErrors == 0 {
		return DefaultMaxErrors
	}
	return c.MaxErrors
}

func (c Config) drainTimeout() (time.Duration, error) {
	if c.DrainTimeout == "" {
		return DefaultDrainTimeout, nil
	}
	d, err := time.ParseDuration(c.DrainTimeout)
	if err != nil || d < 0 {
		return 0, InvalidConfigError{Reason: fmt.Sprintf("bad drain_timeout %q", c.DrainTimeout)}
	}
	return d, nil
}
