// Package adaptor holds the plumbing shared by every reader, transformer and
// writer plugin: the loose Config they are built from, the registry that maps
// a type identifier to a constructor, and the optional describe/validate hooks.
package adaptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNamespaceMalformed represents the error to be returned when an invalid namespace is given.
var ErrNamespaceMalformed = errors.New("malformed namespace, expected a '.' deliminated string")

// ErrNotFound gives the details of the failed plugin lookup
type ErrNotFound struct {
	Kind string
	Name string
}

func (a ErrNotFound) Error() string {
	if a.Kind == "" {
		return fmt.Sprintf("adaptor '%s' not found in registry", a.Name)
	}
	return fmt.Sprintf("%s '%s' not found in registry", a.Kind, a.Name)
}

// InvalidConfigError is returned when the args for a plugin cannot be turned
// into its config struct or fail validation.
type InvalidConfigError struct {
	Kind string
	Name string
	Err  error
}

func (e InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid %s '%s' config, %s", e.Kind, e.Name, e.Err)
}

func (e InvalidConfigError) Unwrap() error { return e.Err }

// Describable defines the interface that all plugins must follow in order to support
// the help functions.
// SampleConfig() returns an example YAML structure to configure the plugin
// Description() provides contextual information for what the plugin is for
type Describable interface {
	SampleConfig() string
	Description() string
}

// Validator is implemented by plugins that check their own args once they
// have been constructed. It must not perform any I/O.
type Validator interface {
	Validate() error
}

// Config is an alias to map[string]interface{} and helps us
// turn a fuzzy document into a conrete named struct
type Config map[string]interface{}

// Construct will Marshal the Config and then Unmarshal it into a
// named struct the generic map into a proper struct
func (c *Config) Construct(conf interface{}) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}

	err = json.Unmarshal(b, conf)
	if err != nil {
		return err
	}
	return nil
}

// GetString returns value stored in the config under the given key, or
// an empty string if the key doesn't exist, or isn't a string value
func (c Config) GetString(key string) string {
	i, ok := c[key]
	if !ok {
		return ""
	}
	s, ok := i.(string)
	if !ok {
		return ""
	}
	return s
}

// GetBool returns the bool stored under key, or false.
func (c Config) GetBool(key string) bool {
	b, _ := c[key].(bool)
	return b
}

// Merge returns a copy of c with the keys of other laid over it.
func (c Config) Merge(other map[string]interface{}) Config {
	out := make(Config, len(c)+len(other))
	for k, v := range c {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// SplitNamespace splits a "database.collection" style namespace on the first '.'.
func SplitNamespace(ns string) (string, string, error) {
	fields := strings.SplitN(ns, ".", 2)

	if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
		return "", "", ErrNamespaceMalformed
	}
	return fields[0], fields[1], nil
}

// BaseConfig is a standard typed config struct to use for as general purpose config for most databases.
type BaseConfig struct {
	URI       string `json:"uri" validate:"required"`
	Namespace string `json:"namespace"`
	Timeout   string `json:"timeout"`
}
