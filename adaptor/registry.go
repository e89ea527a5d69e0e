package adaptor

import (
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Creator defines the init structure for a plugin of type T.
type Creator[T any] func() T

// Registry maps type identifiers to constructors. The zero value is not
// usable, use NewRegistry.
type Registry[T any] struct {
	kind string

	mu       sync.RWMutex
	creators map[string]Creator[T]
}

// NewRegistry returns an empty Registry. kind ("reader", "writer", ...) is
// only used in error messages.
func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{kind: kind, creators: map[string]Creator[T]{}}
}

// Kind returns the plugin kind the registry was created for.
func (r *Registry[T]) Kind() string { return r.kind }

// Add should be called in init func of a plugin.
func (r *Registry[T]) Add(name string, creator Creator[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creators[name] = creator
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.creators[name]
	return ok
}

// Get looks up a plugin by name and then init's it with the provided Config.
// The constructed value is validated through its struct tags and, when it
// implements Validator, its Validate method.
// returns ErrNotFound if the provided name was not registered.
func (r *Registry[T]) Get(name string, conf Config) (T, error) {
	var zero T
	r.mu.RLock()
	creator, ok := r.creators[name]
	r.mu.RUnlock()
	if !ok {
		return zero, ErrNotFound{Kind: r.kind, Name: name}
	}
	p := creator()
	if err := conf.Construct(p); err != nil {
		return zero, InvalidConfigError{Kind: r.kind, Name: name, Err: err}
	}
	if err := validateStruct(p); err != nil {
		return zero, InvalidConfigError{Kind: r.kind, Name: name, Err: err}
	}
	if v, ok := any(p).(Validator); ok {
		if err := v.Validate(); err != nil {
			return zero, InvalidConfigError{Kind: r.kind, Name: name, Err: err}
		}
	}
	return p, nil
}

// Registered returns the sorted names of every plugin registered.
func (r *Registry[T]) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]string, 0, len(r.creators))
	for i := range r.creators {
		all = append(all, i)
	}
	sort.Strings(all)
	return all
}

// Plugins returns a non-initialized plugin per name and is best used for doing
// assertions to see if the plugin supports other interfaces, e.g. Describable.
func (r *Registry[T]) Plugins() map[string]T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make(map[string]T, len(r.creators))
	for name, c := range r.creators {
		all[name] = c()
	}
	return all
}

func validateStruct(p interface{}) error {
	err := validate.Struct(p)
	if _, ok := err.(*validator.InvalidValidationError); ok {
		// not a struct, nothing to check
		return nil
	}
	return err
}
