package mapping

import (
	"reflect"
	"sync"
)

// Registry holds the ObjectMappings of an application. Registration is
// expected at startup; lookups may run concurrently with it.
type Registry struct {
	mu       sync.RWMutex
	mappings map[reflect.Type]*ObjectMapping
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{mappings: make(map[reflect.Type]*ObjectMapping)}
}

// Register builds and stores the mapping of prototype's struct type.
// prototype may be a struct value or a pointer to one. Subtypes become
// resolvable through Lookup as well unless registered on their own.
func (r *Registry) Register(prototype any, opts ...ObjectOption) (*ObjectMapping, error) {
	cfg := &objectConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	t := typeOf(prototype)
	om, err := buildMapping(t, cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.mappings[t]; dup {
		return nil, definitionError(t, "", ErrAlreadyRegistered)
	}
	r.mappings[t] = om
	for _, st := range om.subtypes {
		if _, ok := r.mappings[st.mapping.typ]; !ok {
			r.mappings[st.mapping.typ] = st.mapping
		}
	}
	return om, nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(prototype any, opts ...ObjectOption) *ObjectMapping {
	om, err := r.Register(prototype, opts...)
	if err != nil {
		panic(err)
	}
	return om
}

// Lookup returns the mapping registered for t, which may be a struct type
// or a pointer to one.
func (r *Registry) Lookup(t reflect.Type) (*ObjectMapping, bool) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	om, ok := r.mappings[t]
	return om, ok
}

// Len returns the number of registered types, subtypes included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mappings)
}

// Lookup returns the mapping registered for T.
func Lookup[T any](r *Registry) (*ObjectMapping, bool) {
	return r.Lookup(reflect.TypeFor[T]())
}
