// Package registry collects test suites from across a program into one
// place so the service can enumerate and run them. Suite constructors
// register themselves, typically from init functions in the files that
// declare them.
package registry

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gspec/gspec/runner"
)

// Registry holds registered suites in registration order.
type Registry struct {
	mu     sync.RWMutex
	log    zerolog.Logger
	suites []*runner.Suite
}

// Config contains registry configuration.
type Config struct {
	Log zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	return &Registry{log: cfg.Log}
}

// Register adds a suite. Registering a nil suite or a suite with no
// groups is an error; an empty suite is almost always a wiring mistake.
func (r *Registry) Register(s *runner.Suite) error {
	if s == nil {
		return fmt.Errorf("registry: nil suite")
	}
	if len(s.Groups) == 0 {
		return fmt.Errorf("registry: suite %q has no groups", s.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.suites {
		if existing.Name == s.Name {
			return fmt.Errorf("registry: suite %q already registered", s.Name)
		}
	}

	r.suites = append(r.suites, s)
	r.log.Debug().Str("suite", s.Name).Str("file", s.File).Int("groups", len(s.Groups)).Msg("suite registered")
	return nil
}

// MustRegister is Register for init-time use; it panics on error.
func (r *Registry) MustRegister(s *runner.Suite) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Suites returns the registered suites in registration order.
func (r *Registry) Suites() []*runner.Suite {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*runner.Suite, len(r.suites))
	copy(out, r.suites)
	return out
}

// Default is the process-wide registry used by package-level
// registration.
var Default = NewRegistry(Config{Log: zerolog.Nop()})

// Register adds a suite to the default registry.
func Register(s *runner.Suite) error { return Default.Register(s) }

// MustRegister adds a suite to the default registry, panicking on error.
func MustRegister(s *runner.Suite) { Default.MustRegister(s) }
