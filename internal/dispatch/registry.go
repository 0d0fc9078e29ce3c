package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Registry collects handler registrations during startup.
type Registry struct {
	mu       sync.Mutex
	handlers map[reflect.Type]any
	counts   map[reflect.Type]int
	observer Observer
	built    bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithObserver attaches an observer that sees every dispatched request.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observer = o }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		handlers: make(map[reflect.Type]any),
		counts:   make(map[reflect.Type]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterQuery routes queries of type Q to h.
func RegisterQuery[Q any, R any](r *Registry, h QueryHandler[Q, R]) {
	r.add(typeOf[Q](), queryEntry[Q, R]{handler: h})
}

// RegisterQueryFunc routes queries of type Q to fn.
func RegisterQueryFunc[Q any, R any](r *Registry, fn func(ctx context.Context, query Q) (R, error)) {
	RegisterQuery[Q, R](r, QueryHandlerFunc[Q, R](fn))
}

// RegisterCommand routes commands of type C to h.
func RegisterCommand[C any](r *Registry, h CommandHandler[C]) {
	r.add(typeOf[C](), commandEntry[C]{handler: h})
}

// RegisterCommandFunc routes commands of type C to fn.
func RegisterCommandFunc[C any](r *Registry, fn func(ctx context.Context, cmd C) error) {
	RegisterCommand[C](r, CommandHandlerFunc[C](fn))
}

func (r *Registry) add(t reflect.Type, entry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.built {
		panic(fmt.Sprintf("dispatch: register %s after Build", t))
	}
	r.counts[t]++
	if _, exists := r.handlers[t]; !exists {
		r.handlers[t] = entry
	}
}

// Build freezes the registrations. It fails with ErrHandlerAmbiguous naming
// every request type that was registered more than once.
func (r *Registry) Build() (*Dispatcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dups []string
	for t, n := range r.counts {
		if n > 1 {
			dups = append(dups, fmt.Sprintf("%s (%d handlers)", t, n))
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		errs := make([]error, len(dups))
		for i, d := range dups {
			errs[i] = fmt.Errorf("%w: %s", ErrHandlerAmbiguous, d)
		}
		return nil, errors.Join(errs...)
	}

	table := make(map[reflect.Type]any, len(r.handlers))
	for t, h := range r.handlers {
		table[t] = h
	}
	r.built = true
	return &Dispatcher{handlers: table, observer: r.observer}, nil
}
