// Package dispatch routes typed commands and queries to exactly one handler.
//
// Handlers are registered on a Registry at startup and frozen by Build into
// an immutable Dispatcher. The routing key is the static type of the request,
// so a request type can have at most one handler and the table needs no
// locking once built.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"
)

var (
	// ErrHandlerNotFound is returned when no handler of the right kind is
	// registered for the request type.
	ErrHandlerNotFound = errors.New("handler not found")
	// ErrHandlerAmbiguous is returned by Build when a request type was
	// registered more than once.
	ErrHandlerAmbiguous = errors.New("handler ambiguous")
)

// QueryHandler answers a query of type Q with a result of type R.
type QueryHandler[Q any, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

// CommandHandler applies a command of type C.
type CommandHandler[C any] interface {
	Handle(ctx context.Context, cmd C) error
}

// QueryHandlerFunc adapts a function to QueryHandler.
type QueryHandlerFunc[Q any, R any] func(ctx context.Context, query Q) (R, error)

func (f QueryHandlerFunc[Q, R]) Handle(ctx context.Context, query Q) (R, error) {
	return f(ctx, query)
}

// CommandHandlerFunc adapts a function to CommandHandler.
type CommandHandlerFunc[C any] func(ctx context.Context, cmd C) error

func (f CommandHandlerFunc[C]) Handle(ctx context.Context, cmd C) error {
	return f(ctx, cmd)
}

type queryEntry[Q any, R any] struct {
	handler QueryHandler[Q, R]
}

type commandEntry[C any] struct {
	handler CommandHandler[C]
}

// Dispatcher is the frozen routing table. It is safe for concurrent use.
type Dispatcher struct {
	handlers map[reflect.Type]any
	observer Observer
}

// Query routes q to its registered query handler and returns the result.
func Query[Q any, R any](ctx context.Context, d *Dispatcher, q Q) (R, error) {
	var zero R
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	t := typeOf[Q]()
	entry, ok := d.handlers[t].(queryEntry[Q, R])
	if !ok {
		d.observe(t, 0, ErrHandlerNotFound)
		return zero, notFound(t, d.handlers[t])
	}

	start := time.Now()
	res, err := entry.handler.Handle(ctx, q)
	d.observe(t, time.Since(start), err)
	return res, err
}

// Command routes c to its registered command handler.
func Command[C any](ctx context.Context, d *Dispatcher, c C) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t := typeOf[C]()
	entry, ok := d.handlers[t].(commandEntry[C])
	if !ok {
		d.observe(t, 0, ErrHandlerNotFound)
		return notFound(t, d.handlers[t])
	}

	start := time.Now()
	err := entry.handler.Handle(ctx, c)
	d.observe(t, time.Since(start), err)
	return err
}

// Has reports whether a handler of any kind is registered for type T.
func Has[T any](d *Dispatcher) bool {
	_, ok := d.handlers[typeOf[T]()]
	return ok
}

// Len returns the number of routed request types.
func (d *Dispatcher) Len() int { return len(d.handlers) }

func (d *Dispatcher) observe(t reflect.Type, elapsed time.Duration, err error) {
	if d.observer != nil {
		d.observer.Observe(t.String(), elapsed, err)
	}
}

func notFound(t reflect.Type, registered any) error {
	if registered == nil {
		return fmt.Errorf("%w: %s", ErrHandlerNotFound, t)
	}
	return fmt.Errorf("%w: %s is registered with a different handler kind", ErrHandlerNotFound, t)
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
