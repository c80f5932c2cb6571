// Package executor dispatches operations by name. Handlers are registered
// once at startup into a static table; there is no runtime introspection,
// an unknown name is simply an error.
package executor

import (
	"context"
	"fmt"
	"sync"
)

// Handler executes one named operation.
type Handler func(ctx context.Context, arg any) (any, error)

type Executor struct {
	mu       sync.RWMutex
	sealed   bool
	handlers map[string]Handler
}

func New() *Executor {
	return &Executor{handlers: make(map[string]Handler)}
}

// Register binds a name to a handler. Duplicate names and registration after
// Seal are programming errors.
func (e *Executor) Register(name string, h Handler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return fmt.Errorf("executor is sealed, cannot register %q", name)
	}
	if _, ok := e.handlers[name]; ok {
		return fmt.Errorf("operation %q already registered", name)
	}
	e.handlers[name] = h
	return nil
}

// Seal freezes the handler table; call it once startup registration is done.
func (e *Executor) Seal() {
	e.mu.Lock()
	e.sealed = true
	e.mu.Unlock()
}

func (e *Executor) Operations() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		out = append(out, name)
	}
	return out
}

func (e *Executor) Execute(ctx context.Context, name string, arg any) (any, error) {
	e.mu.RLock()
	h, ok := e.handlers[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", name)
	}
	return h(ctx, arg)
}

// Execution is a handle on an operation running in the background.
type Execution struct {
	done   chan struct{}
	result any
	err    error
}

// Wait blocks until the operation completes or the context is cancelled.
func (x *Execution) Wait(ctx context.Context) (any, error) {
	select {
	case <-x.done:
		return x.result, x.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BackgroundExecute runs the operation on its own goroutine and returns a
// handle to wait on.
func (e *Executor) BackgroundExecute(ctx context.Context, name string, arg any) *Execution {
	x := &Execution{done: make(chan struct{})}
	go func() {
		defer close(x.done)
		x.result, x.err = e.Execute(ctx, name, arg)
	}()
	return x
}
