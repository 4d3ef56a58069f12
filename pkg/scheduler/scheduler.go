// Package scheduler drives the update passes of mounted components. Event
// handlers mark their component dirty; each tick runs Update once for every
// dirty component.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Component is the part of a generated component the runtime calls
type Component interface {
	Update() error
}

// ErrorHandler handles a failed or panicking update.
// Returns true to keep the component registered, false to drop it.
type ErrorHandler func(key uint32, err error) bool

// debugLog is set through package debug
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// Runtime tracks registered components and which of them are dirty
type Runtime struct {
	mu         sync.Mutex
	components map[uint32]Component
	dirty      map[uint32]struct{}
	nextKey    uint32
	wake       chan struct{}
	running    atomic.Bool
	onError    ErrorHandler
}

// New creates a runtime
func New() *Runtime {
	return &Runtime{
		components: make(map[uint32]Component),
		dirty:      make(map[uint32]struct{}),
		nextKey:    1,
		wake:       make(chan struct{}, 1),
	}
}

// SetErrorHandler sets the handler for failed updates
func (r *Runtime) SetErrorHandler(handler ErrorHandler) {
	r.onError = handler
}

// NextKey reserves a component key
func (r *Runtime) NextKey() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.nextKey
	r.nextKey++
	return key
}

// Register attaches c to key
func (r *Runtime) Register(key uint32, c Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[key] = c
}

// Unregister forgets the component of key
func (r *Runtime) Unregister(key uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.components, key)
	delete(r.dirty, key)
}

// MarkDirty schedules an update of the component of key
func (r *Runtime) MarkDirty(key uint32) {
	r.mu.Lock()
	_, already := r.dirty[key]
	r.dirty[key] = struct{}{}
	r.mu.Unlock()

	if already {
		if debugLog != nil {
			debugLog("[Runtime] component", key, "already dirty")
		}
		return
	}
	// wake channel full means a tick is already pending
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Dirty returns the number of components waiting for an update
func (r *Runtime) Dirty() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dirty)
}

// ComponentCount returns the number of registered components
func (r *Runtime) ComponentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.components)
}

// Tick updates every dirty component once, in key order. Without an error
// handler the errors of all failed updates are returned joined.
func (r *Runtime) Tick() error {
	r.mu.Lock()
	keys := make([]uint32, 0, len(r.dirty))
	for k := range r.dirty {
		keys = append(keys, k)
	}
	clear(r.dirty)
	batch := make([]Component, len(keys))
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for i, k := range keys {
		batch[i] = r.components[k]
	}
	r.mu.Unlock()

	if debugLog != nil && len(keys) > 0 {
		debugLog("[Runtime] processing batch of", len(keys), "components")
	}

	var errs []error
	for i, c := range batch {
		if c == nil {
			continue
		}
		if err := r.update(keys[i], c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// update runs one component update, turning a panic into an error
func (r *Runtime) update(key uint32, c Component) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("component %d panic: %v\n%s", key, p, debug.Stack())
		}
		if err == nil || r.onError == nil {
			return
		}
		if !r.onError(key, err) {
			r.Unregister(key)
		}
		err = nil
	}()
	return c.Update()
}

// Run ticks whenever a component is marked dirty and at least every
// interval, until ctx is done
func (r *Runtime) Run(ctx context.Context, interval time.Duration) error {
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("scheduler: runtime already running")
	}
	defer r.running.Store(false)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
		case <-ticker.C:
		}
		if err := r.Tick(); err != nil {
			return err
		}
	}
}

// IsRunning returns whether Run is active
func (r *Runtime) IsRunning() bool {
	return r.running.Load()
}
