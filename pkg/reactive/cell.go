// Package reactive holds the single state cell shared by a generated
// component and its loop scopes, plus positional list reconciliation.
package reactive

import (
	"sort"
)

// debugLog is set through package debug
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// Reader is the read-only capability of a cell
type Reader[T any] interface {
	// Ref returns a copy of the value
	Ref() T
	// Changed reports whether any of names was touched since the last clear
	Changed(names ...string) bool
}

// Writer is the read-write capability handed out by Update
type Writer[T any] interface {
	Reader[T]
	// Mut returns a pointer to the value for in-place modification
	Mut() *T
	// Touch records names as changed
	Touch(names ...string)
}

// Cell owns a component's state value and the set of field names changed
// since the last update pass. A cell has a single writer at a time.
type Cell[T any] struct {
	value    T
	changed  map[string]struct{}
	updating bool
}

// NewCell creates a cell holding initial
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial, changed: make(map[string]struct{})}
}

// Ref implements Reader
func (c *Cell[T]) Ref() T {
	return c.value
}

// Mut implements Writer
func (c *Cell[T]) Mut() *T {
	return &c.value
}

// Touch implements Writer
func (c *Cell[T]) Touch(names ...string) {
	for _, n := range names {
		c.changed[n] = struct{}{}
	}
	if debugLog != nil && len(names) > 0 {
		debugLog("[Cell] touched", names)
	}
}

// Changed implements Reader
func (c *Cell[T]) Changed(names ...string) bool {
	for _, n := range names {
		if _, ok := c.changed[n]; ok {
			return true
		}
	}
	return false
}

// ChangedNames returns the sorted names touched since the last clear
func (c *Cell[T]) ChangedNames() []string {
	out := make([]string, 0, len(c.changed))
	for n := range c.changed {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ClearChanged forgets every touched name. The outermost update pass calls it
// once all scopes have observed the changes.
func (c *Cell[T]) ClearChanged() {
	clear(c.changed)
}

// Update runs fn with write access to the cell. Calling Update again from
// inside fn panics.
func (c *Cell[T]) Update(fn func(w Writer[T])) {
	if c.updating {
		panic("reactive: re-entrant Cell.Update")
	}
	c.updating = true
	defer func() { c.updating = false }()
	fn(c)
}

// Updating reports whether an Update is in progress
func (c *Cell[T]) Updating() bool {
	return c.updating
}
