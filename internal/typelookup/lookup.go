// Package typelookup resolves the Go types of names bound by template loops.
// A small program built from the component's state declarations and the
// enclosing loop headers is type checked with the Go toolchain; results are
// cached per component (bucket) and loop path (scope).
package typelookup

import (
	"context"
	"fmt"
	"strings"
)

// Request asks for the types of the names bound by the innermost loop of
// Snippet
type Request struct {
	// Snippet is a Go statement list ending with the loop of interest
	Snippet string
	// Bucket groups the lookups of one component
	Bucket string
	// Scope identifies the loop inside the component, e.g. "for_1.for_2"
	Scope string
	// Pattern lists the names bound by the loop
	Pattern []string
}

// Binding is the resolved type of one name
type Binding struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Lookuper resolves loop binding types
type Lookuper interface {
	Lookup(ctx context.Context, req Request) ([]Binding, error)
}

// FatalError is a failure that must stop compilation of the unit: the
// toolchain could not type the snippet or a cached dump is malformed
type FatalError struct {
	Bucket string
	Scope  string
	Err    error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("type lookup %s/%s: %v", e.Bucket, e.Scope, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Program wraps a snippet into the main package handed to the toolchain
func Program(snippet string) string {
	var b strings.Builder
	b.WriteString("package main\n\nfunc main() {\n")
	b.WriteString(snippet)
	if !strings.HasSuffix(snippet, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("}\n")
	return b.String()
}

// Service answers lookups from the store and falls back to the toolchain
// when the cached program differs from the requested one
type Service struct {
	store     Store
	toolchain Toolchain
}

// New creates a lookup service
func New(store Store, toolchain Toolchain) *Service {
	return &Service{store: store, toolchain: toolchain}
}

// Lookup implements Lookuper
func (s *Service) Lookup(ctx context.Context, req Request) ([]Binding, error) {
	program := Program(req.Snippet)
	fatal := func(err error) error {
		return &FatalError{Bucket: req.Bucket, Scope: req.Scope, Err: err}
	}

	entry, ok, err := s.store.Get(req.Bucket, req.Scope)
	if err != nil {
		return nil, fatal(err)
	}
	if ok && entry.Program == program {
		if bindings, complete := pick(entry.Bindings, req.Pattern); complete {
			return bindings, nil
		}
	}

	bindings, err := s.toolchain.Resolve(ctx, program, req.Pattern)
	if err != nil {
		return nil, fatal(err)
	}
	if err := s.store.Put(req.Bucket, req.Scope, &Entry{Program: program, Bindings: bindings}); err != nil {
		return nil, fmt.Errorf("failed to cache type lookup: %w", err)
	}
	out, complete := pick(bindings, req.Pattern)
	if !complete {
		return nil, fatal(fmt.Errorf("toolchain did not resolve all of %s", strings.Join(req.Pattern, ", ")))
	}
	return out, nil
}

// pick returns the bindings of names in pattern order
func pick(bindings []Binding, names []string) ([]Binding, bool) {
	out := make([]Binding, 0, len(names))
	for _, n := range names {
		found := false
		for _, b := range bindings {
			if b.Name == n {
				out = append(out, b)
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return out, true
}
