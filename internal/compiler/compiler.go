// Package compiler runs the weave pipeline on one template: parse, extract,
// validate, generate and emit.
package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/recera/weave/internal/check"
	"github.com/recera/weave/internal/codegen"
	"github.com/recera/weave/internal/diag"
	"github.com/recera/weave/internal/emit"
	"github.com/recera/weave/internal/host"
	"github.com/recera/weave/internal/template"
	"github.com/recera/weave/internal/typelookup"
)

// Ext is the file extension of templates
const Ext = ".weave"

// Unit is one template to compile
type Unit struct {
	File   string
	Source string
	// Package overrides Options.Package for this unit
	Package string
}

// Timing is the wall time of one pipeline stage
type Timing struct {
	Stage    string
	Duration time.Duration
}

// Result is a compiled template
type Result struct {
	Unit      Unit
	Component string
	Output    []byte
	Warnings  []*diag.Diagnostic
	Timings   []Timing
	// Source is the indexed template text, for rendering diagnostics
	Source *diag.Source
}

// Options configures a Compiler
type Options struct {
	Package string
	Runtime string
	Lookup  typelookup.Lookuper
}

// Compiler compiles templates. It is safe for concurrent use when its
// Lookuper is.
type Compiler struct {
	opts Options
}

// New creates a compiler
func New(opts Options) *Compiler {
	return &Compiler{opts: opts}
}

// Compile runs the pipeline on unit. The first fatal diagnostic aborts
// compilation; it is returned as an error that unwraps to *diag.Diagnostic
// or *typelookup.FatalError. The Result is returned in both cases so
// warnings and timings gathered so far are available.
func (c *Compiler) Compile(ctx context.Context, unit Unit) (*Result, error) {
	src := diag.NewSource(unit.File, unit.Source)
	res := &Result{Unit: unit, Source: src}
	warns := &diag.List{}
	defer func() { res.Warnings = warns.All() }()

	stage := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		res.Timings = append(res.Timings, Timing{Stage: name, Duration: time.Since(start)})
		if err != nil {
			return fmt.Errorf("%s %s: %w", name, unit.File, err)
		}
		return ctx.Err()
	}

	var (
		file    *template.File
		details *host.LocalDetails
		comp    *codegen.Component
	)
	err := stage("parse", func() (err error) {
		file, err = template.ParseFile(src, warns)
		return err
	})
	if err == nil {
		err = stage("extract", func() (err error) {
			details, err = host.Extract(src, file.Host, warns)
			return err
		})
	}
	if err == nil {
		err = stage("validate", func() error {
			return check.Validate(file.Elements, details)
		})
	}
	if err == nil {
		err = stage("generate", func() (err error) {
			comp, err = codegen.Generate(ctx, file, details, codegen.Options{
				Lookup: c.opts.Lookup,
				Warns:  warns,
			})
			return err
		})
	}
	if err == nil {
		res.Component = comp.Name
		err = stage("emit", func() (err error) {
			pkg := unit.Package
			if pkg == "" {
				pkg = c.opts.Package
			}
			res.Output, err = emit.Source(comp, emit.Options{Package: pkg, Runtime: c.opts.Runtime})
			return err
		})
	}
	return res, err
}

// Outcome pairs a unit's result with its error
type Outcome struct {
	Result *Result
	Err    error
}

// CompileAll compiles units with at most jobs running at once. Outcomes are
// in the order of units. done, when set, is called from the compiling
// goroutine as each unit finishes.
func (c *Compiler) CompileAll(ctx context.Context, units []Unit, jobs int, done func(i int, o Outcome)) []Outcome {
	if jobs < 1 {
		jobs = 1
	}
	out := make([]Outcome, len(units))
	sem := make(chan struct{}, jobs)
	var wg sync.WaitGroup
	for i, u := range units {
		wg.Add(1)
		go func(i int, u Unit) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				out[i] = Outcome{Result: &Result{Unit: u}, Err: ctx.Err()}
				if done != nil {
					done(i, out[i])
				}
				return
			}
			defer func() { <-sem }()
			res, err := c.Compile(ctx, u)
			out[i] = Outcome{Result: res, Err: err}
			if done != nil {
				done(i, out[i])
			}
		}(i, u)
	}
	wg.Wait()
	return out
}

// ReadUnit loads a template from disk
func ReadUnit(path string) (Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Unit{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Unit{File: path, Source: string(data)}, nil
}

// Discover returns the templates named by paths: files are taken as given,
// directories are walked for *.weave files.
func Discover(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && path != p && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !d.IsDir() && strings.HasSuffix(path, Ext) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// OutputPath is where the generated code for file goes: counter.weave
// becomes counter.weave.go, inside outDir when it is set
func OutputPath(file, outDir string) string {
	name := file + ".go"
	if outDir != "" {
		name = filepath.Join(outDir, filepath.Base(name))
	}
	return name
}

// Write stores res.Output at its output path
func Write(res *Result, outDir string) (string, error) {
	path := OutputPath(res.Unit.File, outDir)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(path, res.Output, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
