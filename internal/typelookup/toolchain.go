package typelookup

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/types"
	"os"
	"path/filepath"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/imports"
)

// Toolchain type checks a program and reports the types of the names bound
// by its innermost range statement
type Toolchain interface {
	Resolve(ctx context.Context, program string, names []string) ([]Binding, error)
}

// GoToolchain runs `go list` through go/packages in a scratch module
type GoToolchain struct {
	// Dir is where scratch modules are created, os.TempDir() when empty
	Dir string
	// Env is appended to the process environment
	Env []string
}

const scratchModule = "module weavelookup\n\ngo 1.21\n"

// Resolve implements Toolchain
func (g *GoToolchain) Resolve(ctx context.Context, program string, names []string) ([]Binding, error) {
	if g.Dir != "" {
		if err := os.MkdirAll(g.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create scratch root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(g.Dir, "lookup-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch module: %w", err)
	}
	defer os.RemoveAll(dir)

	// fills in standard library imports used by state types
	src, err := imports.Process("main.go", []byte(program), nil)
	if err != nil {
		src = []byte(program)
	}
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(scratchModule), 0644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), src, 0644); err != nil {
		return nil, err
	}

	cfg := &packages.Config{
		Mode:    packages.NeedName | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedSyntax,
		Context: ctx,
		Dir:     dir,
		Env:     append(os.Environ(), g.Env...),
	}
	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to load snippet: %w", err)
	}
	if len(pkgs) != 1 {
		return nil, fmt.Errorf("expected 1 package, got %d", len(pkgs))
	}
	return bindingsOf(pkgs[0], names)
}

// bindingsOf reads the types of names defined by the deepest range statement.
// Type errors elsewhere in the snippet are tolerated as long as the bindings
// themselves are typed.
func bindingsOf(pkg *packages.Package, names []string) ([]Binding, error) {
	if len(pkg.Syntax) == 0 || pkg.TypesInfo == nil {
		return nil, firstError(pkg, errors.New("snippet has no syntax"))
	}

	var deepest *ast.RangeStmt
	depth, best := 0, -1
	ast.Inspect(pkg.Syntax[0], func(n ast.Node) bool {
		if n == nil {
			depth--
			return true
		}
		depth++
		if r, ok := n.(*ast.RangeStmt); ok && depth > best {
			deepest, best = r, depth
		}
		return true
	})
	if deepest == nil {
		return nil, errors.New("snippet has no range statement")
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	qualifier := func(p *types.Package) string {
		if p == pkg.Types {
			return ""
		}
		return p.Name()
	}

	var out []Binding
	for _, e := range []ast.Expr{deepest.Key, deepest.Value} {
		id, ok := e.(*ast.Ident)
		if !ok || !wanted[id.Name] {
			continue
		}
		obj := pkg.TypesInfo.Defs[id]
		if obj == nil || obj.Type() == nil || obj.Type() == types.Typ[types.Invalid] {
			return nil, firstError(pkg, fmt.Errorf("cannot determine the type of %s", id.Name))
		}
		out = append(out, Binding{Name: id.Name, Type: types.TypeString(obj.Type(), qualifier)})
	}
	return out, nil
}

func firstError(pkg *packages.Package, fallback error) error {
	if len(pkg.Errors) > 0 {
		return fmt.Errorf("%w: %v", fallback, pkg.Errors[0])
	}
	return fallback
}
