// Package rewrite turns bare references to template state inside Go
// expressions and statements into explicit accessor calls on the shared state
// cell, and records which state each piece of code reads and writes.
//
// A read of count becomes acc.Ref().count; a write becomes acc.Mut().count.
// Only identifier leaves are replaced, so count + total rewrites each operand
// separately.
package rewrite

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"sort"
	"strings"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/recera/weave/internal/diag"
)

const (
	// ReadMethod is the read-only accessor of reactive.Cell
	ReadMethod = "Ref"
	// WriteMethod is the mutable accessor of reactive.Cell
	WriteMethod = "Mut"
)

// Config selects what gets rewritten and how
type Config struct {
	// States are the names of the template's state fields
	States []string
	// Accessor is the expression holding the state cell, e.g. "st" or "c.state"
	Accessor string
	// Props are names bound by enclosing loops, rewritten to PropsAccessor.name
	Props []string
	// PropsAccessor is the expression holding the props value, e.g. "c.props"
	PropsAccessor string
	// Locate maps AST positions back into the template for diagnostics
	Locate func(token.Pos) diag.Pos
}

// Rewriter rewrites one expression or statement list at a time
type Rewriter struct {
	cfg    Config
	states map[string]bool
	props  map[string]bool
}

// Result lists the identifiers touched by one rewrite
type Result struct {
	Reads  Names
	Writes Names
	Props  Names
	Seen   Names
}

// Deps returns every state identifier the code reads or writes
func (r *Result) Deps() Names {
	return r.Reads.Union(r.Writes)
}

// New creates a rewriter
func New(cfg Config) *Rewriter {
	r := &Rewriter{
		cfg:    cfg,
		states: make(map[string]bool, len(cfg.States)),
		props:  make(map[string]bool, len(cfg.Props)),
	}
	for _, s := range cfg.States {
		r.states[s] = true
	}
	for _, p := range cfg.Props {
		r.props[p] = true
	}
	return r
}

// Expr rewrites e and returns the replacement root. Expressions are rendered,
// not run for effect, so a method call reads its receiver; a pointer method
// on state then fails to compile against the value Ref returns.
func (r *Rewriter) Expr(e ast.Expr) (ast.Expr, *Result, error) {
	holder := &ast.ExprStmt{X: e}
	res, err := r.run(holder, true)
	if err != nil {
		return nil, nil, err
	}
	return holder.X, res, nil
}

// Stmts rewrites a statement list in place
func (r *Rewriter) Stmts(list []ast.Stmt) (*Result, error) {
	return r.run(&ast.BlockStmt{List: list}, false)
}

// Func rewrites the body of a function literal in place. Its parameters
// shadow state of the same name.
func (r *Rewriter) Func(fn *ast.FuncLit) (*Result, error) {
	return r.run(fn, false)
}

func (r *Rewriter) run(root ast.Node, render bool) (*Result, error) {
	w := &walker{
		r:        r,
		render:   render,
		writes:   make(map[*ast.Ident]bool),
		defining: make(map[*ast.Ident]bool),
		pending:  make(map[ast.Node][]string),
		pushed:   make(map[ast.Node]bool),
		res: &Result{
			Reads:  Names{},
			Writes: Names{},
			Props:  Names{},
			Seen:   Names{},
		},
	}
	w.push()
	astutil.Apply(root, w.pre, w.post)
	if w.err != nil {
		return nil, w.err
	}
	return w.res, nil
}

type walker struct {
	r *Rewriter
	// render treats method call receivers as reads
	render bool
	scopes []map[string]bool
	// state identifiers found in a write position
	writes map[*ast.Ident]bool
	// identifiers being declared, never rewritten
	defining map[*ast.Ident]bool
	// names declared when the keyed node is entered (range bodies)
	pending map[ast.Node][]string
	pushed  map[ast.Node]bool
	res     *Result
	err     error
}

func (w *walker) push() { w.scopes = append(w.scopes, map[string]bool{}) }
func (w *walker) pop()  { w.scopes = w.scopes[:len(w.scopes)-1] }

func (w *walker) declare(n string) {
	if n != "_" {
		w.scopes[len(w.scopes)-1][n] = true
	}
}

func (w *walker) shadowed(name string) bool {
	for _, s := range w.scopes {
		if s[name] {
			return true
		}
	}
	return false
}

func (w *walker) isState(name string) bool {
	return w.r.states[name] && !w.shadowed(name)
}

func (w *walker) isProp(name string) bool {
	return w.r.props[name] && !w.shadowed(name)
}

func (w *walker) pre(c *astutil.Cursor) bool {
	if w.err != nil {
		return false
	}

	switch n := c.Node().(type) {
	case *ast.FuncLit:
		w.enter(n)
		for _, field := range n.Type.Params.List {
			for _, name := range field.Names {
				w.defining[name] = true
				w.declare(name.Name)
			}
		}

	case *ast.BlockStmt:
		w.enter(n)
		for _, name := range w.pending[n] {
			w.declare(name)
		}

	case *ast.IfStmt, *ast.ForStmt, *ast.SwitchStmt, *ast.TypeSwitchStmt,
		*ast.SelectStmt, *ast.CaseClause, *ast.CommClause:
		w.enter(n)

	case *ast.RangeStmt:
		w.enter(n)
		if n.Tok == token.DEFINE {
			// key and value are in scope only inside the body
			for _, e := range []ast.Expr{n.Key, n.Value} {
				if id, ok := e.(*ast.Ident); ok {
					w.defining[id] = true
					w.pending[n.Body] = append(w.pending[n.Body], id.Name)
				}
			}
		} else {
			w.markWrites(n.Key, n.Value)
		}

	case *ast.AssignStmt:
		if n.Tok == token.DEFINE {
			for _, e := range n.Lhs {
				if id, ok := e.(*ast.Ident); ok {
					w.defining[id] = true
				}
			}
		} else {
			w.markWrites(n.Lhs...)
		}

	case *ast.ValueSpec:
		for _, id := range n.Names {
			w.defining[id] = true
		}

	case *ast.IncDecStmt:
		w.markWrites(n.X)

	case *ast.UnaryExpr:
		if n.Op == token.AND {
			w.markWrites(n.X)
		}

	case *ast.CallExpr:
		if sel, ok := n.Fun.(*ast.SelectorExpr); ok && !w.render {
			w.markWrites(sel.X)
		}

	case *ast.GoStmt:
		w.rejectMeta(n.Call, "go statement")
	case *ast.DeferStmt:
		w.rejectMeta(n.Call, "defer statement")

	case *ast.Ident:
		w.ident(c, n)
	}
	return w.err == nil
}

func (w *walker) post(c *astutil.Cursor) bool {
	switch n := c.Node().(type) {
	case *ast.AssignStmt:
		if n.Tok == token.DEFINE {
			for _, e := range n.Lhs {
				if id, ok := e.(*ast.Ident); ok {
					w.declare(id.Name)
				}
			}
		}
	case *ast.ValueSpec:
		for _, id := range n.Names {
			w.declare(id.Name)
		}
	}
	if w.pushed[c.Node()] {
		delete(w.pushed, c.Node())
		w.pop()
	}
	return true
}

// enter opens a scope that post closes
func (w *walker) enter(n ast.Node) {
	w.push()
	w.pushed[n] = true
}

func (w *walker) ident(c *astutil.Cursor, id *ast.Ident) {
	if w.defining[id] {
		return
	}
	switch c.Parent().(type) {
	case *ast.SelectorExpr:
		if c.Name() == "Sel" {
			return
		}
	case *ast.KeyValueExpr:
		// struct literal field names
		if c.Name() == "Key" {
			return
		}
	case *ast.LabeledStmt, *ast.BranchStmt, *ast.Field:
		return
	}

	w.res.Seen.Add(id.Name)

	switch {
	case w.isState(id.Name):
		method := ReadMethod
		if w.writes[id] {
			method = WriteMethod
			w.res.Writes.Add(id.Name)
		} else {
			w.res.Reads.Add(id.Name)
		}
		c.Replace(w.accessor(w.r.cfg.Accessor, method, id))
	case w.isProp(id.Name):
		w.res.Props.Add(id.Name)
		c.Replace(&ast.SelectorExpr{X: w.expr(w.r.cfg.PropsAccessor), Sel: ast.NewIdent(id.Name)})
	}
}

// markWrites flags the state identifier of each write target. A target must
// reduce to exactly one free identifier; a[i] = v with state a is ambiguous.
func (w *walker) markWrites(targets ...ast.Expr) {
	for _, target := range targets {
		if target == nil || w.err != nil {
			continue
		}
		idents := freeIdents(target)
		var states []*ast.Ident
		for _, id := range idents {
			if w.isState(id.Name) {
				states = append(states, id)
			}
		}
		if len(states) == 0 {
			continue
		}
		if len(idents) > 1 {
			w.err = diag.Errorf(diag.Rewrite, w.locate(target.Pos()),
				"write target with multiple identifiers is not handled (%s)", joinNames(idents))
			return
		}
		w.writes[states[0]] = true
	}
}

func (w *walker) rejectMeta(call *ast.CallExpr, what string) {
	var idents []*ast.Ident
	ast.Inspect(call, func(n ast.Node) bool {
		if sel, ok := n.(*ast.SelectorExpr); ok {
			ast.Inspect(sel.X, func(n ast.Node) bool {
				if id, ok := n.(*ast.Ident); ok {
					idents = append(idents, id)
				}
				return true
			})
			return false
		}
		if id, ok := n.(*ast.Ident); ok {
			idents = append(idents, id)
		}
		return true
	})
	for _, id := range idents {
		if w.isState(id.Name) {
			w.err = diag.Errorf(diag.Rewrite, w.locate(call.Pos()),
				"%s referencing state %s is not implemented", what, id.Name)
			return
		}
	}
}

func (w *walker) accessor(acc, method string, id *ast.Ident) ast.Expr {
	return &ast.SelectorExpr{
		X: &ast.CallExpr{
			Fun: &ast.SelectorExpr{X: w.expr(acc), Sel: ast.NewIdent(method)},
		},
		Sel: ast.NewIdent(id.Name),
	}
}

// expr parses an accessor expression such as c.state
func (w *walker) expr(src string) ast.Expr {
	e, err := parser.ParseExpr(src)
	if err != nil {
		panic(fmt.Sprintf("rewrite: invalid accessor %q: %v", src, err))
	}
	return e
}

func (w *walker) locate(p token.Pos) diag.Pos {
	if w.r.cfg.Locate == nil {
		return diag.Pos{}
	}
	return w.r.cfg.Locate(p)
}

// freeIdents collects identifiers of e that refer to variables, skipping
// selector field names and function literal bodies
func freeIdents(e ast.Node) []*ast.Ident {
	var out []*ast.Ident
	ast.Inspect(e, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.SelectorExpr:
			out = append(out, freeIdents(x.X)...)
			return false
		case *ast.FuncLit:
			return false
		case *ast.KeyValueExpr:
			if _, ok := x.Key.(*ast.Ident); ok {
				out = append(out, freeIdents(x.Value)...)
				return false
			}
		case *ast.Ident:
			out = append(out, x)
		}
		return true
	})
	return out
}

func joinNames(ids []*ast.Ident) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id.Name
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
