// Package host classifies the declarations of a component's Go host block
// into reactive state fields and event handlers.
package host

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/printer"
	"go/token"
	"sort"

	"github.com/recera/weave/internal/diag"
	"github.com/recera/weave/internal/template"
)

// StateField is a typed declaration: `var name T [= init]`
type StateField struct {
	Name string
	Type string
	// Init is the initializer source, empty for a zero value
	Init string
	Pos  diag.Pos
}

// EventHandler is an untyped declaration bound to a function literal
type EventHandler struct {
	Name string
	// Func is rewritten in place during code generation
	Func *ast.FuncLit
	// Param is the name of the event parameter, empty when the literal takes none
	Param string
	Pos   diag.Pos
}

// LocalDetails is everything the rest of the pipeline needs from the host block
type LocalDetails struct {
	States []StateField
	Events []EventHandler
	Raw    string
	// Fset positions Events[i].Func
	Fset *token.FileSet
}

// reserved names collide with identifiers of the generated state constructor
var reserved = map[string]bool{
	"callbacks": true,
	"st":        true,
	"rt":        true,
	"id":        true,
	"doc":       true,
	"err":       true,
}

// EventType is the only parameter type an event handler may declare
const EventType = "dom.Event"

// Extract walks the top-level statements of the host block in source order.
// Statements that are not declarations are ignored with a warning.
func Extract(src *diag.Source, frag diag.Fragment, warns *diag.List) (*LocalDetails, error) {
	if warns == nil {
		warns = &diag.List{}
	}
	ex := &extractor{
		src:   src,
		frag:  frag,
		warns: warns,
		fset:  token.NewFileSet(),
		seen:  make(map[string]diag.Pos),
	}
	details := &LocalDetails{Raw: frag.Text, Fset: ex.fset}
	if len(bytes.TrimSpace([]byte(frag.Text))) == 0 {
		return details, nil
	}

	stmts, err := template.ParseStmts(ex.fset, frag.Text)
	if err != nil {
		return nil, template.GoError(src, frag, err, true)
	}

	for _, stmt := range stmts {
		if err := ex.statement(details, stmt); err != nil {
			return nil, err
		}
	}
	return details, nil
}

type extractor struct {
	src   *diag.Source
	frag  diag.Fragment
	warns *diag.List
	fset  *token.FileSet
	seen  map[string]diag.Pos
}

func (ex *extractor) statement(details *LocalDetails, stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.DeclStmt:
		gen, ok := s.Decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.VAR {
			return ex.errorf(s.Pos(), "unsupported local form: only var declarations and := are handled")
		}
		for _, spec := range gen.Specs {
			if err := ex.valueSpec(details, spec.(*ast.ValueSpec)); err != nil {
				return err
			}
		}
		return nil

	case *ast.AssignStmt:
		if s.Tok != token.DEFINE {
			ex.warns.Warn("", ex.pos(s.Pos()), "assignment ignored; only declarations are extracted")
			return nil
		}
		if len(s.Lhs) != 1 || len(s.Rhs) != 1 {
			return ex.errorf(s.Pos(), "unsupported local form: declare one name per statement")
		}
		name, ok := s.Lhs[0].(*ast.Ident)
		if !ok {
			return ex.errorf(s.Pos(), "unsupported local form")
		}
		lit, ok := s.Rhs[0].(*ast.FuncLit)
		if !ok {
			return ex.errorf(s.Pos(), "type annotation required for %s: use var %s T = ...", name.Name, name.Name)
		}
		return ex.handler(details, name, lit)

	default:
		ex.warns.Warn("", ex.pos(s.Pos()), "statement ignored; only declarations are extracted")
		return nil
	}
}

func (ex *extractor) valueSpec(details *LocalDetails, spec *ast.ValueSpec) error {
	if len(spec.Names) != 1 || len(spec.Values) > 1 {
		return ex.errorf(spec.Pos(), "unsupported local form: declare one name per statement")
	}
	name := spec.Names[0]

	if spec.Type == nil {
		if len(spec.Values) == 1 {
			if lit, ok := spec.Values[0].(*ast.FuncLit); ok {
				return ex.handler(details, name, lit)
			}
		}
		return ex.errorf(spec.Pos(), "type annotation required for %s", name.Name)
	}

	if err := ex.declare(name); err != nil {
		return err
	}
	field := StateField{
		Name: name.Name,
		Type: ex.text(spec.Type),
		Pos:  ex.pos(name.Pos()),
	}
	if len(spec.Values) == 1 {
		field.Init = ex.text(spec.Values[0])
	}
	details.States = append(details.States, field)
	return nil
}

func (ex *extractor) handler(details *LocalDetails, name *ast.Ident, lit *ast.FuncLit) error {
	if err := ex.declare(name); err != nil {
		return err
	}
	h := EventHandler{Name: name.Name, Func: lit, Pos: ex.pos(name.Pos())}

	if lit.Type.Results != nil && len(lit.Type.Results.List) > 0 {
		return ex.errorf(lit.Pos(), "event handler %s must not return values", name.Name)
	}
	params := lit.Type.Params.List
	switch {
	case len(params) == 0:
	case len(params) == 1 && len(params[0].Names) <= 1 && ex.text(params[0].Type) == EventType:
		if len(params[0].Names) == 1 {
			h.Param = params[0].Names[0].Name
		}
	default:
		return ex.errorf(lit.Pos(), "unsupported local form: event handler %s takes no parameters or a single %s", name.Name, EventType)
	}

	details.Events = append(details.Events, h)
	return nil
}

// declare rejects names that are reserved or already declared
func (ex *extractor) declare(name *ast.Ident) error {
	pos := ex.pos(name.Pos())
	if reserved[name.Name] {
		return diag.Errorf(diag.Declaration, pos, "%s is reserved by generated code", name.Name)
	}
	if prev, ok := ex.seen[name.Name]; ok {
		return diag.Paired(diag.Declaration,
			fmt.Sprintf("%s is declared more than once", name.Name),
			prev, "first declared here",
			pos, "declared again here")
	}
	ex.seen[name.Name] = pos
	return nil
}

// text returns the original source of n
func (ex *extractor) text(n ast.Node) string {
	start := template.StmtOffset(ex.fset, n.Pos())
	end := template.StmtOffset(ex.fset, n.End())
	if start >= 0 && end <= len(ex.frag.Text) && start <= end {
		return ex.frag.Text[start:end]
	}
	var buf bytes.Buffer
	printer.Fprint(&buf, ex.fset, n)
	return buf.String()
}

func (ex *extractor) pos(p token.Pos) diag.Pos {
	return ex.frag.At(ex.src, template.StmtOffset(ex.fset, p))
}

func (ex *extractor) errorf(p token.Pos, format string, args ...interface{}) error {
	return diag.Errorf(diag.Declaration, ex.pos(p), format, args...)
}

// State returns the state field called name
func (d *LocalDetails) State(name string) (StateField, bool) {
	for _, s := range d.States {
		if s.Name == name {
			return s, true
		}
	}
	return StateField{}, false
}

// Slot returns the callback slot of the event handler called name. Slots
// follow declaration order.
func (d *LocalDetails) Slot(name string) (int, bool) {
	for i, e := range d.Events {
		if e.Name == name {
			return i, true
		}
	}
	return 0, false
}

// StateNames returns the sorted names of all state fields
func (d *LocalDetails) StateNames() []string {
	names := make([]string, 0, len(d.States))
	for _, s := range d.States {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}
