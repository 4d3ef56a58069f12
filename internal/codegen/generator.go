package codegen

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"golang.org/x/net/html/atom"

	"github.com/recera/weave/internal/diag"
	"github.com/recera/weave/internal/host"
	"github.com/recera/weave/internal/rewrite"
	"github.com/recera/weave/internal/template"
	"github.com/recera/weave/internal/typelookup"
)

// Options configures code generation
type Options struct {
	// Component is the generated type name, derived from the file name when empty
	Component string
	// Lookup resolves the types of loop bindings
	Lookup typelookup.Lookuper
	Warns  *diag.List
}

// Generate compiles the template of f. details must come from the same file
// and is modified: handler bodies are rewritten in place.
func Generate(ctx context.Context, f *template.File, details *host.LocalDetails, opts Options) (*Component, error) {
	if opts.Warns == nil {
		opts.Warns = &diag.List{}
	}
	name := opts.Component
	if name == "" {
		name = TypeName(f.Source.Name)
	}

	g := &generator{
		ctx:     ctx,
		file:    f,
		src:     f.Source,
		details: details,
		lookup:  opts.Lookup,
		warns:   opts.Warns,
		fset:    token.NewFileSet(),
		comp: &Component{
			Name:      name,
			StateType: name + "State",
			Source:    f.Source.Name,
			States:    details.States,
		},
	}

	if err := g.handlers(); err != nil {
		return nil, err
	}

	root := newDom(name, "", true)
	g.comp.Root = root
	s := g.scope(root, nil, nil)
	if err := g.elements(s, f.Elements, ""); err != nil {
		return nil, err
	}
	resolveProps(root)
	return g.comp, nil
}

type generator struct {
	ctx     context.Context
	file    *template.File
	src     *diag.Source
	details *host.LocalDetails
	lookup  typelookup.Lookuper
	warns   *diag.List
	comp    *Component

	// binds counts bind handlers so far, in document order
	binds int
	// fset positions template expressions; base is the source offset of the
	// expression being rewritten
	fset *token.FileSet
	base int
}

// scope is the generation context of one Dom
type scope struct {
	dom *Dom
	rw  *rewrite.Rewriter
	// props holds the loop-bound names visible in the scope
	props rewrite.Names
	// used collects the props the scope reads
	used rewrite.Names
	// deps collects the state the scope and its nested scopes reference
	deps rewrite.Names
	// headers are the loop headers enclosing the scope, for type lookups
	headers []string
}

func (g *generator) scope(d *Dom, props rewrite.Names, headers []string) *scope {
	var states []string
	for _, st := range g.details.StateNames() {
		if !props.Has(st) {
			states = append(states, st)
		}
	}
	return &scope{
		dom: d,
		rw: rewrite.New(rewrite.Config{
			States:        states,
			Accessor:      "c.state",
			Props:         props.Sorted(),
			PropsAccessor: "c.props",
			Locate:        g.exprPos,
		}),
		props:   props,
		used:    rewrite.Names{},
		deps:    rewrite.Names{},
		headers: headers,
	}
}

func (g *generator) elements(s *scope, elems []template.Element, parent string) error {
	for _, el := range elems {
		if err := g.ctx.Err(); err != nil {
			return err
		}
		if err := g.element(s, el, parent); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) element(s *scope, el template.Element, parent string) error {
	switch n := el.(type) {
	case *template.Tag:
		return g.tag(s, n, parent)
	case *template.Text:
		name := s.dom.node("text", "dom.Text")
		s.dom.Init = append(s.dom.Init, initCheck(name, fmt.Sprintf("doc.CreateTextNode(%s)", strconv.Quote(n.Value))))
		g.attach(s, parent, name)
		return nil
	case *template.Comment:
		name := s.dom.node("comment", "dom.Comment")
		s.dom.Init = append(s.dom.Init, initCheck(name, fmt.Sprintf("doc.CreateComment(%s)", strconv.Quote(n.Value))))
		g.attach(s, parent, name)
		return nil
	case *template.Interpolation:
		return g.interpolation(s, n, parent)
	case *template.For:
		return g.loop(s, n, parent)
	case *template.If:
		return diag.Errorf(diag.Unimplemented, n.Pos, "if blocks are not implemented")
	}
	return fmt.Errorf("unexpected element %T", el)
}

func (g *generator) tag(s *scope, t *template.Tag, parent string) error {
	a := atom.Lookup([]byte(t.Name))
	if a == 0 && !strings.Contains(t.Name, "-") {
		g.warns.Warn("", t.Pos, "unknown element <%s>", t.Name)
	}

	var typ, create string
	switch a {
	case atom.Input:
		typ, create = "dom.Input", "doc.CreateInput()"
	case atom.Button:
		typ, create = "dom.Button", "doc.CreateButton()"
	default:
		typ, create = "dom.Element", fmt.Sprintf("doc.CreateElement(%q)", t.Name)
	}

	name := s.dom.node(t.Name, typ)
	s.dom.Init = append(s.dom.Init, initCheck(name, create))
	g.attach(s, parent, name)

	for _, attr := range t.Attrs {
		if err := g.attribute(s, t, a, name, attr); err != nil {
			return err
		}
	}
	return g.elements(s, t.Children, name)
}

func (g *generator) interpolation(s *scope, n *template.Interpolation, parent string) error {
	switch n.Kind {
	case template.InterpLiteral:
		name := s.dom.node("text", "dom.Text")
		s.dom.Init = append(s.dom.Init, initCheck(name, fmt.Sprintf("doc.CreateTextNode(%s)", strconv.Quote(n.Value))))
		g.attach(s, parent, name)
		return nil

	case template.InterpIdent:
		expr, res, err := s.rw.Expr(ast.NewIdent(n.Value))
		if err != nil {
			return err
		}
		g.text(s, parent, g.print(expr), res)
		return nil
	}

	e, err := parser.ParseExprFrom(g.fset, "", n.Value, parser.SkipObjectResolution)
	if err != nil {
		g.warns.Warn("", n.Pos, "statement blocks are not rendered")
		return nil
	}
	g.base = n.Offset
	expr, res, err := s.rw.Expr(e)
	if err != nil {
		return err
	}
	if len(res.Writes) > 0 {
		return diag.Errorf(diag.Unimplemented, n.Pos,
			"writing state inside an interpolation is not implemented (%s)", strings.Join(res.Writes.Sorted(), ", "))
	}
	g.text(s, parent, g.print(expr), res)
	return nil
}

// text creates a text node showing expr and refreshes it when its inputs change
func (g *generator) text(s *scope, parent, expr string, res *rewrite.Result) {
	name := s.dom.node("text", "dom.Text")
	value := fmt.Sprintf("fmt.Sprint(%s)", expr)
	s.dom.Init = append(s.dom.Init, initCheck(name, fmt.Sprintf("doc.CreateTextNode(%s)", value)))
	g.attach(s, parent, name)
	if update := s.track(res, fmt.Sprintf("c.%s.SetTextContent(%s)", name, value)); update != "" {
		s.dom.Update = append(s.dom.Update, update)
	}
}

// attach mounts node under parent, or at the mount target for top-level nodes
func (g *generator) attach(s *scope, parent, node string) {
	switch {
	case parent != "":
		s.dom.Mount = append(s.dom.Mount, mountCheck(fmt.Sprintf("c.%s.AppendChild(c.%s)", parent, node)))
	case s.dom.Append:
		s.dom.Mount = append(s.dom.Mount, mountCheck(fmt.Sprintf("target.AppendChild(c.%s)", node)))
	default:
		s.dom.Mount = append(s.dom.Mount, mountCheck(fmt.Sprintf("target.Before(c.%s)", node)))
		s.dom.Drop = append(s.dom.Drop, fmt.Sprintf("c.%s.Remove()", node))
	}
}

// track records what res references and returns code that runs lines when
// it may have changed: always for props, on a state change otherwise
func (s *scope) track(res *rewrite.Result, lines ...string) string {
	for p := range res.Props {
		s.used.Add(p)
	}
	deps := res.Deps()
	for d := range deps {
		s.deps.Add(d)
	}
	switch {
	case len(res.Props) > 0:
		return strings.Join(lines, "\n")
	case len(deps) == 0:
		return ""
	}
	return changed(deps.Sorted(), lines...)
}

func (g *generator) print(e ast.Expr) string {
	return printNode(g.fset, e)
}

// exprPos locates a position of the expression being rewritten
func (g *generator) exprPos(p token.Pos) diag.Pos {
	return g.src.Pos(g.base + g.fset.Position(p).Offset)
}

// hostPos locates a position inside the host block
func (g *generator) hostPos(p token.Pos) diag.Pos {
	return g.file.Host.At(g.src, template.StmtOffset(g.details.Fset, p))
}

func (g *generator) parseExpr(e template.Expr) (ast.Expr, error) {
	x, err := e.Parse(g.fset)
	if err != nil {
		return nil, template.GoError(g.src, diag.Fragment{Text: e.Src, Offset: e.Offset}, err, false)
	}
	g.base = e.Offset
	return x, nil
}

func changed(names []string, lines ...string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = strconv.Quote(n)
	}
	return fmt.Sprintf("if c.state.Changed(%s) {\n%s\n}", strings.Join(quoted, ", "), strings.Join(lines, "\n"))
}

func initCheck(field, call string) string {
	return fmt.Sprintf("if c.%s, err = %s; err != nil {\nreturn nil, err\n}", field, call)
}

func mountCheck(call string) string {
	return fmt.Sprintf("if err := %s; err != nil {\nreturn err\n}", call)
}
