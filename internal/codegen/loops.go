package codegen

import (
	"fmt"
	"strings"

	"github.com/recera/weave/internal/diag"
	"github.com/recera/weave/internal/template"
	"github.com/recera/weave/internal/typelookup"
)

// loop compiles a for block into a child scope type. The parent keeps the
// mounted children in for_n and inserts them before anchor_n; updates are
// reconciled by position.
func (g *generator) loop(s *scope, f *template.For, parent string) error {
	if !f.Pattern.IsIdent() {
		g.warns.Warn("", f.Pattern.Pos, "loop pattern %q is not supported, the loop is skipped", f.Pattern.Text)
		return nil
	}
	pattern := f.Pattern.Names[0]

	n := s.dom.next("for")
	field := fmt.Sprintf("for_%d", n)
	anchor := s.dom.node("anchor", "dom.Text")
	s.dom.Init = append(s.dom.Init, initCheck(anchor, `doc.CreateTextNode("")`))
	g.attach(s, parent, anchor)

	iterAST, err := g.parseExpr(f.Iterable)
	if err != nil {
		return err
	}
	iterAST, iterRes, err := s.rw.Expr(iterAST)
	if err != nil {
		return err
	}
	if len(iterRes.Writes) > 0 {
		return diag.Errorf(diag.Unimplemented, f.Iterable.Pos,
			"writing state inside a loop header is not implemented (%s)", strings.Join(iterRes.Writes.Sorted(), ", "))
	}
	iter := g.print(iterAST)

	path := field
	if s.dom.Path != "" {
		path = s.dom.Path + "." + field
	}
	child := newDom(fmt.Sprintf("%sFor%d", s.dom.Type, n), path, false)

	visible := s.props.Union(nil)
	if pattern != "_" {
		visible.Add(pattern)
	}
	header := fmt.Sprintf("for _, %s := range %s {\n_ = %s\n", pattern, f.Iterable.Src, pattern)
	if pattern == "_" {
		header = fmt.Sprintf("for range %s {\n", f.Iterable.Src)
	}
	headers := append(append([]string(nil), s.headers...), header)

	cs := g.scope(child, visible, headers)
	if err := g.elements(cs, f.Children, ""); err != nil {
		return err
	}

	literal, err := g.props(s, cs, pattern, path)
	if err != nil {
		return err
	}

	// the parent follows everything the loop reads
	deps := iterRes.Deps().Union(cs.deps)
	for d := range deps {
		s.deps.Add(d)
	}
	for p := range iterRes.Props {
		s.used.Add(p)
	}
	inheritsProps := len(iterRes.Props) > 0
	for _, p := range child.Props {
		if p.Name != pattern {
			inheritsProps = true
		}
	}

	s.dom.Fields = append(s.dom.Fields,
		Field{Name: field, Type: "[]*" + child.Type},
		Field{Name: field + "_updated", Type: "bool"},
	)
	s.dom.Loops = append(s.dom.Loops, field)
	s.dom.Children = append(s.dom.Children, child)

	rng := fmt.Sprintf("for range %s {", iter)
	if cs.used.Has(pattern) {
		rng = fmt.Sprintf("for _, %s := range %s {", pattern, iter)
	}
	ctor := "new" + child.Type

	s.dom.Mount = append(s.dom.Mount, fmt.Sprintf(`if len(c.%[1]s) == 0 {
i := 0
%[2]s
u, err := %[3]s(c.doc, c.state, c.rt, uint32(i), %[4]s)
if err != nil {
return err
}
if err := u.Mount(c.%[5]s); err != nil {
return err
}
c.%[1]s = append(c.%[1]s, u)
i++
}
}`, field, rng, ctor, literal, anchor))

	update := fmt.Sprintf(`var next []%[1]s
%[2]s
next = append(next, %[3]s)
}
units, err := reactive.Reconcile(c.%[4]s, next,
func(u *%[5]s, p %[1]s) error {
u.props = p
return u.Update()
},
func(i int, p %[1]s) (*%[5]s, error) {
u, err := %[6]s(c.doc, c.state, c.rt, uint32(i), p)
if err != nil {
return nil, err
}
return u, u.Mount(c.%[7]s)
},
func(u *%[5]s) {
u.Drop()
},
)
c.%[4]s = units
if err != nil {
return err
}
c.%[4]s_updated = true`, child.PropsType(), rng, literal, field, child.Type, ctor, anchor)

	switch {
	case inheritsProps:
		s.dom.Update = append(s.dom.Update, "{\n"+update+"\n}")
	case len(deps) > 0:
		s.dom.Update = append(s.dom.Update, changed(deps.Sorted(), update))
	}

	s.dom.Drop = append(s.dom.Drop, fmt.Sprintf("for _, u := range c.%[1]s {\nu.Drop()\n}\nc.%[1]s = nil", field))
	return nil
}

// props settles the props of a loop scope to the names its body reads and
// returns the literal the parent builds them with. The loop binding is typed
// through a lookup; inherited props take the parent's type in resolveProps.
func (g *generator) props(s, cs *scope, pattern, path string) (string, error) {
	used := cs.used.Sorted()
	var bindings []typelookup.Binding
	if cs.used.Has(pattern) {
		if g.lookup == nil {
			return "", fmt.Errorf("no type lookup configured for loop %s", path)
		}
		var err error
		bindings, err = g.lookup.Lookup(g.ctx, typelookup.Request{
			Snippet: g.snippet(cs.headers),
			Bucket:  g.comp.Name,
			Scope:   path,
			Pattern: []string{pattern},
		})
		if err != nil {
			return "", err
		}
	}

	var elems []string
	for _, name := range used {
		typ := ""
		if name == pattern {
			for _, b := range bindings {
				if b.Name == name {
					typ = b.Type
				}
			}
			if typ == "" {
				return "", &typelookup.FatalError{Bucket: g.comp.Name, Scope: path,
					Err: fmt.Errorf("no type for %s", name)}
			}
			elems = append(elems, fmt.Sprintf("%s: %s", name, name))
		} else {
			// typed by resolveProps once the parent's props are settled
			s.used.Add(name)
			elems = append(elems, fmt.Sprintf("%s: c.props.%s", name, name))
		}
		cs.dom.Props = append(cs.dom.Props, Field{Name: name, Type: typ})
	}
	return fmt.Sprintf("%s{%s}", cs.dom.PropsType(), strings.Join(elems, ", ")), nil
}

// snippet declares every state field and opens the loops down to the one
// being typed
func (g *generator) snippet(headers []string) string {
	var b strings.Builder
	for _, st := range g.details.States {
		fmt.Fprintf(&b, "var %s %s\n", st.Name, st.Type)
	}
	for _, h := range headers {
		b.WriteString(h)
	}
	b.WriteString(strings.Repeat("}\n", len(headers)))
	return b.String()
}

// resolveProps copies the type of every inherited prop from the enclosing
// scope, top down
func resolveProps(d *Dom) {
	for _, child := range d.Children {
		for i, p := range child.Props {
			if p.Type != "" {
				continue
			}
			for _, pp := range d.Props {
				if pp.Name == p.Name {
					child.Props[i].Type = pp.Type
				}
			}
		}
		resolveProps(child)
	}
}
