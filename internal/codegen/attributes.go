package codegen

import (
	"fmt"
	"go/ast"

	"golang.org/x/net/html/atom"

	"github.com/recera/weave/internal/diag"
	"github.com/recera/weave/internal/template"
)

func (g *generator) attribute(s *scope, t *template.Tag, tag atom.Atom, node string, a template.Attribute) error {
	switch a.Kind {
	case template.AttrLiteral:
		s.dom.Init = append(s.dom.Init, fmt.Sprintf("c.%s.SetAttribute(%q, %q)", node, a.Name, a.Value))
		return nil
	case template.AttrBlock:
		g.warns.Warn("", a.Pos, "expression block attribute %s is ignored", a.FullName())
		return nil
	}

	switch a.Namespace {
	case "on":
		slot, _ := g.details.Slot(a.Value)
		g.listen(s, node, a.Name, slot)
		return nil

	case "bind":
		if a.Name != "value" || tag != atom.Input {
			return diag.Errorf(diag.Unimplemented, a.Pos, "bind:%s on <%s> is not implemented", a.Name, t.Name)
		}
		slot, err := g.bind(s, node, a)
		if err != nil {
			return err
		}
		g.listen(s, node, "change", slot)
		return nil
	}

	expr, res, err := s.rw.Expr(ast.NewIdent(a.Value))
	if err != nil {
		return err
	}
	set := fmt.Sprintf("c.%s.SetAttribute(%q, fmt.Sprint(%s))", node, a.FullName(), g.print(expr))
	s.dom.Mount = append(s.dom.Mount, set)
	if update := s.track(res, set); update != "" {
		s.dom.Update = append(s.dom.Update, update)
	}
	return nil
}

// listen attaches the callback in slot on first mount and detaches it on drop
func (g *generator) listen(s *scope, node, event string, slot int) {
	cb := fmt.Sprintf("c.state.Ref().callbacks[%d]", slot)
	s.dom.MountOnce = append(s.dom.MountOnce, fmt.Sprintf("c.%s.AddEventListener(%q, %s)", node, event, cb))
	s.dom.Drop = append(s.dom.Drop, fmt.Sprintf("c.%s.RemoveEventListener(%q, %s)", node, event, cb))
}
