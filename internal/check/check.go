// Package check resolves every bare identifier of a template against the
// declarations of its host block before any code is generated.
package check

import (
	"github.com/recera/weave/internal/diag"
	"github.com/recera/weave/internal/host"
	"github.com/recera/weave/internal/template"
)

// Validate fails on the first identifier that does not resolve. Identifiers
// of on: attributes must name event handlers; all others must name state
// fields or, inside a loop body, a name bound by an enclosing loop.
func Validate(elems []template.Element, details *host.LocalDetails) error {
	v := &validator{details: details}
	return v.elements(elems, nil)
}

type validator struct {
	details *host.LocalDetails
}

func (v *validator) elements(elems []template.Element, bound []string) error {
	for _, el := range elems {
		if err := v.element(el, bound); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) element(el template.Element, bound []string) error {
	switch n := el.(type) {
	case *template.Tag:
		for _, a := range n.Attrs {
			if a.Kind != template.AttrIdent {
				continue
			}
			if err := v.attribute(a, bound); err != nil {
				return err
			}
		}
		return v.elements(n.Children, bound)

	case *template.Interpolation:
		if n.Kind == template.InterpIdent {
			return v.state(n.Value, n.Pos, bound)
		}
		return nil

	case *template.For:
		inner := append(append([]string(nil), bound...), n.Pattern.Names...)
		return v.elements(n.Children, inner)

	case *template.If:
		for _, b := range n.Branches {
			if err := v.elements(b.Children, bound); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}

func (v *validator) attribute(a template.Attribute, bound []string) error {
	switch a.Namespace {
	case "on":
		if _, ok := v.details.Slot(a.Value); ok {
			return nil
		}
		d := diag.Errorf(diag.Binding, a.ValuePos, "event callback %s is not declared in the state block", a.Value)
		if _, ok := v.details.State(a.Value); ok {
			d.Message += " (it is a state field)"
		}
		return d
	case "bind":
		// two-way bindings write back, so they need a state field
		return v.state(a.Value, a.ValuePos, nil)
	default:
		return v.state(a.Value, a.ValuePos, bound)
	}
}

func (v *validator) state(name string, pos diag.Pos, bound []string) error {
	if _, ok := v.details.State(name); ok {
		return nil
	}
	for _, b := range bound {
		if b == name {
			return nil
		}
	}
	d := diag.Errorf(diag.Binding, pos, "variable %s is not declared in the state block", name)
	if _, ok := v.details.Slot(name); ok {
		d.Message += " (it is an event handler)"
	}
	return d
}
