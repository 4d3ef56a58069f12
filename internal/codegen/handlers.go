package codegen

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/printer"
	"go/token"

	"github.com/recera/weave/internal/diag"
	"github.com/recera/weave/internal/rewrite"
	"github.com/recera/weave/internal/template"
)

// handlerAccessor is the name of the state cell inside the state constructor
// and of the writer inside Update callbacks
const handlerAccessor = "st"

// handlers rewrites the declared event handlers against the state writer
func (g *generator) handlers() error {
	rw := rewrite.New(rewrite.Config{
		States:   g.details.StateNames(),
		Accessor: handlerAccessor,
		Locate:   g.hostPos,
	})
	for _, ev := range g.details.Events {
		res, err := rw.Func(ev.Func)
		if err != nil {
			return err
		}
		param := ev.Param
		if param == "" {
			param = "_"
		}
		body := make([]string, 0, len(ev.Func.Body.List))
		for _, stmt := range ev.Func.Body.List {
			body = append(body, printNode(g.details.Fset, stmt))
		}
		g.comp.Handlers = append(g.comp.Handlers, Handler{
			Name:  ev.Name,
			Param: param,
			Body:  body,
			Touch: res.Writes.Sorted(),
		})
		g.comp.Callbacks = append(g.comp.Callbacks, ev.Name)
	}
	return nil
}

// numeric lists the state types a value binding converts from ValueAsNumber
var numeric = map[string]bool{
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"uintptr": true, "float32": true, "float64": true, "byte": true, "rune": true,
}

// bind registers the change handler of a bind:value attribute and returns
// its callback slot
func (g *generator) bind(s *scope, node string, a template.Attribute) (int, error) {
	field, _ := g.details.State(a.Value)

	var read, write, display string
	switch {
	case numeric[field.Type]:
		read = fmt.Sprintf("%s(in.ValueAsNumber())", field.Type)
		write = "SetValueAsNumber"
		display = fmt.Sprintf("float64(c.state.Ref().%s)", field.Name)
	case field.Type == "string":
		read = "in.Value()"
		write = "SetValue"
		display = fmt.Sprintf("c.state.Ref().%s", field.Name)
	default:
		return 0, diag.Errorf(diag.Unimplemented, a.ValuePos,
			"bind:value on a field of type %s is not implemented", field.Type)
	}

	slot := len(g.details.Events) + g.binds
	g.binds++
	name := fmt.Sprintf("%s%s_bind_value", scopePrefix(s.dom.Path), node)
	g.comp.Handlers = append(g.comp.Handlers, Handler{
		Name:  name,
		Param: "ev",
		Prelude: []string{
			"in, ok := ev.Target().(dom.Input)",
			"if !ok {\nreturn\n}",
		},
		Body:  []string{fmt.Sprintf("%s.Mut().%s = %s", handlerAccessor, field.Name, read)},
		Touch: []string{field.Name},
	})
	g.comp.Callbacks = append(g.comp.Callbacks, name)

	set := fmt.Sprintf("c.%s.%s(%s)", node, write, display)
	s.dom.Init = append(s.dom.Init, set)
	s.dom.Update = append(s.dom.Update, changed([]string{field.Name}, set))
	s.deps.Add(field.Name)
	return slot, nil
}

func scopePrefix(path string) string {
	if path == "" {
		return ""
	}
	return fieldSafe(path) + "_"
}

func printNode(fset *token.FileSet, n ast.Node) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, fset, n); err != nil {
		panic(fmt.Sprintf("codegen: cannot print %T: %v", n, err))
	}
	return buf.String()
}
