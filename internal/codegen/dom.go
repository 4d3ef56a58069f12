// Package codegen compiles a validated template into DOM instructions: the
// per-scope create, mount, update and drop code of a component plus the
// state-level event handlers. The emitter turns the result into Go source.
package codegen

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/recera/weave/internal/host"
)

// Field is a struct field of a generated type
type Field struct {
	Name string
	Type string
}

// Dom holds the instructions of one scope: the component itself or the body
// of a loop. Each bucket is in document order.
type Dom struct {
	// Type is the Go type generated for the scope
	Type string
	// Path identifies the scope inside the component, empty for the root
	Path string
	Root bool
	// Append is false for loop bodies, whose top-level nodes are inserted
	// before an anchor instead of appended to the mount target.
	Append bool

	Fields []Field
	// Props are the loop-bound names the scope reads, with their types
	Props []Field
	// Loops are the bookkeeping field names of the scope's loops
	Loops []string

	Init      []string
	Mount     []string
	MountOnce []string
	Update    []string
	Drop      []string

	Children []*Dom

	counters map[string]int
}

func newDom(typ, path string, root bool) *Dom {
	return &Dom{
		Type:     typ,
		Path:     path,
		Root:     root,
		Append:   root,
		counters: make(map[string]int),
	}
}

// PropsType is the name of the struct carrying a loop scope's props
func (d *Dom) PropsType() string {
	return d.Type + "Props"
}

// next returns the next 1-based index for kind in this scope
func (d *Dom) next(kind string) int {
	d.counters[kind]++
	return d.counters[kind]
}

// node allocates a field named after kind
func (d *Dom) node(kind, typ string) string {
	kind = fieldSafe(kind)
	name := fmt.Sprintf("%s_%d", kind, d.next(kind))
	d.Fields = append(d.Fields, Field{Name: name, Type: typ})
	return name
}

// Walk visits d and every nested scope depth first
func (d *Dom) Walk(fn func(*Dom)) {
	fn(d)
	for _, c := range d.Children {
		c.Walk(fn)
	}
}

// Handler is a state-level closure registered as a DOM callback
type Handler struct {
	Name string
	// Param is the event parameter name, "_" when unused
	Param string
	// Prelude runs before the state update
	Prelude []string
	// Body runs inside the state update
	Body []string
	// Touch lists the state fields the body writes
	Touch []string
}

// Component is everything the emitter needs for one template
type Component struct {
	Name      string
	StateType string
	// Source is the template file name
	Source    string
	States    []host.StateField
	Handlers  []Handler
	// Callbacks are handler names in slot order
	Callbacks []string
	Root      *Dom
}

// Scopes returns every scope of the component, root first
func (c *Component) Scopes() []*Dom {
	var out []*Dom
	c.Root.Walk(func(d *Dom) { out = append(out, d) })
	return out
}

// TypeName derives an exported Go type name from a template file name:
// todo_list.weave becomes TodoList.
func TypeName(file string) string {
	base := filepath.Base(file)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	title := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for _, w := range words {
		b.WriteString(title.String(w))
	}
	name := b.String()
	if name == "" || !unicode.IsLetter([]rune(name)[0]) {
		name = "Component" + name
	}
	return name
}

func fieldSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
}
