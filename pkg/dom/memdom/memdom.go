// Package memdom is an in-memory dom.Document backed by golang.org/x/net/html
// nodes. It is used to run generated components in tests and to snapshot their
// output as HTML.
package memdom

import (
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/recera/weave/pkg/dom"
)

// ErrForeignNode is returned when a node from another document implementation
// is inserted
var ErrForeignNode = errors.New("memdom: node does not belong to a memdom document")

// ErrDetached is returned by Before on a node without a parent
var ErrDetached = errors.New("memdom: node is not attached")

// Document holds a <body> element that components mount into
type Document struct {
	body     *Element
	elements map[*html.Node]*Element
}

// New creates an empty document
func New() *Document {
	d := &Document{elements: make(map[*html.Node]*Element)}
	d.body = d.element("body")
	return d
}

// Body returns the mount target of the document
func (d *Document) Body() *Element {
	return d.body
}

// CreateElement implements dom.Document
func (d *Document) CreateElement(tag string) (dom.Element, error) {
	if tag == "" {
		return nil, errors.New("memdom: empty tag name")
	}
	return d.element(tag), nil
}

// CreateInput implements dom.Document
func (d *Document) CreateInput() (dom.Input, error) {
	return d.element("input"), nil
}

// CreateButton implements dom.Document
func (d *Document) CreateButton() (dom.Button, error) {
	return d.element("button"), nil
}

// CreateTextNode implements dom.Document
func (d *Document) CreateTextNode(text string) (dom.Text, error) {
	return &node{n: &html.Node{Type: html.TextNode, Data: text}}, nil
}

// CreateComment implements dom.Document
func (d *Document) CreateComment(text string) (dom.Comment, error) {
	return &node{n: &html.Node{Type: html.CommentNode, Data: text}}, nil
}

func (d *Document) element(tag string) *Element {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	e := &Element{node: node{n: n}, listeners: make(map[string][]*dom.Callback)}
	d.elements[n] = e
	return e
}

// FindAll returns the elements called tag under the body in document order
func (d *Document) FindAll(tag string) []*Element {
	var out []*Element
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == tag {
				out = append(out, d.elements[c])
			}
			walk(c)
		}
	}
	walk(d.body.n)
	return out
}

// Render writes the children of the body as HTML
func (d *Document) Render(w io.Writer) error {
	for c := d.body.n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(w, c); err != nil {
			return err
		}
	}
	return nil
}

// String renders the body children
func (d *Document) String() string {
	var b strings.Builder
	if err := d.Render(&b); err != nil {
		return "<!-- " + err.Error() + " -->"
	}
	return b.String()
}

type rawNode interface {
	raw() *html.Node
}

type node struct {
	n *html.Node
}

func (x *node) raw() *html.Node { return x.n }

func unwrap(n dom.Node) (*html.Node, error) {
	r, ok := n.(rawNode)
	if !ok {
		return nil, ErrForeignNode
	}
	return r.raw(), nil
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// AppendChild implements dom.Node
func (x *node) AppendChild(child dom.Node) error {
	c, err := unwrap(child)
	if err != nil {
		return err
	}
	detach(c)
	x.n.AppendChild(c)
	return nil
}

// Before implements dom.Node
func (x *node) Before(other dom.Node) error {
	if x.n.Parent == nil {
		return ErrDetached
	}
	o, err := unwrap(other)
	if err != nil {
		return err
	}
	detach(o)
	x.n.Parent.InsertBefore(o, x.n)
	return nil
}

// Remove implements dom.Node
func (x *node) Remove() {
	detach(x.n)
}

// SetTextContent implements dom.Node
func (x *node) SetTextContent(text string) {
	if x.n.Type != html.ElementNode {
		x.n.Data = text
		return
	}
	for c := x.n.FirstChild; c != nil; c = x.n.FirstChild {
		x.n.RemoveChild(c)
	}
	x.n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// TextContent returns the concatenated text below the node
func (x *node) TextContent() string {
	if x.n.Type == html.TextNode {
		return x.n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
			walk(c)
		}
	}
	walk(x.n)
	return b.String()
}

// Element implements dom.Element, dom.Input and dom.Button
type Element struct {
	node
	listeners map[string][]*dom.Callback
}

// Tag returns the element name
func (e *Element) Tag() string {
	return e.n.Data
}

// SetAttribute implements dom.Element
func (e *Element) SetAttribute(name, value string) {
	for i := range e.n.Attr {
		if e.n.Attr[i].Key == name {
			e.n.Attr[i].Val = value
			return
		}
	}
	e.n.Attr = append(e.n.Attr, html.Attribute{Key: name, Val: value})
}

// Attribute returns the value of the attribute called name
func (e *Element) Attribute(name string) (string, bool) {
	for _, a := range e.n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// AddEventListener implements dom.Element
func (e *Element) AddEventListener(event string, cb *dom.Callback) {
	e.listeners[event] = append(e.listeners[event], cb)
}

// RemoveEventListener implements dom.Element
func (e *Element) RemoveEventListener(event string, cb *dom.Callback) {
	list := e.listeners[event]
	for i, l := range list {
		if l == cb {
			e.listeners[event] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Listeners returns the number of callbacks registered for event
func (e *Element) Listeners(event string) int {
	return len(e.listeners[event])
}

// Dispatch invokes the listeners of event in registration order
func (e *Element) Dispatch(event string) {
	ev := &Event{typ: event, target: e}
	for _, cb := range append([]*dom.Callback(nil), e.listeners[event]...) {
		cb.Invoke(ev)
	}
}

// Value implements dom.Input
func (e *Element) Value() string {
	v, _ := e.Attribute("value")
	return v
}

// SetValue implements dom.Input
func (e *Element) SetValue(value string) {
	e.SetAttribute("value", value)
}

// ValueAsNumber implements dom.Input. Values that are not numbers read as NaN.
func (e *Element) ValueAsNumber() float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(e.Value()), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// SetValueAsNumber implements dom.Input
func (e *Element) SetValueAsNumber(value float64) {
	e.SetValue(strconv.FormatFloat(value, 'f', -1, 64))
}

// Event is the event passed by Dispatch
type Event struct {
	typ    string
	target dom.Element
}

// Type implements dom.Event
func (e *Event) Type() string { return e.typ }

// Target implements dom.Event
func (e *Event) Target() dom.Element { return e.target }
