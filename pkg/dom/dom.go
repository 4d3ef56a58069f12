// Package dom is the document API that generated components program against.
// The memdom package implements it in memory.
package dom

// Node is anything that can sit in the document tree
type Node interface {
	// AppendChild adds child as the last child of the node
	AppendChild(child Node) error
	// Before inserts node as the previous sibling of the receiver
	Before(node Node) error
	// Remove detaches the node from its parent
	Remove()
	SetTextContent(text string)
}

// Element is a node with attributes that can receive events
type Element interface {
	Node
	SetAttribute(name, value string)
	AddEventListener(event string, cb *Callback)
	RemoveEventListener(event string, cb *Callback)
}

// Input is an <input> element
type Input interface {
	Element
	Value() string
	SetValue(value string)
	ValueAsNumber() float64
	SetValueAsNumber(value float64)
}

// Button is a <button> element
type Button interface {
	Element
}

// Text is a text node
type Text interface {
	Node
}

// Comment is a comment node
type Comment interface {
	Node
}

// Event is passed to listeners
type Event interface {
	Type() string
	Target() Element
}

// Document creates nodes
type Document interface {
	CreateElement(tag string) (Element, error)
	CreateInput() (Input, error)
	CreateButton() (Button, error)
	CreateTextNode(text string) (Text, error)
	CreateComment(text string) (Comment, error)
}

// Listener handles one event
type Listener func(ev Event)

// Callback is a listener with a stable identity, so the same value can be
// passed to AddEventListener and later to RemoveEventListener.
type Callback struct {
	fn Listener
}

// NewCallback wraps fn
func NewCallback(fn Listener) *Callback {
	return &Callback{fn: fn}
}

// Invoke calls the wrapped listener
func (c *Callback) Invoke(ev Event) {
	if c != nil && c.fn != nil {
		c.fn(ev)
	}
}
