// Package template parses weave templates into an Element tree.
package template

import (
	"go/ast"
	"go/parser"
	"go/token"

	"github.com/recera/weave/internal/diag"
)

// Element is a node of a parsed template. The set of implementations is
// closed: Tag, For, If, Interpolation, Text and Comment.
type Element interface {
	Position() diag.Pos
	element()
}

// Tag is an HTML-like element with attributes and children
type Tag struct {
	Name     string
	Attrs    []Attribute
	Children []Element
	Pos      diag.Pos
}

// For repeats its children once per item of Iterable
type For struct {
	Pattern  Pattern
	Iterable Expr
	Children []Element
	Pos      diag.Pos
}

// Pattern is the binding part of a for header. Only a single name is
// supported by code generation.
type Pattern struct {
	Names []string
	Text  string
	Pos   diag.Pos
}

// IsIdent reports whether the pattern binds exactly one identifier
func (p Pattern) IsIdent() bool {
	return len(p.Names) == 1 && p.Text == p.Names[0]
}

// If is a chain of conditional branches. An else branch is stored last with
// the condition "true".
type If struct {
	Branches []Branch
	Pos      diag.Pos
}

// Branch is one arm of an If chain
type Branch struct {
	Cond     Expr
	Children []Element
	Pos      diag.Pos
}

// IsElse reports whether the branch is an else clause
func (b Branch) IsElse() bool {
	return b.Cond.Src == ElseCond
}

// ElseCond is the condition text an else branch is encoded with
const ElseCond = "true"

// InterpKind distinguishes the forms a brace interpolation can take
type InterpKind int

const (
	InterpIdent InterpKind = iota
	InterpLiteral
	InterpBlock
)

// Interpolation is a brace group in text position
type Interpolation struct {
	Kind InterpKind
	// Value holds the identifier name, the decoded literal, or the raw block text
	Value string
	Pos   diag.Pos
	// Offset is where Value starts in the source, used to map positions of
	// block statements back into the template.
	Offset int
}

// Text is verbatim text between tags
type Text struct {
	Value string
	Pos   diag.Pos
}

// Comment is the verbatim body of an HTML comment
type Comment struct {
	Value string
	Pos   diag.Pos
}

func (t *Tag) Position() diag.Pos           { return t.Pos }
func (f *For) Position() diag.Pos           { return f.Pos }
func (i *If) Position() diag.Pos            { return i.Pos }
func (i *Interpolation) Position() diag.Pos { return i.Pos }
func (t *Text) Position() diag.Pos          { return t.Pos }
func (c *Comment) Position() diag.Pos       { return c.Pos }

func (*Tag) element()           {}
func (*For) element()           {}
func (*If) element()            {}
func (*Interpolation) element() {}
func (*Text) element()          {}
func (*Comment) element()       {}

// AttrKind is the form of an attribute value
type AttrKind int

const (
	AttrLiteral AttrKind = iota
	AttrIdent
	AttrBlock
)

// Attribute is `namespace:name=value`
type Attribute struct {
	Namespace string
	Name      string
	Kind      AttrKind
	Value     string
	Pos       diag.Pos
	ValuePos  diag.Pos
	// ValueOffset is the source offset of Value for block attributes
	ValueOffset int
}

// FullName returns the attribute name including its namespace
func (a Attribute) FullName() string {
	if a.Namespace == "" {
		return a.Name
	}
	return a.Namespace + ":" + a.Name
}

// Expr is a Go expression taken from the template. The tree keeps only the
// text; callers that rewrite the expression get a fresh AST from Parse.
type Expr struct {
	Src    string
	Pos    diag.Pos
	Offset int
}

// Parse returns a freshly parsed AST for the expression
func (e Expr) Parse(fset *token.FileSet) (ast.Expr, error) {
	return parser.ParseExprFrom(fset, "", e.Src, parser.SkipObjectResolution)
}

// Walk calls fn for every element in depth-first source order. Returning
// false from fn skips the element's children.
func Walk(elems []Element, fn func(Element) bool) {
	for _, el := range elems {
		if !fn(el) {
			continue
		}
		switch n := el.(type) {
		case *Tag:
			Walk(n.Children, fn)
		case *For:
			Walk(n.Children, fn)
		case *If:
			for _, b := range n.Branches {
				Walk(b.Children, fn)
			}
		}
	}
}
