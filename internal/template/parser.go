package template

import (
	"fmt"
	"go/token"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html/atom"

	"github.com/recera/weave/internal/diag"
)

// File is a parsed .weave source: an optional leading Go host block
// followed by the template.
type File struct {
	Source   *diag.Source
	Host     diag.Fragment
	HasHost  bool
	Elements []Element
}

// Parser is a recursive descent parser over a template source. The cursor is
// a plain offset so speculative parses save and restore it by value.
type Parser struct {
	src   *diag.Source
	pos   int
	warns *diag.List
	// open if chains, innermost last
	ifs []diag.Pos
}

type cursor int

// NewParser creates a parser positioned at the start of src
func NewParser(src *diag.Source, warns *diag.List) *Parser {
	if warns == nil {
		warns = &diag.List{}
	}
	return &Parser{src: src, warns: warns}
}

// ParseFile splits the host block off src and parses the remaining template
func ParseFile(src *diag.Source, warns *diag.List) (*File, error) {
	p := NewParser(src, warns)
	f := &File{Source: src}

	p.skipWhitespace()
	if p.peekByte() == '{' {
		g, err := p.braceGroup()
		if err != nil {
			return nil, err
		}
		f.Host = diag.Fragment{Text: g.text, Offset: g.offset}
		f.HasHost = true
	}

	elems, err := p.Parse()
	if err != nil {
		return nil, err
	}
	f.Elements = elems
	return f, nil
}

// Parse parses everything from the cursor to the end of the source
func (p *Parser) Parse() ([]Element, error) {
	elems, term, err := p.parseChildren()
	if err != nil {
		return nil, err
	}
	switch term.kind {
	case termEOF:
		return elems, nil
	case termCloseTag:
		return nil, diag.Errorf(diag.Syntax, term.pos, "closing tag </%s> has no matching opening tag", term.name)
	case termEndFor:
		return nil, diag.Errorf(diag.Syntax, term.pos, "{/for} has no matching {for}")
	case termEndIf:
		return nil, diag.Errorf(diag.Syntax, term.pos, "{/if} has no matching {if}")
	default:
		return nil, diag.Errorf(diag.Syntax, term.pos, "%s must be preceded by an if", term.text)
	}
}

type termKind int

const (
	termEOF termKind = iota
	termCloseTag
	termEndFor
	termEndIf
	termElseIf
	termElse
)

// terminator is whatever stopped a run of children
type terminator struct {
	kind termKind
	name string
	cond Expr
	pos  diag.Pos
	text string
}

// parseChildren parses sibling elements until a closer of any kind
func (p *Parser) parseChildren() ([]Element, terminator, error) {
	var elems []Element
	for {
		if p.eof() {
			return elems, terminator{kind: termEOF, pos: p.at(), text: "end of file"}, nil
		}

		switch {
		case p.peek("<!--"):
			c, err := p.parseComment()
			if err != nil {
				return nil, terminator{}, err
			}
			elems = append(elems, c)
		case p.peek("</"):
			term, err := p.parseCloseTag()
			return elems, term, err
		case p.peek("<"):
			tag, err := p.parseTag()
			if err != nil {
				return nil, terminator{}, err
			}
			elems = append(elems, tag)
		case p.peekByte() == '{':
			el, term, err := p.parseBrace()
			if err != nil {
				return nil, terminator{}, err
			}
			if term != nil {
				return elems, *term, nil
			}
			if el != nil {
				elems = append(elems, el)
			}
		default:
			text := p.parseText()
			if !isLayout(text.Value) {
				elems = append(elems, text)
			}
		}
	}
}

// nestedChildren parses the children of a tag or loop. They start a new
// sibling list, so an if chain open around the tag does not extend into it.
func (p *Parser) nestedChildren() ([]Element, terminator, error) {
	saved := p.ifs
	p.ifs = nil
	defer func() { p.ifs = saved }()
	return p.parseChildren()
}

// isLayout reports whether text is indentation between elements: whitespace
// only and spanning a line break. Other runs, like the space in
// `{a} {b}`, are content.
func isLayout(text string) bool {
	return strings.TrimSpace(text) == "" && strings.ContainsAny(text, "\n\r")
}

// parseTag parses `<name attr*` followed by `/>` or `>children</name>`
func (p *Parser) parseTag() (*Tag, error) {
	start := p.pos
	p.consume("<")
	name, ok := p.segmentName()
	if !ok {
		return nil, p.errorf("expected element name after '<'")
	}
	tag := &Tag{Name: name, Pos: p.src.Pos(start)}

	for {
		p.skipWhitespace()
		if p.consume("/>") {
			return tag, nil
		}
		if p.consume(">") {
			break
		}
		if p.eof() {
			return nil, diag.Errorf(diag.Syntax, tag.Pos, "unclosed start tag <%s>", name)
		}
		attr, err := p.parseAttribute()
		if err != nil {
			return nil, err
		}
		tag.Attrs = append(tag.Attrs, attr)
	}

	if isVoid(name) {
		// tolerate an explicit closer right after a void element
		mark := p.save()
		p.skipWhitespace()
		if p.peek("</") {
			term, err := p.parseCloseTag()
			if err == nil && term.name == name {
				return tag, nil
			}
		}
		p.restore(mark)
		return tag, nil
	}

	children, term, err := p.nestedChildren()
	if err != nil {
		return nil, err
	}
	tag.Children = children

	if term.kind == termCloseTag {
		if term.name == name {
			return tag, nil
		}
		return nil, diag.Paired(diag.Syntax,
			fmt.Sprintf("mismatched tags: <%s> and </%s>", name, term.name),
			tag.Pos, fmt.Sprintf("closing element's name does not match <%s>", name),
			term.pos, fmt.Sprintf("no opening element matches </%s>", term.name))
	}
	return nil, diag.Paired(diag.Syntax,
		fmt.Sprintf("element <%s> is not closed", name),
		tag.Pos, "opened here",
		term.pos, fmt.Sprintf("expected </%s>, found %s", name, term.text))
}

// parseCloseTag parses `</name>`
func (p *Parser) parseCloseTag() (terminator, error) {
	pos := p.at()
	p.consume("</")
	p.skipWhitespace()
	name, ok := p.segmentName()
	if !ok {
		return terminator{}, p.errorf("expected element name after '</'")
	}
	p.skipWhitespace()
	if !p.consume(">") {
		return terminator{}, p.errorf("expected '>' to close </%s", name)
	}
	return terminator{kind: termCloseTag, name: name, pos: pos, text: "</" + name + ">"}, nil
}

// parseAttribute parses `segment(-segment)*[:segment(-segment)*][=value]`
func (p *Parser) parseAttribute() (Attribute, error) {
	attr := Attribute{Pos: p.at()}
	first, ok := p.segmentName()
	if !ok {
		return attr, p.errorf("expected attribute name")
	}
	attr.Name = first
	if p.consume(":") {
		second, ok := p.segmentName()
		if !ok {
			return attr, p.errorf("expected attribute name after %q", first+":")
		}
		attr.Namespace, attr.Name = first, second
	}

	mark := p.save()
	p.skipWhitespace()
	if !p.consume("=") {
		// no value: empty string
		p.restore(mark)
		attr.Kind = AttrLiteral
		attr.ValuePos = p.at()
		p.lintNamespace(attr)
		return attr, nil
	}
	p.skipWhitespace()
	attr.ValuePos = p.at()

	switch c := p.peekByte(); {
	case c == '"' || c == '`':
		v, err := p.stringLiteral()
		if err != nil {
			return attr, err
		}
		attr.Kind, attr.Value = AttrLiteral, v
	case c == '{':
		g, err := p.braceGroup()
		if err != nil {
			return attr, err
		}
		kind, value, err := p.classifyGroup(g)
		if err != nil {
			return attr, err
		}
		switch kind {
		case InterpIdent:
			attr.Kind = AttrIdent
		case InterpLiteral:
			attr.Kind = AttrLiteral
		default:
			attr.Kind = AttrBlock
		}
		attr.Value = value
		attr.ValueOffset = g.offset
	default:
		// a bare identifier is taken as a string
		id, ok := p.identifier()
		if !ok {
			return attr, p.errorf("expected attribute value for %s", attr.FullName())
		}
		attr.Kind, attr.Value = AttrLiteral, id
	}

	p.lintNamespace(attr)
	return attr, nil
}

func (p *Parser) lintNamespace(attr Attribute) {
	if attr.Namespace != "" && attr.Kind == AttrLiteral {
		p.warns.Warn("W001", attr.Pos, "namespace %q is useless without a code block", attr.Namespace)
	}
}

// parseBrace parses one brace group in child position. It returns either an
// element, a terminator for control-flow closers, or an error.
func (p *Parser) parseBrace() (Element, *terminator, error) {
	g, err := p.braceGroup()
	if err != nil {
		return nil, nil, err
	}
	toks, errOff, err := lexGo(g.text)
	if err != nil {
		return nil, nil, diag.Errorf(diag.Syntax, p.src.Pos(g.offset+errOff), "%v", err)
	}

	if len(toks) == 0 {
		return nil, nil, diag.Errorf(diag.Syntax, g.pos, "empty braces")
	}

	switch toks[0].tok {
	case token.QUO:
		return p.parseCloser(g, toks)
	case token.FOR:
		el, err := p.parseFor(g, toks)
		return el, nil, err
	case token.IF:
		el, err := p.parseIf(g, toks)
		return el, nil, err
	case token.ELSE:
		if len(toks) == 1 {
			return nil, &terminator{kind: termElse, pos: g.pos, text: "{else}"}, nil
		}
		if toks[1].tok != token.IF {
			return nil, nil, diag.Errorf(diag.Syntax, p.src.Pos(g.offset+toks[1].off), "expected `if` or '}' after `else`")
		}
		cond, err := p.headerExpr(g, toks[1].off+len("if"), "else if")
		if err != nil {
			return nil, nil, err
		}
		return nil, &terminator{kind: termElseIf, cond: cond, pos: g.pos, text: "{else if}"}, nil
	}

	kind, value, err := p.classifyGroup(g)
	if err != nil {
		return nil, nil, err
	}
	if kind == InterpBlock {
		p.warns.Warn("", g.pos, "expression blocks are in early stages")
	}
	return &Interpolation{Kind: kind, Value: value, Pos: g.pos, Offset: g.offset}, nil, nil
}

func (p *Parser) parseCloser(g group, toks []gtok) (Element, *terminator, error) {
	if len(toks) == 2 {
		switch toks[1].tok {
		case token.FOR:
			return nil, &terminator{kind: termEndFor, pos: g.pos, text: "{/for}"}, nil
		case token.IF:
			return nil, &terminator{kind: termEndIf, pos: g.pos, text: "{/if}"}, nil
		}
	}
	return nil, nil, diag.Errorf(diag.Syntax, g.pos, "unknown closing block {%s}", strings.TrimSpace(g.text))
}

// parseFor parses `{for pattern in expr}` up to its `{/for}`
func (p *Parser) parseFor(g group, toks []gtok) (*For, error) {
	in := -1
	for i, t := range toks {
		if i > 0 && t.tok == token.IDENT && t.lit == "in" {
			in = i
			break
		}
	}
	if in < 0 {
		return nil, diag.Errorf(diag.Syntax, g.pos, "expected `in` in for header")
	}
	if in == 1 {
		return nil, diag.Errorf(diag.Syntax, g.pos, "expected a pattern before `in`")
	}

	patText := strings.TrimSpace(g.text[toks[1].off:toks[in].off])
	pattern := Pattern{Text: patText, Pos: p.src.Pos(g.offset + toks[1].off)}
	names, ok := patternNames(toks[1:in])
	if ok {
		pattern.Names = names
	}

	iter, err := p.headerExpr(g, toks[in].off+len("in"), "for")
	if err != nil {
		return nil, err
	}

	loop := &For{Pattern: pattern, Iterable: iter, Pos: g.pos}
	children, term, err := p.nestedChildren()
	if err != nil {
		return nil, err
	}
	if term.kind != termEndFor {
		return nil, diag.Paired(diag.Syntax,
			"for loop is not closed",
			loop.Pos, "for loop opened here",
			term.pos, fmt.Sprintf("expected {/for}, found %s", term.text))
	}
	loop.Children = children
	return loop, nil
}

// patternNames accepts `x` and `a, b` patterns
func patternNames(toks []gtok) ([]string, bool) {
	var names []string
	for i, t := range toks {
		if i%2 == 0 {
			if t.tok != token.IDENT {
				return nil, false
			}
			names = append(names, t.lit)
		} else if t.tok != token.COMMA {
			return nil, false
		}
	}
	if len(toks)%2 == 0 {
		return nil, false
	}
	return names, true
}

// parseIf parses an if chain up to its `{/if}`
func (p *Parser) parseIf(g group, toks []gtok) (*If, error) {
	if n := len(p.ifs); n > 0 {
		return nil, diag.Paired(diag.Syntax,
			"if can't follow a not-closed if",
			p.ifs[n-1], "consider closing this if ({/if})",
			g.pos, "if opened while another if chain is unclosed")
	}

	cond, err := p.headerExpr(g, toks[0].off+len("if"), "if")
	if err != nil {
		return nil, err
	}

	chain := &If{Pos: g.pos}
	chain.Branches = append(chain.Branches, Branch{Cond: cond, Pos: g.pos})

	p.ifs = append(p.ifs, g.pos)
	defer func() { p.ifs = p.ifs[:len(p.ifs)-1] }()

	var elsePos *diag.Pos
	for {
		children, term, err := p.parseChildren()
		if err != nil {
			return nil, err
		}
		chain.Branches[len(chain.Branches)-1].Children = children

		switch term.kind {
		case termEndIf:
			return chain, nil
		case termElseIf:
			if elsePos != nil {
				return nil, diag.Paired(diag.Syntax,
					"else if clause must be preceded by an if",
					*elsePos, "else clause already closes this chain",
					term.pos, "consider converting this else if into a simple if")
			}
			chain.Branches = append(chain.Branches, Branch{Cond: term.cond, Pos: term.pos})
		case termElse:
			if elsePos != nil {
				return nil, diag.Paired(diag.Syntax,
					"else clause can't follow another",
					*elsePos, "first else here",
					term.pos, "consider removing this else block")
			}
			pos := term.pos
			elsePos = &pos
			chain.Branches = append(chain.Branches, Branch{
				Cond: Expr{Src: ElseCond, Pos: term.pos, Offset: term.pos.Offset},
				Pos:  term.pos,
			})
		default:
			return nil, diag.Paired(diag.Syntax,
				"if clause must be closed ({/if})",
				chain.Pos, "if opened here",
				term.pos, fmt.Sprintf("consider inserting {/if} before %s", term.text))
		}
	}
}

// headerExpr parses the expression following a control-flow keyword. The
// expression runs to the end of the brace group, so it cannot swallow
// sibling braces.
func (p *Parser) headerExpr(g group, from int, keyword string) (Expr, error) {
	rest := g.text[from:]
	trimmed := strings.TrimLeftFunc(rest, unicode.IsSpace)
	off := g.offset + from + len(rest) - len(trimmed)
	text := strings.TrimRightFunc(trimmed, unicode.IsSpace)
	if text == "" {
		return Expr{}, diag.Errorf(diag.Syntax, g.pos, "an expression is required for `%s`", keyword)
	}

	e := Expr{Src: text, Pos: p.src.Pos(off), Offset: off}
	if _, err := e.Parse(token.NewFileSet()); err != nil {
		return Expr{}, GoError(p.src, diag.Fragment{Text: text, Offset: off}, err, false)
	}
	return e, nil
}

// classifyGroup tries a brace group as identifier, then string literal, then
// statement block
func (p *Parser) classifyGroup(g group) (InterpKind, string, error) {
	toks, errOff, err := lexGo(g.text)
	if err != nil {
		return 0, "", diag.Errorf(diag.Syntax, p.src.Pos(g.offset+errOff), "%v", err)
	}

	c := &tokenCursor{toks: toks}
	if id, ok := attempt(c, c.ident); ok {
		return InterpIdent, id, nil
	}
	if lit, ok := attempt(c, c.literal); ok {
		return InterpLiteral, lit, nil
	}

	if strings.TrimSpace(g.text) == "" {
		return 0, "", diag.Errorf(diag.Syntax, g.pos, "empty braces")
	}
	if _, err := ParseStmts(token.NewFileSet(), g.text); err != nil {
		return 0, "", GoError(p.src, diag.Fragment{Text: g.text, Offset: g.offset}, err, true)
	}
	return InterpBlock, g.text, nil
}

// parseText captures everything up to the next '<' or '{'
func (p *Parser) parseText() *Text {
	start := p.pos
	for !p.eof() {
		c := p.peekByte()
		if c == '<' || c == '{' {
			break
		}
		p.pos++
	}
	return &Text{Value: p.src.Text[start:p.pos], Pos: p.src.Pos(start)}
}

// parseComment captures the body of `<!-- ... -->` verbatim
func (p *Parser) parseComment() (*Comment, error) {
	start := p.pos
	p.consume("<!--")
	end := strings.Index(p.src.Text[p.pos:], "-->")
	if end < 0 {
		return nil, diag.Errorf(diag.Syntax, p.src.Pos(start), "unterminated comment")
	}
	body := p.src.Text[p.pos : p.pos+end]
	p.pos += end + len("-->")
	return &Comment{Value: body, Pos: p.src.Pos(start)}, nil
}

// group is a balanced brace group; text excludes the braces
type group struct {
	text   string
	offset int
	pos    diag.Pos
}

// braceGroup consumes a balanced `{...}` using the Go scanner, so braces in
// strings, runes and comments do not count.
func (p *Parser) braceGroup() (group, error) {
	open := p.pos
	text := p.src.Text[open:]

	toks, errOff, err := lexUntilClose(text)
	if err != nil {
		return group{}, diag.Errorf(diag.Syntax, p.src.Pos(open+errOff), "%v", err)
	}
	if toks < 0 {
		return group{}, diag.Errorf(diag.Syntax, p.src.Pos(open), "unclosed '{'")
	}
	p.pos = open + toks + 1
	return group{text: text[1:toks], offset: open + 1, pos: p.src.Pos(open)}, nil
}

// stringLiteral consumes one Go string literal at the cursor
func (p *Parser) stringLiteral() (string, error) {
	start := p.pos
	end, err := scanStringEnd(p.src.Text[start:])
	if err != nil {
		return "", diag.Errorf(diag.Syntax, p.src.Pos(start), "%v", err)
	}
	c := &tokenCursor{toks: []gtok{{tok: token.STRING, lit: p.src.Text[start : start+end]}}}
	v, ok := c.literal()
	if !ok {
		return "", diag.Errorf(diag.Syntax, p.src.Pos(start), "invalid string literal")
	}
	p.pos = start + end
	return v, nil
}

// segmentName reads `segment("-"segment)*`
func (p *Parser) segmentName() (string, bool) {
	start := p.pos
	if !p.segment() {
		return "", false
	}
	for {
		mark := p.save()
		if !p.consume("-") || !p.segment() {
			p.restore(mark)
			break
		}
	}
	return p.src.Text[start:p.pos], true
}

func (p *Parser) segment() bool {
	start := p.pos
	for !p.eof() {
		r, size := utf8.DecodeRuneInString(p.src.Text[p.pos:])
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			break
		}
		p.pos += size
	}
	return p.pos > start
}

// identifier reads a Go identifier
func (p *Parser) identifier() (string, bool) {
	start := p.pos
	for !p.eof() {
		r, size := utf8.DecodeRuneInString(p.src.Text[p.pos:])
		if !(unicode.IsLetter(r) || r == '_' || (p.pos > start && unicode.IsDigit(r))) {
			break
		}
		p.pos += size
	}
	return p.src.Text[start:p.pos], p.pos > start
}

func (p *Parser) save() cursor       { return cursor(p.pos) }
func (p *Parser) restore(c cursor)   { p.pos = int(c) }
func (p *Parser) eof() bool          { return p.pos >= len(p.src.Text) }
func (p *Parser) at() diag.Pos       { return p.src.Pos(p.pos) }
func (p *Parser) peek(s string) bool { return strings.HasPrefix(p.src.Text[p.pos:], s) }

func (p *Parser) peekByte() byte {
	if p.eof() {
		return 0
	}
	return p.src.Text[p.pos]
}

func (p *Parser) consume(s string) bool {
	if p.peek(s) {
		p.pos += len(s)
		return true
	}
	return false
}

func (p *Parser) skipWhitespace() {
	for !p.eof() {
		r, size := utf8.DecodeRuneInString(p.src.Text[p.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		p.pos += size
	}
}

func (p *Parser) errorf(format string, args ...interface{}) *diag.Diagnostic {
	return diag.Errorf(diag.Syntax, p.at(), format, args...)
}

// voidElements never have children
var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Source: true, atom.Track: true,
	atom.Wbr: true,
}

func isVoid(name string) bool {
	return voidElements[atom.Lookup([]byte(name))]
}
