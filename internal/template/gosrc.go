package template

import (
	"errors"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"strconv"

	"github.com/recera/weave/internal/diag"
)

// stmtPrefix wraps a statement list so go/parser accepts it as a function body
const stmtPrefix = "package p\nfunc _() {\n"

// ParseStmts parses src as the body of a function. Offsets of the returned
// nodes are relative to src once passed through StmtOffset.
func ParseStmts(fset *token.FileSet, src string) ([]ast.Stmt, error) {
	f, err := parser.ParseFile(fset, "", stmtPrefix+src+"\n}\n", parser.SkipObjectResolution|parser.ParseComments)
	if err != nil {
		return nil, err
	}
	for _, decl := range f.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Body != nil {
			return fn.Body.List, nil
		}
	}
	return nil, errors.New("missing function body")
}

// StmtOffset converts a position inside a ParseStmts result into an offset
// relative to the statement source
func StmtOffset(fset *token.FileSet, pos token.Pos) int {
	return fset.Position(pos).Offset - len(stmtPrefix)
}

// GoError converts a go/parser or go/scanner error into a diagnostic placed
// inside frag. wrapped tells whether the fragment was parsed through
// ParseStmts.
func GoError(src *diag.Source, frag diag.Fragment, err error, wrapped bool) *diag.Diagnostic {
	var list scanner.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		first := list[0]
		rel := first.Pos.Offset
		if wrapped {
			rel -= len(stmtPrefix)
		}
		return diag.Errorf(diag.Syntax, frag.At(src, rel), "%s", first.Msg)
	}
	return diag.Errorf(diag.Syntax, frag.At(src, 0), "%v", err)
}

// gtok is one Go token inside a brace group
type gtok struct {
	tok token.Token
	lit string
	off int
}

// lexGo splits text into Go tokens, dropping automatically inserted
// semicolons. The offset of the first scanner error is returned with it.
func lexGo(text string) ([]gtok, int, error) {
	fset := token.NewFileSet()
	file := fset.AddFile("", -1, len(text))

	var s scanner.Scanner
	var firstErr error
	errOff := 0
	s.Init(file, []byte(text), func(pos token.Position, msg string) {
		if firstErr == nil {
			firstErr = errors.New(msg)
			errOff = pos.Offset
		}
	}, 0)

	var toks []gtok
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.SEMICOLON && lit == "\n" {
			continue
		}
		toks = append(toks, gtok{tok: tok, lit: lit, off: file.Offset(pos)})
	}
	return toks, errOff, firstErr
}

// tokenCursor walks a token slice. Its position can be saved and restored so
// alternatives are tried without consuming input on failure.
type tokenCursor struct {
	toks []gtok
	i    int
}

func (c *tokenCursor) mark() int   { return c.i }
func (c *tokenCursor) reset(m int) { c.i = m }
func (c *tokenCursor) done() bool  { return c.i >= len(c.toks) }

func (c *tokenCursor) next() (gtok, bool) {
	if c.done() {
		return gtok{}, false
	}
	t := c.toks[c.i]
	c.i++
	return t, true
}

// ident consumes a single identifier
func (c *tokenCursor) ident() (string, bool) {
	t, ok := c.next()
	if !ok || t.tok != token.IDENT {
		return "", false
	}
	return t.lit, true
}

// literal consumes a single string literal and decodes it
func (c *tokenCursor) literal() (string, bool) {
	t, ok := c.next()
	if !ok || t.tok != token.STRING {
		return "", false
	}
	v, err := strconv.Unquote(t.lit)
	if err != nil {
		return "", false
	}
	return v, true
}

// attempt runs fn and keeps its result only when it succeeds and consumes
// every remaining token. On failure the cursor is restored.
func attempt[T any](c *tokenCursor, fn func() (T, bool)) (T, bool) {
	m := c.mark()
	v, ok := fn()
	if !ok || !c.done() {
		c.reset(m)
		var zero T
		return zero, false
	}
	return v, true
}

// lexUntilClose scans text, which starts with '{', up to the matching '}'.
// It returns the offset of that brace, or -1 when the input ends first.
func lexUntilClose(text string) (int, int, error) {
	fset := token.NewFileSet()
	file := fset.AddFile("", -1, len(text))

	var s scanner.Scanner
	var firstErr error
	errOff := 0
	s.Init(file, []byte(text), func(pos token.Position, msg string) {
		if firstErr == nil {
			firstErr = errors.New(msg)
			errOff = pos.Offset
		}
	}, 0)

	depth := 0
	for {
		pos, tok, _ := s.Scan()
		if firstErr != nil {
			return 0, errOff, firstErr
		}
		switch tok {
		case token.EOF:
			return -1, 0, nil
		case token.LBRACE:
			depth++
		case token.RBRACE:
			depth--
			if depth == 0 {
				return file.Offset(pos), 0, nil
			}
		}
	}
}

// scanStringEnd returns the length of the string literal text starts with
func scanStringEnd(text string) (int, error) {
	fset := token.NewFileSet()
	file := fset.AddFile("", -1, len(text))

	var s scanner.Scanner
	var firstErr error
	s.Init(file, []byte(text), func(pos token.Position, msg string) {
		if firstErr == nil {
			firstErr = errors.New(msg)
		}
	}, 0)

	_, tok, lit := s.Scan()
	if firstErr != nil {
		return 0, firstErr
	}
	if tok != token.STRING {
		return 0, errors.New("expected string literal")
	}
	return len(lit), nil
}
