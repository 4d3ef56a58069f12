// Package diag carries source-located diagnostics for the weave compiler.
// Every stage reports failures as a *Diagnostic; structurally related failures
// (mismatched closers, duplicate declarations) carry two labels.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Severity tells whether a diagnostic aborts compilation
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Kind classifies where a diagnostic comes from
type Kind int

const (
	Syntax Kind = iota
	Declaration
	Binding
	Rewrite
	Unimplemented
	External
	Lint
)

var kindNames = map[Kind]string{
	Syntax:        "syntax",
	Declaration:   "declaration",
	Binding:       "binding",
	Rewrite:       "rewrite",
	Unimplemented: "unimplemented",
	External:      "external",
	Lint:          "lint",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Pos is a resolved location inside a source file. Line and Col are 1-based.
type Pos struct {
	File   string
	Offset int
	Line   int
	Col    int
}

// IsValid reports whether the position points somewhere
func (p Pos) IsValid() bool {
	return p.Line > 0
}

func (p Pos) String() string {
	if !p.IsValid() {
		if p.File == "" {
			return "-"
		}
		return p.File
	}
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Label attaches a message to one location
type Label struct {
	Pos     Pos
	Message string
}

// Diagnostic is a compiler error or warning
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Code     string
	Message  string
	Labels   []Label
}

// Errorf creates an error diagnostic with a single location
func Errorf(kind Kind, pos Pos, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{
		Severity: Error,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Labels:   []Label{{Pos: pos}},
	}
}

// Paired creates an error diagnostic pointing at two related locations,
// typically an opener and the closer that does not match it.
func Paired(kind Kind, msg string, first Pos, firstMsg string, second Pos, secondMsg string) *Diagnostic {
	return &Diagnostic{
		Severity: Error,
		Kind:     kind,
		Message:  msg,
		Labels: []Label{
			{Pos: first, Message: firstMsg},
			{Pos: second, Message: secondMsg},
		},
	}
}

// Warnf creates a warning diagnostic
func Warnf(code string, pos Pos, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{
		Severity: Warning,
		Kind:     Lint,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Labels:   []Label{{Pos: pos}},
	}
}

// Pos returns the primary location
func (d *Diagnostic) Pos() Pos {
	if len(d.Labels) == 0 {
		return Pos{}
	}
	return d.Labels[0].Pos
}

// IsPaired reports whether the diagnostic cites two locations
func (d *Diagnostic) IsPaired() bool {
	return len(d.Labels) > 1
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(d.Pos().String())
	b.WriteString(": ")
	if d.Severity == Warning {
		b.WriteString("warning: ")
	}
	if d.Code != "" {
		b.WriteString(d.Code)
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	for i, l := range d.Labels {
		if l.Message == "" || (i == 0 && len(d.Labels) == 1) {
			continue
		}
		fmt.Fprintf(&b, "\n\t%s: %s", l.Pos, l.Message)
	}
	return b.String()
}

// List accumulates non-fatal diagnostics
type List struct {
	items []*Diagnostic
}

// Add appends a diagnostic
func (l *List) Add(d *Diagnostic) {
	if d != nil {
		l.items = append(l.items, d)
	}
}

// Warn records a warning at pos
func (l *List) Warn(code string, pos Pos, format string, args ...interface{}) {
	l.Add(Warnf(code, pos, format, args...))
}

// Len returns the number of diagnostics
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// All returns the diagnostics sorted by position
func (l *List) All() []*Diagnostic {
	if l == nil {
		return nil
	}
	out := make([]*Diagnostic, len(l.items))
	copy(out, l.items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Pos().Offset < out[j].Pos().Offset
	})
	return out
}
