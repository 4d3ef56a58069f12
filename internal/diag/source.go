package diag

import (
	"sort"
	"strings"
)

// Source is a named source text with a line index so byte offsets can be
// turned into line/column positions on demand.
type Source struct {
	Name  string
	Text  string
	lines []int
}

// NewSource indexes text
func NewSource(name, text string) *Source {
	lines := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	return &Source{Name: name, Text: text, lines: lines}
}

// Pos resolves a byte offset. Offsets past the end clamp to the end.
func (s *Source) Pos(offset int) Pos {
	if offset < 0 {
		offset = 0
	}
	if offset > len(s.Text) {
		offset = len(s.Text)
	}
	line := sort.Search(len(s.lines), func(i int) bool { return s.lines[i] > offset }) - 1
	start := s.lines[line]
	col := 1 + len([]rune(s.Text[start:offset]))
	return Pos{File: s.Name, Offset: offset, Line: line + 1, Col: col}
}

// Line returns the text of the 1-based line n without its newline
func (s *Source) Line(n int) string {
	if n < 1 || n > len(s.lines) {
		return ""
	}
	start := s.lines[n-1]
	end := len(s.Text)
	if n < len(s.lines) {
		end = s.lines[n] - 1
	}
	return strings.TrimSuffix(s.Text[start:end], "\r")
}

// LineCount returns the number of lines
func (s *Source) LineCount() int {
	return len(s.lines)
}

// Fragment is a slice of a Source that is parsed on its own, such as a Go
// expression inside braces. Offsets reported against the fragment are mapped
// back into the enclosing source.
type Fragment struct {
	Text   string
	Offset int
}

// At maps a fragment-relative byte offset to a position in src
func (f Fragment) At(src *Source, rel int) Pos {
	if rel < 0 {
		rel = 0
	}
	if rel > len(f.Text) {
		rel = len(f.Text)
	}
	return src.Pos(f.Offset + rel)
}
