package rewrite

import (
	"bytes"
	"errors"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/recera/weave/internal/diag"
)

func newRewriter(props ...string) *Rewriter {
	return New(Config{
		States:        []string{"count", "name", "items", "total"},
		Accessor:      "st",
		Props:         props,
		PropsAccessor: "c.props",
	})
}

func render(t *testing.T, n ast.Node) string {
	t.Helper()
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, token.NewFileSet(), n); err != nil {
		t.Fatalf("printer.Fprint() failed: %v", err)
	}
	return buf.String()
}

func parseFunc(t *testing.T, src string) *ast.FuncLit {
	t.Helper()
	e, err := parser.ParseExpr(src)
	if err != nil {
		t.Fatalf("ParseExpr(%q) failed: %v", src, err)
	}
	fn, ok := e.(*ast.FuncLit)
	if !ok {
		t.Fatalf("%q is not a function literal", src)
	}
	return fn
}

func TestExpr(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		props  []string
		want   string
		reads  []string
		seen   []string
		usedPr []string
	}{
		{
			name:  "single read",
			src:   "count",
			want:  "st.Ref().count",
			reads: []string{"count"},
			seen:  []string{"count"},
		},
		{
			name:  "each operand",
			src:   "count + total",
			want:  "st.Ref().count + st.Ref().total",
			reads: []string{"count", "total"},
			seen:  []string{"count", "total"},
		},
		{
			name:  "call argument",
			src:   "fmt.Sprint(len(items))",
			want:  "fmt.Sprint(len(st.Ref().items))",
			reads: []string{"items"},
			seen:  []string{"fmt", "items", "len"},
		},
		{
			name:  "selector field untouched",
			src:   "user.count",
			want:  "user.count",
			reads: []string{},
			seen:  []string{"user"},
		},
		{
			name:   "loop prop",
			src:    "item + name",
			props:  []string{"item"},
			want:   "c.props.item + st.Ref().name",
			reads:  []string{"name"},
			seen:   []string{"item", "name"},
			usedPr: []string{"item"},
		},
		{
			name:  "struct literal key",
			src:   "T{count: count}",
			want:  "T{count: st.Ref().count}",
			reads: []string{"count"},
			seen:  []string{"T", "count"},
		},
		{
			name:  "method call reads receiver",
			src:   "items.Len()",
			want:  "st.Ref().items.Len()",
			reads: []string{"items"},
			seen:  []string{"items"},
		},
		{
			name:  "unknown identifier",
			src:   "other * 2",
			want:  "other * 2",
			reads: []string{},
			seen:  []string{"other"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := parser.ParseExpr(tt.src)
			if err != nil {
				t.Fatalf("ParseExpr() failed: %v", err)
			}
			got, res, err := newRewriter(tt.props...).Expr(e)
			if err != nil {
				t.Fatalf("Expr() failed: %v", err)
			}
			if s := render(t, got); s != tt.want {
				t.Errorf("Expr(%q) = %q, want %q", tt.src, s, tt.want)
			}
			if diff := cmp.Diff(tt.reads, res.Reads.Sorted()); diff != "" {
				t.Errorf("reads mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.seen, res.Seen.Sorted()); diff != "" {
				t.Errorf("seen mismatch (-want +got):\n%s", diff)
			}
			if len(res.Writes) != 0 {
				t.Errorf("unexpected writes %v", res.Writes.Sorted())
			}
			if tt.usedPr != nil {
				if diff := cmp.Diff(tt.usedPr, res.Props.Sorted()); diff != "" {
					t.Errorf("props mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestFunc_Writes(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		want   []string
		reads  []string
		writes []string
	}{
		{
			name:   "increment",
			src:    "func() { count++ }",
			want:   []string{"st.Mut().count++"},
			reads:  []string{},
			writes: []string{"count"},
		},
		{
			name:   "assignment reads right side",
			src:    "func() { total = count + 1 }",
			want:   []string{"st.Mut().total = st.Ref().count + 1"},
			reads:  []string{"count"},
			writes: []string{"total"},
		},
		{
			name:   "append",
			src:    `func() { items = append(items, name) }`,
			want:   []string{"st.Mut().items = append(st.Ref().items, st.Ref().name)"},
			reads:  []string{"items", "name"},
			writes: []string{"items"},
		},
		{
			name:   "method receiver",
			src:    "func() { name.Reset() }",
			want:   []string{"st.Mut().name.Reset()"},
			reads:  []string{},
			writes: []string{"name"},
		},
		{
			name:   "address of",
			src:    "func() { p := &count; *p = 2 }",
			want:   []string{"&st.Mut().count"},
			reads:  []string{},
			writes: []string{"count"},
		},
		{
			name:   "compound assignment",
			src:    "func(ev dom.Event) { count += 2 }",
			want:   []string{"st.Mut().count += 2"},
			reads:  []string{},
			writes: []string{"count"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := parseFunc(t, tt.src)
			res, err := newRewriter().Func(fn)
			if err != nil {
				t.Fatalf("Func() failed: %v", err)
			}
			body := render(t, fn.Body)
			for _, w := range tt.want {
				if !strings.Contains(body, w) {
					t.Errorf("body %q should contain %q", body, w)
				}
			}
			if diff := cmp.Diff(tt.reads, res.Reads.Sorted()); diff != "" {
				t.Errorf("reads mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.writes, res.Writes.Sorted()); diff != "" {
				t.Errorf("writes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFunc_Shadowing(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		want    string
		notWant string
	}{
		{
			name:    "short declaration",
			src:     "func() { count := 1; total = count }",
			want:    "st.Mut().total = count",
			notWant: "st.Ref().count",
		},
		{
			name:    "parameter",
			src:     "func(count dom.Event) { _ = count }",
			want:    "_ = count",
			notWant: "st.",
		},
		{
			name:    "range variables",
			src:     "func() { for _, name := range items { total += len(name) } }",
			want:    "st.Mut().total += len(name)",
			notWant: "st.Ref().name",
		},
		{
			name:    "range iterable still rewritten",
			src:     "func() { for _, name := range items { _ = name } }",
			want:    "range st.Ref().items",
			notWant: "st.Ref().name",
		},
		{
			name:    "var declaration",
			src:     "func() { var name string = \"x\"; _ = name }",
			want:    "_ = name",
			notWant: "st.Ref().name",
		},
		{
			name:    "scope ends with block",
			src:     "func() { if true { count := 2; _ = count }; total = count }",
			want:    "st.Mut().total = st.Ref().count",
			notWant: "st.Ref().count := 2",
		},
		{
			name:    "nested literal",
			src:     "func() { f := func(total int) { count = total }; f(1) }",
			want:    "st.Mut().count = total",
			notWant: "st.Ref().total",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := parseFunc(t, tt.src)
			if _, err := newRewriter().Func(fn); err != nil {
				t.Fatalf("Func() failed: %v", err)
			}
			body := render(t, fn.Body)
			if !strings.Contains(body, tt.want) {
				t.Errorf("body %q should contain %q", body, tt.want)
			}
			if strings.Contains(body, tt.notWant) {
				t.Errorf("body %q should not contain %q", body, tt.notWant)
			}
		})
	}
}

func TestFunc_Errors(t *testing.T) {
	locate := func(token.Pos) diag.Pos { return diag.Pos{Line: 3, Col: 7} }
	tests := []struct {
		name    string
		src     string
		message string
	}{
		{"indexed target", "func() { i := 0; items[i] = name }", "multiple identifiers"},
		{"go statement", "func() { go update(count) }", "go statement referencing state count"},
		{"defer statement", "func() { defer func() { total = 0 }() }", "defer statement referencing state total"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := New(Config{
				States:   []string{"count", "name", "items", "total"},
				Accessor: "st",
				Locate:   locate,
			})
			_, err := rw.Func(parseFunc(t, tt.src))
			if err == nil {
				t.Fatal("expected an error")
			}
			var d *diag.Diagnostic
			if !errors.As(err, &d) {
				t.Fatalf("error %T is not a diagnostic", err)
			}
			if d.Kind != diag.Rewrite {
				t.Errorf("kind = %v, want rewrite", d.Kind)
			}
			if !strings.Contains(d.Message, tt.message) {
				t.Errorf("message %q does not contain %q", d.Message, tt.message)
			}
			if pos := d.Pos(); pos.Line != 3 || pos.Col != 7 {
				t.Errorf("reported at %v, want 3:7", pos)
			}
		})
	}
}

func TestFunc_IndexedLocal(t *testing.T) {
	// a local slice indexed by state is not a write to state
	fn := parseFunc(t, "func() { buf := []int{0}; buf[0] = count }")
	res, err := newRewriter().Func(fn)
	if err != nil {
		t.Fatalf("Func() failed: %v", err)
	}
	if len(res.Writes) != 0 {
		t.Errorf("unexpected writes %v", res.Writes.Sorted())
	}
	if !res.Reads.Has("count") {
		t.Error("count should be read")
	}
}

func TestStmts(t *testing.T) {
	f, err := parser.ParseFile(token.NewFileSet(), "", "package p\nfunc _() {\ncount++\nname = \"x\"\n}", 0)
	if err != nil {
		t.Fatalf("ParseFile() failed: %v", err)
	}
	list := f.Decls[0].(*ast.FuncDecl).Body.List
	res, err := newRewriter().Stmts(list)
	if err != nil {
		t.Fatalf("Stmts() failed: %v", err)
	}
	if got := render(t, list[0]); got != "st.Mut().count++" {
		t.Errorf("first statement = %q", got)
	}
	if diff := cmp.Diff([]string{"count", "name"}, res.Deps().Sorted()); diff != "" {
		t.Errorf("deps mismatch (-want +got):\n%s", diff)
	}
}

func TestNames(t *testing.T) {
	a := NewNames("b", "a")
	b := NewNames("c", "a")
	got := a.Union(b).Sorted()
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Errorf("Union() mismatch (-want +got):\n%s", diff)
	}
	if len(a) != 2 {
		t.Error("Union() must not modify its receiver")
	}
}
