package host

import (
	"errors"
	"strings"
	"testing"

	"github.com/recera/weave/internal/diag"
)

func extract(t *testing.T, block string) (*LocalDetails, *diag.List, error) {
	t.Helper()
	text := "{" + block + "}"
	src := diag.NewSource("test.weave", text)
	warns := &diag.List{}
	details, err := Extract(src, diag.Fragment{Text: block, Offset: 1}, warns)
	return details, warns, err
}

func TestExtract_StatesAndEvents(t *testing.T) {
	details, warns, err := extract(t, `
	var count int = 0
	var name string
	var (
		items []string = []string{"a", "b"}
	)
	inc := func() { count++ }
	var rename = func(ev dom.Event) { name = "x" }
`)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if warns.Len() != 0 {
		t.Errorf("expected no warnings, got %d", warns.Len())
	}

	wantStates := []StateField{
		{Name: "count", Type: "int", Init: "0"},
		{Name: "name", Type: "string"},
		{Name: "items", Type: "[]string", Init: `[]string{"a", "b"}`},
	}
	if len(details.States) != len(wantStates) {
		t.Fatalf("expected %d states, got %d", len(wantStates), len(details.States))
	}
	for i, want := range wantStates {
		got := details.States[i]
		if got.Name != want.Name || got.Type != want.Type || got.Init != want.Init {
			t.Errorf("state %d = %+v, want %+v", i, got, want)
		}
	}

	if len(details.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(details.Events))
	}
	if details.Events[0].Name != "inc" || details.Events[0].Param != "" {
		t.Errorf("unexpected first event %+v", details.Events[0])
	}
	if details.Events[1].Name != "rename" || details.Events[1].Param != "ev" {
		t.Errorf("unexpected second event %+v", details.Events[1])
	}
	if slot, ok := details.Slot("rename"); !ok || slot != 1 {
		t.Errorf("Slot(rename) = %d, %v", slot, ok)
	}
}

func TestExtract_Positions(t *testing.T) {
	details, _, err := extract(t, "\nvar count int = 0\n")
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	pos := details.States[0].Pos
	if pos.Line != 2 || pos.Col != 5 {
		t.Errorf("count declared at %v, want 2:5", pos)
	}
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name    string
		block   string
		paired  bool
		message string
	}{
		{"untyped value", `count := 0`, false, "type annotation required"},
		{"untyped var", `var count = 0`, false, "type annotation required"},
		{"destructuring", `a, b := 1, 2`, false, "unsupported local form"},
		{"multi var", `var a, b int`, false, "unsupported local form"},
		{"const", `const n = 1`, false, "unsupported local form"},
		{"handler params", `f := func(a, b int) {}`, false, "unsupported local form"},
		{"handler results", `f := func() int { return 1 }`, false, "must not return values"},
		{"duplicate state", "var n int\nvar n string", true, "declared more than once"},
		{"state and event", "var n int\nn := func() {}", true, "declared more than once"},
		{"reserved", `var callbacks int`, false, "reserved"},
		{"syntax", `var x int =`, false, "expected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := extract(t, tt.block)
			if err == nil {
				t.Fatal("expected an error")
			}
			var d *diag.Diagnostic
			if !errors.As(err, &d) {
				t.Fatalf("error %T is not a diagnostic", err)
			}
			if tt.name != "syntax" && d.Kind != diag.Declaration {
				t.Errorf("kind = %v, want declaration", d.Kind)
			}
			if d.IsPaired() != tt.paired {
				t.Errorf("paired = %v, want %v", d.IsPaired(), tt.paired)
			}
			if !strings.Contains(d.Message, tt.message) {
				t.Errorf("message %q does not contain %q", d.Message, tt.message)
			}
		})
	}
}

func TestExtract_IgnoredStatements(t *testing.T) {
	details, warns, err := extract(t, "var n int\nprintln(n)")
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if len(details.States) != 1 {
		t.Errorf("expected 1 state, got %d", len(details.States))
	}
	if warns.Len() != 1 {
		t.Errorf("expected 1 warning, got %d", warns.Len())
	}
}

func TestExtract_Empty(t *testing.T) {
	details, _, err := extract(t, "  \n ")
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	if len(details.States) != 0 || len(details.Events) != 0 {
		t.Error("expected empty details")
	}
}
