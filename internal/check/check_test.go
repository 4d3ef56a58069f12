package check

import (
	"errors"
	"strings"
	"testing"

	"github.com/recera/weave/internal/diag"
	"github.com/recera/weave/internal/host"
	"github.com/recera/weave/internal/template"
)

const hostBlock = `{
var count int = 0
var name string = "world"
var items []string
inc := func() { count++ }
}
`

func validate(t *testing.T, markup string) error {
	t.Helper()
	src := diag.NewSource("test.weave", hostBlock+markup)
	f, err := template.ParseFile(src, nil)
	if err != nil {
		t.Fatalf("ParseFile() failed: %v", err)
	}
	details, err := host.Extract(src, f.Host, nil)
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}
	return Validate(f.Elements, details)
}

func TestValidate_Accepts(t *testing.T) {
	tests := []string{
		`<p>{name}</p>`,
		`<button on:click={inc}>{count}</button>`,
		`<input bind:value={count}/>`,
		`<p title={name} class="static">{"literal"}</p>`,
		`<ul>{for item in items}<li title={item}>{item} {name}</li>{/for}</ul>`,
		`{if count > 0}<p>{count}</p>{else}<p>{name}</p>{/if}`,
		`<p>{undeclared + 1}</p>`,
	}

	for _, markup := range tests {
		t.Run(markup, func(t *testing.T) {
			if err := validate(t, markup); err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		markup  string
		ident   string
		message string
		line    int
		col     int
	}{
		{`<p>{missing}</p>`, "missing", "variable missing is not declared", 7, 4},
		{`<button on:click={missing}></button>`, "missing", "event callback missing", 7, 18},
		{`<button on:click={count}></button>`, "count", "(it is a state field)", 7, 18},
		{`<p>{inc}</p>`, "inc", "(it is an event handler)", 7, 4},
		{`<p>{item}</p>{for item in items}{/for}`, "item", "variable item", 7, 4},
		{`{for item in items}<input bind:value={item}/>{/for}`, "item", "variable item", 7, 38},
		{"<div>\n  <p title={nope}></p>\n</div>", "nope", "variable nope", 8, 12},
	}

	for _, tt := range tests {
		t.Run(tt.markup, func(t *testing.T) {
			err := validate(t, tt.markup)
			if err == nil {
				t.Fatal("expected an error")
			}
			var d *diag.Diagnostic
			if !errors.As(err, &d) {
				t.Fatalf("error %T is not a diagnostic", err)
			}
			if d.Kind != diag.Binding {
				t.Errorf("kind = %v, want binding", d.Kind)
			}
			if !strings.Contains(d.Message, tt.ident) || !strings.Contains(d.Message, tt.message) {
				t.Errorf("message %q should name %s and contain %q", d.Message, tt.ident, tt.message)
			}
			if pos := d.Pos(); pos.Line != tt.line || pos.Col != tt.col {
				t.Errorf("reported at %d:%d, want %d:%d", pos.Line, pos.Col, tt.line, tt.col)
			}
		})
	}
}
