// Package emit renders a compiled component as Go source.
package emit

import (
	"bytes"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"

	"github.com/recera/weave/internal/codegen"
)

// DefaultRuntime is the import path prefix of the dom, reactive and
// scheduler packages generated code depends on
const DefaultRuntime = "github.com/recera/weave/pkg"

//go:embed component.go.tmpl
var componentTmpl string

var tmpl = template.Must(template.New("component").Funcs(template.FuncMap{
	"quote": func(names []string) string {
		quoted := make([]string, len(names))
		for i, n := range names {
			quoted[i] = strconv.Quote(n)
		}
		return strings.Join(quoted, ", ")
	},
}).Parse(componentTmpl))

// Options controls the generated file
type Options struct {
	// Package is the package clause of the output, "main" when empty
	Package string
	// Runtime overrides DefaultRuntime
	Runtime string
}

// Source renders comp and runs the result through goimports, which formats
// it and drops imports the component does not need.
func Source(comp *codegen.Component, opts Options) ([]byte, error) {
	if opts.Package == "" {
		opts.Package = "main"
	}
	if opts.Runtime == "" {
		opts.Runtime = DefaultRuntime
	}

	var buf bytes.Buffer
	err := tmpl.Execute(&buf, map[string]any{
		"Package":   opts.Package,
		"Runtime":   strings.TrimSuffix(opts.Runtime, "/"),
		"Source":    comp.Source,
		"Component": comp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", comp.Name, err)
	}

	formatted, err := imports.Process(comp.Name+".go", buf.Bytes(), nil)
	if err != nil {
		return buf.Bytes(), fmt.Errorf("failed to format generated code: %w", err)
	}
	return formatted, nil
}
