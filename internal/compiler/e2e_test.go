package compiler

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestCompile_RunsOnMemdom compiles testdata/todo.weave into package main next
// to a harness that mounts it on memdom, drives its events and prints a
// snapshot of the document after each step.
func TestCompile_RunsOnMemdom(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a program")
	}
	gobin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go command not available")
	}

	source, err := os.ReadFile(filepath.Join("testdata", "todo.weave"))
	if err != nil {
		t.Fatal(err)
	}
	harness, err := os.ReadFile(filepath.Join("testdata", "harness.go.txt"))
	if err != nil {
		t.Fatal(err)
	}

	c := newCompiler(&fakeToolchain{types: map[string]string{"item": "string"}})
	res, err := c.Compile(context.Background(), Unit{File: "todo.weave", Source: string(source), Package: "main"})
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}

	// inside the module so the runtime packages resolve without a replace
	dir, err := os.MkdirTemp("testdata", "todo-")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	if err := os.WriteFile(filepath.Join(dir, "todo.go"), res.Output, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.go"), harness, 0644); err != nil {
		t.Fatal(err)
	}

	cmd := exec.Command(gobin, "run", "./"+filepath.ToSlash(dir))
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("go run failed: %v\n%s\ngenerated:\n%s", err, stderr.String(), res.Output)
	}

	got := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		step, snapshot, _ := strings.Cut(line, "\t")
		got[step] = snapshot
	}

	controls := `<button>Add</button><button>Trim</button>`
	want := map[string]string{
		"mount": `<input value=""/>` + controls +
			`<ul><li>milk 4</li><li>eggs 4</li><li>bread 5</li><li>jam 3</li></ul><p>4 items</p>`,
		"trim": `<input value=""/>` + controls +
			`<ul><li>milk 4</li><li>eggs 4</li></ul><p>2 items</p>`,
		"type": `<input value="tea"/>` + controls +
			`<ul><li>milk 4</li><li>eggs 4</li></ul><p>2 items</p>`,
		"add": `<input value=""/>` + controls +
			`<ul><li>milk 4</li><li>eggs 4</li><li>tea 3</li></ul><p>3 items</p>`,
		"drop": `<input value=""/>` + controls +
			`<ul></ul><p>3 items</p>`,
		"listeners":  "0 0 0",
		"components": "0",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshots mismatch (-want +got):\n%s", diff)
	}
}
