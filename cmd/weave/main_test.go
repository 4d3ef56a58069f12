package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"

	"github.com/recera/weave/cmd/weave/internal/config"
	"github.com/recera/weave/cmd/weave/internal/devhub"
	"github.com/recera/weave/internal/compiler"
)

const counter = `{
var count int
inc := func() {
	count++
}
}
<button on:click={inc}>+</button>
<p>{count}</p>`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCompileCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "counter.weave"), counter)

	stdout, _, err := execute(t, "compile", "--cwd", dir, "--out", "gen", "--package", "ui", filepath.Join(dir, "src"))
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if !strings.Contains(stdout, "Counter") || !strings.Contains(stdout, "Compiled 1 templates") {
		t.Errorf("unexpected output:\n%s", stdout)
	}

	code, err := os.ReadFile(filepath.Join(dir, "gen", "counter.weave.go"))
	if err != nil {
		t.Fatalf("generated file missing: %v", err)
	}
	for _, want := range []string{"package ui", "type CounterState struct", "func NewCounter("} {
		if !strings.Contains(string(code), want) {
			t.Errorf("generated code does not contain %q", want)
		}
	}
}

func TestCompileCommand_UsesConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "components", "counter.weave"), counter)

	cfg := config.DefaultConfig()
	cfg.Compile.SrcDir = "components"
	cfg.Compile.Package = "widgets"
	if err := config.Save(cfg, dir); err != nil {
		t.Fatal(err)
	}

	if _, _, err := execute(t, "compile", "--cwd", dir, "--verbose"); err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	code, err := os.ReadFile(filepath.Join(dir, "components", "counter.weave.go"))
	if err != nil {
		t.Fatalf("generated file missing: %v", err)
	}
	if !strings.Contains(string(code), "package widgets") {
		t.Error("package from weave.yaml was not used")
	}
}

func TestCompileCommand_Failure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ok.weave"), counter)
	writeFile(t, filepath.Join(dir, "broken.weave"), "<p>{missing}</p>")

	_, stderr, err := execute(t, "compile", "--cwd", dir)
	if err == nil || !strings.Contains(err.Error(), "1 of 2 templates failed") {
		t.Fatalf("expected a failure count, got %v", err)
	}
	if !strings.Contains(stderr, "missing") {
		t.Errorf("diagnostic not rendered:\n%s", stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "ok.weave.go")); err != nil {
		t.Error("the valid template should still be written")
	}
	if _, err := os.Stat(filepath.Join(dir, "broken.weave.go")); err == nil {
		t.Error("the broken template should not be written")
	}
}

func TestCompileCommand_NoTemplates(t *testing.T) {
	_, _, err := execute(t, "compile", "--cwd", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no .weave files found") {
		t.Errorf("expected no files error, got %v", err)
	}
}

func TestParseCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter.weave")
	writeFile(t, path, counter)

	stdout, _, err := execute(t, "parse", path)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !strings.Contains(stdout, "host block") || !strings.Contains(stdout, "<button on:click={inc}>") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
}

func TestParseCommand_SyntaxError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.weave")
	writeFile(t, path, "<div>")

	_, stderr, err := execute(t, "parse", path)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(stderr, "error") {
		t.Errorf("diagnostic not rendered:\n%s", stderr)
	}
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := execute(t, "init", dir, "--package", "ui"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Compile.Package != "ui" {
		t.Errorf("package = %s, want ui", cfg.Compile.Package)
	}

	if _, _, err := execute(t, "init", dir); err == nil {
		t.Error("expected init to refuse to overwrite")
	}
	if _, _, err := execute(t, "init", dir, "--force"); err != nil {
		t.Errorf("init --force failed: %v", err)
	}
}

func TestCacheCommand(t *testing.T) {
	dir := t.TempDir()
	stdout, _, err := execute(t, "cache", "stats", "--cwd", dir)
	if err != nil {
		t.Fatalf("cache stats failed: %v", err)
	}
	if !strings.Contains(stdout, "Entries: 0") {
		t.Errorf("unexpected stats:\n%s", stdout)
	}

	writeFile(t, filepath.Join(dir, ".weave", "cache", "Counter", "root.yaml"), "bindings: []\n")
	if _, _, err := execute(t, "cache", "clean", "--cwd", dir); err != nil {
		t.Fatalf("cache clean failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".weave", "cache", "Counter")); !os.IsNotExist(err) {
		t.Error("expected cache entries to be removed")
	}
}

func TestChangedTemplates(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.weave")
	b := filepath.Join(dir, "b.weave")
	writeFile(t, a, counter)
	writeFile(t, b, counter)

	events := []fsnotify.Event{
		{Name: b, Op: fsnotify.Write},
		{Name: a, Op: fsnotify.Create},
		{Name: b, Op: fsnotify.Write},
		{Name: filepath.Join(dir, "gone.weave"), Op: fsnotify.Write},
		{Name: filepath.Join(dir, "a.weave.go"), Op: fsnotify.Write},
		{Name: a, Op: fsnotify.Chmod},
	}
	if diff := cmp.Diff([]string{a, b}, changedTemplates(events)); diff != "" {
		t.Errorf("changed templates mismatch (-want +got):\n%s", diff)
	}
}

func TestHubMessage(t *testing.T) {
	ok := compiler.Outcome{Result: &compiler.Result{
		Unit:      compiler.Unit{File: "counter.weave"},
		Component: "Counter",
		Output:    []byte("package ui\n"),
	}}
	msg := hubMessage(ok)
	if msg.Type != devhub.TypeCompiled || msg.Component != "Counter" || msg.Output != "package ui\n" {
		t.Errorf("unexpected message %+v", msg)
	}

	failed := compiler.Outcome{
		Result: &compiler.Result{Unit: compiler.Unit{File: "broken.weave"}},
		Err:    errors.New("parse broken.weave: boom"),
	}
	msg = hubMessage(failed)
	if msg.Type != devhub.TypeError || !strings.Contains(msg.Error, "boom") || msg.Output != "" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.n); got != tt.want {
			t.Errorf("formatSize(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}
