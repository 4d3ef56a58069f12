package typelookup

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeToolchain struct {
	calls    int
	bindings []Binding
	err      error
	programs []string
}

func (f *fakeToolchain) Resolve(ctx context.Context, program string, names []string) ([]Binding, error) {
	f.calls++
	f.programs = append(f.programs, program)
	return f.bindings, f.err
}

func itemsRequest(snippet string) Request {
	return Request{
		Snippet: snippet,
		Bucket:  "TodoList",
		Scope:   "for_1",
		Pattern: []string{"item"},
	}
}

func TestService_CachesUnchangedSnippet(t *testing.T) {
	tc := &fakeToolchain{bindings: []Binding{{Name: "item", Type: "string"}}}
	store := NewMemoryStore()
	svc := New(store, tc)
	ctx := context.Background()

	req := itemsRequest("var items []string\nfor _, item := range items {\n_ = item\n}")
	for i := 0; i < 3; i++ {
		got, err := svc.Lookup(ctx, req)
		if err != nil {
			t.Fatalf("Lookup() failed: %v", err)
		}
		if diff := cmp.Diff([]Binding{{Name: "item", Type: "string"}}, got); diff != "" {
			t.Errorf("bindings mismatch (-want +got):\n%s", diff)
		}
	}
	if tc.calls != 1 {
		t.Errorf("toolchain called %d times, want 1", tc.calls)
	}

	req.Snippet = strings.Replace(req.Snippet, "[]string", "[]int", 1)
	tc.bindings = []Binding{{Name: "item", Type: "int"}}
	got, err := svc.Lookup(ctx, req)
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if tc.calls != 2 {
		t.Errorf("changed snippet should re-run the toolchain, calls = %d", tc.calls)
	}
	if got[0].Type != "int" {
		t.Errorf("type = %q, want int", got[0].Type)
	}
	if store.Len() != 1 {
		t.Errorf("store has %d entries, want 1", store.Len())
	}
}

func TestService_ToolchainFailureIsFatal(t *testing.T) {
	boom := errors.New("go list failed")
	svc := New(NewMemoryStore(), &fakeToolchain{err: boom})

	_, err := svc.Lookup(context.Background(), itemsRequest("for _, item := range x {}"))
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("err = %v, want *FatalError", err)
	}
	if fatal.Bucket != "TodoList" || fatal.Scope != "for_1" {
		t.Errorf("unexpected location %s/%s", fatal.Bucket, fatal.Scope)
	}
	if !errors.Is(err, boom) {
		t.Error("FatalError should wrap the toolchain error")
	}
}

func TestService_IncompleteResolution(t *testing.T) {
	svc := New(NewMemoryStore(), &fakeToolchain{})
	_, err := svc.Lookup(context.Background(), itemsRequest("for _, item := range x {}"))
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("err = %v, want *FatalError", err)
	}
}

func TestService_MalformedDump(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore() failed: %v", err)
	}
	req := itemsRequest("for _, item := range x {}")
	goPath, dumpPath := store.paths(req.Bucket, req.Scope)
	if err := os.MkdirAll(filepath.Dir(goPath), 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(goPath, []byte(Program(req.Snippet)), 0644)
	os.WriteFile(dumpPath, []byte("bindings: [unclosed"), 0644)

	tc := &fakeToolchain{bindings: []Binding{{Name: "item", Type: "string"}}}
	_, err = New(store, tc).Lookup(context.Background(), req)
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("err = %v, want *FatalError", err)
	}
	if tc.calls != 0 {
		t.Error("a malformed dump must not fall back to the toolchain")
	}
}

func TestProgram(t *testing.T) {
	got := Program("var n int")
	want := "package main\n\nfunc main() {\nvar n int\n}\n"
	if got != want {
		t.Errorf("Program() = %q, want %q", got, want)
	}
}

func TestGoToolchain_Resolve(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the go command")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}

	program := Program(`var todos map[string][]time.Duration
for _, list := range todos {
	for i, d := range list {
		_, _ = i, d
	}
}`)
	tc := &GoToolchain{Dir: t.TempDir()}
	got, err := tc.Resolve(context.Background(), program, []string{"i", "d"})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	want := []Binding{{Name: "i", Type: "int"}, {Name: "d", Type: "time.Duration"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bindings mismatch (-want +got):\n%s", diff)
	}
}
