package main

import (
	"log"
	"path/filepath"

	"github.com/recera/weave/cmd/weave/internal/config"
	"github.com/recera/weave/internal/compiler"
	"github.com/recera/weave/internal/typelookup"
)

// project is a loaded weave.yaml and the directory it lives in
type project struct {
	dir string
	cfg *config.Config
}

func loadProject(dir string) *project {
	cfg, err := config.Load(dir)
	if err != nil {
		log.Printf("⚠️  Failed to load %s: %v (using defaults)\n", config.FileName, err)
		cfg = config.DefaultConfig()
	}
	return &project{dir: dir, cfg: cfg}
}

// path resolves p against the project directory
func (p *project) path(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.dir, rel)
}

func (p *project) store() (*typelookup.DiskStore, error) {
	return typelookup.NewDiskStore(p.path(p.cfg.TypeLookup.CacheDir))
}

func (p *project) compiler() (*compiler.Compiler, error) {
	store, err := p.store()
	if err != nil {
		return nil, err
	}
	return compiler.New(compiler.Options{
		Package: p.cfg.Compile.Package,
		Runtime: p.cfg.Compile.Runtime,
		Lookup:  typelookup.New(store, &typelookup.GoToolchain{Env: p.cfg.TypeLookup.Env}),
	}), nil
}
