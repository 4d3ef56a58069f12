package typelookup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry is one cached lookup: the program that was checked and what it
// resolved to
type Entry struct {
	Program  string    `yaml:"-"`
	Bindings []Binding `yaml:"bindings"`
	Created  time.Time `yaml:"created"`
}

// Store persists lookup results by bucket and scope
type Store interface {
	// Get returns the cached entry. A missing entry is not an error; an
	// unreadable or malformed one is.
	Get(bucket, scope string) (*Entry, bool, error)
	Put(bucket, scope string, e *Entry) error
}

// Stats tracks cache performance
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
	Size    int64
}

// DiskStore keeps each entry as a pair of files under dir:
// <bucket>/<scope>.go holds the program and <bucket>/<scope>.yaml the dump
type DiskStore struct {
	mu     sync.RWMutex
	dir    string
	hits   int64
	misses int64
}

// NewDiskStore creates a store rooted at dir
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the cache root
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) paths(bucket, scope string) (string, string) {
	base := filepath.Join(s.dir, sanitizeKey(bucket), sanitizeKey(scope))
	return base + ".go", base + ".yaml"
}

// Get implements Store
func (s *DiskStore) Get(bucket, scope string) (*Entry, bool, error) {
	s.mu.RLock()
	goPath, dumpPath := s.paths(bucket, scope)
	program, errGo := os.ReadFile(goPath)
	dump, errDump := os.ReadFile(dumpPath)
	s.mu.RUnlock()

	if errors.Is(errGo, fs.ErrNotExist) || errors.Is(errDump, fs.ErrNotExist) {
		s.record(false)
		return nil, false, nil
	}
	if errGo != nil {
		return nil, false, errGo
	}
	if errDump != nil {
		return nil, false, errDump
	}

	entry := &Entry{}
	if err := yaml.Unmarshal(dump, entry); err != nil {
		return nil, false, fmt.Errorf("malformed type dump %s: %w", dumpPath, err)
	}
	for i, b := range entry.Bindings {
		if b.Name == "" || b.Type == "" {
			return nil, false, fmt.Errorf("malformed type dump %s: binding %d is incomplete", dumpPath, i)
		}
	}
	entry.Program = string(program)
	s.record(true)
	return entry, true, nil
}

// Put implements Store
func (s *DiskStore) Put(bucket, scope string, e *Entry) error {
	if e.Created.IsZero() {
		e.Created = time.Now()
	}
	dump, err := yaml.Marshal(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	goPath, dumpPath := s.paths(bucket, scope)
	if err := os.MkdirAll(filepath.Dir(goPath), 0755); err != nil {
		return fmt.Errorf("failed to create bucket directory: %w", err)
	}
	if err := os.WriteFile(goPath, []byte(e.Program), 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.WriteFile(dumpPath, dump, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

// Stats returns hit counters and the current size on disk
func (s *DiskStore) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Hits: s.hits, Misses: s.misses}
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		st.Size += info.Size()
		if strings.HasSuffix(path, ".yaml") {
			st.Entries++
		}
		return nil
	})
	return st, err
}

// Clean removes every cached entry
func (s *DiskStore) Clean() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, e.Name())); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}
	s.hits, s.misses = 0, 0
	return nil
}

func (s *DiskStore) record(hit bool) {
	s.mu.Lock()
	if hit {
		s.hits++
	} else {
		s.misses++
	}
	s.mu.Unlock()
}

func sanitizeKey(key string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	sanitized := replacer.Replace(key)
	if sanitized == "" || sanitized == "." || sanitized == ".." {
		sanitized = "_" + sanitized
	}
	if len(sanitized) > 100 {
		sanitized = sanitized[:100]
	}
	return sanitized
}

// MemoryStore is a Store kept in memory
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Get implements Store
func (m *MemoryStore) Get(bucket, scope string) (*Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[bucket+"/"+scope]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

// Put implements Store
func (m *MemoryStore) Put(bucket, scope string, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[bucket+"/"+scope] = *e
	return nil
}

// Len returns the number of entries
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
