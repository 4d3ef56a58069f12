package rewrite

import "sort"

// Names is a set of identifiers
type Names map[string]struct{}

// NewNames creates a set holding names
func NewNames(names ...string) Names {
	n := make(Names, len(names))
	for _, name := range names {
		n.Add(name)
	}
	return n
}

// Add inserts name
func (n Names) Add(name string) {
	n[name] = struct{}{}
}

// Has reports whether name is in the set
func (n Names) Has(name string) bool {
	_, ok := n[name]
	return ok
}

// Union returns a new set holding the names of both sets
func (n Names) Union(other Names) Names {
	out := make(Names, len(n)+len(other))
	for name := range n {
		out.Add(name)
	}
	for name := range other {
		out.Add(name)
	}
	return out
}

// Sorted returns the names in lexical order
func (n Names) Sorted() []string {
	out := make([]string, 0, len(n))
	for name := range n {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
