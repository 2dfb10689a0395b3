// Package registry records which shims are installed in this process and the
// original entry points they replaced.
package registry

import (
	"fmt"
	"sync"
)

// Capability names one replaceable group of entry points.
type Capability string

const (
	Negotiation  Capability = "negotiation"
	Interception Capability = "interception"
)

// Entry is the installation record of one capability.
type Entry struct {
	Active bool
	// Original is whatever the installer captured before replacing it. Its
	// concrete type is owned by the installing package.
	Original any
}

// Registry is safe for concurrent use. Entries are never removed.
type Registry struct {
	mu      sync.Mutex
	entries map[Capability]Entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[Capability]Entry)}
}

// Default is the process-wide registry.
var Default = New()

// Install runs install at most once per capability. install receives nothing
// and returns the original entry point it replaced; it runs with the registry
// lock held so concurrent installers of the same capability block until the
// first has finished. Install reports whether this call performed the
// installation.
func (r *Registry) Install(c Capability, install func() (original any, err error)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[c].Active {
		return false, nil
	}
	original, err := install()
	if err != nil {
		return false, fmt.Errorf("installing %s: %w", c, err)
	}
	r.entries[c] = Entry{Active: true, Original: original}
	return true, nil
}

// Lookup returns the entry for c.
func (r *Registry) Lookup(c Capability) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[c]
	return e, ok
}

// Installed reports whether c is active.
func (r *Registry) Installed(c Capability) bool {
	e, _ := r.Lookup(c)
	return e.Active
}
