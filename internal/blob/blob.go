// Package blob is the pluggable object-storage registry used for file-type
// fields. Disks are named configurations bound to a driver; field metadata
// references a disk by name.
package blob

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Driver stores and retrieves blobs by key.
type Driver interface {
	// Put stores r under key; an empty key asks the driver to generate one.
	// Returns the final key, byte count and sha256 hex.
	Put(ctx context.Context, key string, r io.Reader) (string, int64, string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Registry maps disk names to configured drivers.
type Registry struct {
	mu       sync.RWMutex
	disks    map[string]Driver
	fallback string
}

func NewRegistry() *Registry {
	return &Registry{disks: map[string]Driver{}}
}

// Register binds a configured driver to a disk name. The first registered
// disk becomes the default.
func (r *Registry) Register(name string, d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.disks) == 0 {
		r.fallback = name
	}
	r.disks[name] = d
}

func (r *Registry) Get(name string) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.fallback
	}
	d, ok := r.disks[name]
	if !ok {
		return nil, fmt.Errorf("storage disk not configured: %s", name)
	}
	return d, nil
}

func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

func (r *Registry) Disks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.disks))
	for name := range r.disks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
