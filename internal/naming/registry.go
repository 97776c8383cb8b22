package naming

import (
	"fmt"
	"sync"
)

// DirMaker creates directories relative to the image root.
type DirMaker interface {
	EnsureDir(path string) error
}

// Registry hands out product folders under a shared root. Claims are
// serialized by a mutex so concurrent products whose names collide always
// receive distinct folders. Uniqueness is scoped to the registry (one run):
// a directory left on disk by an earlier run is reused by the product that
// claims its name again.
type Registry struct {
	dirs DirMaker

	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewRegistry creates a Registry that creates folders through dirs.
func NewRegistry(dirs DirMaker) *Registry {
	return &Registry{
		dirs:    dirs,
		claimed: make(map[string]struct{}),
	}
}

// Claim reserves name (or the first free name-N) and makes sure the directory
// exists. It returns the folder path relative to the root.
func (r *Registry) Claim(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rel := UniqueName(name, func(candidate string) bool {
		_, ok := r.claimed[candidate]
		return ok
	})
	r.claimed[rel] = struct{}{}
	if err := r.dirs.EnsureDir(rel); err != nil {
		return rel, fmt.Errorf("create product folder %s: %w", rel, err)
	}
	return rel, nil
}

// Claimed returns the number of folders handed out so far.
func (r *Registry) Claimed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.claimed)
}
