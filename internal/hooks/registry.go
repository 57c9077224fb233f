// Package hooks implements the hook registry and the dispatch engine: the
// routine run on the engine's call thread whenever a hookable native function
// fires. Registered pre-hooks may rewrite arguments or short-circuit the
// native call; post-hooks may override the return value.
package hooks

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Phase says whether a callback runs before or after the native call.
type Phase int

const (
	// PhasePre runs before the native call and may short-circuit it.
	PhasePre Phase = iota

	// PhasePost runs after the native call (or after a short-circuit) and
	// may override the return value.
	PhasePost
)

func (p Phase) String() string {
	if p == PhasePre {
		return "pre"
	}
	return "post"
}

// Callback is a hook body. It receives the in-flight call and may mutate it
// within its phase's contract. A returned error is isolated and attributed to
// the owning mod; it never aborts dispatch for other callbacks.
type Callback func(call *Call) error

// Handle identifies one registration and is the only way to revoke it
// individually. The registry holds no references into mod state beyond the
// callback itself, so revoking a handle can never dangle.
type Handle struct {
	id string
}

// Valid reports whether the handle was issued by a registry.
func (h Handle) Valid() bool { return h.id != "" }

// Registration is one callback slot in an (identifier, phase) bucket.
type Registration struct {
	Identifier string
	Phase      Phase
	Priority   int
	Owner      string

	handle   Handle
	callback Callback
	seq      uint64
}

// Handle returns the registration's revocation handle.
func (r *Registration) Handle() Handle { return r.handle }

type bucketKey struct {
	identifier string
	phase      Phase
}

// Registry maps native-function identifiers to ordered callback buckets.
// Buckets are copy-on-write: mutation replaces the bucket slice wholesale, so
// a dispatching goroutine always iterates a consistent point-in-time snapshot
// and never observes a partially-removed bucket.
type Registry struct {
	logger *zap.Logger

	mu      sync.RWMutex
	buckets map[bucketKey][]*Registration
	nextSeq uint64
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:  logger,
		buckets: make(map[bucketKey][]*Registration),
	}
}

// Register inserts a callback for a native-function identifier. Lower
// priority runs first; equal priorities keep insertion order.
func (r *Registry) Register(identifier string, phase Phase, priority int, owner string, cb Callback) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSeq++
	reg := &Registration{
		Identifier: identifier,
		Phase:      phase,
		Priority:   priority,
		Owner:      owner,
		handle:     Handle{id: uuid.NewString()},
		callback:   cb,
		seq:        r.nextSeq,
	}

	key := bucketKey{identifier: identifier, phase: phase}
	old := r.buckets[key]
	bucket := make([]*Registration, 0, len(old)+1)
	bucket = append(bucket, old...)
	bucket = append(bucket, reg)
	sort.SliceStable(bucket, func(i, j int) bool {
		if bucket[i].Priority != bucket[j].Priority {
			return bucket[i].Priority < bucket[j].Priority
		}
		return bucket[i].seq < bucket[j].seq
	})
	r.buckets[key] = bucket

	return reg.handle
}

// Unregister removes a single registration by handle. Returns false if the
// handle is unknown (already removed, or never issued).
func (r *Registry) Unregister(h Handle) bool {
	if !h.Valid() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, bucket := range r.buckets {
		for i, reg := range bucket {
			if reg.handle != h {
				continue
			}
			next := make([]*Registration, 0, len(bucket)-1)
			next = append(next, bucket[:i]...)
			next = append(next, bucket[i+1:]...)
			r.replace(key, next)
			return true
		}
	}
	return false
}

// UnregisterAll removes every registration belonging to a mod, returning how
// many were removed. Each bucket is replaced atomically; in-flight dispatch
// sees the full old set or the full new set.
func (r *Registry) UnregisterAll(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, bucket := range r.buckets {
		var next []*Registration
		for _, reg := range bucket {
			if reg.Owner == owner {
				removed++
				continue
			}
			next = append(next, reg)
		}
		if len(next) != len(bucket) {
			r.replace(key, next)
		}
	}
	return removed
}

// Bucket returns the ordered registrations for one (identifier, phase). The
// returned slice is a live snapshot and must not be mutated by callers.
func (r *Registry) Bucket(identifier string, phase Phase) []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buckets[bucketKey{identifier: identifier, phase: phase}]
}

// OwnerCount returns how many registrations a mod currently holds, across all
// identifiers and phases.
func (r *Registry) OwnerCount(owner string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, bucket := range r.buckets {
		for _, reg := range bucket {
			if reg.Owner == owner {
				count++
			}
		}
	}
	return count
}

// replace swaps a bucket, dropping the key entirely when empty. Callers hold
// the write lock.
func (r *Registry) replace(key bucketKey, bucket []*Registration) {
	if len(bucket) == 0 {
		delete(r.buckets, key)
		return
	}
	r.buckets[key] = bucket
}
