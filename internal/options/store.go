package options

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ChangeEvent describes a single committed option mutation. Delivered to
// subscribers fire-and-forget; the store neither waits for nor retries
// delivery.
type ChangeEvent struct {
	Mod  string
	Path string
	Old  Value
	New  Value
}

// Store is the in-memory tree of option nodes owned by one mod. Nodes are
// addressed by dotted paths ("group.child"). All mutation is validated
// through the typed value model and is atomic per call: a failed Set leaves
// the prior value in place.
type Store struct {
	mod    string
	logger *zap.Logger

	mu    sync.RWMutex
	roots []*Node
	index map[string]*Node
	subs  []func(ChangeEvent)
}

// NewStore creates an empty store owned by the named mod.
func NewStore(mod string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		mod:    mod,
		logger: logger,
		index:  make(map[string]*Node),
	}
}

// Mod returns the owning mod's identity.
func (s *Store) Mod() string { return s.mod }

// Register adds a top-level node. Duplicate names are rejected per scope:
// top level against existing roots, group children against their siblings
// (recursively).
func (s *Store) Register(n *Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[n.name]; exists {
		return fmt.Errorf("%w: %q already registered for mod %q", ErrDuplicateOption, n.name, s.mod)
	}
	if err := checkChildScopes(n); err != nil {
		return err
	}

	claimOwner(n, s.mod)
	s.roots = append(s.roots, n)
	s.index[n.name] = n

	if !n.conformant {
		min, max, step := n.Bounds()
		s.logger.Warn("option step does not evenly divide its range",
			zap.String("mod", s.mod),
			zap.String("option", n.name),
			zap.Float64("min", min),
			zap.Float64("max", max),
			zap.Float64("step", step))
	}
	return nil
}

// Subscribe adds a change listener. Listeners run synchronously on the
// mutating call, after the value is committed.
func (s *Store) Subscribe(fn func(ChangeEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Node resolves a dotted path to its node.
func (s *Store) Node(path string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolve(path)
}

// Get returns the current value at a dotted path.
func (s *Store) Get(path string) (Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, err := s.resolve(path)
	if err != nil {
		return Value{}, err
	}
	if n.kind == KindGroup {
		return Value{}, fmt.Errorf("%w: %q is a group", ErrInvalidValue, path)
	}
	return n.value, nil
}

// Set validates and stores a value at a dotted path, then notifies
// subscribers. On validation failure nothing is mutated.
func (s *Store) Set(path string, v Value) error {
	s.mu.Lock()

	n, err := s.resolve(path)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if err := n.Validate(v); err != nil {
		s.mu.Unlock()
		return err
	}

	old := n.value
	n.value = v
	// Callbacks run after unlock: they are allowed to read (or set) other
	// options on the same store.
	onChange := n.onChange
	subs := make([]func(ChangeEvent), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	if onChange != nil {
		onChange(n, v)
	}
	ev := ChangeEvent{Mod: s.mod, Path: path, Old: old, New: v}
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

// ResetAll returns every node to its declared default. No change events are
// fired; a reset is a load-time operation, not a user mutation.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.roots {
		n.Reset()
	}
}

// Roots returns the top-level nodes in registration order.
func (s *Store) Roots() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Node(nil), s.roots...)
}

// Visible returns the top-level nodes the options menu should display.
func (s *Store) Visible() []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Node
	for _, n := range s.roots {
		if !n.hidden {
			out = append(out, n)
		}
	}
	return out
}

// Walk visits every value-holding node (skipping groups themselves) with its
// dotted path, in declaration order.
func (s *Store) Walk(fn func(path string, n *Node)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.roots {
		walkNode("", n, fn)
	}
}

func walkNode(prefix string, n *Node, fn func(string, *Node)) {
	path := n.name
	if prefix != "" {
		path = prefix + "." + n.name
	}
	if n.kind == KindGroup {
		for _, c := range n.children {
			walkNode(path, c, fn)
		}
		return
	}
	fn(path, n)
}

// resolve walks the dotted path. Callers hold s.mu.
func (s *Store) resolve(path string) (*Node, error) {
	parts := strings.Split(path, ".")
	n, ok := s.index[parts[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %q (mod %q)", ErrUnknownOption, path, s.mod)
	}
	for _, part := range parts[1:] {
		var next *Node
		for _, c := range n.children {
			if c.name == part {
				next = c
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%w: %q (mod %q)", ErrUnknownOption, path, s.mod)
		}
		n = next
	}
	return n, nil
}

// checkChildScopes rejects duplicate sibling names anywhere under a node.
func checkChildScopes(n *Node) error {
	if n.kind != KindGroup {
		return nil
	}
	seen := make(map[string]struct{}, len(n.children))
	for _, c := range n.children {
		if _, dup := seen[c.name]; dup {
			return fmt.Errorf("%w: %q within group %q", ErrDuplicateOption, c.name, n.name)
		}
		seen[c.name] = struct{}{}
		if err := checkChildScopes(c); err != nil {
			return err
		}
	}
	return nil
}

func claimOwner(n *Node, mod string) {
	n.owner = mod
	for _, c := range n.children {
		claimOwner(c, mod)
	}
}
