// Package keybinds implements per-mod key bindings: named, rebindable keys
// with press callbacks, routed through a single input dispatcher. Bindings
// persist alongside a mod's options in the per-character settings document.
package keybinds

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// InputEvent is the kind of key transition an input occurrence represents.
type InputEvent int

const (
	EventPressed InputEvent = iota
	EventReleased
	EventRepeat

	// AnyEvent as a filter runs the callback for every event kind.
	AnyEvent InputEvent = -1
)

func (e InputEvent) String() string {
	switch e {
	case EventPressed:
		return "pressed"
	case EventReleased:
		return "released"
	case EventRepeat:
		return "repeat"
	default:
		return "any"
	}
}

// Decision says whether the input should be swallowed before reaching the
// game. When several binds share a key, a single Block wins.
type Decision int

const (
	Pass Decision = iota
	Block
)

// Callback runs when a bind's key fires an event passing its filter.
type Callback func(event InputEvent) Decision

// Keybind is one named binding. An empty key means unbound.
type Keybind struct {
	identifier string
	defaultKey string
	key        string
	rebindable bool
	filter     InputEvent
	callback   Callback
}

// New creates a keybind. The default event filter is EventReleased, matching
// how menu keys are expected to behave.
func New(identifier, defaultKey string, cb Callback) *Keybind {
	return &Keybind{
		identifier: identifier,
		defaultKey: defaultKey,
		key:        defaultKey,
		rebindable: true,
		filter:     EventReleased,
		callback:   cb,
	}
}

// Filter restricts the bind to one event kind (or AnyEvent). Returns the bind
// for chaining at declaration time.
func (k *Keybind) Filter(e InputEvent) *Keybind {
	k.filter = e
	return k
}

// Locked marks the bind non-rebindable. Non-rebindable binds are never
// persisted; they always carry their default key.
func (k *Keybind) Locked() *Keybind {
	k.rebindable = false
	return k
}

func (k *Keybind) Identifier() string { return k.identifier }
func (k *Keybind) Key() string        { return k.key }
func (k *Keybind) DefaultKey() string { return k.defaultKey }
func (k *Keybind) Rebindable() bool   { return k.rebindable }

// Rebind updates the bound key. Ignored for non-rebindable binds.
func (k *Keybind) Rebind(key string) {
	if !k.rebindable {
		return
	}
	k.key = key
}

// Reset returns the bind to its declared default key.
func (k *Keybind) Reset() {
	k.key = k.defaultKey
}

// Set is the ordered collection of one mod's keybinds.
type Set struct {
	mod string

	mu    sync.RWMutex
	binds []*Keybind
	index map[string]*Keybind
}

// NewSet creates an empty keybind set for the named mod.
func NewSet(mod string) *Set {
	return &Set{mod: mod, index: make(map[string]*Keybind)}
}

// Mod returns the owning mod's identity.
func (s *Set) Mod() string { return s.mod }

// Add registers a bind, rejecting duplicate identifiers.
func (s *Set) Add(k *Keybind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.index[k.identifier]; dup {
		return fmt.Errorf("duplicate keybind %q for mod %q", k.identifier, s.mod)
	}
	s.binds = append(s.binds, k)
	s.index[k.identifier] = k
	return nil
}

// Binds returns the set's binds in declaration order.
func (s *Set) Binds() []*Keybind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Keybind(nil), s.binds...)
}

// Get resolves a bind by identifier.
func (s *Set) Get(identifier string) (*Keybind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.index[identifier]
	return k, ok
}

// Snapshot returns the rebindable binds' current keys, for persistence.
func (s *Set) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string)
	for _, k := range s.binds {
		if k.rebindable {
			out[k.identifier] = k.key
		}
	}
	return out
}

// Apply restores persisted keys. Binds absent from the snapshot keep their
// current key; unknown identifiers are ignored.
func (s *Set) Apply(keys map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, key := range keys {
		if k, ok := s.index[id]; ok {
			k.Rebind(key)
		}
	}
}

// ResetAll returns every bind to its default key.
func (s *Set) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.binds {
		k.Reset()
	}
}

// Dispatcher routes raw input occurrences to the enabled mods' binds.
type Dispatcher struct {
	logger *zap.Logger

	mu   sync.RWMutex
	sets map[string]*Set
}

// NewDispatcher creates an input dispatcher with no enabled sets.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{logger: logger, sets: make(map[string]*Set)}
}

// EnableSet starts routing input to a mod's binds.
func (d *Dispatcher) EnableSet(s *Set) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sets[s.mod] = s
}

// DisableSet stops routing input to a mod's binds.
func (d *Dispatcher) DisableSet(mod string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sets, mod)
}

// HandleInput runs every enabled bind matching the key and event filter.
// All matching callbacks run; the input is blocked if any of them blocks.
func (d *Dispatcher) HandleInput(key string, event InputEvent) Decision {
	d.mu.RLock()
	sets := make([]*Set, 0, len(d.sets))
	for _, s := range d.sets {
		sets = append(sets, s)
	}
	d.mu.RUnlock()

	decision := Pass
	for _, s := range sets {
		for _, k := range s.Binds() {
			if k.key == "" || k.key != key || k.callback == nil {
				continue
			}
			if k.filter != AnyEvent && k.filter != event {
				continue
			}
			if d.fire(s.mod, k, event) == Block {
				decision = Block
			}
		}
	}
	return decision
}

// fire runs one callback, isolating panics so a bad bind cannot take down
// input handling.
func (d *Dispatcher) fire(mod string, k *Keybind, event InputEvent) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			decision = Pass
			d.logger.Warn("keybind callback panicked",
				zap.String("mod", mod),
				zap.String("keybind", k.identifier),
				zap.String("event", event.String()),
				zap.Any("panic", r))
		}
	}()
	return k.callback(event)
}
