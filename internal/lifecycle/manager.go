package lifecycle

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hexforge/modcore/internal/hooks"
	"github.com/hexforge/modcore/internal/keybinds"
	"github.com/hexforge/modcore/internal/settings"
)

// EventKind is a lifecycle transition observable by the menu collaborator.
type EventKind int

const (
	EventEnabled EventKind = iota
	EventDisabled
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventEnabled:
		return "enabled"
	case EventDisabled:
		return "disabled"
	default:
		return "failed"
	}
}

// Event is delivered to subscribers fire-and-forget on every transition.
type Event struct {
	Kind EventKind
	Mod  string
}

// SetupError is an unrecoverable enable failure. The mod transitions to
// StateFailed and every partially-installed hook is rolled back.
type SetupError struct {
	Mod string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("mod %q setup failed: %v", e.Mod, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

type managed struct {
	mod   *Mod
	state State
}

// Manager owns the lifecycle of every discovered mod. It is the explicit
// context object of the core: constructed once at process start over the hook
// registry, persistence engine and input dispatcher, torn down at shutdown.
type Manager struct {
	registry *hooks.Registry
	settings *settings.Engine
	input    *keybinds.Dispatcher
	logger   *zap.Logger

	mu   sync.Mutex
	mods map[string]*managed
	subs []func(Event)
}

// NewManager wires a manager over the core's collaborators. The input
// dispatcher may be nil when the host has no keybind support.
func NewManager(registry *hooks.Registry, engine *settings.Engine, input *keybinds.Dispatcher, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		registry: registry,
		settings: engine,
		input:    input,
		logger:   logger,
		mods:     make(map[string]*managed),
	}
}

// Add registers a discovered mod. Names are unique across the manager.
func (m *Manager) Add(mod *Mod) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.mods[mod.Name]; dup {
		return fmt.Errorf("mod %q already registered", mod.Name)
	}
	m.mods[mod.Name] = &managed{mod: mod, state: StateDiscovered}

	m.logger.Info("mod discovered",
		zap.String("mod", mod.Name),
		zap.String("version", mod.Version))
	return nil
}

// Subscribe adds a lifecycle event listener.
func (m *Manager) Subscribe(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// State returns a mod's current lifecycle state.
func (m *Manager) State(name string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.mods[name]
	if !ok {
		return 0, false
	}
	return entry.state, true
}

// Mods returns the managed mods in stable display order (by name).
func (m *Manager) Mods() []*Mod {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Mod, 0, len(m.mods))
	for _, entry := range m.mods {
		out = append(out, entry.mod)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Enable transitions a mod to StateEnabled: bind its store and keybinds to
// the persistence engine, reload the active character's values, install its
// hooks, then raise the enabled event. Setup failure rolls back every
// partially-installed hook and leaves the mod in StateFailed.
func (m *Manager) Enable(name string) error {
	m.mu.Lock()
	entry, ok := m.mods[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("mod %q not registered", name)
	}
	switch entry.state {
	case StateEnabled:
		m.mu.Unlock()
		return nil
	case StateFailed:
		m.mu.Unlock()
		return fmt.Errorf("mod %q is in the failed state", name)
	}
	mod := entry.mod
	m.mu.Unlock()

	if err := m.setup(mod); err != nil {
		m.transition(name, StateFailed, EventFailed)
		return &SetupError{Mod: name, Err: err}
	}

	if mod.OnEnable != nil {
		mod.OnEnable()
	}
	m.transition(name, StateEnabled, EventEnabled)
	return nil
}

// setup performs the enable side effects, rolling everything back on error.
func (m *Manager) setup(mod *Mod) error {
	var kb settings.KeybindState
	if mod.Keybinds != nil {
		kb = mod.Keybinds
	}
	if mod.Options != nil || kb != nil {
		m.settings.Bind(mod.Name, mod.Options, kb)
		if active := m.settings.ActiveCharacter(); active != "" {
			if err := m.settings.Load(active); err != nil {
				m.logger.Warn("settings load failed on enable, keeping defaults",
					zap.String("mod", mod.Name),
					zap.String("character", active),
					zap.Error(err))
			}
		}
	}

	for i, spec := range mod.Hooks {
		if spec.Identifier == "" || spec.Callback == nil {
			m.registry.UnregisterAll(mod.Name)
			m.settings.Unbind(mod.Name)
			return fmt.Errorf("hook %d of %d is incomplete (identifier %q)",
				i+1, len(mod.Hooks), spec.Identifier)
		}
		m.registry.Register(spec.Identifier, spec.Phase, spec.Priority, mod.Name, spec.Callback)
	}

	if m.input != nil && mod.Keybinds != nil {
		m.input.EnableSet(mod.Keybinds)
	}
	return nil
}

// Disable transitions a mod to StateDisabled: raise on-disable, remove every
// one of its hook registrations, then unbind its store. Values remain in
// memory until re-enabled.
func (m *Manager) Disable(name string) error {
	m.mu.Lock()
	entry, ok := m.mods[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("mod %q not registered", name)
	}
	if entry.state != StateEnabled {
		m.mu.Unlock()
		return nil
	}
	mod := entry.mod
	m.mu.Unlock()

	if mod.OnDisable != nil {
		mod.OnDisable()
	}

	removed := m.registry.UnregisterAll(name)
	if m.input != nil && mod.Keybinds != nil {
		m.input.DisableSet(name)
	}
	m.settings.Unbind(name)

	m.logger.Info("mod disabled",
		zap.String("mod", name),
		zap.Int("hooks_removed", removed))
	m.transition(name, StateDisabled, EventDisabled)
	return nil
}

// SetActiveCharacter forwards the character switch to the persistence engine
// so every bound store reloads before any mod code reads option values.
func (m *Manager) SetActiveCharacter(character string) error {
	return m.settings.SetActiveCharacter(character)
}

// SaveActive persists every bound store for the active character.
func (m *Manager) SaveActive() error {
	active := m.settings.ActiveCharacter()
	if active == "" {
		return nil
	}
	return m.settings.Save(active)
}

// transition commits a state change and fans the event out to subscribers.
func (m *Manager) transition(name string, state State, kind EventKind) {
	m.mu.Lock()
	if entry, ok := m.mods[name]; ok {
		entry.state = state
	}
	subs := make([]func(Event), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	ev := Event{Kind: kind, Mod: name}
	for _, fn := range subs {
		fn(ev)
	}
}
