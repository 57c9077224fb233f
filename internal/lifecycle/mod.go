// Package lifecycle tracks each mod's enable/disable state and mediates the
// side effects of transitions: hook (un)registration, option-store binding,
// and lifecycle events for the menu collaborator.
package lifecycle

import (
	"github.com/Masterminds/semver/v3"

	"github.com/hexforge/modcore/internal/hooks"
	"github.com/hexforge/modcore/internal/keybinds"
	"github.com/hexforge/modcore/internal/options"
)

// State is a mod's position in its lifecycle.
type State int

const (
	// StateDiscovered is the initial state: known, never enabled.
	StateDiscovered State = iota

	// StateEnabled means hooks are installed and the store is bound.
	StateEnabled

	// StateDisabled means registrations are removed; values stay in memory.
	StateDisabled

	// StateFailed is terminal, reached on unrecoverable setup error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	default:
		return "failed"
	}
}

// HookSpec is one hook a mod declares. Installed on enable, removed on
// disable.
type HookSpec struct {
	Identifier string
	Phase      hooks.Phase
	Priority   int
	Callback   hooks.Callback
}

// Mod is a discovered extension unit: identity plus its declared options,
// hooks and keybinds. Mods are created at discovery and live until process
// shutdown; only their registrations come and go.
type Mod struct {
	Name        string
	Version     string
	Authors     []string
	Description string

	Options  *options.Store
	Keybinds *keybinds.Set
	Hooks    []HookSpec

	// OnEnable / OnDisable run inside the corresponding transition,
	// after hooks install and before hooks are removed respectively.
	OnEnable  func()
	OnDisable func()
}

// SemVersion parses the mod's version as semver. The version stays a display
// string when it does not parse; mods are not blocked on bad versions.
func (m *Mod) SemVersion() (*semver.Version, bool) {
	v, err := semver.NewVersion(m.Version)
	if err != nil {
		return nil, false
	}
	return v, true
}
