package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"lukechampine.com/blake3"

	"github.com/hexforge/modcore/internal/options"
)

// PersistenceError is an I/O failure during load or save, surfaced to the
// caller. A failed save never touches the prior on-disk document; a failed
// load leaves every bound store at its defaults.
type PersistenceError struct {
	Character string
	Op        string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("settings %s for character %q: %v", e.Op, e.Character, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// KeybindState exposes a mod's rebindable keys for persistence, without the
// engine depending on the keybind implementation.
type KeybindState interface {
	Snapshot() map[string]string
	Apply(keys map[string]string)
	ResetAll()
}

type binding struct {
	store    *options.Store
	keybinds KeybindState
}

// Engine maps bound option stores to per-character documents on disk.
// Saves for the same character serialize; different characters may save
// concurrently.
type Engine struct {
	dir    string
	logger *zap.Logger

	mu       sync.Mutex
	active   string
	bound    map[string]binding
	order    []string
	locks    map[string]*sync.Mutex
	written  map[string][32]byte
}

// NewEngine creates an engine persisting under dir. The directory is created
// on first save.
func NewEngine(dir string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		dir:     dir,
		logger:  logger,
		bound:   make(map[string]binding),
		locks:   make(map[string]*sync.Mutex),
		written: make(map[string][32]byte),
	}
}

// Bind attaches a mod's store (and optionally its keybind state) to load and
// save events. Re-binding the same mod replaces the previous binding.
func (e *Engine) Bind(mod string, store *options.Store, kb KeybindState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.bound[mod]; !exists {
		e.order = append(e.order, mod)
	}
	e.bound[mod] = binding{store: store, keybinds: kb}
}

// Unbind detaches a mod. Its in-memory values stay as they are; it simply
// stops participating in load/save.
func (e *Engine) Unbind(mod string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.bound[mod]; !exists {
		return
	}
	delete(e.bound, mod)
	for i, name := range e.order {
		if name == mod {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Bound reports whether a mod currently participates in load/save.
func (e *Engine) Bound(mod string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.bound[mod]
	return ok
}

// ActiveCharacter returns the identity last made active.
func (e *Engine) ActiveCharacter() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// SetActiveCharacter records the active character/save identity and reloads
// every bound store from its document before any mod code reads options.
// Brand-new characters (no document) land on pure defaults.
func (e *Engine) SetActiveCharacter(character string) error {
	e.mu.Lock()
	e.active = character
	e.mu.Unlock()
	return e.Load(character)
}

// Path returns the on-disk document path for a character identity.
func (e *Engine) Path(character string) string {
	return filepath.Join(e.dir, fileStem(character)+".yaml")
}

// Load resets every bound store to defaults, then applies the character's
// document where one exists. Undecodable or kind-mismatched entries are
// logged and the node keeps its default.
func (e *Engine) Load(character string) error {
	bindings, mods := e.snapshotBindings()

	// Defaults first, unconditionally. "No data" and "a previous character's
	// data" must both resolve to defaults, never to whatever is in memory.
	for _, mod := range mods {
		b := bindings[mod]
		if b.store != nil {
			b.store.ResetAll()
		}
		if b.keybinds != nil {
			b.keybinds.ResetAll()
		}
	}

	doc, err := e.ReadDocument(character)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	for _, mod := range mods {
		section, ok := doc.Mods[mod]
		if !ok {
			continue
		}
		b := bindings[mod]
		if b.store != nil {
			for path, encoded := range section.Options {
				node, err := b.store.Node(path)
				if err != nil {
					e.logger.Warn("saved option no longer declared, dropping",
						zap.String("character", character),
						zap.String("mod", mod),
						zap.String("option", path))
					continue
				}
				if err := node.Decode(encoded); err != nil {
					e.logger.Warn("saved value rejected, sticking with the default",
						zap.String("character", character),
						zap.String("mod", mod),
						zap.String("option", path),
						zap.Error(err))
				}
			}
		}
		if b.keybinds != nil && section.Keybinds != nil {
			b.keybinds.Apply(section.Keybinds)
		}
	}
	return nil
}

// Save encodes every bound store and merges it into the character's document,
// leaving unbound mods' subtrees untouched. The write is atomic (temp file +
// rename) and skipped entirely when the document content is unchanged since
// the last save for this character.
func (e *Engine) Save(character string) error {
	lock := e.saveLock(character)
	lock.Lock()
	defer lock.Unlock()

	doc, err := e.ReadDocument(character)
	if err != nil {
		var perr *PersistenceError
		if !errors.As(err, &perr) || !errors.Is(perr.Err, errCorrupt) {
			return err
		}
		// A corrupt document can't be merged; rebuild from bound state.
		e.logger.Warn("existing settings document unreadable, rebuilding",
			zap.String("character", character),
			zap.Error(err))
		doc = nil
	}
	if doc == nil {
		doc = NewDocument()
	}

	bindings, mods := e.snapshotBindings()
	for _, mod := range mods {
		b := bindings[mod]
		doc.Mods[mod] = sectionFor(b.store, b.keybinds)
	}

	data, err := doc.Marshal()
	if err != nil {
		return &PersistenceError{Character: character, Op: "save", Err: err}
	}

	sum := blake3.Sum256(data)
	e.mu.Lock()
	unchanged := e.written[character] == sum
	e.mu.Unlock()
	if unchanged {
		return nil
	}

	if err := e.atomicWrite(character, data); err != nil {
		return &PersistenceError{Character: character, Op: "save", Err: err}
	}

	e.mu.Lock()
	e.written[character] = sum
	e.mu.Unlock()
	return nil
}

// errCorrupt tags parse failures so Save can distinguish them from I/O
// failures (which must abort rather than overwrite).
var errCorrupt = errors.New("corrupt settings document")

// ReadDocument reads and parses a character's document. Returns nil with no
// error when the document does not exist.
func (e *Engine) ReadDocument(character string) (*Document, error) {
	data, err := os.ReadFile(e.Path(character))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &PersistenceError{Character: character, Op: "load", Err: err}
	}

	doc, err := UnmarshalDocument(data)
	if err != nil {
		return nil, &PersistenceError{Character: character, Op: "load", Err: fmt.Errorf("%w: %v", errCorrupt, err)}
	}
	return doc, nil
}

// atomicWrite writes the document via a temp file and rename, so a failed
// save leaves the prior document intact.
func (e *Engine) atomicWrite(character string, data []byte) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return err
	}

	path := e.Path(character)
	tmp := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// saveLock returns the per-character mutex, creating it on first use.
func (e *Engine) saveLock(character string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[character]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[character] = lock
	}
	return lock
}

// snapshotBindings copies the bound set so load/save iterate a stable view.
func (e *Engine) snapshotBindings() (map[string]binding, []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bindings := make(map[string]binding, len(e.bound))
	for mod, b := range e.bound {
		bindings[mod] = b
	}
	mods := append([]string(nil), e.order...)
	return bindings, mods
}

// fileStem makes a character identity safe to use as a file name.
func fileStem(character string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	stem := replacer.Replace(character)
	if stem == "" {
		stem = "_"
	}
	return stem
}
