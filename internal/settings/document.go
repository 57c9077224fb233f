// Package settings implements the persistence engine: per-character YAML
// documents holding each bound mod's option values and keybinds. Loading a
// character always resets bound stores to defaults first, so a character with
// no document (or no subtree for a mod) can never inherit another character's
// in-memory values.
package settings

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hexforge/modcore/internal/options"
)

// Document is the on-disk structure for one character identity, namespaced
// by mod identity then by option path. Values keep their kind tags so decode
// can reject entries whose kind no longer matches the declared option.
type Document struct {
	Mods map[string]*ModSection `yaml:"mods"`
}

// ModSection is one mod's subtree within a character document.
type ModSection struct {
	Options  map[string]options.Encoded `yaml:"options,omitempty"`
	Keybinds map[string]string          `yaml:"keybinds,omitempty"`
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{Mods: make(map[string]*ModSection)}
}

// Marshal renders the document as human-diffable YAML.
func (d *Document) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode settings document: %w", err)
	}
	return data, nil
}

// UnmarshalDocument parses a document from YAML.
func UnmarshalDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode settings document: %w", err)
	}
	if doc.Mods == nil {
		doc.Mods = make(map[string]*ModSection)
	}
	return &doc, nil
}

// sectionFor builds a mod's subtree from its current store and keybind state.
func sectionFor(store *options.Store, kb KeybindState) *ModSection {
	section := &ModSection{Options: make(map[string]options.Encoded)}
	if store != nil {
		store.Walk(func(path string, n *options.Node) {
			section.Options[path] = n.Encode()
		})
	}
	if kb != nil {
		if keys := kb.Snapshot(); len(keys) > 0 {
			section.Keybinds = keys
		}
	}
	return section
}
