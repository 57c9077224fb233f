// Package discovery finds mod descriptor documents under the mods directory
// and turns them into lifecycle mods. Descriptors declare metadata, options
// and keybinds; hook callbacks are code, so descriptors only name the
// functions a mod intends to hook and the mod's own registration code
// supplies the callbacks.
package discovery

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hexforge/modcore/internal/keybinds"
	"github.com/hexforge/modcore/internal/lifecycle"
	"github.com/hexforge/modcore/internal/options"
)

// Descriptor is the parsed form of a mod.yaml file.
type Descriptor struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Authors     []string `yaml:"authors"`
	Description string   `yaml:"description"`

	Options  []OptionSpec  `yaml:"options"`
	Keybinds []KeybindSpec `yaml:"keybinds"`

	// Hooks lists the native-function identifiers the mod intends to hook,
	// for display and auditing. Callbacks come from the mod's code.
	Hooks []string `yaml:"hooks"`
}

// OptionSpec declares one option node.
type OptionSpec struct {
	Name    string  `yaml:"name"`
	Kind    string  `yaml:"kind"`
	Default any     `yaml:"default"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Step    float64 `yaml:"step"`

	Choices  []string     `yaml:"choices"`
	Hidden   bool         `yaml:"hidden"`
	Children []OptionSpec `yaml:"children"`
}

// KeybindSpec declares one keybind.
type KeybindSpec struct {
	Name       string `yaml:"name"`
	Key        string `yaml:"key"`
	Rebindable *bool  `yaml:"rebindable"`
}

// Parse decodes and validates a descriptor document.
func Parse(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	if d.Name == "" {
		return nil, fmt.Errorf("descriptor has no name")
	}
	for i := range d.Options {
		if err := d.Options[i].validate(); err != nil {
			return nil, fmt.Errorf("mod %q: %w", d.Name, err)
		}
	}
	return &d, nil
}

// SemVersion parses the declared version. Bad versions are display-only,
// matching how the lifecycle treats them.
func (d *Descriptor) SemVersion() (*semver.Version, bool) {
	v, err := semver.NewVersion(d.Version)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (s *OptionSpec) validate() error {
	if s.Name == "" {
		return fmt.Errorf("option has no name")
	}
	switch options.Kind(s.Kind) {
	case options.KindBool, options.KindChoice, options.KindString:
		return nil
	case options.KindNumber:
		if s.Max <= s.Min {
			return fmt.Errorf("number option %q declares no usable range (min %g, max %g)",
				s.Name, s.Min, s.Max)
		}
		return nil
	case options.KindGroup:
		if len(s.Children) == 0 {
			return fmt.Errorf("group option %q has no children", s.Name)
		}
		for i := range s.Children {
			if err := s.Children[i].validate(); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("option %q has unknown kind %q", s.Name, s.Kind)
	}
}

// BuildMod constructs a lifecycle mod from the descriptor: an option store
// holding every declared node and a keybind set holding every declared bind.
// Keybind and hook callbacks are left nil for the mod's code to attach.
func (d *Descriptor) BuildMod(logger *zap.Logger) (*lifecycle.Mod, error) {
	store := options.NewStore(d.Name, logger)
	for i := range d.Options {
		node, err := d.Options[i].build()
		if err != nil {
			return nil, fmt.Errorf("mod %q: %w", d.Name, err)
		}
		if err := store.Register(node); err != nil {
			return nil, fmt.Errorf("mod %q: %w", d.Name, err)
		}
	}

	set := keybinds.NewSet(d.Name)
	for _, spec := range d.Keybinds {
		if spec.Name == "" {
			return nil, fmt.Errorf("mod %q: keybind has no name", d.Name)
		}
		bind := keybinds.New(spec.Name, spec.Key, nil)
		if spec.Rebindable != nil && !*spec.Rebindable {
			bind.Locked()
		}
		if err := set.Add(bind); err != nil {
			return nil, fmt.Errorf("mod %q: %w", d.Name, err)
		}
	}

	return &lifecycle.Mod{
		Name:        d.Name,
		Version:     d.Version,
		Authors:     append([]string(nil), d.Authors...),
		Description: d.Description,
		Options:     store,
		Keybinds:    set,
	}, nil
}

// build constructs the option node a spec declares, verifying the default
// satisfies the declared domain.
func (s *OptionSpec) build() (*options.Node, error) {
	var node *options.Node

	switch options.Kind(s.Kind) {
	case options.KindBool:
		def := false
		if s.Default != nil {
			b, ok := s.Default.(bool)
			if !ok {
				return nil, fmt.Errorf("option %q: default %v is not a bool", s.Name, s.Default)
			}
			def = b
		}
		node = options.NewBool(s.Name, def)

	case options.KindNumber:
		def := s.Min
		if s.Default != nil {
			n, ok := asFloat(s.Default)
			if !ok {
				return nil, fmt.Errorf("option %q: default %v is not a number", s.Name, s.Default)
			}
			def = n
		}
		step := s.Step
		if step == 0 {
			step = 1
		}
		node = options.NewNumber(s.Name, def, s.Min, s.Max, step)

	case options.KindChoice:
		if len(s.Choices) == 0 {
			return nil, fmt.Errorf("option %q: choice option declares no choices", s.Name)
		}
		def := s.Choices[0]
		if s.Default != nil {
			c, ok := s.Default.(string)
			if !ok {
				return nil, fmt.Errorf("option %q: default %v is not a string", s.Name, s.Default)
			}
			def = c
		}
		node = options.NewChoice(s.Name, def, s.Choices)

	case options.KindString:
		def := ""
		if s.Default != nil {
			str, ok := s.Default.(string)
			if !ok {
				return nil, fmt.Errorf("option %q: default %v is not a string", s.Name, s.Default)
			}
			def = str
		}
		node = options.NewString(s.Name, def)

	case options.KindGroup:
		children := make([]*options.Node, 0, len(s.Children))
		for i := range s.Children {
			child, err := s.Children[i].build()
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		node = options.NewGroup(s.Name, children...)

	default:
		return nil, fmt.Errorf("option %q has unknown kind %q", s.Name, s.Kind)
	}

	if node.Kind() != options.KindGroup {
		if err := node.Validate(node.Value()); err != nil {
			return nil, fmt.Errorf("option %q: default out of domain: %w", s.Name, err)
		}
	}
	if s.Hidden {
		node.Hide()
	}
	return node, nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
