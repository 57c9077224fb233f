package options

import (
	"fmt"
	"math"
)

// stepEpsilon absorbs float error when checking step alignment.
const stepEpsilon = 1e-9

// Node is a single named option (or group of options) owned by a mod.
// A node's value always satisfies its kind's domain constraints; mutation
// happens through the owning Store so validation cannot be bypassed.
type Node struct {
	name     string
	kind     Kind
	value    Value
	def      Value
	hidden   bool
	onChange func(*Node, Value)

	// Numeric constraints (KindNumber only).
	min, max, step float64
	conformant     bool

	// Legal values (KindChoice only).
	choices []string

	// Children (KindGroup only), in declaration order.
	children []*Node

	// Owning mod identity, set when registered into a store. Used for
	// attribution only.
	owner string
}

// NewBool creates a boolean option with the given default.
func NewBool(name string, def bool) *Node {
	v := BoolValue(def)
	return &Node{name: name, kind: KindBool, value: v, def: v, conformant: true}
}

// NewNumber creates a bounded numeric option. The step must be positive; a
// step which does not evenly divide the range marks the node non-conformant,
// which is surfaced at registration but does not make the option unusable.
func NewNumber(name string, def, min, max, step float64) *Node {
	v := NumberValue(def)
	n := &Node{
		name:  name,
		kind:  KindNumber,
		value: v,
		def:   v,
		min:   min,
		max:   max,
		step:  step,
	}
	n.conformant = step > 0 && onStep(max, min, step)
	return n
}

// NewChoice creates an option selecting one of a fixed set of strings.
func NewChoice(name string, def string, choices []string) *Node {
	v := ChoiceValue(def)
	return &Node{
		name:       name,
		kind:       KindChoice,
		value:      v,
		def:        v,
		choices:    append([]string(nil), choices...),
		conformant: true,
	}
}

// NewString creates a free-form string option.
func NewString(name string, def string) *Node {
	v := StringValue(def)
	return &Node{name: name, kind: KindString, value: v, def: v, conformant: true}
}

// NewGroup creates a structural node holding child options. Children keep
// declaration order; duplicate names are rejected at registration.
func NewGroup(name string, children ...*Node) *Node {
	return &Node{name: name, kind: KindGroup, children: children, conformant: true}
}

// Hide marks the node as not shown by the options menu. Hidden nodes still
// persist like any other; mods use them to stash programmatic state.
// Returns the node for chaining at declaration time.
func (n *Node) Hide() *Node {
	n.hidden = true
	return n
}

// OnChange sets a callback fired when the node's value changes through its
// store. Returns the node for chaining at declaration time.
func (n *Node) OnChange(fn func(*Node, Value)) *Node {
	n.onChange = fn
	return n
}

func (n *Node) Name() string  { return n.name }
func (n *Node) Kind() Kind    { return n.kind }
func (n *Node) Hidden() bool  { return n.hidden }
func (n *Node) Owner() string { return n.owner }

// Value returns the current value. Meaningless for groups.
func (n *Node) Value() Value { return n.value }

// Default returns the value the node was declared with.
func (n *Node) Default() Value { return n.def }

// Conformant reports whether the node's declared constraints are internally
// consistent (for numbers: step evenly divides the range).
func (n *Node) Conformant() bool { return n.conformant }

// Bounds returns min, max and step for numeric nodes.
func (n *Node) Bounds() (min, max, step float64) { return n.min, n.max, n.step }

// Choices returns the legal values for choice nodes.
func (n *Node) Choices() []string { return append([]string(nil), n.choices...) }

// Children returns the child nodes of a group, in declaration order.
func (n *Node) Children() []*Node { return n.children }

// Validate checks a candidate value against the node's kind and domain
// constraints without mutating anything.
func (n *Node) Validate(v Value) error {
	if n.kind == KindGroup {
		return fmt.Errorf("%w: group %q holds no value", ErrInvalidValue, n.name)
	}
	if v.Kind != n.kind {
		return fmt.Errorf("%w: option %q is %q, got %q", ErrKindMismatch, n.name, n.kind, v.Kind)
	}

	switch n.kind {
	case KindNumber:
		num := v.Number
		if num < n.min || num > n.max {
			return fmt.Errorf("%w: %g outside [%g, %g] for option %q",
				ErrInvalidValue, num, n.min, n.max, n.name)
		}
		if n.step > 0 && !onStep(num, n.min, n.step) {
			return fmt.Errorf("%w: %g not aligned to step %g for option %q",
				ErrInvalidValue, num, n.step, n.name)
		}
	case KindChoice:
		for _, c := range n.choices {
			if c == v.Text {
				return nil
			}
		}
		return fmt.Errorf("%w: %q is not a choice of option %q", ErrInvalidValue, v.Text, n.name)
	}

	return nil
}

// set stores a validated value and fires the node-level callback.
func (n *Node) set(v Value) {
	n.value = v
	if n.onChange != nil {
		n.onChange(n, v)
	}
}

// Reset returns the node (and, for groups, every descendant) to its default.
func (n *Node) Reset() {
	if n.kind == KindGroup {
		for _, c := range n.children {
			c.Reset()
		}
		return
	}
	n.value = n.def
}

// Encode returns the node's current value in portable form. Groups are
// structural and are encoded by walking their children.
func (n *Node) Encode() Encoded {
	return n.value.Encode()
}

// Decode validates a portable representation against the node's declared
// kind and domain, then stores it. On any failure the node is left at its
// current value; callers fall back to the default.
func (n *Node) Decode(e Encoded) error {
	v, err := DecodeValue(e, n.kind)
	if err != nil {
		return err
	}
	if err := n.Validate(v); err != nil {
		return err
	}
	n.set(v)
	return nil
}

func onStep(v, base, step float64) bool {
	steps := (v - base) / step
	_, frac := math.Modf(steps)
	return frac < stepEpsilon || frac > 1-stepEpsilon
}
