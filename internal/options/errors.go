package options

import "errors"

var (
	// ErrDuplicateOption is returned when registering an option whose name
	// collides with a sibling in the same scope.
	ErrDuplicateOption = errors.New("duplicate option")

	// ErrInvalidValue is returned when a value fails its kind's domain
	// constraints. The option keeps its prior value.
	ErrInvalidValue = errors.New("invalid value")

	// ErrKindMismatch is returned when decoding a representation whose kind
	// tag does not match the option's declared kind.
	ErrKindMismatch = errors.New("kind mismatch")

	// ErrUnknownOption is returned when a path does not resolve to a node.
	ErrUnknownOption = errors.New("unknown option")
)
