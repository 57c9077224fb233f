package hooks

// Call is the transient state of one native-call dispatch. It carries the
// (possibly rewritten) argument set and the current return value as the call
// moves through the pre phase, the native call, and the post phase.
type Call struct {
	// Identifier is the hooked native function's stable name.
	Identifier string

	// Args is the call's named argument set. Pre-hooks may mutate entries;
	// later hooks and the native call observe the mutation.
	Args map[string]any

	ret            any
	shortCircuited bool
}

// Return reports the call's current return value: the short-circuit value,
// the native result, or the latest post-hook override.
func (c *Call) Return() any { return c.ret }

// ShortCircuited reports whether a pre-hook requested skipping the native
// call.
func (c *Call) ShortCircuited() bool { return c.shortCircuited }

// ShortCircuit asks the dispatcher to skip the native call and use the given
// return value. Only meaningful from a pre-hook; once accepted, the remaining
// pre-hooks are skipped and dispatch moves to the post phase.
func (c *Call) ShortCircuit(ret any) {
	c.shortCircuited = true
	c.ret = ret
}

// OverrideReturn replaces the current return value. Meaningful from a
// post-hook; when several post-hooks override, the last one wins.
func (c *Call) OverrideReturn(ret any) {
	c.ret = ret
}
