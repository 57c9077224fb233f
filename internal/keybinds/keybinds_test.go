package keybinds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAddRejectsDuplicateIdentifiers(t *testing.T) {
	set := NewSet("hud-mod")

	require.NoError(t, set.Add(New("toggle", "F5", nil)))
	err := set.Add(New("toggle", "F6", nil))
	assert.Error(t, err)
	assert.Len(t, set.Binds(), 1)
}

func TestRebindAndReset(t *testing.T) {
	k := New("toggle", "F5", nil)

	k.Rebind("F9")
	assert.Equal(t, "F9", k.Key())
	assert.Equal(t, "F5", k.DefaultKey())

	k.Reset()
	assert.Equal(t, "F5", k.Key())
}

func TestLockedBindIgnoresRebind(t *testing.T) {
	k := New("debug", "F12", nil).Locked()

	k.Rebind("F1")
	assert.Equal(t, "F12", k.Key())
	assert.False(t, k.Rebindable())
}

func TestSnapshotSkipsLockedBinds(t *testing.T) {
	set := NewSet("hud-mod")
	require.NoError(t, set.Add(New("toggle", "F5", nil)))
	require.NoError(t, set.Add(New("debug", "F12", nil).Locked()))

	snap := set.Snapshot()
	assert.Equal(t, map[string]string{"toggle": "F5"}, snap)
}

func TestApplyRestoresKnownBindsOnly(t *testing.T) {
	set := NewSet("hud-mod")
	require.NoError(t, set.Add(New("toggle", "F5", nil)))

	set.Apply(map[string]string{
		"toggle":  "F9",
		"retired": "F2", // no longer declared, ignored
	})

	k, ok := set.Get("toggle")
	require.True(t, ok)
	assert.Equal(t, "F9", k.Key())
	_, ok = set.Get("retired")
	assert.False(t, ok)
}

func TestResetAllRestoresDefaults(t *testing.T) {
	set := NewSet("hud-mod")
	require.NoError(t, set.Add(New("toggle", "F5", nil)))
	require.NoError(t, set.Add(New("menu", "Insert", nil)))

	set.Apply(map[string]string{"toggle": "F9", "menu": "Home"})
	set.ResetAll()

	snap := set.Snapshot()
	assert.Equal(t, map[string]string{"toggle": "F5", "menu": "Insert"}, snap)
}

func TestDispatcherRoutesMatchingKeyAndEvent(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	var events []InputEvent
	set := NewSet("hud-mod")
	require.NoError(t, set.Add(New("toggle", "F5", func(e InputEvent) Decision {
		events = append(events, e)
		return Pass
	})))
	d.EnableSet(set)

	// Default filter is EventReleased.
	d.HandleInput("F5", EventPressed)
	d.HandleInput("F5", EventReleased)
	d.HandleInput("F6", EventReleased)

	assert.Equal(t, []InputEvent{EventReleased}, events)
}

func TestAnyEventFilterSeesEveryTransition(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	count := 0
	set := NewSet("hud-mod")
	require.NoError(t, set.Add(New("hold", "Shift", func(InputEvent) Decision {
		count++
		return Pass
	}).Filter(AnyEvent)))
	d.EnableSet(set)

	d.HandleInput("Shift", EventPressed)
	d.HandleInput("Shift", EventRepeat)
	d.HandleInput("Shift", EventReleased)

	assert.Equal(t, 3, count)
}

func TestSingleBlockWinsAcrossSets(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	passing := NewSet("pass-mod")
	require.NoError(t, passing.Add(New("a", "F5", func(InputEvent) Decision { return Pass })))
	blocking := NewSet("block-mod")
	require.NoError(t, blocking.Add(New("b", "F5", func(InputEvent) Decision { return Block })))
	d.EnableSet(passing)
	d.EnableSet(blocking)

	assert.Equal(t, Block, d.HandleInput("F5", EventReleased))

	d.DisableSet("block-mod")
	assert.Equal(t, Pass, d.HandleInput("F5", EventReleased))
}

func TestDisabledSetReceivesNothing(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	fired := false
	set := NewSet("hud-mod")
	require.NoError(t, set.Add(New("toggle", "F5", func(InputEvent) Decision {
		fired = true
		return Pass
	})))
	d.EnableSet(set)
	d.DisableSet("hud-mod")

	d.HandleInput("F5", EventReleased)
	assert.False(t, fired)
}

func TestUnboundKeyNeverFires(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	fired := false
	set := NewSet("hud-mod")
	bind := New("toggle", "F5", func(InputEvent) Decision {
		fired = true
		return Pass
	})
	require.NoError(t, set.Add(bind))
	bind.Rebind("")
	d.EnableSet(set)

	d.HandleInput("F5", EventReleased)
	d.HandleInput("", EventReleased)
	assert.False(t, fired)
}

func TestPanickingCallbackIsContained(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	set := NewSet("broken-mod")
	require.NoError(t, set.Add(New("toggle", "F5", func(InputEvent) Decision {
		panic("bind bug")
	})))
	healthy := NewSet("healthy-mod")
	ran := false
	require.NoError(t, healthy.Add(New("toggle", "F5", func(InputEvent) Decision {
		ran = true
		return Block
	})))
	d.EnableSet(set)
	d.EnableSet(healthy)

	decision := d.HandleInput("F5", EventReleased)
	assert.True(t, ran, "a panicking bind must not starve other mods")
	assert.Equal(t, Block, decision)
}
