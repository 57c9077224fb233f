package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s := NewStore("test-mod", zap.NewNop())
	require.NoError(t, s.Register(NewNumber("volume", 50, 0, 100, 5)))
	require.NoError(t, s.Register(NewBool("enabled", true)))
	require.NoError(t, s.Register(NewGroup("display",
		NewNumber("scale", 1, 0.5, 2, 0.5),
		NewChoice("theme", "dark", []string{"dark", "light"}),
	)))
	return s
}

func TestRegisterDuplicate(t *testing.T) {
	s := newTestStore(t)

	err := s.Register(NewBool("volume", false))
	assert.ErrorIs(t, err, ErrDuplicateOption)

	// Duplicate children within one group scope are rejected too.
	err = s.Register(NewGroup("audio",
		NewBool("mute", false),
		NewNumber("mute", 0, 0, 1, 1),
	))
	assert.ErrorIs(t, err, ErrDuplicateOption)

	// The same name in a different scope is fine.
	err = s.Register(NewGroup("video", NewBool("enabled", false)))
	assert.NoError(t, err)
}

func TestGetSetByPath(t *testing.T) {
	s := newTestStore(t)

	v, err := s.Get("display.theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", v.Text)

	require.NoError(t, s.Set("display.theme", ChoiceValue("light")))
	v, err = s.Get("display.theme")
	require.NoError(t, err)
	assert.Equal(t, "light", v.Text)

	_, err = s.Get("display.missing")
	assert.ErrorIs(t, err, ErrUnknownOption)
	_, err = s.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownOption)
}

func TestSetInvalidKeepsPriorValue(t *testing.T) {
	s := newTestStore(t)

	// volume is 0-100 step 5: 37 is off-step and must be rejected whole.
	err := s.Set("volume", NumberValue(37))
	require.ErrorIs(t, err, ErrInvalidValue)

	v, err := s.Get("volume")
	require.NoError(t, err)
	assert.Equal(t, 50.0, v.Number, "failed set must leave the stored value unchanged")
}

func TestSetGroupRejected(t *testing.T) {
	s := newTestStore(t)
	err := s.Set("display", BoolValue(true))
	assert.Error(t, err)
}

func TestChangeNotification(t *testing.T) {
	s := newTestStore(t)

	var events []ChangeEvent
	s.Subscribe(func(ev ChangeEvent) { events = append(events, ev) })

	require.NoError(t, s.Set("volume", NumberValue(80)))
	require.Error(t, s.Set("volume", NumberValue(81)), "invalid set fires nothing")

	require.Len(t, events, 1)
	assert.Equal(t, "test-mod", events[0].Mod)
	assert.Equal(t, "volume", events[0].Path)
	assert.Equal(t, 50.0, events[0].Old.Number)
	assert.Equal(t, 80.0, events[0].New.Number)
}

func TestNodeOnChange(t *testing.T) {
	s := NewStore("m", zap.NewNop())

	var got Value
	n := NewBool("flag", false).OnChange(func(_ *Node, v Value) { got = v })
	require.NoError(t, s.Register(n))

	require.NoError(t, s.Set("flag", BoolValue(true)))
	assert.True(t, got.Bool)
}

func TestNodeOnChangeMayReadTheStore(t *testing.T) {
	s := NewStore("m", zap.NewNop())
	require.NoError(t, s.Register(NewNumber("volume", 50, 0, 100, 5)))

	// Change callbacks routinely read sibling options; Set must not hold the
	// store lock while they run.
	var sibling Value
	muted := NewBool("muted", false).OnChange(func(*Node, Value) {
		v, err := s.Get("volume")
		assert.NoError(t, err)
		sibling = v
	})
	require.NoError(t, s.Register(muted))

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, s.Set("muted", BoolValue(true)))
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Set blocked: change callback ran under the store lock")
	}
	assert.Equal(t, 50.0, sibling.Number)
}

func TestNodeOnChangeMaySetSiblingOptions(t *testing.T) {
	s := NewStore("m", zap.NewNop())
	require.NoError(t, s.Register(NewNumber("volume", 50, 0, 100, 5)))

	muted := NewBool("muted", false).OnChange(func(_ *Node, v Value) {
		if v.Bool {
			require.NoError(t, s.Set("volume", NumberValue(0)))
		}
	})
	require.NoError(t, s.Register(muted))

	require.NoError(t, s.Set("muted", BoolValue(true)))
	v, err := s.Get("volume")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.Number)
}

func TestResetAll(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Set("volume", NumberValue(100)))
	require.NoError(t, s.Set("display.theme", ChoiceValue("light")))

	s.ResetAll()

	v, _ := s.Get("volume")
	assert.Equal(t, 50.0, v.Number)
	v, _ = s.Get("display.theme")
	assert.Equal(t, "dark", v.Text)
}

func TestVisibleSkipsHidden(t *testing.T) {
	s := NewStore("m", zap.NewNop())
	require.NoError(t, s.Register(NewBool("shown", false)))
	require.NoError(t, s.Register(NewString("stash", "{}").Hide()))

	visible := s.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "shown", visible[0].Name())

	// Hidden options still walk (and therefore persist).
	var paths []string
	s.Walk(func(path string, _ *Node) { paths = append(paths, path) })
	assert.Equal(t, []string{"shown", "stash"}, paths)
}

func TestWalkPaths(t *testing.T) {
	s := newTestStore(t)

	var paths []string
	s.Walk(func(path string, _ *Node) { paths = append(paths, path) })

	assert.Equal(t, []string{"volume", "enabled", "display.scale", "display.theme"}, paths)
}

func TestOwnerAttribution(t *testing.T) {
	s := newTestStore(t)

	n, err := s.Node("display.scale")
	require.NoError(t, err)
	assert.Equal(t, "test-mod", n.Owner())
}
