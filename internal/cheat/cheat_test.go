package cheat

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeBackingStore struct {
	values map[int]bool
}

func newFakeBackingStore() *fakeBackingStore {
	return &fakeBackingStore{values: make(map[int]bool)}
}

func (f *fakeBackingStore) Get(index int) bool   { return f.values[index] }
func (f *fakeBackingStore) Set(index int, v bool) { f.values[index] = v }

func TestState_Toggle(t *testing.T) {
	// Concrete(v) -> Queued(!v)
	assert.Equal(t, State{Queued: true, Value: true}, State{Queued: false, Value: false}.Toggle())
	// Queued(v) -> Concrete(!v), i.e. cancellation
	assert.Equal(t, State{Queued: false, Value: false}, State{Queued: true, Value: true}.Toggle())
}

func TestManager_ToggleThenTick_AppliesViaBackingStore(t *testing.T) {
	cheats := []Cheat{{Index: 0, Description: "test cheat", Stability: Stable}}
	backing := newFakeBackingStore()
	mgr := NewManager(cheats, nil, backing, "", false, testLogger())

	state, err := mgr.Toggle(0)
	require.NoError(t, err)
	assert.Equal(t, State{Queued: true, Value: true}, state)

	mgr.Tick()

	snap := mgr.Snapshot()
	assert.Equal(t, State{Queued: false, Value: true}, snap[0].State)
	assert.True(t, backing.Get(0))
}

func TestManager_ToggleCancellation(t *testing.T) {
	cheats := []Cheat{{Index: 0, Description: "test cheat", Stability: Stable}}
	backing := newFakeBackingStore()
	mgr := NewManager(cheats, nil, backing, "", false, testLogger())

	_, err := mgr.Toggle(0)
	require.NoError(t, err)

	state, err := mgr.Toggle(0)
	require.NoError(t, err)
	assert.Equal(t, State{Queued: false, Value: false}, state)

	mgr.Tick()
	assert.False(t, mgr.Snapshot()[0].State.Value)
}

func TestManager_ActivationFuncOverridesBackingValue(t *testing.T) {
	cheats := []Cheat{{Index: 0, Description: "spawn vehicle", Stability: Stable}}
	backing := newFakeBackingStore()
	activations := map[int]ActivationFunc{0: func() bool { return true }}
	mgr := NewManager(cheats, activations, backing, "", false, testLogger())

	_, err := mgr.Toggle(0)
	require.NoError(t, err)
	mgr.Tick()

	assert.True(t, mgr.Snapshot()[0].State.Value)
	// The activation func's return value, not the store, decided the
	// cheat's state here; the fake store was never written.
	assert.False(t, backing.Get(0))
}

func TestManager_PersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cheats.bin")

	cheats := make([]Cheat, NumCheats)
	for i := range cheats {
		cheats[i] = Cheat{Index: i, Stability: Stable}
	}
	backing := newFakeBackingStore()
	mgr := NewManager(cheats, nil, backing, path, true, testLogger())

	_, err := mgr.Toggle(7)
	require.NoError(t, err)
	mgr.Tick()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, NumCheats)
	assert.Equal(t, byte(1), data[7])

	backing2 := newFakeBackingStore()
	mgr2 := NewManager(cheats, nil, backing2, path, true, testLogger())
	require.NoError(t, mgr2.LoadPersisted())
	assert.True(t, backing2.Get(7))
	assert.False(t, backing2.Get(6))
}

func TestManager_LoadPersisted_RejectsMalformedLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cheats.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	mgr := NewManager(nil, nil, newFakeBackingStore(), path, true, testLogger())
	err := mgr.LoadPersisted()
	assert.Error(t, err)
}

func TestManager_LoadPersisted_RejectsNonBooleanBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cheats.bin")
	data := make([]byte, NumCheats)
	data[3] = 5
	require.NoError(t, os.WriteFile(path, data, 0o644))

	mgr := NewManager(nil, nil, newFakeBackingStore(), path, true, testLogger())
	err := mgr.LoadPersisted()
	assert.Error(t, err)
}

func TestManager_Reset(t *testing.T) {
	cheats := []Cheat{{Index: 0, Stability: Stable}}
	backing := newFakeBackingStore()
	mgr := NewManager(cheats, nil, backing, "", false, testLogger())

	_, err := mgr.Toggle(0)
	require.NoError(t, err)
	mgr.Tick()
	require.True(t, mgr.Snapshot()[0].State.Value)

	mgr.Reset()
	assert.Equal(t, State{}, mgr.Snapshot()[0].State)
}

func TestIndexNeverReassigned(t *testing.T) {
	cheats := []Cheat{{Index: 0}, {Index: 1}, {Index: 2}}
	mgr := NewManager(cheats, nil, newFakeBackingStore(), "", false, testLogger())

	for i, c := range mgr.Snapshot() {
		assert.Equal(t, i, c.Index)
	}
}
