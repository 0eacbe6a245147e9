package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jiraharvest/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "state", "checkpoints.json"), logger.NewTestLogger())
}

func TestLoadMissingFile(t *testing.T) {
	store := newTestStore(t)

	state, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	state := State{
		"SPARK": {Cursor: 42, Pending: 3, TotalFetched: 42, LastStatus: StatusSuccess},
		"HIVE":  {Cursor: 7, Pending: 0, TotalFetched: 7, LastStatus: StatusFailed},
	}
	require.NoError(t, store.Save(state))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, 42, loaded["SPARK"].Cursor)
	assert.Equal(t, 3, loaded["SPARK"].Pending)
	assert.Equal(t, StatusSuccess, loaded["SPARK"].LastStatus)
	assert.Equal(t, StatusFailed, loaded["HIVE"].LastStatus)
}

func TestSaveIsAtomic(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(State{"SPARK": {Cursor: 1}}))
	require.NoError(t, store.Save(State{"SPARK": {Cursor: 2}}))

	// No temp file should survive a successful save
	_, err := os.Stat(store.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, loaded["SPARK"].Cursor)
}

func TestLoadCorruptFileStartsFresh(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0755))
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0644))

	state, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestCheckpointFieldNames(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(State{
		"SPARK": {Cursor: 5, Pending: 2, TotalFetched: 5, LastStatus: StatusRunning},
	}))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	var raw map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	cp := raw["SPARK"]
	assert.Contains(t, cp, "cursor")
	assert.Contains(t, cp, "pending")
	assert.Contains(t, cp, "total_fetched")
	assert.Contains(t, cp, "last_status")
	assert.Contains(t, cp, "updated_at")
	assert.Equal(t, "running", cp["last_status"])
}

func TestEnsure(t *testing.T) {
	state := State{}

	cp := Ensure(state, "SPARK")
	require.NotNil(t, cp)
	assert.Equal(t, 0, cp.Cursor)
	assert.Equal(t, 0, cp.Pending)
	assert.Equal(t, StatusUnknown, cp.LastStatus)

	// A second call returns the same entry, not a reset one
	cp.Cursor = 9
	again := Ensure(state, "SPARK")
	assert.Equal(t, 9, again.Cursor)
}

func TestAddPendingPersistsImmediately(t *testing.T) {
	store := newTestStore(t)

	state, err := store.Load()
	require.NoError(t, err)

	require.NoError(t, store.AddPending(state, "SPARK", 100))
	assert.Equal(t, 100, state["SPARK"].Pending)

	// A fresh load must already see the obligation
	reloaded, err := store.Load()
	require.NoError(t, err)
	require.Contains(t, reloaded, "SPARK")
	assert.Equal(t, 100, reloaded["SPARK"].Pending)
}

func TestAddPendingAccumulates(t *testing.T) {
	store := newTestStore(t)
	state := State{}

	require.NoError(t, store.AddPending(state, "SPARK", 10))
	require.NoError(t, store.AddPending(state, "SPARK", 5))
	assert.Equal(t, 15, state["SPARK"].Pending)
}

func TestAddPendingRejectsNegative(t *testing.T) {
	store := newTestStore(t)
	state := State{}

	err := store.AddPending(state, "SPARK", -1)
	require.Error(t, err)
	assert.NotContains(t, state, "SPARK")
}

func TestUpdateStampsTime(t *testing.T) {
	store := newTestStore(t)
	state := State{"SPARK": {Cursor: 1}}

	require.True(t, state["SPARK"].UpdatedAt.IsZero())
	require.NoError(t, store.Update(state, "SPARK"))
	assert.False(t, state["SPARK"].UpdatedAt.IsZero())
}

func TestRemove(t *testing.T) {
	store := newTestStore(t)
	state := State{
		"SPARK": {Cursor: 1},
		"HIVE":  {Cursor: 2},
	}
	require.NoError(t, store.Save(state))

	require.NoError(t, store.Remove(state, "SPARK", "NOPE"))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.NotContains(t, loaded, "SPARK")
	assert.Contains(t, loaded, "HIVE")
}
