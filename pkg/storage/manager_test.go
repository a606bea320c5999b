package storage

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *StorageManager {
	t.Helper()
	sm, err := New(DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { sm.Shutdown() })
	return sm
}

func TestManagerCreateAndInsertGet(t *testing.T) {
	sm := newTestManager(t)
	require.NoError(t, sm.CreateContainer(1))

	id, err := sm.InsertValue(1, []byte("row-a"))
	require.NoError(t, err)

	got, err := sm.GetValue(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("row-a"), got)
}

func TestManagerCreateContainerTwiceFails(t *testing.T) {
	sm := newTestManager(t)
	require.NoError(t, sm.CreateContainer(1))
	assert.ErrorIs(t, sm.CreateContainer(1), ErrContainerExists)
}

func TestManagerInsertUnknownContainerFails(t *testing.T) {
	sm := newTestManager(t)
	_, err := sm.InsertValue(99, []byte("x"))
	assert.ErrorIs(t, err, ErrContainerNotFound)
}

func TestManagerInsertValueTooLarge(t *testing.T) {
	sm := newTestManager(t)
	require.NoError(t, sm.CreateContainer(1))
	assert.PanicsWithValue(t, ErrValueTooLarge, func() { sm.InsertValue(1, make([]byte, PageSize+1)) })
}

func TestManagerDeleteIsNoopOnMissing(t *testing.T) {
	sm := newTestManager(t)
	require.NoError(t, sm.CreateContainer(1))
	assert.NoError(t, sm.DeleteValue(ValueID{ContainerID: 1, PageID: 0, SlotID: 0}))
}

func TestManagerUpdateValue(t *testing.T) {
	sm := newTestManager(t)
	require.NoError(t, sm.CreateContainer(1))

	id, err := sm.InsertValue(1, []byte("old"))
	require.NoError(t, err)

	newID, err := sm.UpdateValue(id, []byte("new-and-longer"))
	require.NoError(t, err)

	got, err := sm.GetValue(newID)
	require.NoError(t, err)
	assert.Equal(t, []byte("new-and-longer"), got)

	_, err = sm.GetValue(id)
	if newID != id {
		assert.Error(t, err)
	}
}

func TestManagerRemoveContainerIsIdempotent(t *testing.T) {
	sm := newTestManager(t)
	require.NoError(t, sm.CreateContainer(1))
	require.NoError(t, sm.RemoveContainer(1))
	assert.NoError(t, sm.RemoveContainer(1))
}

func TestManagerIteratorVisitsAllInserted(t *testing.T) {
	sm := newTestManager(t)
	require.NoError(t, sm.CreateContainer(1))

	want := []string{"a", "b", "c"}
	for _, v := range want {
		_, err := sm.InsertValue(1, []byte(v))
		require.NoError(t, err)
	}

	it, err := sm.Iterator(1)
	require.NoError(t, err)
	defer it.Close()

	var got []string
	for {
		bytes, _, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, string(bytes))
	}
	assert.ElementsMatch(t, want, got)
}

func TestManagerPersistsContainerMapAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	sm, err := New(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, sm.CreateContainer(1))

	id, err := sm.InsertValue(1, []byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, sm.Shutdown())

	reopened, err := New(DefaultConfig(dir))
	require.NoError(t, err)
	defer reopened.Shutdown()

	got, err := reopened.GetValue(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)
}

func TestManagerResetClearsState(t *testing.T) {
	sm := newTestManager(t)
	require.NoError(t, sm.CreateContainer(1))
	_, err := sm.InsertValue(1, []byte("gone"))
	require.NoError(t, err)

	require.NoError(t, sm.Reset())

	_, err = sm.InsertValue(1, []byte("x"))
	assert.ErrorIs(t, err, ErrContainerNotFound)
}

func TestManagerCompressionRoundTrip(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.Compression = "zstd"
	sm, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sm.Shutdown() })

	require.NoError(t, sm.CreateContainer(1))
	id, err := sm.InsertValue(1, []byte("compressed-row"))
	require.NoError(t, err)

	got, err := sm.GetValue(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("compressed-row"), got)

	assert.Equal(t, "zstd", sm.Stats()["compression"])
}

func TestManagerCompressionPersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.Compression = "snappy"
	sm, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, sm.CreateContainer(1))

	id, err := sm.InsertValue(1, []byte("snappy-compressed"))
	require.NoError(t, err)
	require.NoError(t, sm.Shutdown())

	reopened, err := New(cfg)
	require.NoError(t, err)
	defer reopened.Shutdown()

	got, err := reopened.GetValue(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("snappy-compressed"), got)
}

func TestManagerUnknownCompressionAlgorithmFails(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.Compression = "bogus"
	sm, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sm.Shutdown() })

	assert.Error(t, sm.CreateContainer(1))
}

func TestNewTempManagerSelfCleans(t *testing.T) {
	sm, err := NewTemp()
	require.NoError(t, err)
	dir := sm.storageDir

	require.NoError(t, sm.CreateContainer(1))
	require.NoError(t, sm.Shutdown())

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}
