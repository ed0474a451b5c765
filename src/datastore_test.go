package dirminify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := OpenBadgerStore("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore_EmptyLoad(t *testing.T) {
	store := openTestBadgerStore(t)
	fm := store.Load(context.Background())
	require.NotNil(t, fm)
	assert.Equal(t, 0, fm.Len())
}

func TestBadgerStore_PersistAndLoad(t *testing.T) {
	ctx := context.Background()
	store := openTestBadgerStore(t)

	fm := NewFingerprintMap()
	fm.Check("a.js", []byte("a"))
	fm.Check("sub/deep/c.js", []byte("c"))
	require.NoError(t, store.Persist(ctx, fm))

	assert.Equal(t, fm.Snapshot(), store.Load(ctx).Snapshot())

	raw, err := IterateWithPrefix(store.db, hashKeyPrefix)
	require.NoError(t, err)
	assert.Equal(t, Md5Sum([]byte("c")), raw["sub/deep/c.js"])
}

func TestBadgerStore_PersistOverwrites(t *testing.T) {
	ctx := context.Background()
	store := openTestBadgerStore(t)

	require.NoError(t, store.Persist(ctx, NewFingerprintMapFrom(map[string]string{"old.js": "1", "keep.js": "2"})))
	require.NoError(t, store.Persist(ctx, NewFingerprintMapFrom(map[string]string{"keep.js": "3"})))

	assert.Equal(t, map[string]string{"keep.js": "3"}, store.Load(ctx).Snapshot())
}

func TestBadgerStore_OnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := OpenBadgerStore(dir, false)
	require.NoError(t, err)
	require.NoError(t, store.Persist(ctx, NewFingerprintMapFrom(map[string]string{"a.js": "1"})))
	require.NoError(t, store.Close())

	reopened, err := OpenBadgerStore(dir, false)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, map[string]string{"a.js": "1"}, reopened.Load(ctx).Snapshot())
}
