package sqlitestore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/binx"
)

type order struct {
	ID    int64
	Items []string
}

func init() {
	binx.MustRegisterType("sqlite.order", order{})
}

func newTestStore(t *testing.T) *FrameStore {
	t.Helper()
	store, err := Open(context.Background(), Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("Warning: Failed to close test database: %v", err)
		}
	})
	return store
}

func TestFrameStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.Put(ctx, order{ID: 1, Items: []string{"tea"}})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, order{ID: 1, Items: []string{"tea"}}, got)

	raw, err := store.GetRaw(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, byte(binx.TagStart), raw[0])
}

func TestFrameStorePutIDReplaces(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.PutID(ctx, "fixed", "v1"))
	require.NoError(t, store.PutID(ctx, "fixed", "v2"))

	got, err := store.Get(ctx, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)

	frames, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, frames, 1)

	assert.ErrorIs(t, store.PutID(ctx, "", "x"), binx.ErrInvalidConfiguration)
}

func TestFrameStoreUnsupportedValue(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Put(ctx, struct{ N int }{1})
	require.Error(t, err)
	assert.True(t, binx.IsProgrammingError(err))

	frames, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestFrameStoreChecksum(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.Put(ctx, int32(42))
	require.NoError(t, err)

	// flip the value byte of INT 42
	_, err = store.db.ExecContext(ctx, `UPDATE binx_frames SET payload = ? WHERE id = ?`,
		[]byte{0x01, 0x06, 43, 0, 0, 0, 0x02}, id)
	require.NoError(t, err)

	_, err = store.Get(ctx, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
	assert.True(t, binx.IsParseError(err))
}

func TestFrameStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.Put(ctx, true)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, id))

	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrFrameNotFound)
	assert.ErrorIs(t, store.Delete(ctx, id), ErrFrameNotFound)
}

func TestFrameStoreList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.Put(ctx, order{ID: 1})
	require.NoError(t, err)
	_, err = store.Put(ctx, "note")
	require.NoError(t, err)
	third, err := store.Put(ctx, &order{ID: 3})
	require.NoError(t, err)
	_, err = store.Put(ctx, nil)
	require.NoError(t, err)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, first, all[0].ID)
	assert.Equal(t, "string", all[1].TypeName)
	assert.Equal(t, "", all[3].TypeName)
	for _, fi := range all {
		assert.Positive(t, fi.Size)
		assert.False(t, fi.CreatedAt.IsZero())
	}

	orders, err := store.List(ctx, "sqlite.order")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, first, orders[0].ID)
	assert.Equal(t, third, orders[1].ID)
}

func TestFrameStoreOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "frames.db")

	store, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	id, err := store.Put(ctx, []int64{1, 2})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, got)
}

func TestNewWithExistingDB(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	store, err := New(ctx, db, Config{})
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, db.PingContext(ctx), "store must not close a borrowed database")

	_, err = New(ctx, nil, Config{})
	assert.ErrorIs(t, err, binx.ErrInvalidConfiguration)
}
