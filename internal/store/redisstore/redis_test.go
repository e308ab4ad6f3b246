package redisstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/shopfloor/internal/store"
)

// testRedis connects to SHOPFLOOR_REDIS_ADDR or skips.
func testRedis(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("SHOPFLOOR_REDIS_ADDR")
	if addr == "" {
		t.Skip("SHOPFLOOR_REDIS_ADDR not set")
	}
	s, err := Dial(context.Background(), addr, "shopfloor-test:"+uuid.NewString()+":")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDecode_Missing(t *testing.T) {
	_, err := decode("ls", map[string]string{})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestDecode_Fields(t *testing.T) {
	d, err := decode("ls", map[string]string{
		fieldValue:     `{"a":1}`,
		fieldRevision:  "7",
		fieldUpdatedBy: "mehmet",
		fieldOrigin:    "tab-1",
		fieldUpdatedAt: "2026-01-02T03:04:05Z",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), d.Revision)
	assert.Equal(t, `{"a":1}`, string(d.Value))
	assert.Equal(t, "mehmet", d.UpdatedBy)
	assert.Equal(t, "tab-1", d.Origin)
	assert.Equal(t, 2026, d.UpdatedAt.Year())
}

func TestDecode_BadRevision(t *testing.T) {
	_, err := decode("ls", map[string]string{fieldRevision: "x"})
	assert.Error(t, err)
}

func TestStore_CompareAndSwap(t *testing.T) {
	s := testRedis(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "ls")
	require.ErrorIs(t, err, store.ErrNotFound)

	ok, err := s.CompareAndSwap(ctx, "ls", 0, []byte(`1`), store.WriteMeta{User: "u"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.CompareAndSwap(ctx, "ls", 0, []byte(`2`), store.WriteMeta{})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CompareAndSwap(ctx, "ls", 1, []byte(`3`), store.WriteMeta{})
	require.NoError(t, err)
	assert.True(t, ok)

	d, err := s.Get(ctx, "ls")
	require.NoError(t, err)
	assert.Equal(t, int64(2), d.Revision)
	assert.Equal(t, "3", string(d.Value))
}

func TestStore_Revision(t *testing.T) {
	s := testRedis(t)
	ctx := context.Background()

	rev, err := s.Revision(ctx, "ls")
	require.NoError(t, err)
	assert.Zero(t, rev)

	_, err = s.CompareAndSwap(ctx, "ls", 0, []byte(`1`), store.WriteMeta{})
	require.NoError(t, err)
	rev, err = s.Revision(ctx, "ls")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)
}
