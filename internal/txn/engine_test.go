package txn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/shopfloor/internal/store"
)

var (
	counters = Collection[map[string]int]{
		Key:     "counters",
		Default: func() map[string]int { return map[string]int{} },
	}
	names = Collection[[]string]{
		Key:     "names",
		Default: func() []string { return []string{} },
	}
)

// flakyAdapter wraps a Memory store. It can lose the next N CAS calls to a
// simulated rival writer, or fail them outright.
type flakyAdapter struct {
	*store.Memory
	loseNext atomic.Int32
	failCAS  error
	failGet  error
	casCalls atomic.Int32
}

func newFlaky() *flakyAdapter {
	return &flakyAdapter{Memory: store.NewMemory()}
}

func (f *flakyAdapter) Get(ctx context.Context, key string) (store.Document, error) {
	if f.failGet != nil {
		return store.Document{}, f.failGet
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyAdapter) CompareAndSwap(ctx context.Context, key string, expected int64, value []byte, meta store.WriteMeta) (bool, error) {
	f.casCalls.Add(1)
	if f.failCAS != nil {
		return false, f.failCAS
	}
	if f.loseNext.Load() > 0 {
		f.loseNext.Add(-1)
		return false, nil
	}
	return f.Memory.CompareAndSwap(ctx, key, expected, value, meta)
}

func testEngine(t *testing.T, a store.Adapter, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithRetry(5, time.Millisecond), WithOrigin("test"), WithUser("tester")}, opts...)
	return New(a, opts...)
}

func inc(key string) func(map[string]int) (map[string]int, error) {
	return func(m map[string]int) (map[string]int, error) {
		m[key]++
		return m, nil
	}
}

func TestApply_DefaultWhenMissing(t *testing.T) {
	e := testEngine(t, store.NewMemory())
	ctx := context.Background()

	committed, err := Apply(ctx, e, counters, inc("a"))
	require.NoError(t, err)
	assert.True(t, committed)

	got, err := Get(ctx, e, counters)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1}, got)
}

func TestApply_NoChangeIsNoop(t *testing.T) {
	a := newFlaky()
	e := testEngine(t, a)
	ctx := context.Background()

	_, err := Apply(ctx, e, counters, inc("a"))
	require.NoError(t, err)
	before, _ := a.Get(ctx, DefaultRootKey)
	calls := a.casCalls.Load()

	committed, err := Apply(ctx, e, counters, func(m map[string]int) (map[string]int, error) {
		return m, nil
	})
	require.NoError(t, err)
	assert.False(t, committed)
	assert.Equal(t, calls, a.casCalls.Load(), "no write should be attempted")

	after, _ := a.Get(ctx, DefaultRootKey)
	assert.Equal(t, before.Revision, after.Revision)
}

func TestApply_MissingCollectionLeftAsDefaultIsNoop(t *testing.T) {
	a := newFlaky()
	e := testEngine(t, a)

	committed, err := Apply(context.Background(), e, names, func(v []string) ([]string, error) {
		return v, nil
	})
	require.NoError(t, err)
	assert.False(t, committed)
	assert.Zero(t, a.casCalls.Load())
}

func TestApply_UpdaterErrorAborts(t *testing.T) {
	a := newFlaky()
	e := testEngine(t, a)
	boom := errors.New("boom")

	committed, err := Apply(context.Background(), e, counters, func(map[string]int) (map[string]int, error) {
		return nil, boom
	})
	assert.False(t, committed)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, a.casCalls.Load())
}

func TestApply_RetriesOnConflict(t *testing.T) {
	a := newFlaky()
	a.loseNext.Store(2)
	e := testEngine(t, a)
	ctx := context.Background()

	calls := 0
	committed, err := Apply(ctx, e, counters, func(m map[string]int) (map[string]int, error) {
		calls++
		m["a"]++
		return m, nil
	})
	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, 3, calls, "updater re-runs on every attempt")

	got, _ := Get(ctx, e, counters)
	assert.Equal(t, 1, got["a"])
}

func TestApply_ExhaustsRetries(t *testing.T) {
	a := newFlaky()
	a.loseNext.Store(100)
	e := testEngine(t, a, WithRetry(3, time.Millisecond))

	committed, err := Apply(context.Background(), e, counters, inc("a"))
	assert.False(t, committed)
	assert.ErrorIs(t, err, ErrConcurrencyExhausted)

	_, getErr := a.Memory.Get(context.Background(), DefaultRootKey)
	assert.ErrorIs(t, getErr, store.ErrNotFound, "nothing may be written")
}

func TestApply_StoreFailureIsNotRetried(t *testing.T) {
	a := newFlaky()
	a.failCAS = errors.New("disk on fire")
	e := testEngine(t, a)

	_, err := Apply(context.Background(), e, counters, inc("a"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, int32(1), a.casCalls.Load())
}

func TestApply_ReadFailure(t *testing.T) {
	a := newFlaky()
	a.failGet = errors.New("connection refused")
	e := testEngine(t, a)

	_, err := Apply(context.Background(), e, counters, inc("a"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestApplyAll_Atomic(t *testing.T) {
	a := newFlaky()
	e := testEngine(t, a)
	ctx := context.Background()

	_, err := e.ApplyAll(ctx,
		Update(counters, inc("a")),
		Update(names, func(v []string) ([]string, error) { return append(v, "first"), nil }),
	)
	require.NoError(t, err)

	// Second call: first updater succeeds, CAS fails hard. Neither collection moves.
	a.failCAS = errors.New("write rejected")
	_, err = e.ApplyAll(ctx,
		Update(counters, inc("a")),
		Update(names, func(v []string) ([]string, error) { return append(v, "second"), nil }),
	)
	require.Error(t, err)
	a.failCAS = nil

	gotCounters, _ := Get(ctx, e, counters)
	gotNames, _ := Get(ctx, e, names)
	assert.Equal(t, 1, gotCounters["a"])
	assert.Equal(t, []string{"first"}, gotNames)

	// An updater error in the middle also aborts the whole unit.
	boom := errors.New("boom")
	_, err = e.ApplyAll(ctx,
		Update(counters, inc("a")),
		Update(names, func([]string) ([]string, error) { return nil, boom }),
	)
	assert.ErrorIs(t, err, boom)
	gotCounters, _ = Get(ctx, e, counters)
	assert.Equal(t, 1, gotCounters["a"])
}

func TestApplyAll_OnlyChangedCollectionsRewritten(t *testing.T) {
	a := store.NewMemory()
	e := testEngine(t, a)
	ctx := context.Background()

	_, err := e.ApplyAll(ctx,
		Update(counters, inc("a")),
		Update(names, func(v []string) ([]string, error) { return append(v, "x"), nil }),
	)
	require.NoError(t, err)
	snap1, _ := e.Snapshot(ctx)

	time.Sleep(2 * time.Millisecond)
	_, err = e.ApplyAll(ctx,
		Update(counters, inc("a")),
		Update(names, func(v []string) ([]string, error) { return v, nil }),
	)
	require.NoError(t, err)
	snap2, _ := e.Snapshot(ctx)

	assert.Equal(t, snap1.Root["names"].UpdatedAt, snap2.Root["names"].UpdatedAt)
	assert.True(t, snap2.Root["counters"].UpdatedAt.After(snap1.Root["counters"].UpdatedAt))
	assert.Equal(t, "tester", snap2.Root["counters"].User)
	assert.Equal(t, "test", snap2.Root["counters"].Origin)
}

func TestRun_ReadSeesOwnWrites(t *testing.T) {
	e := testEngine(t, store.NewMemory())
	ctx := context.Background()

	committed, err := e.Run(ctx, func(tx *Tx) error {
		if err := Write(tx, names, []string{"a"}); err != nil {
			return err
		}
		v, err := Read(tx, names)
		if err != nil {
			return err
		}
		assert.Equal(t, []string{"a"}, v)
		assert.Equal(t, []string{"names"}, tx.Changed())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, committed)
}

func TestRun_UserFromContext(t *testing.T) {
	e := testEngine(t, store.NewMemory())
	ctx := ContextWithUser(context.Background(), "zeynep")

	_, err := Apply(ctx, e, counters, inc("a"))
	require.NoError(t, err)

	snap, _ := e.Snapshot(ctx)
	assert.Equal(t, "zeynep", snap.Root["counters"].User)
}

func TestApply_ConcurrentNoLostUpdates(t *testing.T) {
	a := store.NewMemory()
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	var ok atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := New(a, WithRetry(10, time.Millisecond))
			committed, err := Apply(ctx, e, counters, inc("n"))
			if err == nil && committed {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	got, err := Get(ctx, New(a), counters)
	require.NoError(t, err)
	assert.Equal(t, int(ok.Load()), got["n"], "every committed increment is visible")
	assert.Positive(t, got["n"])
}

func TestGet_ReadsOneCollection(t *testing.T) {
	a := newFlaky()
	e := testEngine(t, a)
	ctx := context.Background()

	got, err := Get(ctx, e, names)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got, "missing collection reads as its default")

	_, err = Apply(ctx, e, names, func(s []string) ([]string, error) { return append(s, "ayse"), nil })
	require.NoError(t, err)
	got, err = Get(ctx, e, names)
	require.NoError(t, err)
	assert.Equal(t, []string{"ayse"}, got)

	a.failGet = errors.New("disk gone")
	_, err = Get(ctx, e, names)
	assert.Error(t, err)
}
