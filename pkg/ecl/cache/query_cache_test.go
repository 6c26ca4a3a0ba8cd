package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/snomedtools/goecl/pkg/ecl/conceptset"
	"github.com/snomedtools/goecl/pkg/ecl/result"
)

func newTestCache(t *testing.T) *QueryCache {
	t.Helper()
	c, err := New(Config{Capacity: 1000, TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestQueryCacheSetThenGet(t *testing.T) {
	c := newTestCache(t)
	want := result.NewSet(conceptset.Of(1, 2, 3))
	c.Set(42, want)
	c.backing.Wait()

	got, ok := c.Get(42)
	require.True(t, ok)
	require.Equal(t, want.SortedSlice(), got.SortedSlice())
}

func TestQueryCacheGetOrComputeCachesOnMiss(t *testing.T) {
	c := newTestCache(t)
	var calls atomic.Int32

	compute := func(context.Context) (result.Set, error) {
		calls.Add(1)
		return result.NewSet(conceptset.Of(73211009)), nil
	}

	v, hit, _, err := c.GetOrCompute(context.Background(), 1, compute)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, []uint64{73211009}, toUints(v))

	c.backing.Wait()
	v2, hit2, _, err := c.GetOrCompute(context.Background(), 1, compute)
	require.NoError(t, err)
	require.True(t, hit2)
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, v.SortedSlice(), v2.SortedSlice())
}

func toUints(s result.Set) []uint64 {
	out := make([]uint64, 0, s.Len())
	for _, id := range s.SortedSlice() {
		out = append(out, uint64(id))
	}
	return out
}
