package digests

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigestMapAddAndQuantile(t *testing.T) {
	dm := NewDigestMap()

	_, ok := dm.Quantile("missing", 0.5)
	require.False(t, ok)

	for i := 1; i <= 100; i++ {
		dm.Add("hierarchy", float64(i))
	}

	q, ok := dm.Quantile("hierarchy", 0.5)
	require.True(t, ok)
	require.InDelta(t, 50, q, 5)

	cdf, ok := dm.CDF("hierarchy", 50)
	require.True(t, ok)
	require.Greater(t, cdf, 0.0)
}

func TestDigestMapConcurrentAdd(t *testing.T) {
	dm := NewDigestMap()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			dm.Add("concurrent", float64(v))
		}(i)
	}
	wg.Wait()

	_, ok := dm.Quantile("concurrent", 0.9)
	require.True(t, ok)
}
