package internaldefs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterNamesAreUniqueAndSuffixed(t *testing.T) {
	seen := map[string]bool{}
	for _, def := range CounterDefs {
		require.True(t, strings.HasSuffix(def.Name, "_total"), def.Name)
		require.False(t, seen[def.Name], def.Name)
		require.NotEmpty(t, def.Help)
		seen[def.Name] = true
	}
}

func TestBucketTables(t *testing.T) {
	require.Len(t, HistogramBoundSuffix, len(HistogramUpperBounds)+1)

	raw := NormalizeBuckets([]uint64{1, 2, 3})
	require.Equal(t, [8]uint64{1, 2, 3}, raw)
	require.Equal(t, [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}, CumulativeBuckets(raw))
}
