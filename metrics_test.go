package bedrud

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	require.Zero(t, m.Value(MetricLoginSuccess))
	require.Empty(t, m.Snapshot().Counters)
}

func TestMetricsNilIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricRefreshLatency, time.Millisecond)

	require.Zero(t, m.Value(MetricLoginSuccess))
	require.False(t, m.Enabled())
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)

	require.Equal(t, uint64(3), m.Value(MetricLoginSuccess))
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, uint64(goroutines*perG), m.Value(MetricRefreshSuccess))
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}
	for _, d := range observations {
		m.Observe(MetricRefreshLatency, d)
	}

	buckets := m.Snapshot().Histograms[MetricRefreshLatency]
	require.Len(t, buckets, 8)
	for i, v := range buckets {
		require.Equalf(t, uint64(1), v, "bucket %d", i)
	}
}

func TestMetricsObserveIgnoresCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	require.NotContains(t, snap.Histograms, MetricLoginSuccess)
	require.Equal(t, make([]uint64, 8), snap.Histograms[MetricRefreshLatency])
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginFailure)
	m.Inc(MetricLoginFailure)
	m.Observe(MetricRefreshLatency, 2*time.Millisecond)

	snap := m.Snapshot()

	require.Equal(t, uint64(1), snap.Counters[MetricLoginSuccess])
	require.Equal(t, uint64(2), snap.Counters[MetricLoginFailure])
	require.NotContains(t, snap.Counters, MetricRefreshLatency)
	require.Len(t, snap.Histograms[MetricRefreshLatency], 8)
	require.Equal(t, uint64(1), snap.Histograms[MetricRefreshLatency][0])
}

func TestMetricsHistogramsDisabledWithoutFlag(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricRefreshLatency, time.Millisecond)

	require.False(t, m.LatencyEnabled())
	require.Empty(t, m.Snapshot().Histograms)
}
