package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/bedrud/bedrud-go"
)

type fakeSource struct {
	snapshot bedrud.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() bedrud.MetricsSnapshot { return f.snapshot }
func (f fakeSource) EventsDropped() uint64                   { return f.dropped }

func TestCollectorCountersAndHistogram(t *testing.T) {
	src := fakeSource{
		snapshot: bedrud.MetricsSnapshot{
			Counters: map[bedrud.MetricID]uint64{
				bedrud.MetricLoginSuccess:  7,
				bedrud.MetricRefreshShared: 3,
			},
			Histograms: map[bedrud.MetricID][]uint64{
				bedrud.MetricRefreshLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	}

	expected := `
# HELP bedrud_client_refresh_latency_seconds Refresh round-trip latency.
# TYPE bedrud_client_refresh_latency_seconds histogram
bedrud_client_refresh_latency_seconds_bucket{le="0.005"} 1
bedrud_client_refresh_latency_seconds_bucket{le="0.01"} 3
bedrud_client_refresh_latency_seconds_bucket{le="0.025"} 6
bedrud_client_refresh_latency_seconds_bucket{le="0.05"} 10
bedrud_client_refresh_latency_seconds_bucket{le="0.1"} 15
bedrud_client_refresh_latency_seconds_bucket{le="0.25"} 21
bedrud_client_refresh_latency_seconds_bucket{le="0.5"} 28
bedrud_client_refresh_latency_seconds_bucket{le="+Inf"} 36
bedrud_client_refresh_latency_seconds_sum 0
bedrud_client_refresh_latency_seconds_count 36
# HELP bedrud_client_login_success_total Successful logins.
# TYPE bedrud_client_login_success_total counter
bedrud_client_login_success_total 7
# HELP bedrud_client_refresh_shared_total Token calls served by a shared refresh.
# TYPE bedrud_client_refresh_shared_total counter
bedrud_client_refresh_shared_total 3
# HELP bedrud_client_events_dropped_total Lifecycle events dropped because the dispatcher buffer was full.
# TYPE bedrud_client_events_dropped_total counter
bedrud_client_events_dropped_total 2
`
	err := testutil.CollectAndCompare(NewCollector(src, nil), strings.NewReader(expected),
		"bedrud_client_refresh_latency_seconds",
		"bedrud_client_login_success_total",
		"bedrud_client_refresh_shared_total",
		"bedrud_client_events_dropped_total",
	)
	require.NoError(t, err)
}

func TestCollectorSkipsDisabledHistogram(t *testing.T) {
	src := fakeSource{snapshot: bedrud.MetricsSnapshot{
		Counters:   map[bedrud.MetricID]uint64{},
		Histograms: map[bedrud.MetricID][]uint64{},
	}}
	c := NewCollector(src, nil)

	// 12 counters plus the dropped-events counter.
	require.Equal(t, 13, testutil.CollectAndCount(c))
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(""), "bedrud_client_refresh_latency_seconds"))
}

func TestHandlerServesTextFormat(t *testing.T) {
	h, err := Handler(fakeSource{snapshot: bedrud.MetricsSnapshot{
		Counters: map[bedrud.MetricID]uint64{bedrud.MetricLogout: 4},
	}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "bedrud_client_logout_total 4")
}
