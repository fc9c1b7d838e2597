package internaldefs

import (
	"github.com/bedrud/bedrud-go"
)

// CounterDef names one client counter.
type CounterDef struct {
	ID   bedrud.MetricID
	Name string
	Help string
}

// HistogramDef names one client histogram.
type HistogramDef struct {
	ID   bedrud.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: bedrud.MetricLoginSuccess, Name: "bedrud_client_login_success_total", Help: "Successful logins."},
	{ID: bedrud.MetricLoginFailure, Name: "bedrud_client_login_failure_total", Help: "Failed logins."},
	{ID: bedrud.MetricRegisterSuccess, Name: "bedrud_client_register_success_total", Help: "Successful registrations."},
	{ID: bedrud.MetricRegisterFailure, Name: "bedrud_client_register_failure_total", Help: "Failed registrations."},
	{ID: bedrud.MetricRefreshSuccess, Name: "bedrud_client_refresh_success_total", Help: "Refresh calls that rotated the session."},
	{ID: bedrud.MetricRefreshFailure, Name: "bedrud_client_refresh_failure_total", Help: "Refresh calls that failed."},
	{ID: bedrud.MetricRefreshShared, Name: "bedrud_client_refresh_shared_total", Help: "Token calls served by a shared refresh."},
	{ID: bedrud.MetricForcedLogout, Name: "bedrud_client_forced_logout_total", Help: "Sessions cleared after a failed refresh."},
	{ID: bedrud.MetricLogout, Name: "bedrud_client_logout_total", Help: "Explicit logouts."},
	{ID: bedrud.MetricTokenValid, Name: "bedrud_client_token_valid_total", Help: "Token calls answered without a refresh."},
	{ID: bedrud.MetricTokenUnauthenticated, Name: "bedrud_client_token_unauthenticated_total", Help: "Token calls made without a session."},
	{ID: bedrud.MetricPersistFailure, Name: "bedrud_client_persist_failure_total", Help: "Tier writes that failed after a successful refresh."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: bedrud.MetricRefreshLatency, Name: "bedrud_client_refresh_latency_seconds", Help: "Refresh round-trip latency."},
}

// HistogramUpperBounds are the bucket upper bounds in seconds, without +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf last.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// DroppedEventsName is the counter for events discarded by a full dispatcher.
const DroppedEventsName = "bedrud_client_events_dropped_total"

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
