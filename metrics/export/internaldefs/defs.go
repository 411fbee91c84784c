package internaldefs

import (
	"github.com/MrEthical07/sessiongate"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   sessiongate.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   sessiongate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: sessiongate.MetricRegisterSuccess, Name: "sessiongate_register_success_total", Help: "Successful registrations."},
	{ID: sessiongate.MetricRegisterConflict, Name: "sessiongate_register_conflict_total", Help: "Registrations rejected because the email was taken."},
	{ID: sessiongate.MetricLoginSuccess, Name: "sessiongate_login_success_total", Help: "Successful login attempts."},
	{ID: sessiongate.MetricLoginFailure, Name: "sessiongate_login_failure_total", Help: "Failed login attempts."},
	{ID: sessiongate.MetricTokenPairIssued, Name: "sessiongate_token_pairs_issued_total", Help: "Access/refresh pairs issued."},
	{ID: sessiongate.MetricRefreshSuccess, Name: "sessiongate_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: sessiongate.MetricRefreshFailure, Name: "sessiongate_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: sessiongate.MetricRefreshRevoked, Name: "sessiongate_refresh_revoked_total", Help: "Refresh tokens presented after revocation or rotation."},
	{ID: sessiongate.MetricLogout, Name: "sessiongate_logout_total", Help: "Single-session logout operations."},
	{ID: sessiongate.MetricLogoutAll, Name: "sessiongate_logout_all_total", Help: "Logout-all operations."},
	{ID: sessiongate.MetricAuthenticateSuccess, Name: "sessiongate_authenticate_success_total", Help: "Accepted bearer tokens."},
	{ID: sessiongate.MetricAuthenticateFailure, Name: "sessiongate_authenticate_failure_total", Help: "Rejected bearer tokens."},
	{ID: sessiongate.MetricAuthenticateRevoked, Name: "sessiongate_authenticate_revoked_total", Help: "Well-formed access tokens missing from the allowlist."},
	{ID: sessiongate.MetricStoreDegradedReads, Name: "sessiongate_store_degraded_reads_total", Help: "Session store reads answered negatively while unavailable."},
	{ID: sessiongate.MetricStoreDegradedWrites, Name: "sessiongate_store_degraded_writes_total", Help: "Session store writes dropped while unavailable."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: sessiongate.MetricAuthenticateLatency, Name: "sessiongate_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// AuditDroppedName is the counter for events lost to dispatcher backpressure.
const AuditDroppedName = "sessiongate_audit_dropped_total"

// HistogramBounds are the upper bounds of the engine latency buckets.
var HistogramBounds = []string{
	"0.0005",
	"0.001",
	"0.0025",
	"0.005",
	"0.01",
	"0.025",
	"0.25",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds in a form usable in metric names.
var HistogramBoundSuffix = []string{
	"0_0005",
	"0_001",
	"0_0025",
	"0_005",
	"0_01",
	"0_025",
	"0_25",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling
// anything missing.
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

// StoreStateName is the gauge carrying the session store connector state
// (0 unknown, 1 connected, 2 unavailable).
const StoreStateName = "sessiongate_session_store_state"

// StoreStateHelp describes StoreStateName.
const StoreStateHelp = "Session store state: 0 unknown, 1 connected, 2 unavailable."
