// Package metrics provides application-level counters using stdlib expvar.
// Counters are automatically exported on the /debug/vars HTTP endpoint
// when net/http/pprof is imported in the main binary.
package metrics

import "expvar"

// Operation counters.
var (
	HydrationsTotal       = expvar.NewInt("mollusk_hydrations_total")
	SessionHitsTotal      = expvar.NewInt("mollusk_session_hits_total")
	ResolutionsTotal      = expvar.NewInt("mollusk_resolutions_total")
	BatchResolutionsTotal = expvar.NewInt("mollusk_batch_resolutions_total")
	EdgeWritesTotal       = expvar.NewInt("mollusk_edge_writes_total")
	SlotInvalidations     = expvar.NewInt("mollusk_slot_invalidations_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
