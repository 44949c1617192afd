// Package worker pulls work units from the queue and executes them.
//
// A Worker is one render node slot. It claims the next pending unit, runs
// the executor for the unit's kind and reports the result, while a
// heartbeat keeps the claim alive. When the heartbeat finds the unit no
// longer assigned to this worker (an operator blocked it, or a stale claim
// was reclaimed) the running tool is stopped and nothing is reported.
//
// Executors:
//   - Initialize prepares the scene file every segment renders from.
//   - Segment checks the fingerprint store, renders its frame span when
//     anything changed and refreshes the stored fingerprints.
//   - Output concatenates its segments and muxes the deliverable, skipping
//     the work when no segment changed and the deliverable already exists.
package worker
