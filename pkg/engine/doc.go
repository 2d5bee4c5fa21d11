// Package engine provides the subsystem-independent core of hostsync: drift
// computation, plans and execution reports.
//
// # Overview
//
// Every managed subsystem follows the same cycle:
//
//  1. Scan - Query the live system for the subsystem's items
//  2. Load - Read the merged system+user manifest
//  3. Diff - Partition identities into to-install, untracked, to-update and synced
//  4. Plan - Turn drift into an ordered list of operations
//  5. Execute - Perform the operations and collect an ExecutionReport
//
// Steps 1-4 are pure with respect to the system: a plan can be described any number
// of times without side effects. Execute takes ownership of a plan and may run once.
//
// # Drift
//
// Diff and DiffWith work on any type implementing Resource. Presence-only
// subsystems use Diff; subsystems with rich state (an enabled flag, a value) pass a
// state-equality function to DiffWith so that items present on both sides but with
// different state are reported in ToUpdate.
//
//	report := engine.DiffWith(live, declared, func(cur, want Extension) bool {
//	    return cur.Enabled == want.Enabled
//	})
//
// # Plans
//
// OperationPlan covers a single subsystem. Its operations run strictly in order and
// are carried out by an Applier. CompositePlan groups sub-plans of several subsystems
// behind the same Plan interface; its sub-plans may run in parallel when
// ExecContext.MaxParallel allows it, but reports always merge in insertion order.
//
// # Errors
//
// Failures are classified with EngineError:
//
//   - scan: a live-state query failed; isolated to its subsystem
//   - manifest: a manifest file is malformed or fails validation
//   - execution: one operation failed; execution continues with the next one
//   - fatal: the remaining operations of the plan are skipped
//   - permanent: misuse, such as executing a plan twice
//
// Nothing is rolled back. Completed operations stay done and the report lists every
// outcome.
package engine
