// Package stores persists execution history for hostsync.
//
// Every apply or capture produces an engine.ExecutionReport. The SQLite store
// records one row per run and one row per operation result, so that past runs
// can be listed and inspected later. Schema changes are applied with embedded
// golang-migrate migrations.
package stores
