// Package sqlite is the run ledger of the track finder: one row per run
// and one summary row per reconstructed event, in a SQLite database
// migrated with the embedded migrations.
//
// Only figures of merit are stored. Tracks themselves are never written
// here.
package sqlite
