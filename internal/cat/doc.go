// Package cat is the root of the cellular-automaton track finder.
//
// Responsibilities: the shared logging streams used by every stage.
//
// Subpackages, leaf first:
//   - geom: measured values, shapes and regressions
//   - topology: cells, links, nodes, sequences, clusters and scenarios
//   - clustering: islands of neighbouring cells and their couplets/triplets
//   - sequentiator: the growth automaton, cleanup, gap matching and
//     scenario selection
//   - storage/sqlite: the run ledger
//   - monitor: event plots and chi2 charts
//
// Dependency rule: subpackages may import cat for logging; cat imports none
// of them.
package cat
