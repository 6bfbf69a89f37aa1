// Package monitor renders reconstructed events for inspection: PNG views
// of the tracker with the chosen tracks, and HTML charts of the
// compatibility chi2 history and of stored runs.
package monitor
