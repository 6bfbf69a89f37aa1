// Package geom holds the measured-value geometry used by the track finder:
// values with uncertainty, points and vectors, lines, circles and helices,
// and the circle and straight-line regressions.
//
// Coordinates follow the chamber convention: x and z are horizontal (the
// foil is the plane z = 0), y runs along the wires. Lengths are in mm.
package geom
