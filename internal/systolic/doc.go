// Package systolic models the accelerator's compute grid.
//
// Ownership boundary:
// - reference matrix-vector and matrix-matrix multiply (16-bit wrapping)
// - cycle-level weight-stationary systolic array
//
// Indexing is weights[y][x]: y selects the row (output element), x the column
// the activation is streamed into.
package systolic
