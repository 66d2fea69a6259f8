// Package model defines the core data types shared across the comicscan
// pipeline: discovered image candidates, filtered content images, per-image
// extraction facts, suspicion records, and aggregate run diagnostics.
//
// Design decision: All types in this package are plain data with no I/O and
// no dependencies on other internal packages. This keeps the dependency
// graph acyclic (every other package may import model) and makes the types
// trivially constructible in tests.
package model
