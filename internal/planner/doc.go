// Package planner computes what projecting an addon would touch.
//
// The Detector walks an addon's tracked directories and maps every file to
// its live-tree location. The same walk serves two modes: the full candidate
// list (used as the overlay record) and the conflict list (live files that
// already exist with a different size or content hash).
//
// Key responsibilities:
//   - Map the private assets directory onto the public assets location
//   - Skip paths matching the configured ignore globs
//   - Order paths deepest first so removals can prune parents
//   - Compare live and addon copies by size, then by hash
package planner
