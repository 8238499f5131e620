// Package state holds the device and task collections shown by the dashboard.
//
// # Overview
//
// A Collection is an ordered list of rows with an id index. The UI owns one
// collection per table and mutates it only from the Bubble Tea update loop:
//
//	list fetch ok    → Replace(rows)       structural change, new revisions
//	list fetch error → Fail(err)           rows kept, error recorded
//	poll result      → Apply(id, fn)       one row replaced by value
//
// # Revisions
//
// Every row carries a revision that changes only when Apply produced a
// different value. Renderers cache formatted rows by (id, revision), so a
// poll result touches exactly one cached row and merging the same payload
// twice is invisible.
//
// # Duplicates
//
// Ids are expected to be unique. When they are not, the id index points at
// the first occurrence while IDs still reports every position, so a row
// locator that searches from the end finds the last one.
//
// # Concurrency
//
// Collections carry a RWMutex and return copies, so a snapshot taken for
// rendering never aliases rows being merged.
package state
