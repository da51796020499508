// Package records is the primary record store: shows, notes, tags and the
// settings singleton, each persisted as one JSON value under a fixed key.
//
// # Semantics
//
// Every operation reads the whole collection, decodes it, applies the change,
// encodes it and writes it back. There is no validation: callers are
// responsible for field values and for supplying fresh ids.
//
// Absence of a key is never an error (an empty collection or the default
// settings). A key holding malformed JSON fails the read with a
// [*DecodeError]; nothing is repaired.
//
// # Cascading delete
//
// [Store.DeleteShow] writes the shows key and then the notes key. The pair is
// not atomic: a crash between the two writes leaves notes whose show no longer
// exists. [Store.PruneOrphanNotes] removes them.
package records
