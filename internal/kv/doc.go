// Package kv provides the persisted key namespace backing the record store.
//
// # Overview
//
// A [Store] maps fixed string keys to opaque byte values, one file per key
// (<key>.json) in a single directory. It is the on-disk equivalent of a
// browser's localStorage: synchronous, whole-value reads and writes, no
// partial updates and no transaction spanning multiple keys.
//
// # Writes
//
// [Store.Set] writes to a temporary file and renames it over the target, so a
// reader never observes a half-written value. Two Set calls on different keys
// are independent; a crash between them leaves the first one applied.
//
// # Observers
//
// [Observer] implementations registered with [Store.AddObserver] are notified
// after every successful Set or Delete, in registration order.
package kv
