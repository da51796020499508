// Package assets is the binary asset store: image blobs keyed by generated id,
// kept apart from the record store so large binaries never inflate the JSON
// collections.
//
// The backing engine is one SQLite database file with a single table. The
// database is opened lazily: every call opens its own connection, runs one
// transaction and closes the connection on every exit path. Schema version 1
// creates the table; later opens reuse it.
package assets
