// Package journal implements the on-disk store for the graph index: two
// append-only logs plus a small metadata file that records how much of
// each log is committed.
//
// # Layout
//
//	<dir>/meta.json              committed state (store id, epoch, log lengths)
//	<dir>/idmap-<epoch>.log      framed id map records
//	<dir>/segments-<epoch>.log   framed segment records
//	<dir>/lock                   advisory writer lock
//
// # Frames
//
// Every record is written as a frame:
//
//	uvarint(len(payload)) | payload | blake3(payload)[:8]
//
// # Commit Protocol
//
// A writer holds the exclusive lock, truncates each log back to its
// committed length (dropping any torn tail left by a crashed writer),
// appends new frames, fsyncs, then atomically replaces meta.json. Readers
// only look at the committed prefix. A crash before the rename leaves the
// previous state intact; a crash after it leaves the new state intact.
//
// Rewrites (strip, id reassignment) write complete logs under a new epoch
// and swap meta.json the same way.
package journal
