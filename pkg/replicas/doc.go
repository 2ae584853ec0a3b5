// Package replicas tracks which sets of devices hold data of each kind in
// a cowfs filesystem.
//
// For every distinct (data kind, device set) combination ever written, the
// tracker keeps a canonical entry in a packed, Eytzinger-ordered index so
// the write path can answer "is this combination already recorded?" with a
// handful of cache-line reads and no locks. Novel combinations take the
// slow path: the entry is serialized into the superblock's replicas
// section and flushed to disk before the in-memory index is republished,
// so the set of marked combinations in memory is always a subset of what
// crash recovery will observe.
//
// # Concurrency
//
// Readers ([Tracker.Marked], [Tracker.Status], the mark fast path) load
// the current index through an atomic pointer and never block. Writers
// serialize on the superblock mutex and publish a freshly built index;
// displaced indices stay valid for readers still holding them and are
// reclaimed by the garbage collector once the last reader drops its
// reference.
//
// # Garbage collection
//
// A GC pass runs [Tracker.GCStart] with a mask of the kinds being
// collected, re-marks every combination it finds still referenced, and
// finishes with [Tracker.GCEnd]. On success the GC index, seeded with the
// unmasked kinds and grown by marks during the pass, replaces the live
// index, dropping entries nothing re-asserted. On failure the live index
// is untouched.
package replicas
