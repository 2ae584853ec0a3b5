package replicas

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/calvinalkan/cowfs/pkg/keys"
	"github.com/calvinalkan/cowfs/pkg/superblock"
)

// Superblock is the slice of the superblock service the tracker consumes.
// Satisfied by *superblock.Superblock and by in-memory fakes in tests.
type Superblock interface {
	// GetSection returns the current body of a section, or nil if absent.
	// Valid only while the superblock mutex is held.
	GetSection(typ superblock.SectionType) []byte

	// ResizeSection grows or shrinks a section to exactly nbytes and returns the new
	// body. Returns superblock.ErrNoSpace if it cannot.
	ResizeSection(typ superblock.SectionType, nbytes int) ([]byte, error)

	// Lock and Unlock guard all section mutation and Flush.
	Lock()
	Unlock()

	// Flush makes the current image durable.
	Flush() error
}

// Tracker records which (data kind, device set) combinations exist in the
// filesystem, mirrored in the superblock's replicas section.
//
// Locking architecture
//
//  1. sb mutex (Superblock.Lock) — serializes every mutation of live, gc,
//     and the superblock image. Held across persist-then-publish.
//
//  2. gcMu — held for the whole of a GC pass, GCStart through GCEnd, so
//     only one pass can be active.
//
//  3. live/gc atomic pointers — readers load them with acquire semantics
//     and never take a lock; writers store with release semantics only
//     after the new index is fully built (and, for live, durable).
//
// Lock ordering: gcMu → sb mutex.
type Tracker struct {
	sb Superblock

	live atomic.Pointer[index]
	gc   atomic.Pointer[index]

	// gcMu is acquired by GCStart and released by GCEnd.
	gcMu sync.Mutex

	alloc allocFn
}

// Open loads the tracker from the superblock's replicas section. The
// section is validated first against the superblock's member table;
// callers that want to mount regardless can repair and reopen.
func Open(sb *superblock.Superblock) (*Tracker, error) {
	t := &Tracker{sb: sb, alloc: defaultAlloc}

	sb.Lock()
	defer sb.Unlock()

	section := sb.GetSection(superblock.SectionReplicas)

	if err := ValidateSection(section, sb); err != nil {
		return nil, err
	}

	live, err := loadIndex(section, t.alloc)
	if err != nil {
		return nil, err
	}

	t.live.Store(live)

	return t, nil
}

// openRaw loads the tracker from any Superblock implementation without
// validating the section first.
func openRaw(sb Superblock, alloc allocFn) (*Tracker, error) {
	t := &Tracker{sb: sb, alloc: alloc}

	sb.Lock()
	defer sb.Unlock()

	live, err := loadIndex(sb.GetSection(superblock.SectionReplicas), t.alloc)
	if err != nil {
		return nil, err
	}

	t.live.Store(live)

	return t, nil
}

// Mark ensures the combination (kind, devs) is recorded durably and in
// memory. Marking an empty device list is a successful no-op. The common
// case, a combination that is already known, takes no locks.
func (t *Tracker) Mark(kind DataKind, devs []uint8) error {
	if len(devs) == 0 {
		return nil
	}

	return t.mark(NewEntry(kind, devs))
}

// MarkKey marks the durable replica set of a key. For user extents every
// cached pointer is additionally marked as a single-device cached entry,
// so cache promotion is observable in the replicas table too.
func (t *Tracker) MarkKey(k keys.Key) error {
	if k.Kind == keys.KindExtent {
		for _, dev := range k.CachedDevs() {
			if err := t.Mark(KindCached, []uint8{dev}); err != nil {
				return err
			}
		}
	}

	e := KeyEntry(k)
	if len(e.Devs) == 0 {
		return nil
	}

	return t.mark(e)
}

func (t *Tracker) mark(e Entry) error {
	live := t.live.Load()
	gc := t.gc.Load()

	if live.contains(e) && (gc == nil || gc.contains(e)) {
		return nil
	}

	return t.markSlow(e)
}

// markSlow inserts e into the live index (and the GC index, if a pass is
// running) under the superblock mutex. The rewritten replicas section is
// flushed before either new index becomes visible; on any failure nothing
// is published.
func (t *Tracker) markSlow(e Entry) error {
	t.sb.Lock()
	defer t.sb.Unlock()

	var (
		newGC, newLive *index
		err            error
	)

	if oldGC := t.gc.Load(); oldGC != nil && !oldGC.contains(e) {
		newGC, err = oldGC.insertCopy(e, t.alloc)
		if err != nil {
			return err
		}
	}

	oldLive := t.live.Load()

	if !oldLive.contains(e) {
		newLive, err = oldLive.insertCopy(e, t.alloc)
		if err != nil {
			return err
		}

		if err := storeIndex(t.sb, newLive); err != nil {
			return err
		}
	}

	// Allocations and the section rewrite are done; commit. The flush
	// happens before publication so memory never claims more than disk.
	if newLive != nil {
		if err := t.sb.Flush(); err != nil {
			return fmt.Errorf("flushing superblock: %w", err)
		}
	}

	if newGC != nil {
		t.gc.Store(newGC)
	}

	if newLive != nil {
		t.live.Store(newLive)
	}

	return nil
}

// GCStart begins a garbage-collection pass over the kinds set in mask and
// holds the pass lock until GCEnd. The GC index starts as the live index
// minus all entries of collected kinds; marks during the pass re-assert
// combinations still in use. Starting a pass while one is active is a
// programmer error.
func (t *Tracker) GCStart(mask KindMask) error {
	t.gcMu.Lock()

	t.sb.Lock()
	defer t.sb.Unlock()

	if t.gc.Load() != nil {
		panic("replicas: GC pass already active")
	}

	dst, err := t.live.Load().filterCopy(mask, t.alloc)
	if err != nil {
		t.gcMu.Unlock()

		return err
	}

	t.gc.Store(dst)

	return nil
}

// GCEnd finishes the pass started by GCStart. If result is nil the GC
// index is persisted and promoted to live. On a failed pass, or if
// persisting fails, it is discarded and the live index is unchanged. The
// gc pointer is cleared in every case.
func (t *Tracker) GCEnd(result error) error {
	defer t.gcMu.Unlock()

	t.sb.Lock()
	defer t.sb.Unlock()

	newLive := t.gc.Load()
	if newLive == nil {
		panic("replicas: GCEnd without active GC pass")
	}

	t.gc.Store(nil)

	if result != nil {
		return result
	}

	if err := storeIndex(t.sb, newLive); err != nil {
		return err
	}

	if err := t.sb.Flush(); err != nil {
		return fmt.Errorf("flushing superblock: %w", err)
	}

	t.live.Store(newLive)

	return nil
}
