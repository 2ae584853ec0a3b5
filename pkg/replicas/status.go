package replicas

import (
	"math"

	"github.com/bits-and-blooms/bitset"

	"github.com/calvinalkan/cowfs/pkg/keys"
)

// Marked reports whether the combination (kind, devs) is recorded in the
// live index. Lock-free; invariant under permutation of devs. An empty
// device list is trivially marked.
func (t *Tracker) Marked(kind DataKind, devs []uint8) bool {
	if len(devs) == 0 {
		return true
	}

	return t.live.Load().contains(NewEntry(kind, devs))
}

// KeyMarked reports whether a key's replica set is recorded. For user
// extents every cached pointer must additionally be marked as a
// single-device cached entry.
func (t *Tracker) KeyMarked(k keys.Key) bool {
	if k.Kind == keys.KindExtent {
		for _, dev := range k.CachedDevs() {
			if !t.Marked(KindCached, []uint8{dev}) {
				return false
			}
		}
	}

	e := KeyEntry(k)
	if len(e.Devs) == 0 {
		return true
	}

	return t.live.Load().contains(e)
}

// StatusUnknown is the NrOnline value reported for a kind with no
// entries: no replica set constrains it.
const StatusUnknown = math.MaxUint32

// KindStatus is the worst-replica tally for one data kind: the minimum
// online count and maximum offline count over all entries of that kind.
type KindStatus struct {
	NrOnline  uint32
	NrOffline uint32
}

// Status is the per-kind replica health summary.
type Status struct {
	Replicas [KindCount]KindStatus
}

// Status tallies every live entry against the caller's online-device
// bitmap. Lock-free.
func (t *Tracker) Status(online *bitset.BitSet) Status {
	var s Status

	for k := range s.Replicas {
		s.Replicas[k].NrOnline = StatusUnknown
	}

	live := t.live.Load()

	for i := 0; i < live.nr; i++ {
		e := live.entryAt(i)

		if e.Kind >= KindCount {
			panic("replicas: corrupt entry kind in live index")
		}

		var nrOnline, nrOffline uint32

		for _, dev := range e.Devs {
			if online.Test(uint(dev)) {
				nrOnline++
			} else {
				nrOffline++
			}
		}

		r := &s.Replicas[e.Kind]

		if nrOnline < r.NrOnline {
			r.NrOnline = nrOnline
		}

		if nrOffline > r.NrOffline {
			r.NrOffline = nrOffline
		}
	}

	return s
}

// DegradeFlags force the filesystem to proceed despite missing devices.
type DegradeFlags uint32

const (
	// ForceIfMetadataDegraded allows operation with some journal or btree
	// replicas offline.
	ForceIfMetadataDegraded DegradeFlags = 1 << iota
	// ForceIfMetadataLost allows operation with journal or btree replica
	// sets entirely offline.
	ForceIfMetadataLost
	// ForceIfDataDegraded allows operation with some user data replicas
	// offline.
	ForceIfDataDegraded
	// ForceIfDataLost allows operation with user data replica sets
	// entirely offline.
	ForceIfDataLost
)

func haveEnough(s Status, kind DataKind, forceIfDegraded, forceIfLost bool) bool {
	return (s.Replicas[kind].NrOffline == 0 || forceIfDegraded) &&
		(s.Replicas[kind].NrOnline > 0 || forceIfLost)
}

// HaveEnough reports whether the filesystem may proceed with the given
// status: journal, btree, and user data must each be non-degraded (or
// forced) and have quorum (or forced). A kind with no entries reports
// NrOnline == StatusUnknown and NrOffline == 0, so it passes trivially.
func HaveEnough(s Status, flags DegradeFlags) bool {
	return haveEnough(s, KindJournal,
		flags&ForceIfMetadataDegraded != 0,
		flags&ForceIfMetadataLost != 0) &&
		haveEnough(s, KindBtree,
			flags&ForceIfMetadataDegraded != 0,
			flags&ForceIfMetadataLost != 0) &&
		haveEnough(s, KindUser,
			flags&ForceIfDataDegraded != 0,
			flags&ForceIfDataLost != 0)
}

// ReplicasOnline returns the worst online replica count for metadata
// (journal and btree) or user data.
func (t *Tracker) ReplicasOnline(online *bitset.BitSet, meta bool) uint32 {
	s := t.Status(online)

	if meta {
		j, b := s.Replicas[KindJournal].NrOnline, s.Replicas[KindBtree].NrOnline
		if j < b {
			return j
		}

		return b
	}

	return s.Replicas[KindUser].NrOnline
}

// DevHasData returns the mask of data kinds for which any live entry
// contains dev. Lock-free.
func (t *Tracker) DevHasData(dev uint8) KindMask {
	var mask KindMask

	live := t.live.Load()

	for i := 0; i < live.nr; i++ {
		e := live.entryAt(i)

		for _, d := range e.Devs {
			if d == dev {
				mask |= 1 << e.Kind

				break
			}
		}
	}

	return mask
}

// Live renders the live index for diagnostics.
func (t *Tracker) Live() string {
	return t.live.Load().String()
}

// LiveCount returns the number of entries in the live index.
func (t *Tracker) LiveCount() int {
	return t.live.Load().nr
}
