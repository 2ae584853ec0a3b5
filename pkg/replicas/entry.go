package replicas

import (
	"fmt"
	"strings"

	"github.com/calvinalkan/cowfs/pkg/keys"
)

// DataKind classifies what a replica entry's data is.
type DataKind uint8

const (
	// KindJournal is journal writes.
	KindJournal DataKind = iota
	// KindBtree is btree node (metadata) writes.
	KindBtree
	// KindUser is user data extents.
	KindUser
	// KindCached is a dropped-at-will cached copy; always a single device.
	KindCached
	// KindSB is the superblock itself. It is tracked per device, never as
	// a replica entry; passing it to the tracker is a programmer error.
	KindSB

	// KindCount is the number of data kinds.
	KindCount
)

var kindNames = [KindCount]string{"journal", "btree", "user", "cached", "sb"}

func (k DataKind) String() string {
	if k < KindCount {
		return kindNames[k]
	}

	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// KindMask is a bitmap of data kinds.
type KindMask uint32

// MaskOf builds a KindMask from the given kinds.
func MaskOf(kinds ...DataKind) KindMask {
	var m KindMask
	for _, k := range kinds {
		m |= 1 << k
	}

	return m
}

// Has reports whether k is set in the mask.
func (m KindMask) Has(k DataKind) bool { return m&(1<<k) != 0 }

// MaxReplicas bounds the device count of a single entry; a valid entry
// has 1 to MaxReplicas-1 devices.
const MaxReplicas = 8

// Packed entry layout: kind byte, device count byte, then the devices in
// ascending order. No padding between on-disk entries.
const entryHeaderBytes = 2

func entryBytes(nrDevs int) int { return entryHeaderBytes + nrDevs }

// Entry is the canonical in-memory form of a replica entry: a data kind
// plus the ascending, duplicate-free set of devices holding that data.
type Entry struct {
	Kind DataKind
	Devs []uint8
}

// NewEntry builds a canonical entry for data of the given kind on the
// given devices. The device list is copied and sorted. Panics on a kind
// that cannot be stored or a device count at or beyond [MaxReplicas];
// both indicate API misuse, not runtime conditions.
func NewEntry(kind DataKind, devs []uint8) Entry {
	if kind == KindSB || kind >= KindCount {
		panic(fmt.Sprintf("replicas: bad data kind %d", kind))
	}

	if len(devs) >= MaxReplicas {
		panic(fmt.Sprintf("replicas: %d devices exceeds max", len(devs)))
	}

	e := Entry{
		Kind: kind,
		Devs: append([]uint8(nil), devs...),
	}
	sortDevs(e.Devs)

	return e
}

// KeyEntry builds the entry describing a key's durable replica set:
// non-cached pointers only. Keys of kinds that carry no device pointers
// yield an entry with no devices, which upper layers treat as nothing to
// mark.
func KeyEntry(k keys.Key) Entry {
	var kind DataKind

	switch k.Kind {
	case keys.KindBtreeNode:
		kind = KindBtree
	case keys.KindExtent:
		kind = KindUser
	default:
		// No device pointers; callers skip zero-device entries.
		return Entry{}
	}

	e := Entry{Kind: kind}

	k.WalkPointers(func(p keys.Ptr) bool {
		if !p.Cached {
			e.Devs = append(e.Devs, p.Dev)
		}

		return true
	})

	if len(e.Devs) >= MaxReplicas {
		panic(fmt.Sprintf("replicas: key carries %d devices", len(e.Devs)))
	}

	sortDevs(e.Devs)

	return e
}

// sortDevs sorts a small device list in place. Insertion sort: the list
// is at most MaxReplicas-1 long and usually already sorted.
func sortDevs(devs []uint8) {
	for i := 1; i < len(devs); i++ {
		for j := i; j > 0 && devs[j-1] > devs[j]; j-- {
			devs[j-1], devs[j] = devs[j], devs[j-1]
		}
	}
}

// bytes returns the packed size of the entry.
func (e Entry) bytes() int { return entryBytes(len(e.Devs)) }

// packInto writes the packed form into dst, which must be zeroed and at
// least e.bytes() long. Bytes past the packed form are left as padding so
// whole-stride memory comparison remains a valid equality check.
func (e Entry) packInto(dst []byte) {
	dst[0] = byte(e.Kind)
	dst[1] = byte(len(e.Devs))
	copy(dst[entryHeaderBytes:], e.Devs)
}

// unpackEntry reads one packed entry from the front of b, returning the
// entry (devices aliased into b) and its packed size. ok is false if b is
// too short to hold the entry it declares.
func unpackEntry(b []byte) (e Entry, size int, ok bool) {
	if len(b) < entryHeaderBytes {
		return Entry{}, 0, false
	}

	n := int(b[1])
	size = entryBytes(n)

	if len(b) < size {
		return Entry{}, 0, false
	}

	e = Entry{
		Kind: DataKind(b[0]),
		Devs: b[entryHeaderBytes:size],
	}

	return e, size, true
}

// String renders the entry as "<kind>: [d0 d1 ...]".
func (e Entry) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s: [", e.Kind)

	for i, d := range e.Devs {
		if i > 0 {
			sb.WriteByte(' ')
		}

		fmt.Fprintf(&sb, "%d", d)
	}

	sb.WriteByte(']')

	return sb.String()
}
