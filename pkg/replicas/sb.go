package replicas

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/calvinalkan/cowfs/pkg/superblock"
)

// Superblock adapter: converts between the packed on-disk replicas
// section (entries back to back, no padding) and the in-memory Eytzinger
// index.

// MemberTable answers whether a device index refers to an existing member
// of the filesystem. Satisfied by *superblock.Superblock.
type MemberTable interface {
	DevExists(dev uint8) bool
}

// loadIndex builds an index from a replicas section body. A nil or empty
// section yields an empty index. The walk is sized first so the stride
// fits the widest entry; each entry's device list is canonicalised on the
// way in, and the whole index is Eytzinger-sorted before use.
func loadIndex(section []byte, alloc allocFn) (*index, error) {
	nr, entrySize := 0, 0

	for rest := section; len(rest) > 0; {
		e, size, ok := unpackEntry(rest)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSection, reasonTruncated)
		}

		if n := e.bytes(); n > entrySize {
			entrySize = n
		}

		nr++
		rest = rest[size:]
	}

	x, err := newIndex(nr, entrySize, alloc)
	if err != nil {
		return nil, err
	}

	i := 0

	for rest := section; len(rest) > 0; {
		_, size, _ := unpackEntry(rest)
		slot := x.at(i)
		copy(slot, rest[:size])
		sortDevs(slot[entryHeaderBytes:size])
		i++
		rest = rest[size:]
	}

	if err := x.sort(alloc); err != nil {
		return nil, err
	}

	return x, nil
}

// storeIndex serializes the index into the superblock's replicas section,
// resizing it to the exact packed length. The caller must hold the
// superblock mutex and flush before publishing the index.
func storeIndex(sb Superblock, x *index) error {
	nbytes := 0
	for i := 0; i < x.nr; i++ {
		nbytes += x.entryAt(i).bytes()
	}

	body, err := sb.ResizeSection(superblock.SectionReplicas, nbytes)
	if err != nil {
		return fmt.Errorf("replicas section to %d bytes: %w", nbytes, err)
	}

	// Entries are emitted in ascending order so the section is canonical:
	// load(store(x)) rebuilds an identical index.
	pos := 0

	x.inorder(func(i int) {
		n := x.entryAt(i).bytes()
		copy(body[pos:pos+n], x.at(i))
		pos += n
	})

	if pos != nbytes {
		panic("replicas: section size mismatch")
	}

	return nil
}

// ValidateSection checks a replicas section against the member table.
// Returns nil for a nil (absent) section. Failures wrap
// [ErrInvalidSection] with a stable reason.
func ValidateSection(section []byte, members MemberTable) error {
	for rest := section; len(rest) > 0; {
		e, size, ok := unpackEntry(rest)
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvalidSection, reasonTruncated)
		}

		if e.Kind >= KindCount {
			return fmt.Errorf("%w: %s", ErrInvalidSection, reasonBadDataKind)
		}

		if len(e.Devs) == 0 {
			return fmt.Errorf("%w: %s", ErrInvalidSection, reasonNoDevices)
		}

		if len(e.Devs) >= MaxReplicas {
			return fmt.Errorf("%w: %s", ErrInvalidSection, reasonTooManyDevices)
		}

		for _, dev := range e.Devs {
			if !members.DevExists(dev) {
				return fmt.Errorf("%w: %s %d", ErrInvalidSection, reasonBadDevice, dev)
			}
		}

		rest = rest[size:]
	}

	// Canonicalise and scan for entries that compare equal. Two section
	// entries that differ only in device order are duplicates.
	x, err := loadIndexFlat(section)
	if err != nil {
		return err
	}

	for i := 0; i+1 < x.nr; i++ {
		if bytes.Equal(x.at(i), x.at(i+1)) {
			return fmt.Errorf("%w: %s", ErrInvalidSection, reasonDuplicate)
		}
	}

	return nil
}

// loadIndexFlat is loadIndex with a flat lexicographic sort, for the
// adjacent-duplicate scan.
func loadIndexFlat(section []byte) (*index, error) {
	x, err := loadIndex(section, defaultAlloc)
	if err != nil {
		return nil, err
	}

	x.flatSort()

	return x, nil
}

// DumpSection renders a raw replicas section for diagnostics, one entry
// per String form, space separated.
func DumpSection(section []byte) string {
	if section == nil {
		return "(no replicas section found)"
	}

	var sb strings.Builder

	first := true

	for rest := section; len(rest) > 0; {
		e, size, ok := unpackEntry(rest)
		if !ok {
			if !first {
				sb.WriteByte(' ')
			}

			sb.WriteString("(truncated)")

			break
		}

		if !first {
			sb.WriteByte(' ')
		}

		first = false
		sb.WriteString(e.String())
		rest = rest[size:]
	}

	return sb.String()
}
