package superblock

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sort"
)

// CWSB on-disk format constants.
const (
	// Magic bytes at the start of every superblock image.
	cwsbMagic = "CWSB"

	// Image format version.
	cwsbVersion = 1

	// Fixed header size in bytes.
	cwsbHeaderSize = 64
)

// Header field offsets (bytes from image start).
const (
	offMagic      = 0x00 // [4]byte
	offVersion    = 0x04 // uint16
	offHeaderSize = 0x06 // uint16
	offSeq        = 0x08 // uint64
	offUUID       = 0x10 // [16]byte
	offNrSections = 0x20 // uint32
	offCRC32C     = 0x24 // uint32
	offReserved   = 0x28 // reserved bytes through 0x3F
)

// Per-section header: type, then body length in bytes. The body itself is
// stored rounded up to 8-byte units, zero padded; the length field records
// the exact payload size.
const (
	sectionHeaderSize = 8
	sectionAlign      = 8
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func roundUpSection(n int) int {
	return (n + sectionAlign - 1) &^ (sectionAlign - 1)
}

// encodedSize returns the full image size for the given section bodies.
func encodedSize(sections map[SectionType][]byte) int {
	size := cwsbHeaderSize
	for _, body := range sections {
		size += sectionHeaderSize + roundUpSection(len(body))
	}

	return size
}

// encodeImage serializes the superblock into a fresh byte image.
// Sections are emitted in ascending type order so the image is
// deterministic. The CRC is computed over the entire image with the CRC
// field zeroed.
func encodeImage(u [16]byte, seq uint64, sections map[SectionType][]byte) []byte {
	buf := make([]byte, encodedSize(sections))

	copy(buf[offMagic:], cwsbMagic)
	binary.LittleEndian.PutUint16(buf[offVersion:], cwsbVersion)
	binary.LittleEndian.PutUint16(buf[offHeaderSize:], cwsbHeaderSize)
	binary.LittleEndian.PutUint64(buf[offSeq:], seq)
	copy(buf[offUUID:], u[:])
	binary.LittleEndian.PutUint32(buf[offNrSections:], uint32(len(sections)))

	types := make([]SectionType, 0, len(sections))
	for typ := range sections {
		types = append(types, typ)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	pos := cwsbHeaderSize

	for _, typ := range types {
		body := sections[typ]

		binary.LittleEndian.PutUint32(buf[pos:], uint32(typ))
		binary.LittleEndian.PutUint32(buf[pos+4:], uint32(len(body)))
		copy(buf[pos+sectionHeaderSize:], body)
		pos += sectionHeaderSize + roundUpSection(len(body))
	}

	binary.LittleEndian.PutUint32(buf[offCRC32C:], computeImageCRC(buf))

	return buf
}

// computeImageCRC computes the image checksum with the CRC field zeroed.
func computeImageCRC(buf []byte) uint32 {
	crc := crc32.New(castagnoli)
	_, _ = crc.Write(buf[:offCRC32C])
	_, _ = crc.Write([]byte{0, 0, 0, 0})
	_, _ = crc.Write(buf[offCRC32C+4:])

	return crc.Sum32()
}

// decodeImage parses and validates a superblock image, returning the
// UUID, sequence number, and section bodies.
func decodeImage(buf []byte) ([16]byte, uint64, map[SectionType][]byte, error) {
	var u [16]byte

	if len(buf) < cwsbHeaderSize {
		return u, 0, nil, fmt.Errorf("%w: image truncated (%d bytes)", ErrCorrupt, len(buf))
	}

	if string(buf[offMagic:offMagic+4]) != cwsbMagic {
		return u, 0, nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}

	if v := binary.LittleEndian.Uint16(buf[offVersion:]); v != cwsbVersion {
		return u, 0, nil, fmt.Errorf("%w: version %d", ErrIncompatible, v)
	}

	if hs := binary.LittleEndian.Uint16(buf[offHeaderSize:]); hs != cwsbHeaderSize {
		return u, 0, nil, fmt.Errorf("%w: header size %d", ErrCorrupt, hs)
	}

	if want, got := binary.LittleEndian.Uint32(buf[offCRC32C:]), computeImageCRC(buf); want != got {
		return u, 0, nil, fmt.Errorf("%w: crc mismatch (stored %08x, computed %08x)", ErrCorrupt, want, got)
	}

	seq := binary.LittleEndian.Uint64(buf[offSeq:])
	copy(u[:], buf[offUUID:offUUID+16])

	nrSections := int(binary.LittleEndian.Uint32(buf[offNrSections:]))
	sections := make(map[SectionType][]byte, nrSections)
	pos := cwsbHeaderSize

	for i := 0; i < nrSections; i++ {
		if pos+sectionHeaderSize > len(buf) {
			return u, 0, nil, fmt.Errorf("%w: section %d header out of bounds", ErrCorrupt, i)
		}

		typ := SectionType(binary.LittleEndian.Uint32(buf[pos:]))
		length := int(binary.LittleEndian.Uint32(buf[pos+4:]))
		end := pos + sectionHeaderSize + roundUpSection(length)

		if length < 0 || end > len(buf) {
			return u, 0, nil, fmt.Errorf("%w: section %d body out of bounds", ErrCorrupt, i)
		}

		if _, dup := sections[typ]; dup {
			return u, 0, nil, fmt.Errorf("%w: duplicate section type %d", ErrCorrupt, typ)
		}

		body := make([]byte, length)
		copy(body, buf[pos+sectionHeaderSize:pos+sectionHeaderSize+length])
		sections[typ] = body
		pos = end
	}

	return u, seq, sections, nil
}
