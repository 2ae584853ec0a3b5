// Package superblock implements the on-disk superblock for a cowfs
// filesystem: a small, checksummed image holding typed, individually
// resizable sections (member table, replica entries).
//
// A Superblock handle owns the in-memory copy of the image. Mutators hold
// the superblock mutex via [Superblock.Lock], grow sections with
// [Superblock.ResizeSection], and make the result durable with
// [Superblock.Flush] before letting any in-memory structure refer to it.
//
// File-backed handles take an advisory lock next to the image so two
// processes cannot both own one filesystem. [NewMem] returns a handle with
// no backing file, for tests and tooling.
package superblock

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"
)

// Error classification codes.
//
// Callers MUST classify errors using errors.Is; messages may gain context.
var (
	// ErrNoSpace indicates a section cannot be grown within the image cap.
	ErrNoSpace = errors.New("superblock: no space")
	// ErrCorrupt indicates the image failed structural validation.
	ErrCorrupt = errors.New("superblock: corrupt")
	// ErrIncompatible indicates an unknown format version.
	ErrIncompatible = errors.New("superblock: incompatible")
	// ErrBusy indicates another process holds the superblock.
	ErrBusy = errors.New("superblock: busy")
	// ErrClosed indicates the handle has been closed.
	ErrClosed = errors.New("superblock: closed")
)

// SectionType identifies a typed section within the image.
type SectionType uint32

const (
	// SectionMembers is the device member table.
	SectionMembers SectionType = 1
	// SectionReplicas is the replica entry list.
	SectionReplicas SectionType = 2
)

// maxImageBytes caps the total encoded superblock size. The image is
// rewritten whole on every flush, so it must stay small.
const maxImageBytes = 1 << 20

// Superblock is the in-memory copy of a superblock image.
//
// The zero value is not usable; construct with [NewMem], [Create], or
// [Open].
type Superblock struct {
	mu sync.Mutex

	u        uuid.UUID
	seq      uint64
	sections map[SectionType][]byte

	path     string   // empty for in-memory handles
	lockFile *os.File // advisory lock, file-backed handles only
	closed   bool

	// lastFlushed is the image produced by the most recent successful
	// Flush. Readers of a crash-recovered filesystem observe exactly this.
	lastFlushed []byte
}

// NewMem returns a superblock with no backing file. Flush snapshots the
// image in memory instead of writing it out.
func NewMem() *Superblock {
	return &Superblock{
		u:        uuid.New(),
		sections: make(map[SectionType][]byte),
	}
}

// Create initializes a fresh superblock at path with a new filesystem
// UUID and flushes the empty image. It fails if path already exists.
func Create(path string) (*Superblock, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("superblock %q already exists", path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}

	sb := &Superblock{
		u:        uuid.New(),
		sections: make(map[SectionType][]byte),
		path:     path,
	}

	if err := sb.acquireFileLock(); err != nil {
		return nil, err
	}

	if err := sb.Flush(); err != nil {
		sb.releaseFileLock()

		return nil, err
	}

	return sb, nil
}

// Open reads and validates the superblock image at path and acquires the
// advisory lock. Structural problems return [ErrCorrupt] or
// [ErrIncompatible]; contents of individual sections are validated by
// their consumers.
func Open(path string) (*Superblock, error) {
	buf, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading superblock: %w", err)
	}

	u, seq, sections, err := decodeImage(buf)
	if err != nil {
		return nil, err
	}

	sb := &Superblock{
		u:           uuid.UUID(u),
		seq:         seq,
		sections:    sections,
		path:        path,
		lastFlushed: buf,
	}

	if err := sb.acquireFileLock(); err != nil {
		return nil, err
	}

	return sb, nil
}

// Close releases the advisory lock. The handle must not be used after.
func (sb *Superblock) Close() error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.closed {
		return ErrClosed
	}

	sb.closed = true
	sb.releaseFileLock()

	return nil
}

// UUID returns the filesystem UUID.
func (sb *Superblock) UUID() uuid.UUID { return sb.u }

// Sequence returns the image sequence number, incremented on every
// successful flush. Callers racing mutators must hold the superblock
// mutex.
func (sb *Superblock) Sequence() uint64 { return sb.seq }

// Lock acquires the superblock mutex. All section mutation and Flush
// calls must happen with the mutex held.
func (sb *Superblock) Lock() { sb.mu.Lock() }

// Unlock releases the superblock mutex.
func (sb *Superblock) Unlock() { sb.mu.Unlock() }

// GetSection returns the current body of the given section, or nil if the
// section is absent. The caller must hold the superblock mutex for the
// lifetime of the returned slice.
func (sb *Superblock) GetSection(typ SectionType) []byte {
	return sb.sections[typ]
}

// ResizeSection grows or shrinks a section to exactly nbytes, preserving
// the common prefix, and returns the new body. Returns [ErrNoSpace] if
// the resulting image would exceed the size cap. The caller must hold the
// superblock mutex.
func (sb *Superblock) ResizeSection(typ SectionType, nbytes int) ([]byte, error) {
	if nbytes < 0 {
		panic("superblock: negative section size")
	}

	old := sb.sections[typ]

	grown := encodedSize(sb.sections) - roundUpSection(len(old)) + roundUpSection(nbytes)
	if _, present := sb.sections[typ]; !present {
		grown += sectionHeaderSize
	}

	if grown > maxImageBytes {
		return nil, fmt.Errorf("%w: section %d to %d bytes", ErrNoSpace, typ, nbytes)
	}

	body := make([]byte, nbytes)
	copy(body, old)
	sb.sections[typ] = body

	return body, nil
}

// Flush encodes the image, bumps the sequence number, and makes it
// durable. For file-backed handles the image replaces the old file
// atomically; in-memory handles snapshot it. The caller must hold the
// superblock mutex (Flush on an unshared handle, e.g. during Create, is
// also fine).
func (sb *Superblock) Flush() error {
	seq := sb.seq + 1
	img := encodeImage(sb.u, seq, sb.sections)

	if sb.path != "" {
		if err := atomic.WriteFile(sb.path, bytes.NewReader(img)); err != nil {
			return fmt.Errorf("writing superblock: %w", err)
		}
	}

	sb.seq = seq
	sb.lastFlushed = img

	return nil
}

// LastFlushed returns the most recently flushed image, or nil if the
// superblock has never been flushed.
func (sb *Superblock) LastFlushed() []byte { return sb.lastFlushed }

// acquireFileLock takes a non-blocking exclusive flock on path+".lock".
func (sb *Superblock) acquireFileLock() error {
	if sb.path == "" {
		return nil
	}

	lockPath := sb.path + ".lock"

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644) //nolint:gosec
	if err != nil {
		return fmt.Errorf("opening lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()

		if errors.Is(err, unix.EWOULDBLOCK) {
			return fmt.Errorf("%w: %s", ErrBusy, lockPath)
		}

		return fmt.Errorf("locking %s: %w", lockPath, err)
	}

	sb.lockFile = f

	return nil
}

func (sb *Superblock) releaseFileLock() {
	if sb.lockFile == nil {
		return
	}

	_ = unix.Flock(int(sb.lockFile.Fd()), unix.LOCK_UN)
	_ = sb.lockFile.Close()
	sb.lockFile = nil
}
