package superblock

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Member table section: an array of fixed-size member records. A device
// index used anywhere else in the filesystem is a position in this array.
const (
	memberRecordSize = 24

	offMemberUUID  = 0  // [16]byte
	offMemberFlags = 16 // uint32
	offMemberPad   = 20 // uint32, reserved
)

// Member flags.
const (
	// MemberRemoved marks a slot whose device has been evacuated. The slot
	// is kept so later indices stay stable.
	MemberRemoved uint32 = 1 << 0
)

// NrMembers returns the number of member slots, removed ones included.
// The caller must hold the superblock mutex.
func (sb *Superblock) NrMembers() int {
	return len(sb.sections[SectionMembers]) / memberRecordSize
}

// DevExists reports whether dev refers to a live member slot. The caller
// must hold the superblock mutex.
func (sb *Superblock) DevExists(dev uint8) bool {
	body := sb.sections[SectionMembers]
	off := int(dev) * memberRecordSize

	if off+memberRecordSize > len(body) {
		return false
	}

	flags := binary.LittleEndian.Uint32(body[off+offMemberFlags:])

	return flags&MemberRemoved == 0
}

// MemberUUID returns the device UUID of a member slot.
func (sb *Superblock) MemberUUID(dev uint8) (uuid.UUID, bool) {
	body := sb.sections[SectionMembers]
	off := int(dev) * memberRecordSize

	if off+memberRecordSize > len(body) {
		return uuid.UUID{}, false
	}

	var u uuid.UUID
	copy(u[:], body[off+offMemberUUID:])

	return u, true
}

// AddMember appends a member slot for the given device UUID and returns
// its device index. The caller must hold the superblock mutex and flush
// afterwards; the member table is not useful until durable.
func (sb *Superblock) AddMember(u uuid.UUID) (uint8, error) {
	nr := sb.NrMembers()
	if nr >= 256 {
		return 0, fmt.Errorf("%w: member table full", ErrNoSpace)
	}

	body, err := sb.ResizeSection(SectionMembers, (nr+1)*memberRecordSize)
	if err != nil {
		return 0, err
	}

	off := nr * memberRecordSize
	copy(body[off+offMemberUUID:], u[:])
	binary.LittleEndian.PutUint32(body[off+offMemberFlags:], 0)
	binary.LittleEndian.PutUint32(body[off+offMemberPad:], 0)

	return uint8(nr), nil
}

// RemoveMember flags a member slot as removed. Device indices of other
// members are unaffected.
func (sb *Superblock) RemoveMember(dev uint8) error {
	body := sb.sections[SectionMembers]
	off := int(dev) * memberRecordSize

	if off+memberRecordSize > len(body) {
		return fmt.Errorf("no such member: %d", dev)
	}

	flags := binary.LittleEndian.Uint32(body[off+offMemberFlags:])
	binary.LittleEndian.PutUint32(body[off+offMemberFlags:], flags|MemberRemoved)

	return nil
}
