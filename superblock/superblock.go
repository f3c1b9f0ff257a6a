// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package superblock reads bcachefs on-disk superblocks.
//
// SuperBlock, Layout, Field and Crypt are little-endian views over the raw
// bytes of struct bch_sb, struct bch_sb_layout, struct bch_sb_field and
// struct bch_sb_field_crypt respectively.
package superblock

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/siderolabs/go-bcachefs/internal/magic"
)

// On-disk geometry.
const (
	SectorSize = 512

	// LayoutSector is the sector holding the superblock layout.
	LayoutSector = 7
	// DefaultSector is the sector holding the primary superblock.
	DefaultSector = 8

	// HeaderSize is the size of struct bch_sb up to the variable length fields.
	HeaderSize = 752
	// LayoutSize is the size of struct bch_sb_layout.
	LayoutSize = 512
	// LabelSize is the size of the label field.
	LabelSize = 32

	// MaxSize is the largest superblock which will be read.
	MaxSize = 1 << 20

	// MinVersion is the oldest metadata version which is supported.
	MinVersion = 9
)

//nolint:unused
const (
	offCsum       = 0
	offVersion    = 16
	offVersionMin = 18
	offMagic      = 24
	offUUID       = 40
	offUserUUID   = 56
	offLabel      = 72
	offOffset     = 104
	offSeq        = 112
	offBlockSize  = 120
	offDevIdx     = 122
	offNrDevices  = 123
	offU64s       = 124
	offFlags      = 144
	offFeatures   = 208
	offCompat     = 224
	offLayout     = 240
)

// Superblock magic values.
var (
	// BcacheMagic is the magic written by older versions of the tools.
	BcacheMagic = uuid.MustParse("c68573f6-4e1a-45ca-8265-f57f48ba6d81")
	// BcachefsMagic is the magic written since the bcachefs-specific magic was introduced.
	BcachefsMagic = uuid.MustParse("c68573f6-66ce-90a9-d96a-60cf803df7ef")
)

var superblockMagic = magic.Set{
	{Offset: offMagic, Value: BcacheMagic[:]},
	{Offset: offMagic, Value: BcachefsMagic[:]},
}

// Errors returned for superblocks which are not valid; all of them wrap ErrInvalid.
var (
	ErrInvalid             = errors.New("not a valid bcachefs superblock")
	ErrBadMagic            = fmt.Errorf("%w: bad magic", ErrInvalid)
	ErrBadLayout           = fmt.Errorf("%w: bad layout", ErrInvalid)
	ErrBadField            = fmt.Errorf("%w: bad field", ErrInvalid)
	ErrBadBlockSize        = fmt.Errorf("%w: block size is not a power of 2", ErrInvalid)
	ErrChecksum            = fmt.Errorf("%w: checksum mismatch", ErrInvalid)
	ErrUnsupportedVersion  = fmt.Errorf("%w: unsupported version", ErrInvalid)
	ErrUnsupportedChecksum = fmt.Errorf("%w: unsupported checksum type", ErrInvalid)
	ErrTooLarge            = fmt.Errorf("%w: superblock too large", ErrInvalid)
)

// SuperBlock is a view over struct bch_sb.
//
// The slice must be at least HeaderSize bytes long.
type SuperBlock []byte

// MagicValid returns true if the superblock carries one of the bcachefs magic values.
func (sb SuperBlock) MagicValid() bool {
	return superblockMagic.Match(sb) != nil
}

// Version of the on-disk metadata.
func (sb SuperBlock) Version() uint16 {
	return binary.LittleEndian.Uint16(sb[offVersion:])
}

// VersionMin is the oldest metadata version present on disk.
func (sb SuperBlock) VersionMin() uint16 {
	return binary.LittleEndian.Uint16(sb[offVersionMin:])
}

// UUID is the internal filesystem UUID.
func (sb SuperBlock) UUID() uuid.UUID {
	return uuid.UUID(sb[offUUID : offUUID+16])
}

// UserUUID is the external (user-facing) filesystem UUID.
func (sb SuperBlock) UserUUID() uuid.UUID {
	return uuid.UUID(sb[offUserUUID : offUserUUID+16])
}

// Label returns the raw label bytes.
func (sb SuperBlock) Label() []byte {
	return sb[offLabel : offLabel+LabelSize]
}

// Offset is the sector this copy of the superblock claims to live at.
func (sb SuperBlock) Offset() uint64 {
	return binary.LittleEndian.Uint64(sb[offOffset:])
}

// Seq is the superblock write sequence number.
func (sb SuperBlock) Seq() uint64 {
	return binary.LittleEndian.Uint64(sb[offSeq:])
}

// BlockSize in sectors.
func (sb SuperBlock) BlockSize() uint16 {
	return binary.LittleEndian.Uint16(sb[offBlockSize:])
}

// DevIdx is the index of this device in the members list.
func (sb SuperBlock) DevIdx() uint8 {
	return sb[offDevIdx]
}

// NrDevices is the number of member devices of the filesystem.
func (sb SuperBlock) NrDevices() uint8 {
	return sb[offNrDevices]
}

// U64s is the size of the variable length fields area in 64-bit words.
func (sb SuperBlock) U64s() uint32 {
	return binary.LittleEndian.Uint32(sb[offU64s:])
}

// Flags returns flags[i].
func (sb SuperBlock) Flags(i int) uint64 {
	return binary.LittleEndian.Uint64(sb[offFlags+8*i:])
}

// Size is the total size of the superblock in bytes.
func (sb SuperBlock) Size() int {
	return HeaderSize + 8*int(sb.U64s())
}

// Layout returns the copy of the layout embedded in the superblock.
func (sb SuperBlock) Layout() Layout {
	return Layout(sb[offLayout : offLayout+LayoutSize])
}

// StoredChecksum returns the checksum recorded in the superblock.
func (sb SuperBlock) StoredChecksum() Csum {
	return Csum{
		Lo: binary.LittleEndian.Uint64(sb[offCsum:]),
		Hi: binary.LittleEndian.Uint64(sb[offCsum+8:]),
	}
}

// ChecksumType is the checksum type protecting the superblock (flags[0] bits 2..7).
func (sb SuperBlock) ChecksumType() ChecksumType {
	return ChecksumType((sb.Flags(0) >> 2) & 0x3f)
}

// ComputeChecksum computes the checksum of the superblock contents.
func (sb SuperBlock) ComputeChecksum() (Csum, error) {
	return Checksum(sb.ChecksumType(), sb[offCsum+16:sb.Size()])
}

// VerifyChecksum compares the stored checksum with the computed one.
func (sb SuperBlock) VerifyChecksum() error {
	csum, err := sb.ComputeChecksum()
	if err != nil {
		return err
	}

	if csum != sb.StoredChecksum() {
		return ErrChecksum
	}

	return nil
}
