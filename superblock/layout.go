// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package superblock

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/siderolabs/go-bcachefs/internal/magic"
	"github.com/siderolabs/go-bcachefs/internal/utils"
)

// MaxLayoutOffsets is the number of superblock offsets a layout can hold.
const MaxLayoutOffsets = 61

const (
	offLayoutType        = 16
	offLayoutMaxSizeBits = 17
	offLayoutNr          = 18
	offLayoutOffsets     = 24
)

var layoutMagic = magic.Set{
	{Offset: 0, Value: BcacheMagic[:]},
	{Offset: 0, Value: BcachefsMagic[:]},
}

// Layout is a view over struct bch_sb_layout.
type Layout []byte

// MagicValid returns true if the layout carries one of the bcachefs magic values.
func (l Layout) MagicValid() bool {
	return layoutMagic.Match(l) != nil
}

// Type is the layout type, only 0 is defined.
func (l Layout) Type() uint8 {
	return l[offLayoutType]
}

// MaxSizeBits is log2 of the maximum superblock size in sectors.
func (l Layout) MaxSizeBits() uint8 {
	return l[offLayoutMaxSizeBits]
}

// NrSuperblocks is the number of superblock copies on the device.
func (l Layout) NrSuperblocks() uint8 {
	return l[offLayoutNr]
}

// Offsets returns the sector offsets of every superblock copy.
func (l Layout) Offsets() []uint64 {
	nr := min(int(l.NrSuperblocks()), MaxLayoutOffsets)
	offsets := make([]uint64, 0, nr)

	for i := range nr {
		offsets = append(offsets, binary.LittleEndian.Uint64(l[offLayoutOffsets+8*i:]))
	}

	return offsets
}

// Validate checks the layout for consistency.
func (l Layout) Validate() error {
	if len(l) < LayoutSize || !l.MagicValid() {
		return fmt.Errorf("%w: bad magic", ErrBadLayout)
	}

	if l.Type() != 0 {
		return fmt.Errorf("%w: unknown type %d", ErrBadLayout, l.Type())
	}

	if l.NrSuperblocks() == 0 || int(l.NrSuperblocks()) > MaxLayoutOffsets {
		return fmt.Errorf("%w: invalid number of superblocks %d", ErrBadLayout, l.NrSuperblocks())
	}

	return nil
}

// ReadLayout reads and validates the layout stored at LayoutSector.
func ReadLayout(r io.ReaderAt) (Layout, error) {
	buf := make([]byte, LayoutSize)

	if err := utils.ReadFullAt(r, buf, LayoutSector*SectorSize); err != nil {
		return nil, err
	}

	l := Layout(buf)

	if err := l.Validate(); err != nil {
		return nil, err
	}

	return l, nil
}
