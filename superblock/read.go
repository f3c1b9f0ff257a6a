// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package superblock

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/siderolabs/go-pointer"

	"github.com/siderolabs/go-bcachefs/internal/utils"
)

// Handle is a validated superblock read from a device.
type Handle struct {
	sb     SuperBlock
	crypt  Crypt
	sector uint64
}

// SuperBlock returns the raw superblock.
func (h *Handle) SuperBlock() SuperBlock {
	return h.sb
}

// Sector the superblock was read from.
func (h *Handle) Sector() uint64 {
	return h.sector
}

// UUID is the user-facing filesystem UUID.
func (h *Handle) UUID() uuid.UUID {
	return h.sb.UserUUID()
}

// InternalUUID is the internal filesystem UUID, used as the key unwrapping nonce.
func (h *Handle) InternalUUID() uuid.UUID {
	return h.sb.UUID()
}

// Label returns the filesystem label, or nil if it is not set.
func (h *Handle) Label() *string {
	lbl := h.sb.Label()
	if lbl[0] == 0 {
		return nil
	}

	idx := bytes.IndexByte(lbl, 0)
	if idx == -1 {
		idx = len(lbl)
	}

	return pointer.To(string(lbl[:idx]))
}

// Crypt returns the encryption metadata, if the filesystem is encrypted.
func (h *Handle) Crypt() (Crypt, bool) {
	return h.crypt, h.crypt != nil
}

// Encrypted returns true if the superblock carries a crypt field.
func (h *Handle) Encrypted() bool {
	return h.crypt != nil
}

// Read reads the primary superblock, falling back to the backup copies
// listed in the layout if the primary one is not valid.
//
// I/O errors are returned as is, any other failure wraps ErrInvalid.
func Read(r io.ReaderAt) (*Handle, error) {
	h, err := ReadAt(r, DefaultSector)
	if err == nil || !errors.Is(err, ErrInvalid) {
		return h, err
	}

	layout, layoutErr := ReadLayout(r)
	if layoutErr != nil {
		return nil, err
	}

	for _, sector := range layout.Offsets() {
		if sector == DefaultSector {
			continue
		}

		if backup, backupErr := ReadAt(r, sector); backupErr == nil {
			return backup, nil
		}
	}

	return nil, err
}

// ReadAt reads and validates the superblock at the given sector.
func ReadAt(r io.ReaderAt, sector uint64) (*Handle, error) {
	offset := int64(sector) * SectorSize
	header := make([]byte, HeaderSize)

	if err := readFull(r, header, offset); err != nil {
		return nil, err
	}

	sb := SuperBlock(header)

	if !sb.MagicValid() {
		return nil, ErrBadMagic
	}

	if sb.Version() < MinVersion {
		return nil, fmt.Errorf("%w: %d < %d", ErrUnsupportedVersion, sb.Version(), MinVersion)
	}

	size := sb.Size()
	if size > MaxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}

	if size > HeaderSize {
		full := make([]byte, size)
		copy(full, header)

		if err := readFull(r, full[HeaderSize:], offset+HeaderSize); err != nil {
			return nil, err
		}

		sb = SuperBlock(full)
	}

	if err := sb.VerifyChecksum(); err != nil {
		return nil, err
	}

	if !utils.IsPowerOf2(sb.BlockSize()) {
		return nil, fmt.Errorf("%w: %d sectors", ErrBadBlockSize, sb.BlockSize())
	}

	if _, err := sb.Fields(); err != nil {
		return nil, err
	}

	crypt, err := sb.Crypt()
	if err != nil {
		return nil, err
	}

	return &Handle{
		sb:     sb,
		crypt:  crypt,
		sector: sector,
	}, nil
}

func readFull(r io.ReaderAt, buf []byte, offset int64) error {
	err := utils.ReadFullAt(r, buf, offset)
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: device too small", ErrInvalid)
	}

	return err
}
