// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package superblock

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/siderolabs/go-bcachefs/internal/utils"
)

// ChecksumType is enum bch_csum_type.
type ChecksumType uint8

// Checksum types.
const (
	ChecksumNone ChecksumType = iota
	ChecksumCRC32CNonzero
	ChecksumCRC64Nonzero
	ChecksumChaCha20Poly1305_80 //nolint:revive,stylecheck
	ChecksumChaCha20Poly1305_128
	ChecksumCRC32C
	ChecksumCRC64
	ChecksumXXHash
)

func (t ChecksumType) String() string {
	switch t {
	case ChecksumNone:
		return "none"
	case ChecksumCRC32CNonzero:
		return "crc32c_nonzero"
	case ChecksumCRC64Nonzero:
		return "crc64_nonzero"
	case ChecksumChaCha20Poly1305_80:
		return "chacha20_poly1305_80"
	case ChecksumChaCha20Poly1305_128:
		return "chacha20_poly1305_128"
	case ChecksumCRC32C:
		return "crc32c"
	case ChecksumCRC64:
		return "crc64"
	case ChecksumXXHash:
		return "xxhash"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Csum is struct bch_csum.
type Csum struct {
	Lo, Hi uint64
}

// Checksum computes a checksum of the given type over buf.
//
// Encrypted (ChaCha20/Poly1305) checksums need the filesystem key and are never
// used for superblocks, so they are rejected.
func Checksum(t ChecksumType, buf []byte) (Csum, error) {
	switch t {
	case ChecksumNone:
		return Csum{}, nil
	case ChecksumCRC32CNonzero:
		return Csum{Lo: uint64(utils.CRC32c(math.MaxUint32, buf) ^ math.MaxUint32)}, nil
	case ChecksumCRC32C:
		return Csum{Lo: uint64(utils.CRC32c(0, buf))}, nil
	case ChecksumCRC64Nonzero:
		return Csum{Lo: utils.CRC64BE(math.MaxUint64, buf) ^ math.MaxUint64}, nil
	case ChecksumCRC64:
		return Csum{Lo: utils.CRC64BE(0, buf)}, nil
	case ChecksumXXHash:
		return Csum{Lo: xxhash.Sum64(buf)}, nil
	case ChecksumChaCha20Poly1305_80, ChecksumChaCha20Poly1305_128:
		fallthrough
	default:
		return Csum{}, fmt.Errorf("%w: %s", ErrUnsupportedChecksum, t)
	}
}
