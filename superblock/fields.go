// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package superblock

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// FieldType is enum bch_sb_field_type.
type FieldType uint32

// Field types.
const (
	FieldJournal FieldType = iota
	FieldMembersV1
	FieldCrypt
	FieldReplicasV0
	FieldQuota
	FieldDiskGroups
	FieldClean
	FieldReplicas
	FieldJournalSeqBlacklist
	FieldJournalV2
	FieldCounters
	FieldMembersV2
	FieldErrors
	FieldExtMissing
	FieldDowngrade
)

const fieldHeaderSize = 8

// Field is a view over struct bch_sb_field, including its header.
type Field []byte

// U64s is the size of the field in 64-bit words, header included.
func (f Field) U64s() uint32 {
	return binary.LittleEndian.Uint32(f[0:])
}

// Type of the field.
func (f Field) Type() FieldType {
	return FieldType(binary.LittleEndian.Uint32(f[4:]))
}

// Fields walks the variable length fields area.
func (sb SuperBlock) Fields() ([]Field, error) {
	var fields []Field

	end := sb.Size()
	if end > len(sb) {
		return nil, fmt.Errorf("%w: fields area exceeds buffer", ErrBadField)
	}

	for pos := HeaderSize; pos < end; {
		if end-pos < fieldHeaderSize {
			return nil, fmt.Errorf("%w: truncated field header at %d", ErrBadField, pos)
		}

		f := Field(sb[pos:end])

		u64s := int(f.U64s())
		if u64s == 0 {
			return nil, fmt.Errorf("%w: zero sized field at %d", ErrBadField, pos)
		}

		size := 8 * u64s
		if size > end-pos {
			return nil, fmt.Errorf("%w: field at %d overruns superblock", ErrBadField, pos)
		}

		fields = append(fields, f[:size:size])
		pos += size
	}

	return fields, nil
}

// Field returns the first field of the given type, or nil.
func (sb SuperBlock) Field(t FieldType) Field {
	fields, err := sb.Fields()
	if err != nil {
		return nil
	}

	for _, f := range fields {
		if f.Type() == t {
			return f
		}
	}

	return nil
}

// KDFType is the key derivation function type (enum bch_kdf_types).
type KDFType uint8

// KDF types.
const (
	KDFScrypt KDFType = 0
)

func (t KDFType) String() string {
	if t == KDFScrypt {
		return "scrypt"
	}

	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// ScryptParams are the scrypt cost parameters, stored as log2 values.
type ScryptParams struct {
	LogN, LogR, LogP uint16
}

// N is the CPU/memory cost parameter.
func (p ScryptParams) N() int { return 1 << p.LogN }

// R is the block size parameter.
func (p ScryptParams) R() int { return 1 << p.LogR }

// P is the parallelization parameter.
func (p ScryptParams) P() int { return 1 << p.LogP }

// KeyMagic is the plaintext magic of struct bch_key, "bch**key" read as a little-endian u64.
var KeyMagic = [8]byte{'b', 'c', 'h', '*', '*', 'k', 'e', 'y'}

// Size of the crypt field and the encrypted key within it.
const (
	CryptSize        = 64
	KeySize          = 32
	EncryptedKeySize = 8 + KeySize
)

const (
	offCryptFlags    = 8
	offCryptKDFFlags = 16
	offCryptKey      = 24
)

// Crypt is a view over struct bch_sb_field_crypt.
type Crypt []byte

// Flags of the crypt field.
func (c Crypt) Flags() uint64 {
	return binary.LittleEndian.Uint64(c[offCryptFlags:])
}

// KDFFlags holds the KDF parameters.
func (c Crypt) KDFFlags() uint64 {
	return binary.LittleEndian.Uint64(c[offCryptKDFFlags:])
}

// KDFType is BCH_CRYPT_KDF_TYPE, flags bits 0..3; bit 4 is not part of it.
func (c Crypt) KDFType() KDFType {
	return KDFType(c.Flags() & 0xf)
}

// Scrypt returns the BCH_KDF_SCRYPT_{N,R,P} parameters.
func (c Crypt) Scrypt() ScryptParams {
	flags := c.KDFFlags()

	return ScryptParams{
		LogN: uint16(flags),
		LogR: uint16(flags >> 16),
		LogP: uint16(flags >> 32),
	}
}

// EncryptedKey returns a copy of struct bch_encrypted_key: magic followed by the key.
func (c Crypt) EncryptedKey() []byte {
	return bytes.Clone(c[offCryptKey : offCryptKey+EncryptedKeySize])
}

// Crypt returns the crypt field, if present.
func (sb SuperBlock) Crypt() (Crypt, error) {
	f := sb.Field(FieldCrypt)
	if f == nil {
		return nil, nil //nolint:nilnil
	}

	if len(f) < CryptSize {
		return nil, fmt.Errorf("%w: crypt field too small (%d bytes)", ErrBadField, len(f))
	}

	return Crypt(f), nil
}
