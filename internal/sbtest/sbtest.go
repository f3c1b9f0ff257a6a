// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package sbtest synthesizes bcachefs superblocks and disk images for tests.
package sbtest

import (
	"encoding/binary"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/scrypt"

	"github.com/siderolabs/go-bcachefs/superblock"
)

// Version written into synthesized superblocks.
const Version = 1027

// PrimaryOffset is the byte offset of the primary superblock in an image.
const PrimaryOffset = superblock.DefaultSector * superblock.SectorSize

// DefaultScrypt are cheap scrypt parameters suitable for tests.
var DefaultScrypt = superblock.ScryptParams{LogN: 10, LogR: 3, LogP: 0}

// Options describe the synthesized filesystem.
type Options struct {
	UUID         uuid.UUID
	InternalUUID uuid.UUID
	Label        string

	Checksum superblock.ChecksumType
	Version  uint16

	DevIdx    uint8
	NrDevices uint8

	Encrypted  bool
	Passphrase string
	Wrapped    bool
	KDFType    superblock.KDFType
	Scrypt     superblock.ScryptParams
	Key        [superblock.KeySize]byte

	Backups []uint64
}

// Option configures Options.
type Option func(*Options)

// WithUUID sets the user-facing filesystem UUID.
func WithUUID(u uuid.UUID) Option {
	return func(o *Options) { o.UUID = u }
}

// WithInternalUUID sets the internal filesystem UUID.
func WithInternalUUID(u uuid.UUID) Option {
	return func(o *Options) { o.InternalUUID = u }
}

// WithLabel sets the filesystem label.
func WithLabel(label string) Option {
	return func(o *Options) { o.Label = label }
}

// WithChecksum sets the superblock checksum type.
func WithChecksum(t superblock.ChecksumType) Option {
	return func(o *Options) { o.Checksum = t }
}

// WithVersion overrides the metadata version.
func WithVersion(v uint16) Option {
	return func(o *Options) { o.Version = v }
}

// WithDevice sets the member index and number of members.
func WithDevice(idx, nr uint8) Option {
	return func(o *Options) {
		o.DevIdx = idx
		o.NrDevices = nr
	}
}

// WithPassphrase marks the filesystem encrypted with the key wrapped by passphrase.
func WithPassphrase(passphrase string) Option {
	return func(o *Options) {
		o.Encrypted = true
		o.Wrapped = true
		o.Passphrase = passphrase
	}
}

// WithUnwrappedKey marks the filesystem encrypted with the key stored in the clear.
func WithUnwrappedKey() Option {
	return func(o *Options) {
		o.Encrypted = true
		o.Wrapped = false
	}
}

// WithKDFType overrides the KDF type recorded in the crypt field.
func WithKDFType(t superblock.KDFType) Option {
	return func(o *Options) { o.KDFType = t }
}

// WithScrypt overrides the scrypt parameters.
func WithScrypt(params superblock.ScryptParams) Option {
	return func(o *Options) { o.Scrypt = params }
}

// WithKey sets the filesystem key.
func WithKey(key [superblock.KeySize]byte) Option {
	return func(o *Options) { o.Key = key }
}

// WithBackups lists backup superblock sectors in the layout.
func WithBackups(sectors ...uint64) Option {
	return func(o *Options) { o.Backups = sectors }
}

// New builds Options.
func New(opts ...Option) Options {
	o := Options{
		UUID:         uuid.New(),
		InternalUUID: uuid.New(),
		Checksum:     superblock.ChecksumCRC32C,
		Version:      Version,
		NrDevices:    1,
		Scrypt:       DefaultScrypt,
	}

	for i := range o.Key {
		o.Key[i] = byte(i + 1)
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// Build renders the superblock as it would be written at the given sector.
func (o Options) Build(sector uint64) []byte {
	fields := field(superblock.FieldJournal, make([]byte, 8))

	if o.Encrypted {
		fields = append(fields, o.cryptField()...)
	}

	buf := make([]byte, superblock.HeaderSize+len(fields))

	binary.LittleEndian.PutUint16(buf[16:], o.Version)
	binary.LittleEndian.PutUint16(buf[18:], o.Version)
	copy(buf[24:], superblock.BcachefsMagic[:])
	copy(buf[40:], o.InternalUUID[:])
	copy(buf[56:], o.UUID[:])
	copy(buf[72:72+superblock.LabelSize], o.Label)
	binary.LittleEndian.PutUint64(buf[104:], sector)
	binary.LittleEndian.PutUint64(buf[112:], 1)
	binary.LittleEndian.PutUint16(buf[120:], 8)
	buf[122] = o.DevIdx
	buf[123] = o.NrDevices
	binary.LittleEndian.PutUint32(buf[124:], uint32(len(fields)/8))
	binary.LittleEndian.PutUint64(buf[144:], uint64(o.Checksum)<<2)

	copy(buf[240:240+superblock.LayoutSize], o.layout())
	copy(buf[superblock.HeaderSize:], fields)

	Reseal(buf)

	return buf
}

// Image renders a disk image of the given size with the layout, the primary
// superblock and every backup.
func (o Options) Image(size int) []byte {
	img := make([]byte, size)

	copy(img[superblock.LayoutSector*superblock.SectorSize:], o.layout())
	copy(img[PrimaryOffset:], o.Build(superblock.DefaultSector))

	for _, sector := range o.Backups {
		copy(img[sector*superblock.SectorSize:], o.Build(sector))
	}

	return img
}

// Reseal recomputes the checksum of a modified superblock.
func Reseal(buf []byte) {
	sb := superblock.SuperBlock(buf)

	csum, err := superblock.Checksum(sb.ChecksumType(), buf[16:sb.Size()])
	if err != nil {
		// leave the checksum zeroed for unsupported types
		csum = superblock.Csum{}
	}

	binary.LittleEndian.PutUint64(buf[0:], csum.Lo)
	binary.LittleEndian.PutUint64(buf[8:], csum.Hi)
}

// Image is a shorthand for New(opts...).Image(size).
func Image(size int, opts ...Option) []byte {
	return New(opts...).Image(size)
}

func (o Options) layout() []byte {
	buf := make([]byte, superblock.LayoutSize)

	sectors := append([]uint64{superblock.DefaultSector}, o.Backups...)

	copy(buf, superblock.BcachefsMagic[:])
	buf[17] = 7
	buf[18] = uint8(len(sectors))

	for i, sector := range sectors {
		binary.LittleEndian.PutUint64(buf[24+8*i:], sector)
	}

	return buf
}

func (o Options) cryptField() []byte {
	body := make([]byte, superblock.CryptSize-8)

	binary.LittleEndian.PutUint64(body[0:], uint64(o.KDFType))
	binary.LittleEndian.PutUint64(body[8:],
		uint64(o.Scrypt.LogN)|uint64(o.Scrypt.LogR)<<16|uint64(o.Scrypt.LogP)<<32)

	key := slices.Concat(superblock.KeyMagic[:], o.Key[:])

	if o.Wrapped {
		wrapping, err := scrypt.Key([]byte(o.Passphrase), []byte("bcache\x00"),
			o.Scrypt.N(), o.Scrypt.R(), o.Scrypt.P(), superblock.KeySize)
		if err != nil {
			panic(err)
		}

		nonce := make([]byte, chacha20.NonceSize)
		copy(nonce[4:], o.InternalUUID[:8])

		c, err := chacha20.NewUnauthenticatedCipher(wrapping, nonce)
		if err != nil {
			panic(err)
		}

		c.XORKeyStream(key, key)
	}

	copy(body[16:], key)

	return field(superblock.FieldCrypt, body)
}

func field(t superblock.FieldType, body []byte) []byte {
	buf := make([]byte, 8+len(body))

	binary.LittleEndian.PutUint32(buf[0:], uint32(len(buf)/8))
	binary.LittleEndian.PutUint32(buf[4:], uint32(t))
	copy(buf[8:], body)

	return buf
}
