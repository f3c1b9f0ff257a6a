// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package utils provides checksum and I/O helpers shared by the on-disk readers.
package utils

import (
	"hash/crc32"
	"io"
	"sync"
)

var castagnoliTable = sync.OnceValue(func() *crc32.Table {
	return crc32.MakeTable(crc32.Castagnoli)
})

// CRC32c returns values compatible with Linux crc32c(seed, buf).
//
// The kernel function does no pre- or post-inversion, unlike hash/crc32.
func CRC32c(seed uint32, buf []byte) uint32 {
	return ^crc32.Update(^seed, castagnoliTable(), buf)
}

// crc64ECMA is the ECMA-182 polynomial in MSB-first form.
const crc64ECMA = 0x42F0E1EBA9EA3693

var crc64Table = sync.OnceValue(func() *[256]uint64 {
	var table [256]uint64

	for i := range table {
		crc := uint64(i) << 56

		for range 8 {
			if crc&(1<<63) != 0 {
				crc = crc<<1 ^ crc64ECMA
			} else {
				crc <<= 1
			}
		}

		table[i] = crc
	}

	return &table
})

// CRC64BE returns values compatible with Linux crc64_be(seed, buf).
func CRC64BE(seed uint64, buf []byte) uint64 {
	table := crc64Table()
	crc := seed

	for _, b := range buf {
		crc = table[byte(crc>>56)^b] ^ crc<<8
	}

	return crc
}

// IsPowerOf2 returns true if num is a power of 2.
func IsPowerOf2[T uint8 | uint16 | uint32 | uint64](num T) bool {
	return (num != 0 && ((num & (num - 1)) == 0))
}

// ReadFullAt is io.ReadFull for io.ReaderAt.
func ReadFullAt(r io.ReaderAt, buf []byte, offset int64) error {
	for n := 0; n < len(buf); {
		m, err := r.ReadAt(buf[n:], offset)

		n += m
		offset += int64(m)

		if err != nil {
			if err == io.EOF && n == len(buf) {
				return nil
			}

			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}

			return err
		}
	}

	return nil
}
