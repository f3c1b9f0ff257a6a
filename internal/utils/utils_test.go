// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package utils_test

import (
	"bytes"
	"hash/crc32"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-bcachefs/internal/utils"
)

func TestCRC32c(t *testing.T) {
	buf := []byte("hello, world")

	// seeded with ~0 and inverted afterwards, this is the standard CRC-32C
	assert.Equal(t, crc32.Checksum(buf, crc32.MakeTable(crc32.Castagnoli)), ^utils.CRC32c(^uint32(0), buf))
	assert.Equal(t, uint32(0x96665be0), utils.CRC32c(^uint32(0), buf))
	assert.Equal(t, uint32(0), utils.CRC32c(0, nil))
}

func TestCRC64BE(t *testing.T) {
	// CRC-64/ECMA-182 check value
	assert.Equal(t, uint64(0x6c40df5f0b497347), utils.CRC64BE(0, []byte("123456789")))
	assert.Equal(t, uint64(0), utils.CRC64BE(0, nil))
}

func TestIsPowerOf2(t *testing.T) {
	assert.True(t, utils.IsPowerOf2(uint32(2)))
	assert.True(t, utils.IsPowerOf2(uint64(1<<40)))
	assert.False(t, utils.IsPowerOf2(uint32(0)))
	assert.False(t, utils.IsPowerOf2(uint16(3)))
}

func TestReadFullAt(t *testing.T) {
	r := bytes.NewReader([]byte("0123456789"))

	buf := make([]byte, 4)
	require.NoError(t, utils.ReadFullAt(r, buf, 6))
	assert.Equal(t, []byte("6789"), buf)

	assert.ErrorIs(t, utils.ReadFullAt(r, buf, 8), io.ErrUnexpectedEOF)
}
