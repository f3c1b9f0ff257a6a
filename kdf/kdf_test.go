// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package kdf_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-bcachefs/internal/sbtest"
	"github.com/siderolabs/go-bcachefs/kdf"
	"github.com/siderolabs/go-bcachefs/superblock"
)

func read(t *testing.T, opts ...sbtest.Option) *superblock.Handle {
	t.Helper()

	h, err := superblock.Read(bytes.NewReader(sbtest.Image(1024*1024, opts...)))
	require.NoError(t, err)

	return h
}

func TestNonce(t *testing.T) {
	t.Parallel()

	u := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")

	assert.Equal(t,
		[]byte{0, 0, 0, 0, 0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77},
		kdf.Nonce(u),
	)
}

// knownCrypt is a crypt field wrapped with scrypt(log N=10, log r=3, log p=0)
// and ChaCha20 computed independently of this package, with the kernel's
// 16-byte IV {0, 0, le32(uuid[0:4]), le32(uuid[4:8])}.
const knownCrypt = "08000000020000000000000000000000" +
	"0a00030000000000e8cc46d48cbf449d" +
	"1047fd1e5b555b57548c1690cdf67cf3" +
	"178b873cd7503ba36ea4bf79f9470e9c"

func TestKnownAnswer(t *testing.T) {
	t.Parallel()

	raw, err := hex.DecodeString(knownCrypt)
	require.NoError(t, err)

	crypt := superblock.Crypt(raw)
	internalUUID := uuid.MustParse("4f3c9a1e-7b2d-4c8a-9e61-d05b3f7a2c94")

	assert.Equal(t, superblock.KDFScrypt, crypt.KDFType())
	assert.Equal(t, superblock.ScryptParams{LogN: 10, LogR: 3, LogP: 0}, crypt.Scrypt())
	assert.True(t, kdf.IsWrapped(crypt))

	passphraseKey, err := kdf.Derive(crypt, []byte("Correct Horse Battery Staple"))
	require.NoError(t, err)

	assert.Equal(t,
		"1075b92d88feb0daa4546c30080d3a651c2999f31aea5e9d4fa276529b178866",
		hex.EncodeToString(passphraseKey[:]),
	)

	require.NoError(t, kdf.Verify(passphraseKey, crypt, internalUUID))

	key, err := kdf.Unwrap(passphraseKey, crypt, internalUUID)
	require.NoError(t, err)

	assert.Equal(t,
		"030a11181f262d343b424950575e656c737a81888f969da4abb2b9c0c7ced5dc",
		hex.EncodeToString(key[:]),
	)

	wrong, err := kdf.Derive(crypt, []byte("correct horse battery staple"))
	require.NoError(t, err)
	require.ErrorIs(t, kdf.Verify(wrong, crypt, internalUUID), kdf.ErrPassphraseRejected)
}

func TestDeriveAndUnwrap(t *testing.T) {
	t.Parallel()

	var fsKey kdf.Key
	for i := range fsKey {
		fsKey[i] = byte(0xa0 + i)
	}

	h := read(t, sbtest.WithPassphrase("correct horse"), sbtest.WithKey(fsKey))

	crypt, ok := h.Crypt()
	require.True(t, ok)
	assert.True(t, kdf.IsWrapped(crypt))

	passphraseKey, err := kdf.Derive(crypt, []byte("correct horse"))
	require.NoError(t, err)

	// derivation is deterministic
	again, err := kdf.Derive(crypt, []byte("correct horse"))
	require.NoError(t, err)
	assert.Equal(t, passphraseKey, again)

	key, err := kdf.Unwrap(passphraseKey, crypt, h.InternalUUID())
	require.NoError(t, err)
	assert.Equal(t, fsKey, key)

	require.NoError(t, kdf.Verify(passphraseKey, crypt, h.InternalUUID()))

	// the nonce depends on the internal UUID
	require.ErrorIs(t, kdf.Verify(passphraseKey, crypt, uuid.New()), kdf.ErrPassphraseRejected)
}

func TestWrongPassphrase(t *testing.T) {
	t.Parallel()

	h := read(t, sbtest.WithPassphrase("correct horse"))

	crypt, _ := h.Crypt()

	passphraseKey, err := kdf.Derive(crypt, []byte("battery staple"))
	require.NoError(t, err)

	_, err = kdf.Unwrap(passphraseKey, crypt, h.InternalUUID())
	require.ErrorIs(t, err, kdf.ErrPassphraseRejected)
}

func TestUnwrapped(t *testing.T) {
	t.Parallel()

	h := read(t, sbtest.WithUnwrappedKey())

	crypt, ok := h.Crypt()
	require.True(t, ok)

	assert.False(t, kdf.IsWrapped(crypt))
}

func TestUnsupportedKDF(t *testing.T) {
	t.Parallel()

	h := read(t, sbtest.WithPassphrase("x"), sbtest.WithKDFType(3))

	crypt, _ := h.Crypt()

	_, err := kdf.Derive(crypt, []byte("x"))
	require.ErrorIs(t, err, kdf.ErrUnsupportedKDF)
}

func TestKDFTypeHighBit(t *testing.T) {
	t.Parallel()

	// BCH_CRYPT_KDF_TYPE is four bits wide, bit 4 is not part of it
	h := read(t, sbtest.WithPassphrase("x"), sbtest.WithKDFType(0x10))

	crypt, _ := h.Crypt()
	assert.Equal(t, superblock.KDFScrypt, crypt.KDFType())

	passphraseKey, err := kdf.Derive(crypt, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, kdf.Verify(passphraseKey, crypt, h.InternalUUID()))
}

func TestScryptLimits(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name   string
		params superblock.ScryptParams
	}{
		{
			name:   "huge N",
			params: superblock.ScryptParams{LogN: 30, LogR: 3},
		},
		{
			name:   "N out of shift range",
			params: superblock.ScryptParams{LogN: 64, LogR: 3},
		},
		{
			name:   "N of one",
			params: superblock.ScryptParams{LogN: 0, LogR: 3},
		},
		{
			name:   "memory",
			params: superblock.ScryptParams{LogN: 20, LogR: 10},
		},
		{
			name:   "cost",
			params: superblock.ScryptParams{LogN: 18, LogR: 3, LogP: 16},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			h := read(t, sbtest.WithUnwrappedKey(), sbtest.WithScrypt(test.params))

			crypt, _ := h.Crypt()

			_, err := kdf.Derive(crypt, []byte("x"))
			require.ErrorIs(t, err, kdf.ErrUnsupportedKDF)
		})
	}
}

func TestWipe(t *testing.T) {
	t.Parallel()

	key := kdf.Key{1, 2, 3}
	key.Wipe()

	assert.Equal(t, kdf.Key{}, key)
}
