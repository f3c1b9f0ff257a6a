// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package kdf derives bcachefs passphrase keys and checks them against the
// encrypted filesystem key stored in the superblock.
package kdf

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/scrypt"

	"github.com/siderolabs/go-bcachefs/superblock"
)

// Errors.
var (
	ErrUnsupportedKDF     = errors.New("unsupported key derivation function")
	ErrPassphraseRejected = errors.New("incorrect passphrase")
)

// scrypt salt, NUL terminator included.
var salt = []byte("bcache\x00")

// Limits on the scrypt parameters read from the superblock.
//
// bcachefs format uses N=2^14, r=8, p=16: 16 MiB of memory and 2^28 bytes mixed.
const (
	maxScryptLog    = 20
	maxScryptMemory = 1 << 30
	maxScryptWork   = 1 << 36
)

// Key is struct bch_key.
type Key [superblock.KeySize]byte

// Wipe zeroes the key material.
func (k *Key) Wipe() {
	clear(k[:])
}

// Nonce returns the ChaCha20 nonce used to wrap the filesystem key.
//
// The nonce is the first eight bytes of the internal UUID, preceded by a zero word.
func Nonce(internalUUID uuid.UUID) []byte {
	nonce := make([]byte, chacha20.NonceSize)
	copy(nonce[4:], internalUUID[:8])

	return nonce
}

// Derive derives the passphrase key using the KDF parameters of the crypt field.
func Derive(crypt superblock.Crypt, passphrase []byte) (Key, error) {
	var key Key

	if t := crypt.KDFType(); t != superblock.KDFScrypt {
		return key, fmt.Errorf("%w: %s", ErrUnsupportedKDF, t)
	}

	params := crypt.Scrypt()

	if err := checkScrypt(params); err != nil {
		return key, err
	}

	derived, err := scrypt.Key(passphrase, salt, params.N(), params.R(), params.P(), len(key))
	if err != nil {
		return key, fmt.Errorf("scrypt: %w", err)
	}

	copy(key[:], derived)
	clear(derived)

	return key, nil
}

func checkScrypt(params superblock.ScryptParams) error {
	if params.LogN == 0 || params.LogN > maxScryptLog || params.LogR > maxScryptLog || params.LogP > maxScryptLog {
		return fmt.Errorf("%w: scrypt parameters out of range (log N=%d r=%d p=%d)",
			ErrUnsupportedKDF, params.LogN, params.LogR, params.LogP)
	}

	// ROMix needs 128*r*N bytes, the block buffer 128*r*p
	if memory := 128 * uint64(params.R()) * uint64(params.N()+params.P()); memory > maxScryptMemory {
		return fmt.Errorf("%w: scrypt needs %d bytes of memory", ErrUnsupportedKDF, memory)
	}

	if work := 128 * uint64(params.R()) * uint64(params.N()) * uint64(params.P()); work > maxScryptWork {
		return fmt.Errorf("%w: scrypt cost too high", ErrUnsupportedKDF)
	}

	return nil
}

// IsWrapped returns false if the filesystem key is stored in the clear.
func IsWrapped(crypt superblock.Crypt) bool {
	return !bytes.Equal(crypt.EncryptedKey()[:8], superblock.KeyMagic[:])
}

// Unwrap decrypts the filesystem key with the passphrase key.
//
// ErrPassphraseRejected is returned if the decrypted magic does not match.
func Unwrap(passphraseKey Key, crypt superblock.Crypt, internalUUID uuid.UUID) (Key, error) {
	var key Key

	encrypted := crypt.EncryptedKey()
	defer clear(encrypted)

	c, err := chacha20.NewUnauthenticatedCipher(passphraseKey[:], Nonce(internalUUID))
	if err != nil {
		return key, err
	}

	c.XORKeyStream(encrypted, encrypted)

	if !bytes.Equal(encrypted[:8], superblock.KeyMagic[:]) {
		return key, ErrPassphraseRejected
	}

	copy(key[:], encrypted[8:])

	return key, nil
}

// Verify checks that passphraseKey unwraps the filesystem key.
func Verify(passphraseKey Key, crypt superblock.Crypt, internalUUID uuid.UUID) error {
	key, err := Unwrap(passphraseKey, crypt, internalUUID)
	key.Wipe()

	return err
}
