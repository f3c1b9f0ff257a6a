// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package keyring

import (
	"errors"

	"golang.org/x/sys/unix"
)

const defaultRing = unix.KEY_SPEC_USER_KEYRING

type sysKeyctl struct{}

func (sysKeyctl) search(ring int, keyType, description string) (int, error) {
	id, err := unix.KeyctlSearch(ring, keyType, description, 0)

	switch {
	case errors.Is(err, unix.ENOKEY), errors.Is(err, unix.EKEYEXPIRED), errors.Is(err, unix.EKEYREVOKED):
		return 0, ErrKeyNotFound
	case err != nil:
		return 0, err
	}

	return id, nil
}

func (sysKeyctl) add(keyType, description string, payload []byte, ring int) (int, error) {
	return unix.AddKey(keyType, description, payload, ring)
}
