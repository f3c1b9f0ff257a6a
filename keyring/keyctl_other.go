// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build !linux

package keyring

import "errors"

// KEY_SPEC_USER_KEYRING
const defaultRing = -4

type sysKeyctl struct{}

func (sysKeyctl) search(int, string, string) (int, error) {
	return 0, errors.ErrUnsupported
}

func (sysKeyctl) add(string, string, []byte, int) (int, error) {
	return 0, errors.ErrUnsupported
}
