// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package keyring

// Keyctl is the syscall surface, exported for tests.
type Keyctl interface {
	Search(ring int, keyType, description string) (int, error)
	Add(keyType, description string, payload []byte, ring int) (int, error)
}

type keyctlAdapter struct {
	Keyctl
}

func (a keyctlAdapter) search(ring int, keyType, description string) (int, error) {
	return a.Search(ring, keyType, description)
}

func (a keyctlAdapter) add(keyType, description string, payload []byte, ring int) (int, error) {
	return a.Add(keyType, description, payload, ring)
}

// WithKeyctl replaces the keyctl syscalls.
func WithKeyctl(k Keyctl) Option {
	return func(o *Options) {
		o.keyctl = keyctlAdapter{k}
	}
}
