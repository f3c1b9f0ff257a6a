// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package magic implements the magic number detection for on-disk structures.
package magic

import "bytes"

// Magic defines an on-disk magic value.
type Magic struct {
	// Value to search for.
	Value []byte

	// Offset in the buffer where the magic value is located.
	Offset int
}

// Matches returns true if the magic value is found at the specified offset in the buffer.
func (magic *Magic) Matches(buf []byte) bool {
	if len(buf) < magic.Offset+len(magic.Value) {
		return false
	}

	return bytes.Equal(buf[magic.Offset:magic.Offset+len(magic.Value)], magic.Value)
}

// Set is a list of alternative magic values for the same structure.
type Set []*Magic

// Match returns the first magic value found in the buffer, or nil.
func (set Set) Match(buf []byte) *Magic {
	for _, magic := range set {
		if magic.Matches(buf) {
			return magic
		}
	}

	return nil
}
