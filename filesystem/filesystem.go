// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package filesystem assembles probed devices into bcachefs filesystems.
package filesystem

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/siderolabs/go-bcachefs/superblock"
)

// Filesystem is a (possibly multi-device) bcachefs filesystem.
type Filesystem struct {
	uuid       uuid.UUID
	superblock *superblock.Handle
	devices    []string
}

// New creates a Filesystem from the superblock of its first member device.
func New(h *superblock.Handle, device string) *Filesystem {
	return &Filesystem{
		uuid:       h.UUID(),
		superblock: h,
		devices:    []string{device},
	}
}

// UUID is the user-facing filesystem UUID.
func (fs *Filesystem) UUID() uuid.UUID {
	return fs.uuid
}

// Encrypted returns true if the filesystem needs a key to be mounted.
func (fs *Filesystem) Encrypted() bool {
	return fs.superblock.Encrypted()
}

// Superblock of the first member device seen.
func (fs *Filesystem) Superblock() *superblock.Handle {
	return fs.superblock
}

// Label returns the filesystem label, or nil.
func (fs *Filesystem) Label() *string {
	return fs.superblock.Label()
}

// Devices returns the member devices in discovery order.
func (fs *Filesystem) Devices() []string {
	return slices.Clone(fs.devices)
}

// DeviceString is the mount source: member devices joined with colons.
func (fs *Filesystem) DeviceString() string {
	return strings.Join(fs.devices, ":")
}

func (fs *Filesystem) String() string {
	var sb strings.Builder

	sb.WriteString(fs.uuid.String())

	if label := fs.Label(); label != nil {
		fmt.Fprintf(&sb, " %q", *label)
	}

	if fs.Encrypted() {
		sb.WriteString(" (encrypted)")
	}

	sb.WriteString(": ")
	sb.WriteString(fs.DeviceString())

	return sb.String()
}

// addDevice records every Found outcome, a repeated path included.
func (fs *Filesystem) addDevice(device string) {
	fs.devices = append(fs.devices, device)
}
