// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package mount

import "golang.org/x/sys/unix"

// an empty data string is passed to the kernel as NULL.
var defaultMounter Mounter = unix.Mount
