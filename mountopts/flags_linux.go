// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package mountopts

import "golang.org/x/sys/unix"

func init() {
	for k, v := range map[string]uintptr{
		"dirsync":     unix.MS_DIRSYNC,
		"lazytime":    unix.MS_LAZYTIME,
		"mand":        unix.MS_MANDLOCK,
		"noatime":     unix.MS_NOATIME,
		"nodev":       unix.MS_NODEV,
		"nodiratime":  unix.MS_NODIRATIME,
		"noexec":      unix.MS_NOEXEC,
		"nosuid":      unix.MS_NOSUID,
		"relatime":    unix.MS_RELATIME,
		"ro":          unix.MS_RDONLY,
		"strictatime": unix.MS_STRICTATIME,
		"sync":        unix.MS_SYNCHRONOUS,
	} {
		keywords[k] = v
	}
}
