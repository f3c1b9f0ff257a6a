// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mountopts splits a mount option string into kernel mount flags
// and filesystem-private data.
package mountopts

import (
	"strings"

	"github.com/siderolabs/go-pointer"
)

// keywords maps recognized options to the mount flags they set.
//
// Empty tokens and "rw" are recognized but set no flags.
var keywords = map[string]uintptr{
	"":   0,
	"rw": 0,
}

// Options is the parsed form of a mount option string.
type Options struct {
	// Flags is the bitwise OR of every recognized option.
	Flags uintptr
	// Data holds the unrecognized options joined with commas, nil if there are none.
	Data *string
}

// DataString returns Data, or an empty string if there is no data.
func (o Options) DataString() string {
	return pointer.SafeDeref(o.Data)
}

// IsKeyword returns true if the option is translated into mount flags.
func IsKeyword(option string) bool {
	_, ok := keywords[option]

	return ok
}

// Parse splits a comma-separated option string.
//
// Unrecognized options are passed through to the filesystem in their original order.
func Parse(options string) Options {
	var (
		result Options
		data   []string
	)

	for _, option := range strings.Split(options, ",") {
		if flag, ok := keywords[option]; ok {
			result.Flags |= flag

			continue
		}

		data = append(data, option)
	}

	if len(data) > 0 {
		result.Data = pointer.To(strings.Join(data, ","))
	}

	return result
}
