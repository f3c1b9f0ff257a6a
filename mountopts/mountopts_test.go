// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package mountopts_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/siderolabs/go-bcachefs/mountopts"
)

func TestParse(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		options string

		expectedFlags uintptr
		expectedData  *string
	}{
		{
			options: "",
		},
		{
			options: "rw",
		},
		{
			options: ",,,",
		},
		{
			options:       "ro",
			expectedFlags: unix.MS_RDONLY,
		},
		{
			options:       "noatime,nodev,nosuid,noexec",
			expectedFlags: unix.MS_NOATIME | unix.MS_NODEV | unix.MS_NOSUID | unix.MS_NOEXEC,
		},
		{
			options:       "dirsync,lazytime,mand,nodiratime,relatime,strictatime,sync",
			expectedFlags: unix.MS_DIRSYNC | unix.MS_LAZYTIME | unix.MS_MANDLOCK | unix.MS_NODIRATIME | unix.MS_RELATIME | unix.MS_STRICTATIME | unix.MS_SYNCHRONOUS,
		},
		{
			options:      "degraded",
			expectedData: ptr("degraded"),
		},
		{
			options:       "ro,degraded,noatime,fsck,verbose",
			expectedFlags: unix.MS_RDONLY | unix.MS_NOATIME,
			expectedData:  ptr("degraded,fsck,verbose"),
		},
		{
			options:       "compression=zstd,rw,metadata_replicas=2,,nodev",
			expectedFlags: unix.MS_NODEV,
			expectedData:  ptr("compression=zstd,metadata_replicas=2"),
		},
		{
			// typos are passed through
			options:      "noatme",
			expectedData: ptr("noatme"),
		},
	} {
		t.Run(test.options, func(t *testing.T) {
			t.Parallel()

			opts := mountopts.Parse(test.options)

			assert.Equal(t, test.expectedFlags, opts.Flags)
			assert.Equal(t, test.expectedData, opts.Data)
		})
	}
}

func TestParseProperties(t *testing.T) {
	t.Parallel()

	tokens := []string{"ro", "rw", "", "noatime", "degraded", "fsck", "nosuid", "a=b", "sync", "x"}

	// every combination of up to 4 tokens
	var walk func(prefix []string)

	walk = func(prefix []string) {
		options := strings.Join(prefix, ",")
		opts := mountopts.Parse(options)

		var private []string

		for _, token := range prefix {
			if !mountopts.IsKeyword(token) {
				private = append(private, token)
			}
		}

		if len(private) == 0 {
			require.Nil(t, opts.Data, "options %q", options)
		} else {
			require.NotNil(t, opts.Data, "options %q", options)
			require.Equal(t, strings.Join(private, ","), *opts.Data, "options %q", options)

			for _, token := range strings.Split(*opts.Data, ",") {
				require.False(t, mountopts.IsKeyword(token), "options %q", options)
			}
		}

		if len(prefix) == 4 {
			return
		}

		for _, token := range tokens {
			walk(append(prefix[:len(prefix):len(prefix)], token))
		}
	}

	walk(nil)
}

func TestDataString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", mountopts.Parse("ro").DataString())
	assert.Equal(t, "degraded", mountopts.Parse("ro,degraded").DataString())
}

func ptr(s string) *string {
	return &s
}
