// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/go-bcachefs/block"
)

func sysfs(t *testing.T, devices map[string]struct{ size, devName string }) string {
	t.Helper()

	root := t.TempDir()

	for name, dev := range devices {
		dir := filepath.Join(root, "class", "block", name)

		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "size"), []byte(dev.size+"\n"), 0o644))

		uevent := "MAJOR=8\nMINOR=0\n"
		if dev.devName != "" {
			uevent += "DEVNAME=" + dev.devName + "\nDEVTYPE=disk\n"
		}

		require.NoError(t, os.WriteFile(filepath.Join(dir, "uevent"), []byte(uevent), 0o644))
	}

	return root
}

func TestList(t *testing.T) {
	t.Parallel()

	root := sysfs(t, map[string]struct{ size, devName string }{
		"sda":       {"2048", "sda"},
		"sda1":      {"1024", "sda1"},
		"sdb":       {"4096", "sdb"},
		"loop0":     {"0", "loop0"},
		"sr0":       {"0", "sr0"},
		"nvme0n1":   {"8192", "nvme0n1"},
		"nvme0n1p1": {"8192", ""},
		"dm-0":      {"100", "dm-0"},
	})

	for _, test := range []struct {
		name string
		opts []block.ListOption

		expected []string
	}{
		{
			name: "all",
			expected: []string{
				"/dev/dm-0",
				"/dev/nvme0n1",
				"/dev/nvme0n1p1",
				"/dev/sda",
				"/dev/sda1",
				"/dev/sdb",
			},
		},
		{
			name: "include",
			opts: []block.ListOption{block.WithInclude("/dev/sd*")},
			expected: []string{
				"/dev/sda",
				"/dev/sda1",
				"/dev/sdb",
			},
		},
		{
			name: "exclude",
			opts: []block.ListOption{block.WithExclude("/dev/dm-*", "/dev/sda*")},
			expected: []string{
				"/dev/nvme0n1",
				"/dev/nvme0n1p1",
				"/dev/sdb",
			},
		},
		{
			name: "include and exclude",
			opts: []block.ListOption{block.WithInclude("/dev/nvme*", "/dev/sdb"), block.WithExclude("*p1")},
			expected: []string{
				"/dev/nvme0n1",
				"/dev/sdb",
			},
		},
		{
			name: "dev root",
			opts: []block.ListOption{block.WithDevRoot("/tmp/dev"), block.WithInclude("/tmp/dev/sda")},
			expected: []string{
				"/tmp/dev/sda",
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			devices, err := block.List(append([]block.ListOption{block.WithSysFsRoot(root)}, test.opts...)...)
			require.NoError(t, err)

			assert.Equal(t, test.expected, devices)
		})
	}
}

func TestListNoSysFs(t *testing.T) {
	t.Parallel()

	_, err := block.List(block.WithSysFsRoot(t.TempDir()))
	require.Error(t, err)
}
