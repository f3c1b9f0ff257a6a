// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package mount_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"

	"github.com/siderolabs/go-bcachefs/mount"
)

type devices string

func (d devices) DeviceString() string { return string(d) }

type call struct {
	source, target, fstype string
	flags                  uintptr
	data                   string
}

func recorder(calls *[]call, err error) mount.Mounter {
	return func(source, target, fstype string, flags uintptr, data string) error {
		*calls = append(*calls, call{source, target, fstype, flags, data})

		return err
	}
}

func TestMount(t *testing.T) {
	t.Parallel()

	var calls []call

	err := mount.Mount(devices("/dev/sda:/dev/sdb"), "/mnt", "ro,degraded,noatime,fsck",
		mount.WithMounter(recorder(&calls, nil)),
		mount.WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)

	assert.Equal(t, []call{
		{
			source: "/dev/sda:/dev/sdb",
			target: "/mnt",
			fstype: "bcachefs",
			flags:  unix.MS_RDONLY | unix.MS_NOATIME,
			data:   "degraded,fsck",
		},
	}, calls)
}

func TestMountNoData(t *testing.T) {
	t.Parallel()

	var calls []call

	require.NoError(t, mount.New(mount.WithMounter(recorder(&calls, nil))).Mount(devices("/dev/vda"), "/mnt", ""))

	require.Len(t, calls, 1)
	assert.Zero(t, calls[0].flags)
	assert.Empty(t, calls[0].data)
}

func TestMountError(t *testing.T) {
	t.Parallel()

	var calls []call

	err := mount.Mount(devices("/dev/sda"), "/mnt", "nodev,compression=lz4", mount.WithMounter(recorder(&calls, unix.EBUSY)))
	require.Error(t, err)

	// attempted exactly once
	assert.Len(t, calls, 1)

	assert.ErrorIs(t, err, unix.EBUSY)
	assert.EqualError(t, err, "failed to mount /dev/sda on /mnt: device or resource busy")

	var mountErr *mount.Error

	require.True(t, errors.As(err, &mountErr))

	assert.Equal(t, "/dev/sda", mountErr.Source)
	assert.Equal(t, "/mnt", mountErr.Target)
	assert.EqualValues(t, unix.MS_NODEV, mountErr.Flags)
	require.NotNil(t, mountErr.Data)
	assert.Equal(t, "compression=lz4", *mountErr.Data)

	errno, ok := mountErr.Errno()
	require.True(t, ok)
	assert.Equal(t, unix.EBUSY, errno)
}
