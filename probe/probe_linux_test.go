// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package probe_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/freddierice/go-losetup/v2"
	"github.com/google/uuid"
	"github.com/siderolabs/go-cmd/pkg/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/go-bcachefs/block"
	"github.com/siderolabs/go-bcachefs/internal/sbtest"
	"github.com/siderolabs/go-bcachefs/probe"
)

const MiB = 1024 * 1024

func writeImage(t *testing.T, contents []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "image.raw")

	require.NoError(t, os.WriteFile(path, contents, 0o600))

	return path
}

func TestProbeFile(t *testing.T) {
	t.Parallel()

	fsUUID := uuid.New()

	for _, test := range []struct {
		name  string
		image func(t *testing.T) string

		expectedStatus    probe.Status
		expectedEncrypted bool
	}{
		{
			name: "plain",
			image: func(t *testing.T) string {
				return writeImage(t, sbtest.Image(MiB, sbtest.WithUUID(fsUUID)))
			},
			expectedStatus: probe.StatusFound,
		},
		{
			name: "encrypted",
			image: func(t *testing.T) string {
				return writeImage(t, sbtest.Image(MiB, sbtest.WithUUID(fsUUID), sbtest.WithPassphrase("foo")))
			},
			expectedStatus:    probe.StatusFound,
			expectedEncrypted: true,
		},
		{
			name: "zeroes",
			image: func(t *testing.T) string {
				return writeImage(t, make([]byte, MiB))
			},
			expectedStatus: probe.StatusNotThisFilesystem,
		},
		{
			name: "tiny",
			image: func(t *testing.T) string {
				return writeImage(t, []byte("hello"))
			},
			expectedStatus: probe.StatusNotThisFilesystem,
		},
		{
			name: "missing",
			image: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing")
			},
			expectedStatus: probe.StatusUnreadable,
		},
		{
			name: "directory",
			image: func(t *testing.T) string {
				return t.TempDir()
			},
			expectedStatus: probe.StatusUnreadable,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			path := test.image(t)

			res := probe.Probe(path, probe.WithLogger(zaptest.NewLogger(t)))

			assert.Equal(t, path, res.Path)
			require.Equal(t, test.expectedStatus, res.Status, "reason: %v", res.Reason)
			assert.Equal(t, test.expectedEncrypted, res.Encrypted())

			if test.expectedStatus == probe.StatusFound {
				require.NoError(t, res.Err())
				require.NotNil(t, res.Superblock)
				assert.Equal(t, fsUUID, res.UUID())
			} else {
				require.Error(t, res.Err())
				assert.Equal(t, uuid.Nil, res.UUID())
			}
		})
	}
}

func TestProbePermissionDenied(t *testing.T) {
	t.Parallel()

	if os.Geteuid() == 0 {
		t.Skip("root bypasses file permissions")
	}

	path := writeImage(t, sbtest.Image(MiB))
	require.NoError(t, os.Chmod(path, 0))

	res := probe.Probe(path)
	assert.Equal(t, probe.StatusPermissionDenied, res.Status)
	assert.ErrorIs(t, res.Err(), probe.ErrPermissionDenied)
}

func TestProbeBlockDevice(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("skipping test; must be root")
	}

	fsUUID := uuid.New()
	path := writeImage(t, sbtest.Image(16*MiB, sbtest.WithUUID(fsUUID)))

	loDev, err := losetup.Attach(path, 0, false)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, loDev.Detach())
	})

	logger := zaptest.NewLogger(t)

	res := probe.Probe(loDev.Path(), probe.WithLogger(logger))
	require.Equal(t, probe.StatusFound, res.Status, "reason: %v", res.Reason)
	assert.Equal(t, fsUUID, res.UUID())

	// hold an exclusive lock, the probe can't take the shared one
	dev, err := block.NewFromPath(loDev.Path())
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, dev.Close())
	})

	require.NoError(t, dev.TryLock(true))

	res = probe.Probe(loDev.Path(), probe.WithLogger(logger))
	assert.Equal(t, probe.StatusUnreadable, res.Status)
	assert.ErrorIs(t, res.Err(), probe.ErrFailedLock)

	res = probe.Probe(loDev.Path(), probe.WithLogger(logger), probe.WithSkipLocking(true))
	assert.Equal(t, probe.StatusFound, res.Status)

	require.NoError(t, dev.Unlock())
}

func TestProbeFormatted(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("skipping test; must be root")
	}

	if _, err := exec.LookPath("bcachefs"); err != nil {
		t.Skip("bcachefs tools are not installed")
	}

	fsUUID := uuid.New()

	path := filepath.Join(t.TempDir(), "image.raw")

	f, err := os.Create(path)
	require.NoError(t, err)

	require.NoError(t, f.Truncate(256*MiB))
	require.NoError(t, f.Close())

	loDev, err := losetup.Attach(path, 0, false)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, loDev.Detach())
	})

	_, err = cmd.RunContext(t.Context(), "bcachefs", "format", "--uuid="+fsUUID.String(), "--fs_label=probed", loDev.Path())
	require.NoError(t, err)

	res := probe.Probe(loDev.Path(), probe.WithLogger(zaptest.NewLogger(t)))
	require.Equal(t, probe.StatusFound, res.Status, "reason: %v", res.Reason)

	assert.Equal(t, fsUUID, res.UUID())
	assert.False(t, res.Encrypted())

	require.NotNil(t, res.Superblock.Label())
	assert.Equal(t, "probed", *res.Superblock.Label())
}
