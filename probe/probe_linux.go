// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

//go:build linux

package probe

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/siderolabs/go-bcachefs/block"
	"github.com/siderolabs/go-bcachefs/superblock"
)

// minDeviceSize is the smallest device which can hold the primary superblock.
const minDeviceSize = superblock.DefaultSector*superblock.SectorSize + superblock.HeaderSize

// Probe implements Prober.
func (p *prober) Probe(path string) Result {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return Classify(path, err)
	}

	defer f.Close() //nolint:errcheck

	h, err := p.probe(f)
	if err != nil {
		return Classify(path, err)
	}

	return found(path, h)
}

func (p *prober) probe(f *os.File) (*superblock.Handle, error) {
	logger := p.options.Logger.With(zap.String("path", f.Name()))

	unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM) //nolint:errcheck

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat: %w", err)
	}

	sysStat := st.Sys().(*syscall.Stat_t) //nolint:errcheck,forcetypeassert

	switch sysStat.Mode & unix.S_IFMT {
	case unix.S_IFBLK:
		dev := block.NewFromFile(f)

		if private, err := dev.IsPrivateDeviceMapper(); private && err == nil {
			logger.Debug("skipping private device-mapper device")

			return nil, fmt.Errorf("%w: private device-mapper device", ErrNotThisFilesystem)
		}

		if dev.IsCDNoMedia() {
			logger.Debug("skipping CD-ROM device without media")

			return nil, fmt.Errorf("%w: CD-ROM without media", ErrNotThisFilesystem)
		}

		if size, err := dev.GetSize(); err == nil && size < minDeviceSize {
			return nil, fmt.Errorf("%w: device too small (%d bytes)", ErrNotThisFilesystem, size)
		}

		if !p.options.SkipLocking {
			// lock the whole disk, so that partitioning tools don't race with the probe
			wholeDisk, err := dev.GetWholeDisk()
			if err != nil {
				return nil, fmt.Errorf("failed to get whole disk: %w", err)
			}

			defer wholeDisk.Close() //nolint:errcheck

			if err = wholeDisk.TryLock(false); err != nil {
				if errors.Is(err, unix.EWOULDBLOCK) {
					return nil, ErrFailedLock
				}

				return nil, fmt.Errorf("failed to lock whole disk: %w", err)
			}

			defer wholeDisk.Unlock() //nolint:errcheck
		}
	case unix.S_IFREG:
		// image file
	default:
		return nil, fmt.Errorf("unsupported file type: %s", st.Mode().Type())
	}

	return superblock.Read(f)
}
