// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

// NewFromPath opens the device at path read-only.
func NewFromPath(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, err
	}

	return &Device{
		f:         f,
		ownedFile: true,
	}, nil
}

// borrow returns a Device sharing the file, closing it is a no-op.
func (d *Device) borrow() *Device {
	return &Device{
		f:     d.f,
		devNo: d.devNo,
	}
}

// GetSize returns blockdevice size in bytes.
func (d *Device) GetSize() (uint64, error) {
	var size uint64

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size))); errno != 0 {
		return 0, errno
	}

	return size, nil
}

// IsCDNoMedia returns true if the blockdevice is a CD-ROM drive without media.
//
// Devices which are not CD-ROM drives fail the capability ioctl and report false.
func (d *Device) IsCDNoMedia() bool {
	const (
		CDROM_GET_CAPABILITY = 0x5331 //nolint:revive,stylecheck
		CDROM_DRIVE_STATUS   = 0x5326 //nolint:revive,stylecheck

		CDS_NO_DISC   = 1 //nolint:revive,stylecheck
		CDS_TRAY_OPEN = 2 //nolint:revive,stylecheck
	)

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), CDROM_GET_CAPABILITY, 0); errno != 0 {
		return false
	}

	status, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), CDROM_DRIVE_STATUS, 0)

	return errno == 0 && (status == CDS_NO_DISC || status == CDS_TRAY_OPEN)
}

// GetDevNo returns the device number of the blockdevice.
func (d *Device) GetDevNo() (uint64, error) {
	if d.devNo != 0 {
		return d.devNo, nil
	}

	var st unix.Stat_t
	if err := unix.Fstat(int(d.f.Fd()), &st); err != nil {
		return 0, err
	}

	d.devNo = uint64(st.Rdev) //nolint:unconvert

	return d.devNo, nil
}

func (d *Device) sysFsPath() (string, error) {
	devNo, err := d.GetDevNo()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("/sys/dev/block/%d:%d", unix.Major(devNo), unix.Minor(devNo)), nil
}

// GetWholeDisk returns the whole disk the blockdevice belongs to.
//
// For a whole disk the device itself is returned.
// The returned device should be closed.
func (d *Device) GetWholeDisk() (*Device, error) {
	sysFsPath, err := d.sysFsPath()
	if err != nil {
		return nil, err
	}

	if _, err = os.Stat(filepath.Join(sysFsPath, "partition")); err == nil {
		var path string

		path, err = os.Readlink(sysFsPath)
		if err != nil {
			return nil, err
		}

		return NewFromPath(filepath.Join("/dev", filepath.Base(filepath.Dir(path))))
	}

	dmUUID, err := os.ReadFile(filepath.Join(sysFsPath, "dm", "uuid"))
	if err != nil || !bytes.HasPrefix(dmUUID, []byte("part-")) {
		// not a device-mapper partition
		return d.borrow(), nil //nolint:nilerr
	}

	slaves, err := os.ReadDir(filepath.Join(sysFsPath, "slaves"))
	if err != nil {
		return nil, err
	}

	if len(slaves) == 0 {
		return nil, errors.New("no slaves found")
	}

	return NewFromPath(filepath.Join("/dev", slaves[0].Name()))
}

// IsPrivateDeviceMapper returns true for LVM internal devices ("LVM-<uuid>-<name>").
func (d *Device) IsPrivateDeviceMapper() (bool, error) {
	sysFsPath, err := d.sysFsPath()
	if err != nil {
		return false, err
	}

	dmUUID, err := os.ReadFile(filepath.Join(sysFsPath, "dm", "uuid"))
	if err != nil {
		return false, nil //nolint:nilerr
	}

	rest, ok := bytes.CutPrefix(dmUUID, []byte("LVM-"))
	if !ok {
		return false, nil
	}

	return bytes.Contains(rest, []byte("-")), nil
}

// TryLock takes a flock on the device, failing with EWOULDBLOCK if it is held.
func (d *Device) TryLock(exclusive bool) error {
	how := unix.LOCK_SH | unix.LOCK_NB
	if exclusive {
		how = unix.LOCK_EX | unix.LOCK_NB
	}

	return d.flock(how)
}

// Unlock releases any lock.
func (d *Device) Unlock() error {
	return d.flock(unix.LOCK_UN)
}

func (d *Device) flock(how int) error {
	for {
		if err := unix.Flock(int(d.f.Fd()), how); !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
