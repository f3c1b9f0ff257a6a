// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package block

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	glob "github.com/ryanuber/go-glob"
	"github.com/siderolabs/gen/xslices"
)

// ListOptions configure List.
type ListOptions struct {
	SysFsRoot string
	DevRoot   string

	Include []string
	Exclude []string
}

// ListOption is a functional option for List.
type ListOption func(*ListOptions)

// WithInclude only lists devices whose path matches one of the glob patterns.
func WithInclude(patterns ...string) ListOption {
	return func(o *ListOptions) {
		o.Include = append(o.Include, patterns...)
	}
}

// WithExclude skips devices whose path matches one of the glob patterns.
func WithExclude(patterns ...string) ListOption {
	return func(o *ListOptions) {
		o.Exclude = append(o.Exclude, patterns...)
	}
}

// WithSysFsRoot overrides the sysfs mountpoint.
func WithSysFsRoot(root string) ListOption {
	return func(o *ListOptions) {
		o.SysFsRoot = root
	}
}

// WithDevRoot overrides the directory device nodes live in.
func WithDevRoot(root string) ListOption {
	return func(o *ListOptions) {
		o.DevRoot = root
	}
}

func (o *ListOptions) matches(path string) bool {
	match := func(pattern string) bool {
		return glob.Glob(pattern, path)
	}

	if len(o.Include) > 0 && !slices.ContainsFunc(o.Include, match) {
		return false
	}

	return !slices.ContainsFunc(o.Exclude, match)
}

// List returns the paths of every block device, whole disks and partitions,
// in sysfs order.
//
// Devices reporting a zero size (empty loop devices, drives without media) are skipped.
func List(opts ...ListOption) ([]string, error) {
	options := ListOptions{
		SysFsRoot: "/sys",
		DevRoot:   "/dev",
	}

	for _, opt := range opts {
		opt(&options)
	}

	classBlock := filepath.Join(options.SysFsRoot, "class", "block")

	entries, err := os.ReadDir(classBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s directory: %w", classBlock, err)
	}

	devices := make([]string, 0, len(entries))

	for _, entry := range entries {
		sysName := entry.Name()

		size, err := strconv.ParseUint(readSysFsFile(filepath.Join(classBlock, sysName, "size")), 10, 64)
		if err != nil || size == 0 {
			continue
		}

		devName := ueventDevName(filepath.Join(classBlock, sysName, "uevent"))
		if devName == "" {
			devName = sysName
		}

		devices = append(devices, filepath.Join(options.DevRoot, devName))
	}

	return xslices.Filter(devices, options.matches), nil
}

func readSysFsFile(path string) string {
	contents, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	return string(bytes.TrimSpace(contents))
}

// ueventDevName extracts DEVNAME from a sysfs uevent file.
func ueventDevName(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}

	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "DEVNAME="); ok {
			return name
		}
	}

	return ""
}
