//go:build linux

package mmapfile

import "golang.org/x/sys/unix"

// mapPopulateFlag returns the platform flag that asks the kernel to page
// the whole mapping in eagerly at mmap time (best-effort preload).
func mapPopulateFlag() int { return unix.MAP_POPULATE }
