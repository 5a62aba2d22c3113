//go:build unix

package patch

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	mprotectExec = unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC
	mprotectRX   = unix.PROT_READ | unix.PROT_EXEC
	mprotectRWX  = unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC
)

func mprotect(buf []byte, flags int) error {
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))

	pageSize := unix.Getpagesize()

	// Round address down to page boundary.
	// Example: addr=4196 with pageSize=4096 becomes 4096.
	pageStart := addr - (addr % uintptr(pageSize))

	// Calculate how many bytes from pageStart we need to cover.
	// This includes the offset from pageStart to addr, plus the requested length.
	offsetWithinPage := int(addr - pageStart)
	totalBytes := offsetWithinPage + cap(buf)

	// Round up to cover complete pages.
	regionSize := (totalBytes + pageSize - 1) / pageSize * pageSize

	region := unsafe.Slice((*byte)(unsafe.Pointer(pageStart)), regionSize)

	return unix.Mprotect(region, flags)
}
