package patch

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrUnsupportedArch is returned on architectures without an encoder.
var ErrUnsupportedArch = errors.New("code patching is not supported on this architecture")

// Site is a prepared redirect at the entry of a function. Creating a Site
// does not modify anything; Apply writes the jump and Revert puts the
// original bytes back.
type Site struct {
	target []byte
	saved  []byte
	jump   []byte
}

// NewSite prepares a redirect of the code at target to dest. avail is the
// number of bytes at target that may be overwritten; it must be at least
// JumpSize(target, dest).
func NewSite(target, dest uintptr, avail int) (*Site, error) {
	size := JumpSize(target, dest)
	if size == 0 {
		return nil, ErrUnsupportedArch
	}
	if avail < size {
		return nil, fmt.Errorf("need %d bytes at %#x for the jump, only %d available", size, target, avail)
	}

	s := &Site{
		target: unsafe.Slice((*byte)(unsafe.Pointer(target)), size),
		saved:  make([]byte, size),
		jump:   make([]byte, size),
	}
	copy(s.saved, s.target)

	if err := encodeJump(s.jump, target, dest); err != nil {
		return nil, err
	}
	return s, nil
}

// Size is the number of bytes the redirect overwrites.
func (s *Site) Size() int {
	return len(s.jump)
}

// Apply writes the jump over the function entry.
func (s *Site) Apply() error {
	return s.write(s.jump)
}

// Revert restores the bytes that were at the entry when the Site was made.
func (s *Site) Revert() error {
	return s.write(s.saved)
}

func (s *Site) write(code []byte) error {
	err := mprotect(s.target, mprotectRWX)
	if err != nil {
		return fmt.Errorf("make %#x writable: %w", s.Addr(), err)
	}
	defer mprotect(s.target, mprotectRX)

	copy(s.target, code)
	return nil
}

// Addr returns the patched address.
func (s *Site) Addr() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(s.target)))
}
