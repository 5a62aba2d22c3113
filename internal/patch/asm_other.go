//go:build !amd64

package patch

import "unsafe"

// JumpSize returns 0 to signal that no jump can be encoded.
func JumpSize(from, to uintptr) int {
	return 0
}

func encodeJump(buf []byte, from, to uintptr) error {
	return ErrUnsupportedArch
}

func CloneFunc(code []byte) (*Block, error) {
	return nil, ErrUnsupportedArch
}

func StealPrologue(target uintptr, need int) (*Block, int, error) {
	return nil, 0, ErrUnsupportedArch
}

func ClosureStub(fv unsafe.Pointer) (*Block, error) {
	return nil, ErrUnsupportedArch
}

func Disassemble(code []byte) (string, error) {
	return "", ErrUnsupportedArch
}
