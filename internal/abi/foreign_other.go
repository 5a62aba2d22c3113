//go:build !windows

package abi

// ForeignFunc validates T but cannot produce a callable value without cgo.
func ForeignFunc[T any](addr uintptr) (T, error) {
	var fn T
	if _, err := CheckForeign[T](); err != nil {
		return fn, err
	}
	return fn, ErrForeignUnsupported
}

// ForeignCallback validates T but cannot produce an entry point without cgo.
func ForeignCallback[T any](fn T) (uintptr, error) {
	if _, err := CheckForeign[T](); err != nil {
		return 0, err
	}
	return 0, ErrForeignUnsupported
}
