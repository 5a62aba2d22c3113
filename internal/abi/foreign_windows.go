//go:build windows

package abi

import (
	"reflect"
	"syscall"
)

// ForeignFunc returns a func value of type T that calls the C-convention
// code at addr.
func ForeignFunc[T any](addr uintptr) (T, error) {
	var fn T
	typ, err := CheckForeign[T]()
	if err != nil {
		return fn, err
	}

	call := reflect.MakeFunc(typ, func(in []reflect.Value) []reflect.Value {
		args := make([]uintptr, len(in))
		for i, v := range in {
			args[i] = toWord(v)
		}
		r1, _, _ := syscall.SyscallN(addr, args...)
		return []reflect.Value{fromWord(typ.Out(0), r1)}
	})
	reflect.ValueOf(&fn).Elem().Set(call)
	return fn, nil
}

// ForeignCallback returns a C-convention entry point that calls fn.
// Callbacks are never released; Windows caps them at a few thousand per
// process.
func ForeignCallback[T any](fn T) (uintptr, error) {
	if _, err := CheckForeign[T](); err != nil {
		return 0, err
	}
	if _, err := FuncValue(fn); err != nil {
		return 0, err
	}
	return syscall.NewCallback(fn), nil
}
