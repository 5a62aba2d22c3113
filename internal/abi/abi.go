// Package abi converts between raw code addresses and typed Go func
// values. Every unsafe conversion of that kind in the module happens here,
// and each conversion checks the function type it is asked to produce.
//
// Two conventions are supported:
//
//   - Go: the code follows the Go internal ABI, e.g. a relocated copy of a
//     Go function. Any func type is allowed.
//   - Foreign: the code follows the platform C calling convention, e.g. an
//     exported DLL function. Arguments and the single result must fit in a
//     machine word. Only Windows can call and be called this way without
//     cgo.
package abi

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"
)

// MaxForeignArgs is the largest number of arguments accepted for a
// foreign function.
const MaxForeignArgs = 15

var (
	// ErrNotFunc is returned when a type parameter or value is not a func.
	ErrNotFunc = errors.New("not a function")

	// ErrForeignUnsupported is returned on platforms that cannot call or
	// be called through the C convention without cgo.
	ErrForeignUnsupported = errors.New("foreign calling convention is not supported on this platform")
)

// CheckFunc verifies that T is a func type and returns it.
func CheckFunc[T any]() (reflect.Type, error) {
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w, kind: %v", ErrNotFunc, typ.Kind())
	}
	return typ, nil
}

// FuncValue returns the func value pointer held by fn, which must be a
// non-nil func of type T. The pointer stays valid while fn is reachable.
func FuncValue[T any](fn T) (unsafe.Pointer, error) {
	fnv := reflect.ValueOf(fn)
	if fnv.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w, kind: %v", ErrNotFunc, fnv.Kind())
	}
	if fnv.IsNil() {
		return nil, errors.New("nil function")
	}
	return *(*unsafe.Pointer)(unsafe.Pointer(&fn)), nil
}

// Entry returns the address of the first instruction of fn.
func Entry[T any](fn T) uintptr {
	fnv := reflect.ValueOf(fn)
	if fnv.Kind() != reflect.Func || fnv.IsNil() {
		return 0
	}
	return fnv.Pointer()
}

// FuncOf returns a func value of type T that runs the Go-convention code at
// addr.
func FuncOf[T any](addr uintptr) (T, error) {
	var zero T
	if _, err := CheckFunc[T](); err != nil {
		return zero, err
	}
	if addr == 0 {
		return zero, errors.New("nil code address")
	}

	// A func value is a pointer to a word holding the code address. The
	// word is heap allocated and referenced by the returned value.
	ref := new(uintptr)
	*ref = addr
	return *(*T)(unsafe.Pointer(&ref)), nil
}

// CheckForeign verifies that T can be used with the foreign convention:
// at most MaxForeignArgs word-sized arguments and exactly one word-sized
// result.
func CheckForeign[T any]() (reflect.Type, error) {
	typ, err := CheckFunc[T]()
	if err != nil {
		return nil, err
	}

	var errs []error
	if typ.IsVariadic() {
		errs = append(errs, errors.New("variadic functions are not supported"))
	}
	if typ.NumIn() > MaxForeignArgs {
		errs = append(errs, fmt.Errorf("%d arguments, at most %d are supported", typ.NumIn(), MaxForeignArgs))
	}
	for i := 0; i < typ.NumIn(); i++ {
		if !wordArg(typ.In(i)) {
			errs = append(errs, fmt.Errorf("argument %d: %v does not fit in a register", i, typ.In(i)))
		}
	}
	if typ.NumOut() != 1 {
		errs = append(errs, fmt.Errorf("%d results, exactly one is required", typ.NumOut()))
	} else if !wordResult(typ.Out(0)) {
		errs = append(errs, fmt.Errorf("result: %v is not word-sized", typ.Out(0)))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%v: %w", typ, errors.Join(errs...))
	}
	return typ, nil
}

func wordArg(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Pointer, reflect.UnsafePointer:
		return t.Size() <= unsafe.Sizeof(uintptr(0))
	}
	return false
}

func wordResult(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64, reflect.Uintptr,
		reflect.Pointer, reflect.UnsafePointer:
		return t.Size() == unsafe.Sizeof(uintptr(0))
	}
	return false
}

// toWord converts a foreign call argument to its register value.
func toWord(v reflect.Value) uintptr {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return 1
		}
		return 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uintptr(v.Int())
	case reflect.Pointer, reflect.UnsafePointer:
		return uintptr(v.UnsafePointer())
	default:
		return uintptr(v.Uint())
	}
}

// fromWord converts a foreign call result register to a value of type t.
func fromWord(t reflect.Type, w uintptr) reflect.Value {
	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int64:
		v.SetInt(int64(w))
	case reflect.Pointer, reflect.UnsafePointer:
		*(*uintptr)(v.Addr().UnsafePointer()) = w
	default:
		v.SetUint(uint64(w))
	}
	return v
}
