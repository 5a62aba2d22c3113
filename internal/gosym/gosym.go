// Package gosym answers questions about Go functions in the running image:
// where a function starts, how many bytes of machine code it spans and
// which entry point carries a given symbol name.
//
// It reads the runtime's function table directly, so it only knows about
// the module the binary was linked as. Functions from plugins are not
// visible.
package gosym

import (
	"reflect"
	"runtime"
	"unsafe"
)

// Func describes a single Go function in the running image.
type Func struct {
	Name  string
	Entry uintptr

	// Code is the function body, including the INT3 padding the linker
	// places before the next function.
	Code []byte
}

// FuncAt returns the Go function starting exactly at entry. ok is false if
// entry is not the first instruction of a known Go function.
func FuncAt(entry uintptr) (Func, bool) {
	info := findfunc(entry)
	if !info.valid() || info.entry() != entry {
		return Func{}, false
	}

	return Func{
		Name:  funcName(entry),
		Entry: entry,
		Code:  funcCode(info, entry),
	}, true
}

// Contains reports whether pc falls inside any Go function of this image.
func Contains(pc uintptr) bool {
	return findfunc(pc).valid()
}

// Lookup finds the entry point of the Go function with the fully qualified
// name, e.g. "main.present" or "github.com/org/pkg.(*T).Method".
func Lookup(name string) (uintptr, bool) {
	info := findfunc(reflect.ValueOf(Lookup).Pointer())
	if !info.valid() {
		return 0, false
	}
	datap := info.datap

	for _, ft := range datap.ftab {
		entry := datap.text + uintptr(ft.entryoff)
		if entry >= datap.etext {
			// The final entry is a sentinel marking the end of text.
			continue
		}
		if funcName(entry) == name {
			return entry, true
		}
	}
	return 0, false
}

func funcName(entry uintptr) string {
	fn := runtime.FuncForPC(entry)
	if fn == nil || fn.Entry() != entry {
		return ""
	}
	return fn.Name()
}

// funcCode returns a slice over the machine code for the function at entry.
// To find the length, look at the offsets of every function and find the
// one that comes immediately after this one.
func funcCode(info funcInfo, entry uintptr) []byte {
	funcOffset := uint32(entry - info.datap.text)
	length := uint32(info.datap.etext - entry)

	for _, ft := range info.datap.ftab {
		// Does this function come before the one we're looking for?
		if ft.entryoff <= funcOffset {
			continue
		}

		// Is the distance between these two functions less than what we've seen before?
		testLength := ft.entryoff - funcOffset
		if testLength < length {
			length = testLength
		}
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(entry)), int(length))
}
