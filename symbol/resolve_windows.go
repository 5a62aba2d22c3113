//go:build windows

package symbol

import (
	"errors"

	"golang.org/x/sys/windows"
)

func resolve(module, symbol string) (uintptr, error) {
	name, err := windows.UTF16PtrFromString(module)
	if err != nil {
		return 0, moduleNotFound(module, symbol, err)
	}

	var h windows.Handle
	err = windows.GetModuleHandleEx(windows.GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT, name, &h)
	if err != nil {
		return 0, moduleNotFound(module, symbol, err)
	}

	addr, err := windows.GetProcAddress(h, symbol)
	if err != nil {
		return 0, symbolNotFound(module, symbol, err)
	}
	if addr == 0 {
		return 0, symbolNotFound(module, symbol, errors.New("null address"))
	}
	return addr, nil
}
