//go:build !linux && !windows

package symbol

import "errors"

func resolve(module, symbol string) (uintptr, error) {
	return 0, moduleNotFound(module, symbol, errors.New("module lookup is not supported on this platform"))
}
