//go:build windows

package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"
)

func TestResolve(t *testing.T) {
	target, err := Resolve("kernel32.dll", "GetTickCount")
	require.NoError(t, err)
	assert.NotZero(t, target.Address)

	proc := windows.NewLazySystemDLL("kernel32.dll").NewProc("GetTickCount")
	require.NoError(t, proc.Find())
	assert.Equal(t, proc.Addr(), target.Address)
}

func TestResolve_ModuleNotFound(t *testing.T) {
	_, err := Resolve("graphics.dll", "present")
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestResolve_SymbolNotFound(t *testing.T) {
	_, err := Resolve("kernel32.dll", "present")
	assert.ErrorIs(t, err, ErrSymbolNotFound)
}
