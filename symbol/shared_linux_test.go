//go:build linux && cgo

package symbol

import (
	"debug/elf"
	"os"
	"testing"
	"unsafe"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// libcPath returns the path of the mapped libc, skipping the test when the
// binary was linked without it.
func libcPath(t *testing.T) string {
	t.Helper()
	proc, err := process.NewProcess(int32(os.Getpid()))
	require.NoError(t, err)
	path, err := findMapped(proc, "libc.so.6")
	if err != nil {
		t.Skip("libc.so.6 is not mapped")
	}
	return path
}

// fileBytes reads n bytes of symbol's code from the ELF file at path.
func fileBytes(t *testing.T, path, symbol string, n int) []byte {
	t.Helper()
	f, err := elf.Open(path)
	require.NoError(t, err)
	defer f.Close()

	syms, err := f.DynamicSymbols()
	require.NoError(t, err)

	for _, s := range syms {
		if s.Name != symbol || s.Section == elf.SHN_UNDEF || int(s.Section) >= len(f.Sections) {
			continue
		}
		sec := f.Sections[s.Section]
		buf := make([]byte, n)
		_, err := sec.ReadAt(buf, int64(s.Value-sec.Addr))
		require.NoError(t, err)
		return buf
	}
	t.Fatalf("%s not found in %s", symbol, path)
	return nil
}

func TestResolve_SharedObject(t *testing.T) {
	path := libcPath(t)

	target, err := Resolve("libc.so.6", "getpid")
	require.NoError(t, err)
	assert.Equal(t, "libc.so.6", target.Module)
	require.NotZero(t, target.Address)

	const n = 16
	mem := unsafe.Slice((*byte)(unsafe.Pointer(target.Address)), n)
	assert.Equal(t, fileBytes(t, path, "getpid", n), mem,
		"resolved address should hold the code of getpid")
}

func TestResolve_SharedObjectSymbolNotFound(t *testing.T) {
	libcPath(t)

	_, err := Resolve("libc.so.6", "framehook_no_such_function")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSymbolNotFound)
	assert.NotErrorIs(t, err, ErrModuleNotFound)
}
