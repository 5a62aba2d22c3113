package patch

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmit_Executable(t *testing.T) {
	// MOVL $42, AX; RET
	code := []byte{0xb8, 0x2a, 0, 0, 0, 0xc3}

	block, err := emit(len(code), func(dest []byte) ([]byte, error) {
		return dest[:copy(dest, code)], nil
	})
	require.NoError(t, err)
	t.Cleanup(block.Free)

	assert.Equal(t, code, block.Code())
	if runtime.GOOS == "linux" {
		assert.Less(t, uint64(block.Addr()), uint64(1)<<32, "arena should be mapped low")
	}

	fn := funcAt[func() int](block.Addr())
	assert.Equal(t, 42, fn())
}

func TestEmit_BuildError(t *testing.T) {
	_, err := emit(16, func([]byte) ([]byte, error) {
		return nil, assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	// The arena is still usable afterwards.
	block, err := emit(1, func(dest []byte) ([]byte, error) {
		dest[0] = 0xc3
		return dest[:1], nil
	})
	require.NoError(t, err)
	block.Free()
	assert.Nil(t, block.Code())
}
