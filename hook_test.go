//go:build amd64

package framehook

import (
	"testing"

	"github.com/pboyd/framehook/internal/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:noinline
func a() string {
	return "a"
}

func b() string {
	return "b"
}

func redefine[T any](t *testing.T, fn, replacement T) *Hook[T] {
	t.Helper()
	h, err := Redefine(fn, replacement)
	require.NoError(t, err)
	t.Cleanup(func() {
		if h.Status() != Uninstalled {
			assert.NoError(t, h.Uninstall())
		}
	})
	return h
}

func TestRedefine(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("a", a())
	h := redefine(t, a, b)
	assert.Equal(Enabled, h.Status())
	assert.Equal("b", a())

	assert.NoError(h.Uninstall())
	assert.Equal("a", a())
}

//go:noinline
func present(surface uintptr) uintptr {
	return surface + 1
}

func TestHook_Lifecycle(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var replaced, originals int
	var h *Hook[func(uintptr) uintptr]
	h, err := Install(abi.Entry(present), func(surface uintptr) uintptr {
		replaced++
		originals++
		return h.Original()(surface)
	})
	require.NoError(err)
	t.Cleanup(func() { h.Uninstall() })

	assert.Equal(Installed, h.Status())
	assert.Equal(abi.Entry(present), h.Target())

	// Installing does not redirect anything yet.
	assert.Equal(uintptr(2), present(1))
	assert.Zero(replaced)

	require.NoError(h.Enable())
	for i := 0; i < 5; i++ {
		assert.Equal(uintptr(i+1), present(uintptr(i)))
	}
	assert.Equal(5, replaced)
	assert.Equal(5, originals)

	replaced, originals = 0, 0
	for i := 0; i < 3; i++ {
		present(0)
	}
	require.NoError(h.Disable())
	for i := 0; i < 2; i++ {
		assert.Equal(uintptr(11), present(10))
	}
	assert.Equal(3, replaced)
	assert.Equal(Disabled, h.Status())

	require.NoError(h.Enable())
	present(0)
	assert.Equal(4, replaced)

	require.NoError(h.Uninstall())
	assert.Equal(Uninstalled, h.Status())
	present(0)
	assert.Equal(4, replaced)
}

func TestHook_InvalidTransitions(t *testing.T) {
	h, err := Install(abi.Entry(present), func(surface uintptr) uintptr { return 0 })
	require.NoError(t, err)

	assert.ErrorIs(t, h.Disable(), ErrDisableFailed)

	require.NoError(t, h.Enable())
	assert.ErrorIs(t, h.Enable(), ErrEnableFailed)

	require.NoError(t, h.Uninstall())
	assert.ErrorIs(t, h.Uninstall(), ErrUninstalled)
	assert.ErrorIs(t, h.Enable(), ErrEnableFailed)
	assert.ErrorIs(t, h.Disable(), ErrDisableFailed)
	assert.Equal(t, uintptr(1), present(0))
}

func TestInstall_AlreadyInstalled(t *testing.T) {
	replacement := func(surface uintptr) uintptr { return 0 }

	h, err := Install(abi.Entry(present), replacement)
	require.NoError(t, err)

	_, err = Install(abi.Entry(present), replacement)
	assert.ErrorIs(t, err, ErrAlreadyInstalled)

	require.NoError(t, h.Uninstall())

	// The target can be hooked again once the first hook is gone.
	h, err = Install(abi.Entry(present), replacement)
	require.NoError(t, err)
	assert.NoError(t, h.Uninstall())
}

func TestInstall_Invalid(t *testing.T) {
	t.Run("nil target", func(t *testing.T) {
		_, err := Install(0, b)
		assert.ErrorIs(t, err, ErrInstallFailed)
	})

	t.Run("replacement not a function", func(t *testing.T) {
		_, err := Install(abi.Entry(a), 42)
		assert.ErrorIs(t, err, ErrInstallFailed)
		assert.ErrorIs(t, err, abi.ErrNotFunc)
	})

	t.Run("nil replacement", func(t *testing.T) {
		var fn func() string
		_, err := Install(abi.Entry(a), fn)
		assert.ErrorIs(t, err, ErrInstallFailed)
	})

	t.Run("nil function", func(t *testing.T) {
		var fn func() string
		_, err := Redefine(fn, b)
		assert.ErrorIs(t, err, ErrInstallFailed)
	})

	t.Run("nothing left installed", func(t *testing.T) {
		assert.Equal(t, "a", a())
		h := redefine(t, a, b)
		assert.NoError(t, h.Uninstall())
	})
}

//go:noinline
func noArgsNoReturn() {
	// empty
}

func noArgsNoReturnReplacement() {
	// also empty
}

func TestRedefine_NoArgsNoReturn(t *testing.T) {
	// Should not panic or error
	redefine(t, noArgsNoReturn, noArgsNoReturnReplacement)
	noArgsNoReturn()
}

//go:noinline
func multipleArgs(x int, y string, z bool) int {
	if z {
		return x + len(y)
	}
	return x
}

func multipleArgsReplacement(x int, y string, z bool) int {
	return 999
}

func TestRedefine_MultipleArgs(t *testing.T) {
	assert.Equal(t, 5, multipleArgs(2, "foo", true))
	redefine(t, multipleArgs, multipleArgsReplacement)
	assert.Equal(t, 999, multipleArgs(2, "foo", true))
}

//go:noinline
func multipleReturns(x int) (int, string, error) {
	return x * 2, "original", nil
}

func multipleReturnsReplacement(x int) (int, string, error) {
	return x * 10, "replaced", nil
}

func TestRedefine_MultipleReturns(t *testing.T) {
	n, s, err := multipleReturns(5)
	assert.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, "original", s)

	redefine(t, multipleReturns, multipleReturnsReplacement)

	n, s, err = multipleReturns(5)
	assert.NoError(t, err)
	assert.Equal(t, 50, n)
	assert.Equal(t, "replaced", s)
}

//go:noinline
func withSliceArg(s []int) int {
	sum := 0
	for _, v := range s {
		sum += v
	}
	return sum
}

func TestRedefine_Closure(t *testing.T) {
	slice := []int{1, 2, 3, 4, 5}
	assert.Equal(t, 15, withSliceArg(slice))

	calls := 0
	redefine(t, withSliceArg, func(s []int) int {
		calls++
		return len(s)
	})

	assert.Equal(t, 5, withSliceArg(slice))
	assert.Equal(t, 2, withSliceArg(slice[:2]))
	assert.Equal(t, 2, calls)
}

type testInterface interface {
	Value() int
}

type testImpl struct {
	val int
}

func (t testImpl) Value() int {
	return t.val
}

//go:noinline
func withInterfaceArg(i testInterface) int {
	return i.Value()
}

func withInterfaceArgReplacement(i testInterface) int {
	return i.Value() * 2
}

func TestRedefine_InterfaceArgs(t *testing.T) {
	impl := testImpl{val: 21}
	assert.Equal(t, 21, withInterfaceArg(impl))

	redefine(t, withInterfaceArg, withInterfaceArgReplacement)

	assert.Equal(t, 42, withInterfaceArg(impl))
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "uninstalled", Uninstalled.String())
	assert.Equal(t, "enabled", Enabled.String())
	assert.Equal(t, "unknown", Status(99).String())
}
