// Package symbol finds the address of an exported function in a module
// that is already loaded into the current process.
package symbol

// Target is a resolved function. Address is non-zero when resolution
// succeeded.
type Target struct {
	Module  string
	Symbol  string
	Address uintptr
}

// Resolver looks up an exported symbol in a loaded module.
type Resolver interface {
	Resolve(module, symbol string) (Target, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(module, symbol string) (Target, error)

func (f ResolverFunc) Resolve(module, symbol string) (Target, error) {
	return f(module, symbol)
}

// Default resolves symbols in the current process.
var Default Resolver = ResolverFunc(Resolve)

// Resolve returns the address of symbol in the loaded module named module.
// The module is not loaded if it is missing, and its reference count is not
// changed.
//
// On Windows module is a DLL name such as "opengl32.dll". On Linux it is
// the base name of the executable or of a mapped shared object; symbols in
// the Go executable are Go function names such as "main.present".
func Resolve(module, symbol string) (Target, error) {
	addr, err := resolve(module, symbol)
	if err != nil {
		return Target{}, err
	}
	return Target{Module: module, Symbol: symbol, Address: addr}, nil
}
