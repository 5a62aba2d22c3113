package symbol

import (
	"errors"
	"fmt"
)

// Kind classifies a resolution failure.
type Kind int

const (
	ModuleNotFound Kind = iota + 1
	SymbolNotFound
)

func (k Kind) String() string {
	switch k {
	case ModuleNotFound:
		return "module not found"
	case SymbolNotFound:
		return "symbol not found"
	default:
		return "unknown"
	}
}

var (
	ErrModuleNotFound = errors.New("module not found")
	ErrSymbolNotFound = errors.New("symbol not found")
)

// ResolutionError is returned by Resolve. It matches ErrModuleNotFound or
// ErrSymbolNotFound with errors.Is, depending on Kind.
type ResolutionError struct {
	Kind   Kind
	Module string
	Symbol string
	Err    error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("resolve %s!%s: %v", e.Module, e.Symbol, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func (e *ResolutionError) Is(target error) bool {
	switch target {
	case ErrModuleNotFound:
		return e.Kind == ModuleNotFound
	case ErrSymbolNotFound:
		return e.Kind == SymbolNotFound
	}
	return false
}

func moduleNotFound(module, symbol string, err error) error {
	return &ResolutionError{Kind: ModuleNotFound, Module: module, Symbol: symbol, Err: err}
}

func symbolNotFound(module, symbol string, err error) error {
	return &ResolutionError{Kind: SymbolNotFound, Module: module, Symbol: symbol, Err: err}
}
