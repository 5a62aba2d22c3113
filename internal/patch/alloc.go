package patch

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/pboyd/malloc"
)

type allocator struct {
	*malloc.Arena
	mprotect func(int) error
	mu       sync.Mutex
	initOnce sync.Once
	mutable  bool
}

func (a *allocator) init(startSize int) error {
	var err error
	a.initOnce.Do(func() {
		be := malloc.MmapBackend(malloc.MmapProt(mprotectExec), malloc.MmapFlags(mapFlags))
		if protBE, ok := be.(malloc.ProtectedArenaBackend); ok {
			a.mprotect = protBE.Protect
		} else {
			a.mprotect = func(int) error {
				return nil
			}
		}

		a.Arena = malloc.NewArena(uint64(startSize), malloc.Backend(be))
		if a.Arena == nil {
			err = errors.New("unable to initialize arena")
			return
		}
		a.mutable = true
	})
	return err
}

func (a *allocator) BeginMutate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// BeginMutate can be called before the initial allocation.
	if a.mprotect == nil || a.mutable {
		return nil
	}

	err := a.mprotect(mprotectRWX)
	if err == nil {
		a.mutable = true
	}
	return err
}

func (a *allocator) EndMutate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.mutable {
		return nil
	}

	err := a.mprotect(mprotectRX)
	if err == nil {
		a.mutable = false
	}
	return err
}

func (a *allocator) Allocate(size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.init(size)
	if err != nil {
		return nil, fmt.Errorf("error initializing allocator: %w", err)
	}

	if !a.mutable {
		return nil, errors.New("allocate called in immutable state")
	}

	return malloc.MallocSlice[byte](a.Arena, size)
}

func (a *allocator) Free(buf []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.mutable {
		panic("Free called in immutable state")
	}

	malloc.FreeSlice(a.Arena, buf)
}

var codeAllocator = &allocator{}

// Block is a piece of executable code living in the arena.
type Block struct {
	code []byte
	buf  []byte
}

// Addr returns the address of the first instruction.
func (b *Block) Addr() uintptr {
	if b == nil || len(b.code) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(b.code)))
}

// Code returns the machine code in the block.
func (b *Block) Code() []byte {
	return b.code
}

// Free returns the block to the arena. The block must not be executing.
func (b *Block) Free() {
	if b == nil || b.code == nil {
		return
	}

	codeAllocator.BeginMutate()
	defer codeAllocator.EndMutate()

	codeAllocator.Free(b.buf)
	b.code = nil
	b.buf = nil
}

// emit copies code into a fresh arena block sized for it. build is called
// with the destination buffer so position-dependent code can be generated
// in place; it returns the final code, which may be shorter than the buffer.
func emit(size int, build func(dest []byte) ([]byte, error)) (*Block, error) {
	if err := codeAllocator.BeginMutate(); err != nil {
		return nil, fmt.Errorf("unlock arena: %w", err)
	}
	defer codeAllocator.EndMutate()

	buf, err := codeAllocator.Allocate(size)
	if err != nil {
		return nil, err
	}

	code, err := build(buf)
	if err != nil {
		codeAllocator.Free(buf)
		return nil, err
	}

	return &Block{code: code, buf: buf}, nil
}
