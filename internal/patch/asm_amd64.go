package patch

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"unsafe"

	"golang.org/x/arch/x86/x86asm"
)

const (
	opcodeCALLrel = 0xe8 // CALL rel32
	opcodeINT3    = 0xcc
	opcodeJMP     = 0xe9 // JMP rel32

	nearJumpSize = 5  // JMP rel32
	farJumpSize  = 14 // JMP [RIP+0]; imm64
	absCallSize  = 16 // CALL [RIP+2]; JMP +8; imm64

	// An out-of-line call needs the absolute call plus a JMP rel32 back.
	callStubSize = absCallSize + nearJumpSize

	closureStubSize = 12 // MOVQ imm64, DX; JMP [DX]

	maxInstructionLen = 15
)

// JumpSize returns the number of bytes needed at from to jump to to.
func JumpSize(from, to uintptr) int {
	if fitsRel32(int64(to) - int64(from+nearJumpSize)) {
		return nearJumpSize
	}
	return farJumpSize
}

func encodeJump(buf []byte, from, to uintptr) error {
	switch len(buf) {
	case nearJumpSize:
		diff := int64(to) - int64(from+nearJumpSize)
		if !fitsRel32(diff) {
			return fmt.Errorf("jump from %#x to %#x does not fit rel32", from, to)
		}
		buf[0] = opcodeJMP
		binary.LittleEndian.PutUint32(buf[1:], uint32(int32(diff)))
	case farJumpSize:
		farJump(buf, to)
	default:
		return fmt.Errorf("no jump encoding is %d bytes long", len(buf))
	}
	return nil
}

// farJump writes the x86-64 machine code equivalent of:
//
//	JMP [RIP+0]
//	<dest as imm64>
func farJump(buf []byte, dest uintptr) {
	buf[0] = 0xff
	buf[1] = 0x25 // ModRM: mod=00 reg=4 rm=101 (RIP+disp32)
	binary.LittleEndian.PutUint32(buf[2:], 0)
	binary.LittleEndian.PutUint64(buf[6:], uint64(dest))
}

// absCall writes the x86-64 machine code equivalent of:
//
//	CALL [RIP+2]
//	JMP +8
//	<dest as imm64>
func absCall(buf []byte, dest uintptr) {
	buf[0] = 0xff
	buf[1] = 0x15 // ModRM: mod=00 reg=2 rm=101 (RIP+disp32)
	binary.LittleEndian.PutUint32(buf[2:], 2)
	buf[6] = 0xeb
	buf[7] = 8
	binary.LittleEndian.PutUint64(buf[8:], uint64(dest))
}

// CloneFunc copies a Go function body into the arena, relocating every
// PC-relative operand that points outside of the function. The copy keeps
// working after the original entry has been overwritten.
func CloneFunc(code []byte) (*Block, error) {
	// Trim INT3 opcodes from the end of code
	end := len(code)
	for end > 0 && code[end-1] == opcodeINT3 {
		end--
	}
	if end == 0 {
		return nil, errors.New("function has no code")
	}
	code = code[:end]

	branches, err := countBranches(code)
	if err != nil {
		return nil, err
	}

	srcBase := addrOf(code)
	srcEnd := srcBase + uintptr(len(code))
	internal := func(addr uintptr) bool {
		return addr >= srcBase && addr < srcEnd
	}

	stubStart := alignUp(len(code), 16)
	size := alignUp(stubStart+branches*callStubSize, 16)

	return emit(size, func(dest []byte) ([]byte, error) {
		out, err := relocate(code, dest, stubStart, internal)
		if err != nil {
			return nil, err
		}
		return padINT3(dest, out), nil
	})
}

// StealPrologue copies the instructions covering at least need bytes at
// target into the arena and follows them with a jump to the first
// instruction that was not copied. Calling the returned block behaves like
// calling the original function, even after its first need bytes have been
// overwritten. The number of bytes copied is returned alongside the block.
func StealPrologue(target uintptr, need int) (*Block, int, error) {
	window := unsafe.Slice((*byte)(unsafe.Pointer(target)), need+maxInstructionLen)

	n := 0
	for n < need {
		inst, err := x86asm.Decode(window[n:], 64)
		if err != nil {
			return nil, 0, fmt.Errorf("decode error at offset %d: %w", n, err)
		}
		if inst.Op == x86asm.RET || inst.Op == x86asm.INT {
			return nil, 0, fmt.Errorf("function at %#x is shorter than %d bytes", target, need)
		}
		n += inst.Len
	}
	prologue := window[:n]

	branches, err := countBranches(prologue)
	if err != nil {
		return nil, 0, err
	}

	internal := func(addr uintptr) bool {
		return addr >= target && addr < target+uintptr(n)
	}

	stubStart := n + farJumpSize
	size := alignUp(stubStart+branches*callStubSize, 16)

	block, err := emit(size, func(dest []byte) ([]byte, error) {
		out, err := relocate(prologue, dest, stubStart, internal)
		if err != nil {
			return nil, err
		}
		farJump(dest[n:], target+uintptr(n))
		return padINT3(dest, dest[:max(len(out), stubStart)]), nil
	})
	if err != nil {
		return nil, 0, err
	}
	return block, n, nil
}

// ClosureStub returns code that enters the Go func value fv with its
// closure context set, which is what a direct jump from a patched function
// entry cannot do on its own.
//
// fv must stay reachable for as long as the stub may run.
func ClosureStub(fv unsafe.Pointer) (*Block, error) {
	return emit(16, func(dest []byte) ([]byte, error) {
		// MOVQ <fv>, DX
		dest[0] = byte(x86asm.PrefixREX) | byte(x86asm.PrefixREXW)
		dest[1] = 0xba
		binary.LittleEndian.PutUint64(dest[2:], uint64(uintptr(fv)))

		// JMP [DX]
		dest[10] = 0xff
		dest[11] = 0x22 // ModRM: mod=00 reg=4 rm=010 (DX)

		return padINT3(dest, dest[:closureStubSize]), nil
	})
}

// relocate copies machine instructions from src into dest translating
// relative operands as it goes. The instruction layout is preserved, so
// branches between two copied instructions need no change.
//
// Operands that point outside of src (as decided by internal) are moved to
// their new displacement. Calls and jumps that cannot reach their target
// from dest are routed through absolute stubs written from stubStart on.
//
// The data underlying the slices is assumed to be the same address the code
// would execute from. The used part of dest is returned.
func relocate(src, dest []byte, stubStart int, internal func(uintptr) bool) ([]byte, error) {
	srcBase := addrOf(src)
	destBase := addrOf(dest)
	stubEnd := stubStart

	for i := 0; i < len(src); {
		instruction, err := x86asm.Decode(src[i:], 64)
		if err != nil {
			return nil, fmt.Errorf("decode error at offset %d: %w", i, err)
		}

		copy(dest[i:], src[i:i+instruction.Len])

		if instruction.PCRel == 0 {
			i += instruction.Len
			continue
		}

		srcNext := srcBase + uintptr(i+instruction.Len)
		destNext := destBase + uintptr(i+instruction.Len)
		dispAt := i + instruction.PCRelOff

		var disp int64
		switch instruction.PCRel {
		case 1:
			disp = int64(int8(src[dispAt]))
		case 4:
			disp = int64(int32(binary.LittleEndian.Uint32(src[dispAt:])))
		default:
			return nil, fmt.Errorf("decode error at offset %d: unexpected %d byte relative operand", i, instruction.PCRel)
		}

		target := uintptr(int64(srcNext) + disp)
		if internal(target) {
			i += instruction.Len
			continue
		}

		if instruction.PCRel == 4 {
			newDisp := int64(target) - int64(destNext)
			if fitsRel32(newDisp) {
				binary.LittleEndian.PutUint32(dest[dispAt:], uint32(int32(newDisp)))
				i += instruction.Len
				continue
			}
		}

		// The operand cannot be expressed from the new address. Only plain
		// CALL and JMP can be moved out of line.
		if instruction.Len != nearJumpSize || (src[i] != opcodeCALLrel && src[i] != opcodeJMP) {
			return nil, fmt.Errorf("unable to relocate %q at offset %d: target %#x out of range", instruction.String(), i, target)
		}

		stubSize := farJumpSize
		if src[i] == opcodeCALLrel {
			stubSize = callStubSize
		}
		if stubEnd+stubSize > len(dest) {
			return nil, errors.New("relocation buffer too small")
		}

		stub := dest[stubEnd : stubEnd+stubSize]
		stubAddr := destBase + uintptr(stubEnd)
		if src[i] == opcodeCALLrel {
			absCall(stub, target)
			jumpFrom := stubAddr + callStubSize
			stub[absCallSize] = opcodeJMP
			binary.LittleEndian.PutUint32(stub[absCallSize+1:], uint32(int32(int64(destNext)-int64(jumpFrom))))
		} else {
			farJump(stub, target)
		}

		dest[i] = opcodeJMP
		binary.LittleEndian.PutUint32(dest[i+1:], uint32(int32(int64(stubAddr)-int64(destNext))))

		stubEnd += stubSize
		i += instruction.Len
	}

	for i := len(src); i < stubStart && i < len(dest); i++ {
		dest[i] = opcodeINT3
	}

	return dest[:max(stubEnd, len(src))], nil
}

// countBranches returns the number of rel32 CALL and JMP instructions in
// code, which bounds the number of out-of-line stubs relocate can need.
func countBranches(code []byte) (int, error) {
	n := 0
	for i := 0; i < len(code); {
		instruction, err := x86asm.Decode(code[i:], 64)
		if err != nil {
			return 0, fmt.Errorf("decode error at offset %d: %w", i, err)
		}
		if instruction.Len == nearJumpSize && (code[i] == opcodeCALLrel || code[i] == opcodeJMP) {
			n++
		}
		i += instruction.Len
	}
	return n, nil
}

// Disassemble renders code one instruction per line, using the address the
// code lives at.
func Disassemble(code []byte) (string, error) {
	var buf bytes.Buffer

	baseAddr := addrOf(code)

	for i := 0; i < len(code); {
		instruction, err := x86asm.Decode(code[i:], 64)
		if err != nil {
			return "", fmt.Errorf("decode error at offset %d: %w", i, err)
		}
		fmt.Fprintf(&buf, "0x%08x\t%-20s\t%s\n", baseAddr+uintptr(i), hex.EncodeToString(code[i:i+instruction.Len]), instruction.String())

		i += instruction.Len
	}

	return buf.String(), nil
}

// padINT3 fills the rest of buf after used with INT3 to match what the
// compiler does, and returns the used part rounded up to 16 bytes.
func padINT3(buf, used []byte) []byte {
	end := min(alignUp(len(used), 16), len(buf))
	for i := len(used); i < end; i++ {
		buf[i] = opcodeINT3
	}
	return buf[:end]
}

func fitsRel32(v int64) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

func addrOf(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}
