// Package abi defines the "Runtime constants" of spec.md §6: the UM's
// register numbering, its 14 native opcodes, the call stack's size, and
// the Orthography instruction's 25-bit immediate field — plus the native
// instruction encoder/decoder built from them.
//
// Grounded on original_source/compiler/compiler/runtime_constants.py's
// Register IntEnum and instructions.py's set_bits/raw_instruction bit
// packing, translated to a single Encode/Decode pair instead of one Python
// class per opcode.
package abi

import "fmt"

// Op is one of the UM's 14 native opcodes.
type Op uint8

const (
	OpCMov        Op = iota // ConditionalMove
	OpIndex                 // ArrayIndex
	OpAmend                 // ArrayAmmendment
	OpAdd                   // Addition
	OpMul                   // Multiplication
	OpDiv                   // Division
	OpNand                  // NotAnd
	OpHalt                  // Halt
	OpAlloc                 // Allocation
	OpFree                  // Abandonment
	OpOutput                // Output
	OpInput                 // Input
	OpLoadProgram           // LoadProgram
	OpOrthography           // Orthography (load 25-bit immediate)

	NumOps = OpOrthography + 1
)

var opNames = [...]string{
	OpCMov:        "cmov",
	OpIndex:       "index",
	OpAmend:       "amend",
	OpAdd:         "add",
	OpMul:         "mul",
	OpDiv:         "div",
	OpNand:        "nand",
	OpHalt:        "halt",
	OpAlloc:       "alloc",
	OpFree:        "free",
	OpOutput:      "output",
	OpInput:       "input",
	OpLoadProgram: "loadprogram",
	OpOrthography: "orthography",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("<invalid op %d>", uint8(op))
}

// Register is one of the UM's 8 registers.
type Register uint8

const (
	AX        Register = iota // scratch
	BX                        // scratch
	CX                        // scratch
	DX                        // scratch
	LOCALS                    // current function's locals array
	PIC_TABLE                 // position-independent code table
	STACK                     // the software call stack array
	STACK_TOP                 // next free index into STACK

	NumRegisters = STACK_TOP + 1
)

var regNames = [...]string{
	AX: "ax", BX: "bx", CX: "cx", DX: "dx",
	LOCALS: "locals", PIC_TABLE: "pic_table", STACK: "stack", STACK_TOP: "stack_top",
}

func (r Register) String() string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return fmt.Sprintf("<invalid register %d>", uint8(r))
}

// Scratch lists the 4 general-purpose registers available to the register
// allocator (spec.md §4.4). The allocator hands them out from the end of
// this list, so DX is claimed first and AX last.
var Scratch = [4]Register{AX, BX, CX, DX}

const (
	// NumScratch is the size of the scratch register pool.
	NumScratch = 4
	// StackSize is the fixed size, in words, of the software call stack
	// array (spec.md §6).
	StackSize = 1024
	// OrthographyBits is the width of Orthography's immediate field.
	OrthographyBits = 25
	// OrthographyMax is the largest value a single Orthography instruction
	// can load.
	OrthographyMax = 1<<OrthographyBits - 1
	// WordSize is the size, in bytes, of one native UM word.
	WordSize = 4
)

func setBits(n uint32, start, count uint, value uint32) uint32 {
	mask := ^(((uint32(1) << count) - 1) << start)
	return (n & mask) | (value << start)
}

// Encode packs a standard (non-Orthography) instruction: bits 28..31 hold
// the opcode, bits 6..8 hold A, bits 3..5 hold B, bits 0..2 hold C.
func Encode(op Op, a, b, c Register) uint32 {
	w := setBits(0, 28, 4, uint32(op))
	w = setBits(w, 6, 3, uint32(a))
	w = setBits(w, 3, 3, uint32(b))
	w = setBits(w, 0, 3, uint32(c))
	return w
}

// EncodeOrthography packs a load-immediate instruction: bits 28..31 hold
// the Orthography opcode, bits 25..27 hold the destination register, bits
// 0..24 hold the value. It panics if value exceeds OrthographyMax — every
// call site is expected to have already range-checked (spec.md §8: "∀
// Orthography emitted: 0 ≤ value ≤ 2^25−1").
func EncodeOrthography(reg Register, value uint32) uint32 {
	if value > OrthographyMax {
		panic(fmt.Sprintf("abi: orthography value %d exceeds %d-bit field", value, OrthographyBits))
	}
	w := setBits(0, 28, 4, uint32(OpOrthography))
	w = setBits(w, 25, 3, uint32(reg))
	w = setBits(w, 0, OrthographyBits, value)
	return w
}

// Instr is a single decoded native instruction.
type Instr struct {
	Op Op

	// A, B, C are valid when Op != OpOrthography.
	A, B, C Register

	// Reg, Value are valid when Op == OpOrthography.
	Reg   Register
	Value uint32
}

// Std builds a standard 3-register instruction.
func Std(op Op, a, b, c Register) Instr { return Instr{Op: op, A: a, B: b, C: c} }

// Ortho builds an Orthography (load-immediate) instruction.
func Ortho(reg Register, value uint32) Instr { return Instr{Op: OpOrthography, Reg: reg, Value: value} }

// Encode serializes the instruction to its 32-bit native word.
func (i Instr) Encode() uint32 {
	if i.Op == OpOrthography {
		return EncodeOrthography(i.Reg, i.Value)
	}
	return Encode(i.Op, i.A, i.B, i.C)
}

// Decode unpacks a native word into an Instr.
func Decode(word uint32) Instr {
	op := Op(word >> 28)
	if op == OpOrthography {
		return Instr{Op: op, Reg: Register((word >> 25) & 0x7), Value: word & OrthographyMax}
	}
	return Instr{
		Op: op,
		A:  Register((word >> 6) & 0x7),
		B:  Register((word >> 3) & 0x7),
		C:  Register(word & 0x7),
	}
}
