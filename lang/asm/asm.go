// Package asm implements the native word serializer of spec.md §6 ("A
// contiguous sequence of 32-bit big-endian words") and a human-readable
// disassembled form used by tests and the umlc disasm command, grounded on
// nenuphar's lang/compiler/asm.go: a line-oriented textual format with its
// own scanner/writer pair (Asm/Dasm), adapted here from that package's
// nested program/function/code sections down to a single flat instruction
// stream, since UMLC's output is one contiguous array of UM words rather
// than a multi-function bytecode program.
package asm

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/havrel-lang/umlc/lang/abi"
)

// Encode serializes words to the big-endian byte stream spec.md §6
// describes as UMLC's entire output.
func Encode(words []uint32) []byte {
	buf := make([]byte, len(words)*abi.WordSize)
	for i, w := range words {
		binary.BigEndian.PutUint32(buf[i*abi.WordSize:], w)
	}
	return buf
}

// Decode parses a big-endian UM program image back into words.
func Decode(b []byte) ([]uint32, error) {
	if len(b)%abi.WordSize != 0 {
		return nil, fmt.Errorf("asm: program length %d is not a multiple of the word size %d", len(b), abi.WordSize)
	}
	words := make([]uint32, len(b)/abi.WordSize)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(b[i*abi.WordSize:])
	}
	return words, nil
}

// Dasm renders words as one instruction per line: its index, mnemonic, and
// operands — registers by name for a standard instruction, register and
// decimal value for an Orthography.
func Dasm(words []uint32) []byte {
	var b bytes.Buffer
	for i, w := range words {
		in := abi.Decode(w)
		if in.Op == abi.OpOrthography {
			fmt.Fprintf(&b, "%04d: %s %s %d\n", i, in.Op, in.Reg, in.Value)
			continue
		}
		fmt.Fprintf(&b, "%04d: %s %s %s %s\n", i, in.Op, in.A, in.B, in.C)
	}
	return b.Bytes()
}

var reverseOps = func() map[string]abi.Op {
	m := make(map[string]abi.Op, abi.NumOps)
	for op := abi.Op(0); op < abi.NumOps; op++ {
		m[op.String()] = op
	}
	return m
}()

var reverseRegs = func() map[string]abi.Register {
	m := make(map[string]abi.Register, abi.NumRegisters)
	for r := abi.Register(0); r < abi.NumRegisters; r++ {
		m[r.String()] = r
	}
	return m
}()

// Asm parses Dasm's textual form back into native words. It accepts, and
// ignores, the leading "NNNN:" index field Dasm prints, so Dasm's own
// output round-trips through Asm unchanged.
func Asm(b []byte) ([]uint32, error) {
	var words []uint32
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) > 0 && strings.HasSuffix(fields[0], ":") {
			fields = fields[1:]
		}
		if len(fields) == 0 {
			continue
		}

		op, ok := reverseOps[fields[0]]
		if !ok {
			return nil, fmt.Errorf("asm: unknown opcode %q", fields[0])
		}

		if op == abi.OpOrthography {
			if len(fields) != 3 {
				return nil, fmt.Errorf("asm: orthography wants 2 operands, got %d", len(fields)-1)
			}
			reg, ok := reverseRegs[fields[1]]
			if !ok {
				return nil, fmt.Errorf("asm: unknown register %q", fields[1])
			}
			value, err := strconv.ParseUint(fields[2], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("asm: invalid orthography value %q: %w", fields[2], err)
			}
			if uint32(value) > abi.OrthographyMax {
				return nil, fmt.Errorf("asm: orthography value %d exceeds %d-bit field", value, abi.OrthographyBits)
			}
			words = append(words, abi.EncodeOrthography(reg, uint32(value)))
			continue
		}

		if len(fields) != 4 {
			return nil, fmt.Errorf("asm: %s wants 3 operands, got %d", op, len(fields)-1)
		}
		regs := make([]abi.Register, 3)
		for i, f := range fields[1:] {
			r, ok := reverseRegs[f]
			if !ok {
				return nil, fmt.Errorf("asm: unknown register %q", f)
			}
			regs[i] = r
		}
		words = append(words, abi.Encode(op, regs[0], regs[1], regs[2]))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
