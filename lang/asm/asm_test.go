package asm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/havrel-lang/umlc/lang/abi"
	"github.com/havrel-lang/umlc/lang/asm"
)

func sampleWords() []uint32 {
	return []uint32{
		abi.Encode(abi.OpAdd, abi.AX, abi.BX, abi.CX),
		abi.EncodeOrthography(abi.DX, 1234),
		abi.Encode(abi.OpHalt, abi.AX, abi.AX, abi.AX),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	words := sampleWords()
	b := asm.Encode(words)
	require.Len(t, b, len(words)*abi.WordSize)

	got, err := asm.Decode(b)
	require.NoError(t, err)
	require.Equal(t, words, got)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, err := asm.Decode([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestDasmAsmRoundTrip(t *testing.T) {
	words := sampleWords()
	text := asm.Dasm(words)
	require.Contains(t, string(text), "add")
	require.Contains(t, string(text), "orthography")

	got, err := asm.Asm(text)
	require.NoError(t, err)
	require.Equal(t, words, got)
}

func TestAsmRejectsUnknownOpcode(t *testing.T) {
	_, err := asm.Asm([]byte("0000: frobnicate ax bx cx\n"))
	require.ErrorContains(t, err, "unknown opcode")
}

func TestAsmRejectsBadOperandCount(t *testing.T) {
	_, err := asm.Asm([]byte("add ax bx\n"))
	require.ErrorContains(t, err, "wants 3 operands")
}

func TestAsmRejectsOversizeOrthography(t *testing.T) {
	_, err := asm.Asm([]byte("orthography ax 999999999\n"))
	require.ErrorContains(t, err, "exceeds")
}

func TestAsmIgnoresCommentsAndBlankLines(t *testing.T) {
	words, err := asm.Asm([]byte("# a comment\n\nhalt ax ax ax\n"))
	require.NoError(t, err)
	require.Equal(t, []uint32{abi.Encode(abi.OpHalt, abi.AX, abi.AX, abi.AX)}, words)
}
