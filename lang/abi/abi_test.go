package abi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpString(t *testing.T) {
	for op := Op(0); op < NumOps; op++ {
		require.NotEmpty(t, op.String())
	}
	require.Contains(t, Op(NumOps).String(), "invalid")
}

func TestRegisterString(t *testing.T) {
	for r := Register(0); r < NumRegisters; r++ {
		require.NotEmpty(t, r.String())
	}
	require.Contains(t, Register(NumRegisters).String(), "invalid")
}

func TestEncodeDecodeStd(t *testing.T) {
	for op := Op(0); op < NumOps; op++ {
		if op == OpOrthography {
			continue
		}
		for _, regs := range [][3]Register{
			{AX, BX, CX},
			{DX, LOCALS, PIC_TABLE},
			{STACK, STACK_TOP, AX},
		} {
			w := Encode(op, regs[0], regs[1], regs[2])
			in := Decode(w)
			require.Equal(t, op, in.Op)
			require.Equal(t, regs[0], in.A)
			require.Equal(t, regs[1], in.B)
			require.Equal(t, regs[2], in.C)
		}
	}
}

func TestEncodeDecodeOrthography(t *testing.T) {
	cases := []uint32{0, 1, 42, OrthographyMax}
	for _, v := range cases {
		w := EncodeOrthography(BX, v)
		in := Decode(w)
		require.Equal(t, OpOrthography, in.Op)
		require.Equal(t, BX, in.Reg)
		require.Equal(t, v, in.Value)
	}
}

func TestEncodeOrthographyPanicsOnOverflow(t *testing.T) {
	require.Panics(t, func() { EncodeOrthography(AX, OrthographyMax+1) })
}

func TestInstrEncodeRoundTrip(t *testing.T) {
	std := Std(OpAdd, AX, BX, CX)
	require.Equal(t, std.Encode(), Encode(OpAdd, AX, BX, CX))

	ortho := Ortho(DX, 123)
	require.Equal(t, ortho.Encode(), EncodeOrthography(DX, 123))
}
