package alloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/havrel-lang/umlc/lang/alloc"
	"github.com/havrel-lang/umlc/lang/ir"
	"github.com/havrel-lang/umlc/lang/types"
)

func TestScanTopLevelAssignsFunctionsAndArrayGlobals(t *testing.T) {
	fn := ir.NewFunctionDef("main", nil, nil, types.Void)
	arrGlobal := ir.NewGlobal("greeting", types.Array, ir.NewArrayLiteral([]uint32{104, 105}))
	uintGlobal := ir.NewGlobal("count", types.Uint, ir.NewUIntLiteral(3))

	table := alloc.New()
	table.ScanTopLevel([]ir.Node{fn, arrGlobal, uintGlobal})

	require.Equal(t, 2, table.Len())
	entries := table.Entries()
	require.Equal(t, alloc.FunctionAlloc, entries[0].Kind)
	require.Same(t, fn, entries[0].Node)
	require.Equal(t, alloc.ArrayGlobalAlloc, entries[1].Kind)
	require.Same(t, arrGlobal, entries[1].Node)
}

func TestStaticAddressUpsertIsIdempotent(t *testing.T) {
	lit := ir.NewArrayLiteral([]uint32{1, 2, 3})
	table := alloc.New()

	first := table.StaticAddress(lit)
	second := table.StaticAddress(lit)
	require.Equal(t, first, second)
	require.Equal(t, 1, table.Len())
}

func TestStaticAddressDistinctNodesGetDistinctIndices(t *testing.T) {
	a := ir.NewArrayLiteral([]uint32{1})
	b := ir.NewArrayLiteral([]uint32{1})
	table := alloc.New()

	ia := table.StaticAddress(a)
	ib := table.StaticAddress(b)
	require.NotEqual(t, ia, ib)
}

func TestStaticAddressPanicsOnUnallocatableNode(t *testing.T) {
	table := alloc.New()
	require.Panics(t, func() { table.StaticAddress(ir.NewUIntLiteral(1)) })
}

func TestScanTopLevelSkipsUintGlobal(t *testing.T) {
	uintGlobal := ir.NewGlobal("count", types.Uint, ir.NewUIntLiteral(3))
	table := alloc.New()
	table.ScanTopLevel([]ir.Node{uintGlobal})
	require.Equal(t, 0, table.Len())
}
