// Package builtin defines the fixed um.* builtin table (spec.md §4.2): a
// closed set of names, each with a fixed arity, argument types and return
// type, and a native opcode it lowers to.
//
// Modeled on nenuphar's lang/machine/universe.go (a fixed predeclared-name
// table for the language's built-ins), keyed here with dolthub/swiss the
// same way nenuphar's lang/machine/map.go wraps swiss.Map for its own
// dynamic dispatch tables.
package builtin

import (
	"github.com/dolthub/swiss"

	"github.com/havrel-lang/umlc/lang/abi"
	"github.com/havrel-lang/umlc/lang/types"
)

// Entry describes one builtin's signature and its native lowering.
type Entry struct {
	Name    string
	Args    []types.Kind
	Return  types.Kind
	Opcode  abi.Op // the native opcode this builtin lowers to
	ReadLen bool   // true only for len(), which reads slot 0 instead of emitting Opcode
}

var table = func() *swiss.Map[string, Entry] {
	m := swiss.NewMap[string, Entry](8)
	for _, e := range []Entry{
		{Name: "putchar", Args: []types.Kind{types.Uint}, Return: types.Void, Opcode: abi.OpOutput},
		{Name: "len", Args: []types.Kind{types.Array}, Return: types.Uint, ReadLen: true},
		{Name: "alloc", Args: []types.Kind{types.Uint}, Return: types.Array, Opcode: abi.OpAlloc},
		{Name: "free", Args: []types.Kind{types.Array}, Return: types.Void, Opcode: abi.OpFree},
		{Name: "exit", Args: nil, Return: types.Void, Opcode: abi.OpHalt},
	} {
		m.Put(e.Name, e)
	}
	return m
}()

// Lookup returns the builtin named by name (without the "um." prefix,
// already stripped by the caller), and whether it exists.
func Lookup(name string) (Entry, bool) {
	return table.Get(name)
}
