// Package alloc implements the static allocator of spec.md §4.3: it assigns
// a monotonically increasing position-independent-code (PIC) table index
// to every function body, array-typed global, and array literal. Codegen
// keeps adding array literals while it compiles function bodies; the
// bootstrap reads the table back once every function has been compiled.
// Nothing locks the table against later additions.
//
// Grounded on original_source/compiler/compiler/static_allocation.py's
// _StaticAllocationTableBuilder (a single NodeVisitor with a
// _next_free_address counter and an AllocationType enum), translated to an
// upsert-keyed table. Backed by dolthub/swiss the same way nenuphar's
// lang/machine/map.go wraps swiss.Map for its own identity-keyed tables.
package alloc

import (
	"fmt"

	"github.com/dolthub/swiss"

	"github.com/havrel-lang/umlc/lang/ir"
	"github.com/havrel-lang/umlc/lang/types"
)

// Kind classifies a static allocation, mirroring
// static_allocation.py's AllocationType.
type Kind uint8

const (
	FunctionAlloc Kind = iota
	ArrayGlobalAlloc
	ArrayLiteralAlloc
)

// Entry is one row of the PIC table.
type Entry struct {
	Index uint32
	Kind  Kind
	Node  ir.Node
}

// Table is the PIC table: a static_address(node) -> index upsert map, plus
// the stable assignment order needed to materialize the bootstrap.
type Table struct {
	byKey *swiss.Map[string, *Entry]
	order []*Entry
}

// New returns an empty table.
func New() *Table {
	return &Table{byKey: swiss.NewMap[string, *Entry](16)}
}

// ScanTopLevel performs the eager half of the allocator's pass: every
// FunctionDef and every array-typed Global in items (the top-level
// declarations, in source order) is assigned an index up front, before
// codegen runs. Array literals are added lazily by StaticAddress as
// codegen encounters them (spec.md §4.3: "lazy addition via upsert").
func (t *Table) ScanTopLevel(items []ir.Node) {
	for _, item := range items {
		switch v := item.(type) {
		case *ir.FunctionDef:
			t.StaticAddress(v)
		case *ir.Global:
			if v.Type() == types.Array {
				t.StaticAddress(v)
			}
		}
	}
}

// StaticAddress upserts node — a *ir.FunctionDef, an array-typed
// *ir.Global, or an *ir.ArrayLiteral — and returns its stable index. A
// node already in the table returns its existing index unchanged.
func (t *Table) StaticAddress(node ir.Node) uint32 {
	key := identityKey(node)
	if e, ok := t.byKey.Get(key); ok {
		return e.Index
	}

	var kind Kind
	switch node.(type) {
	case *ir.FunctionDef:
		kind = FunctionAlloc
	case *ir.Global:
		kind = ArrayGlobalAlloc
	case *ir.ArrayLiteral:
		kind = ArrayLiteralAlloc
	default:
		panic(fmt.Sprintf("alloc: %T is not a statically allocatable node", node))
	}

	e := &Entry{Index: uint32(len(t.order)), Kind: kind, Node: node}
	t.byKey.Put(key, e)
	t.order = append(t.order, e)
	return e.Index
}

// Entries returns every entry, in index order.
func (t *Table) Entries() []*Entry { return t.order }

// Len is the number of static allocations (the bootstrap's PIC_TABLE size).
func (t *Table) Len() int { return len(t.order) }

// identityKey builds a stable per-node key from its pointer identity: each
// allocatable IR node is constructed exactly once by lang/lower, so two
// references to "the same" literal or declaration share the same Go
// pointer, and the key is just that pointer's address.
func identityKey(node ir.Node) string {
	return fmt.Sprintf("%T:%p", node, node)
}
