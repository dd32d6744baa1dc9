package codegen

import (
	"fmt"

	"github.com/havrel-lang/umlc/lang/abi"
	"github.com/havrel-lang/umlc/lang/alloc"
	"github.com/havrel-lang/umlc/lang/diag"
	"github.com/havrel-lang/umlc/lang/ir"
	"github.com/havrel-lang/umlc/lang/token"
)

// CompileModule compiles every function in topLevel (lang/lower's flat,
// source-ordered output) and assembles the bootstrap-prefixed native word
// stream spec.md §6 describes as UMLC's entire output: there is no
// separate "program body" beyond the bootstrap — every function and array
// literal is materialized into its own runtime-allocated array by the
// bootstrap itself, and the bootstrap's own final instruction transfers
// control into main.
func CompileModule(topLevel []ir.Node) ([]uint32, error) {
	table := alloc.New()
	table.ScanTopLevel(topLevel)

	code := make(map[*ir.FunctionDef][]uint32, len(topLevel))
	var errs diag.List
	for _, item := range topLevel {
		fn, ok := item.(*ir.FunctionDef)
		if !ok {
			continue
		}
		code[fn] = CompileFunction(fn, table, &errs)
	}
	if errs.Len() > 0 {
		errs.Sort()
		return nil, errs.Err()
	}

	return GenerateBootstrap(table, code)
}

// GenerateBootstrap emits the preamble of spec.md §6's output format: it
// allocates PIC_TABLE and STACK, initializes STACK_TOP, materializes every
// static allocation (copying each function's or array's contents into a
// freshly allocated UM array and recording its handle in PIC_TABLE), and
// finally jumps into main.
func GenerateBootstrap(table *alloc.Table, code map[*ir.FunctionDef][]uint32) ([]uint32, error) {
	d := newDriver(table, nil, nil)
	site := d.site()

	nH, ok := d.occupy(site)
	if !ok {
		return nil, bootstrapErr("allocating PIC_TABLE")
	}
	if !d.loadImmediate(site, nH.Register(), uint32(table.Len())) {
		return nil, bootstrapErr("allocating PIC_TABLE")
	}
	d.e.Std(abi.OpAlloc, 0, abi.PIC_TABLE, nH.Register())
	nH.Release()

	sH, ok := d.occupy(site)
	if !ok {
		return nil, bootstrapErr("allocating STACK")
	}
	if !d.loadImmediate(site, sH.Register(), abi.StackSize) {
		return nil, bootstrapErr("allocating STACK")
	}
	d.e.Std(abi.OpAlloc, 0, abi.STACK, sH.Register())
	sH.Release()

	d.e.Ortho(abi.STACK_TOP, 1)

	for _, entry := range table.Entries() {
		if !d.materialize(site, entry, code) {
			return nil, bootstrapErr(fmt.Sprintf("materializing static allocation %d", entry.Index))
		}
	}

	mainEntry := findMain(table)
	if mainEntry == nil {
		return nil, fmt.Errorf("codegen: internal error: main missing from static allocation table")
	}
	mH, ok := d.occupy(site)
	if !ok {
		return nil, bootstrapErr("resolving main")
	}
	if !d.loadImmediate(site, mH.Register(), mainEntry.Index) {
		return nil, bootstrapErr("resolving main")
	}
	d.e.Std(abi.OpIndex, mH.Register(), abi.PIC_TABLE, mH.Register())
	zH, ok := d.occupy(site)
	if !ok {
		return nil, bootstrapErr("jumping to main")
	}
	d.e.Ortho(zH.Register(), 0)
	d.e.Std(abi.OpLoadProgram, 0, mH.Register(), zH.Register())
	zH.Release()
	mH.Release()

	return d.e.Words(), nil
}

// materialize copies entry's contents — a compiled function body, or a
// literal array's length-prefixed words — into a freshly allocated UM
// array and records its handle at PIC_TABLE[entry.Index].
func (d *Driver) materialize(site token.Position, entry *alloc.Entry, code map[*ir.FunctionDef][]uint32) bool {
	words := entryWords(entry, code)

	lenH, ok := d.occupy(site)
	if !ok {
		return false
	}
	if !d.loadImmediate(site, lenH.Register(), uint32(len(words))) {
		lenH.Release()
		return false
	}
	arrH, ok := d.occupy(site)
	if !ok {
		lenH.Release()
		return false
	}
	d.e.Std(abi.OpAlloc, 0, arrH.Register(), lenH.Register())
	lenH.Release()

	for i, w := range words {
		idxH, ok := d.occupy(site)
		if !ok {
			arrH.Release()
			return false
		}
		if !d.loadImmediate(site, idxH.Register(), uint32(i)) {
			idxH.Release()
			arrH.Release()
			return false
		}
		valH, ok := d.occupy(site)
		if !ok {
			idxH.Release()
			arrH.Release()
			return false
		}
		if !d.loadImmediate(site, valH.Register(), w) {
			valH.Release()
			idxH.Release()
			arrH.Release()
			return false
		}
		d.e.Std(abi.OpAmend, arrH.Register(), idxH.Register(), valH.Register())
		valH.Release()
		idxH.Release()
	}

	picIdxH, ok := d.occupy(site)
	if !ok {
		arrH.Release()
		return false
	}
	if !d.loadImmediate(site, picIdxH.Register(), entry.Index) {
		picIdxH.Release()
		arrH.Release()
		return false
	}
	d.e.Std(abi.OpAmend, abi.PIC_TABLE, picIdxH.Register(), arrH.Register())
	picIdxH.Release()
	arrH.Release()
	return true
}

// entryWords returns the raw word contents to materialize for entry: a
// compiled function body verbatim, or an array literal's/global's contents
// with its length prefixed at slot 0 (spec.md §3's "length at index 0, data
// at 1..N" array convention, which every array — static or runtime — obeys
// so that len() and Subscript's +1 rule behave uniformly).
func entryWords(entry *alloc.Entry, code map[*ir.FunctionDef][]uint32) []uint32 {
	switch entry.Kind {
	case alloc.FunctionAlloc:
		return code[entry.Node.(*ir.FunctionDef)]
	case alloc.ArrayGlobalAlloc:
		g := entry.Node.(*ir.Global)
		lit := g.Init.(*ir.ArrayLiteral)
		return lengthPrefixed(lit.Bytes)
	case alloc.ArrayLiteralAlloc:
		lit := entry.Node.(*ir.ArrayLiteral)
		return lengthPrefixed(lit.Bytes)
	default:
		return nil
	}
}

func lengthPrefixed(bytes []uint32) []uint32 {
	words := make([]uint32, len(bytes)+1)
	words[0] = uint32(len(bytes))
	copy(words[1:], bytes)
	return words
}

func findMain(table *alloc.Table) *alloc.Entry {
	for _, e := range table.Entries() {
		if e.Kind != alloc.FunctionAlloc {
			continue
		}
		if fn, ok := e.Node.(*ir.FunctionDef); ok && fn.Name == "main" {
			return e
		}
	}
	return nil
}

func bootstrapErr(step string) error {
	return fmt.Errorf("codegen: bootstrap: register exhaustion while %s", step)
}
