// Package compiler is the top-level orchestration tying rawast -> lower ->
// alloc -> codegen -> asm into the one entry point spec.md's CLI needs.
//
// Grounded on nenuphar's lang/compiler.CompileFiles: a single function, no
// retained cross-call state beyond what is passed in, matching spec.md
// §5's "no global state beyond the per-compilation PIC table, register
// allocator, and instruction-pointer counter, all owned by a compilation
// context."
package compiler

import (
	"github.com/havrel-lang/umlc/lang/asm"
	"github.com/havrel-lang/umlc/lang/codegen"
	"github.com/havrel-lang/umlc/lang/lower"
	"github.com/havrel-lang/umlc/lang/rawast"
)

// Compile lowers, allocates and generates code for mod, returning the
// serialized, bootstrap-prefixed UM program image ready to write to an
// output file. filename and source are used only to annotate diagnostics.
func Compile(filename, source string, mod *rawast.Module) ([]byte, error) {
	l := lower.New(filename, source)
	topLevel, err := l.Lower(mod)
	if err != nil {
		return nil, err
	}

	words, err := codegen.CompileModule(topLevel)
	if err != nil {
		return nil, err
	}

	return asm.Encode(words), nil
}

// CompileJSON decodes data as a rawast.Decode envelope and compiles it,
// the shape the "compile" CLI command and its tests drive.
func CompileJSON(filename string, data []byte) ([]byte, error) {
	mod, source, err := rawast.Decode(data)
	if err != nil {
		return nil, err
	}
	return Compile(filename, source, mod)
}
