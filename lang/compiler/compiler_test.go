package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/havrel-lang/umlc/lang/abi"
	"github.com/havrel-lang/umlc/lang/asm"
	"github.com/havrel-lang/umlc/lang/compiler"
	"github.com/havrel-lang/umlc/lang/rawast"
)

func num(n int64) *rawast.Number      { return &rawast.Number{N: n} }
func name(id string) *rawast.Name     { return &rawast.Name{ID: id, Ctx: rawast.Load} }
func attr(ns, a string) *rawast.Attribute { return &rawast.Attribute{Value: name(ns), Attr: a} }
func exprStmt(e rawast.Expr) *rawast.ExprStmt { return &rawast.ExprStmt{Value: e} }

func fnDef(n, returns string, args rawast.Arguments, body ...rawast.Stmt) *rawast.FunctionDef {
	return &rawast.FunctionDef{Name: n, Args: args, Returns: returns, Body: body}
}

// mustCompile compiles mod and decodes the resulting image back into words,
// failing the test on any error.
func mustCompile(t *testing.T, mod *rawast.Module) []uint32 {
	t.Helper()
	image, err := compiler.Compile("test.py", "", mod)
	require.NoError(t, err)
	require.NotEmpty(t, image)

	words, err := asm.Decode(image)
	require.NoError(t, err)
	require.NotEmpty(t, words)
	return words
}

// mainCode runs the straight-line bootstrap that makes up the whole image
// (it only allocates, loads immediates, adds, amends and indexes before its
// final LoadProgram) and returns the code array that LoadProgram transfers
// control to: main's compiled body, which the image carries only as
// immediate values copied into a runtime array.
func mainCode(t *testing.T, words []uint32) []uint32 {
	t.Helper()
	var regs [abi.NumRegisters]uint32
	arrays := map[uint32][]uint32{}
	next := uint32(1)
	for _, w := range words {
		in := abi.Decode(w)
		switch in.Op {
		case abi.OpOrthography:
			regs[in.Reg] = in.Value
		case abi.OpAdd:
			regs[in.A] = regs[in.B] + regs[in.C]
		case abi.OpAlloc:
			arrays[next] = make([]uint32, regs[in.C])
			regs[in.B] = next
			next++
		case abi.OpAmend:
			arrays[regs[in.A]][regs[in.B]] = regs[in.C]
		case abi.OpIndex:
			regs[in.A] = arrays[regs[in.B]][regs[in.C]]
		case abi.OpLoadProgram:
			return arrays[regs[in.B]]
		default:
			t.Fatalf("unexpected %s instruction in the bootstrap", in.Op)
		}
	}
	t.Fatalf("bootstrap never transfers control into main")
	return nil
}

// requireOp asserts words contains at least one instruction with opcode op.
func requireOp(t *testing.T, words []uint32, op abi.Op) {
	t.Helper()
	for _, w := range words {
		if abi.Decode(w).Op == op {
			return
		}
	}
	t.Fatalf("expected at least one %s instruction in the compiled image", op)
}

func TestEmptyMain(t *testing.T) {
	mod := &rawast.Module{Body: []rawast.Stmt{
		fnDef("main", "void", rawast.Arguments{}),
	}}
	words := mustCompile(t, mod)
	requireOp(t, words, abi.OpAlloc)     // PIC_TABLE/STACK allocation
	requireOp(t, words, abi.OpLoadProgram) // bootstrap's jump into main
	requireOp(t, mainCode(t, words), abi.OpHalt) // main's implicit void return
}

func TestPutcharHello(t *testing.T) {
	mod := &rawast.Module{Body: []rawast.Stmt{
		fnDef("main", "void", rawast.Arguments{},
			exprStmt(&rawast.Call{Func: attr("um", "putchar"), Args: []rawast.Expr{num(72)}}),
		),
	}}
	words := mustCompile(t, mod)
	requireOp(t, mainCode(t, words), abi.OpOutput)
}

func TestGlobalString(t *testing.T) {
	mod := &rawast.Module{Body: []rawast.Stmt{
		&rawast.AnnAssign{Target: name("greeting"), Annotation: "array", Value: &rawast.Str{S: "hi"}},
		fnDef("main", "void", rawast.Arguments{}),
	}}
	words := mustCompile(t, mod)
	requireOp(t, words, abi.OpAmend) // materializing the global array's words
}

func TestArithmeticWithTwosComplementSubtraction(t *testing.T) {
	mod := &rawast.Module{Body: []rawast.Stmt{
		fnDef("main", "uint", rawast.Arguments{},
			&rawast.Return{Value: &rawast.BinOp{Left: num(10), Op: rawast.Sub, Right: num(3)}},
		),
	}}
	words := mustCompile(t, mod)
	requireOp(t, mainCode(t, words), abi.OpNand) // negate-and-add subtraction lowering
	requireOp(t, mainCode(t, words), abi.OpAdd)
}

func TestCallWithArgument(t *testing.T) {
	callee := fnDef("double", "uint",
		rawast.Arguments{Args: []rawast.Arg{{Name: "x", Annotation: "uint"}}},
		&rawast.Return{Value: &rawast.BinOp{Left: name("x"), Op: rawast.Add, Right: name("x")}})
	caller := fnDef("main", "uint", rawast.Arguments{},
		&rawast.Return{Value: &rawast.Call{Func: name("double"), Args: []rawast.Expr{num(21)}}})

	mod := &rawast.Module{Body: []rawast.Stmt{callee, caller}}
	words := mustCompile(t, mod)
	requireOp(t, words, abi.OpLoadProgram)
}

func TestForLoopOverString(t *testing.T) {
	mod := &rawast.Module{Body: []rawast.Stmt{
		&rawast.AnnAssign{Target: name("msg"), Annotation: "array", Value: &rawast.Str{S: "hi"}},
		fnDef("main", "void", rawast.Arguments{},
			&rawast.For{
				Target: rawast.Name{ID: "c", Ctx: rawast.Store},
				Iter:   name("msg"),
				Body: []rawast.Stmt{
					exprStmt(&rawast.Call{Func: attr("um", "putchar"), Args: []rawast.Expr{name("c")}}),
				},
			},
		),
	}}
	words := mustCompile(t, mod)
	requireOp(t, mainCode(t, words), abi.OpOutput)
	requireOp(t, mainCode(t, words), abi.OpCMov) // emitBranch's loop-entry select
}

func TestRedefinitionError(t *testing.T) {
	mod := &rawast.Module{Body: []rawast.Stmt{
		fnDef("main", "void", rawast.Arguments{}),
		fnDef("main", "void", rawast.Arguments{}),
	}}
	_, err := compiler.Compile("test.py", "", mod)
	require.ErrorContains(t, err, `redefinition of "main"`)
}

func TestCompileJSONRoundTrip(t *testing.T) {
	doc := `{
		"source": "def main():\n    return 1\n",
		"body": [{
			"kind": "FunctionDef", "lineno": 1, "col_offset": 0,
			"name": "main", "returns": "uint",
			"args": {"args": [], "kwonlyargs": [], "kw_defaults": [], "defaults": []},
			"decorator_list": [],
			"body": [{
				"kind": "Return", "lineno": 2, "col_offset": 4,
				"value": {"kind": "Number", "lineno": 2, "col_offset": 11, "n": 1}
			}]
		}]
	}`
	image, err := compiler.CompileJSON("test.py", []byte(doc))
	require.NoError(t, err)
	require.NotEmpty(t, image)
}
