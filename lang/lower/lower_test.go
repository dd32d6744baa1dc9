package lower_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/havrel-lang/umlc/lang/ir"
	"github.com/havrel-lang/umlc/lang/lower"
	"github.com/havrel-lang/umlc/lang/rawast"
)

func num(n int64) *rawast.Number    { return &rawast.Number{N: n} }
func name(id string) *rawast.Name   { return &rawast.Name{ID: id, Ctx: rawast.Load} }
func ret(v rawast.Expr) *rawast.Return { return &rawast.Return{Value: v} }

func fnDef(name, returns string, args rawast.Arguments, body ...rawast.Stmt) *rawast.FunctionDef {
	return &rawast.FunctionDef{Name: name, Args: args, Returns: returns, Body: body}
}

func TestLowerEmptyMain(t *testing.T) {
	mod := &rawast.Module{Body: []rawast.Stmt{
		fnDef("main", "void", rawast.Arguments{}),
	}}

	l := lower.New("test.py", "def main():\n    pass\n")
	top, err := l.Lower(mod)
	require.NoError(t, err)
	require.Len(t, top, 1)

	fn, ok := top[0].(*ir.FunctionDef)
	require.True(t, ok)
	require.Equal(t, "main", fn.Name)
}

func TestLowerMissingMainErrors(t *testing.T) {
	mod := &rawast.Module{Body: []rawast.Stmt{
		fnDef("helper", "void", rawast.Arguments{}),
	}}
	l := lower.New("test.py", "")
	_, err := l.Lower(mod)
	require.ErrorContains(t, err, "no main function defined")
}

func TestLowerFunctionRedefinitionErrors(t *testing.T) {
	mod := &rawast.Module{Body: []rawast.Stmt{
		fnDef("main", "void", rawast.Arguments{}),
		fnDef("main", "void", rawast.Arguments{}),
	}}
	l := lower.New("test.py", "")
	_, err := l.Lower(mod)
	require.ErrorContains(t, err, `redefinition of "main"`)
}

func TestLowerArithmeticWithReturn(t *testing.T) {
	body := []rawast.Stmt{
		ret(&rawast.BinOp{Left: num(2), Op: rawast.Add, Right: num(3)}),
	}
	mod := &rawast.Module{Body: []rawast.Stmt{
		fnDef("main", "uint", rawast.Arguments{}, body...),
	}}
	l := lower.New("test.py", "")
	top, err := l.Lower(mod)
	require.NoError(t, err)

	fn := top[0].(*ir.FunctionDef)
	require.Len(t, fn.Body, 1)
	retNode, ok := fn.Body[0].(*ir.Return)
	require.True(t, ok)
	bin, ok := retNode.Value.(*ir.BinOp)
	require.True(t, ok)
	require.Equal(t, ir.Add, bin.Op)
}

func TestLowerCallWithArgument(t *testing.T) {
	callee := fnDef("double", "uint",
		rawast.Arguments{Args: []rawast.Arg{{Name: "x", Annotation: "uint"}}},
		ret(&rawast.BinOp{Left: name("x"), Op: rawast.Add, Right: name("x")}))

	caller := fnDef("main", "uint", rawast.Arguments{},
		ret(&rawast.Call{Func: name("double"), Args: []rawast.Expr{num(21)}}))

	mod := &rawast.Module{Body: []rawast.Stmt{callee, caller}}
	l := lower.New("test.py", "")
	top, err := l.Lower(mod)
	require.NoError(t, err)
	require.Len(t, top, 2)

	mainFn := top[1].(*ir.FunctionDef)
	retNode := mainFn.Body[0].(*ir.Return)
	call, ok := retNode.Value.(*ir.Call)
	require.True(t, ok)
	require.Equal(t, "double", call.Func.Name)
	require.Len(t, call.Args, 1)
}

func TestLowerUndefinedNameErrors(t *testing.T) {
	mod := &rawast.Module{Body: []rawast.Stmt{
		fnDef("main", "uint", rawast.Arguments{}, ret(name("missing"))),
	}}
	l := lower.New("test.py", "")
	_, err := l.Lower(mod)
	require.ErrorContains(t, err, `undefined name "missing"`)
}
