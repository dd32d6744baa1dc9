// Package lower implements the frontend's two lowering passes of spec.md
// §4.1: a global-discovery pass over the module's top-level statements,
// followed by a per-function body translation pass, turning lang/rawast's
// untyped host tree into lang/ir's typed tree.
//
// Grounded on nenuphar's lang/resolver package: a first pass that binds
// every top-level name before a second pass walks function bodies, so a
// function may call another defined later in the file (and itself). Name
// tables are dolthub/swiss maps, matching lang/builtin and lang/alloc.
package lower

import (
	"math"
	"strings"

	"github.com/dolthub/swiss"

	"github.com/havrel-lang/umlc/lang/builtin"
	"github.com/havrel-lang/umlc/lang/diag"
	"github.com/havrel-lang/umlc/lang/ir"
	"github.com/havrel-lang/umlc/lang/rawast"
	"github.com/havrel-lang/umlc/lang/token"
	"github.com/havrel-lang/umlc/lang/types"
)

// Lowerer runs the two-pass translation for a single module.
type Lowerer struct {
	filename string
	lines    []string
	globals  *swiss.Map[string, ir.Node] // name -> *ir.Global | *ir.FunctionDef
	errs     diag.List

	// topLevel holds globals and function defs in source order, ready for
	// lang/alloc.ScanTopLevel.
	topLevel []ir.Node

	// pending pairs a pass-1 function shell with its untranslated raw body,
	// consumed by pass 2.
	pending []funcPending
}

type funcPending struct {
	raw *rawast.FunctionDef
	fn  *ir.FunctionDef
}

// funcScope tracks one function's argument and local names during body
// translation.
type funcScope struct {
	names    *swiss.Map[string, ir.Node] // name -> *ir.Argument | *ir.Local
	locals   []*ir.Local
	nextSlot int
}

// New returns a Lowerer for a module read from filename, with source kept
// around only to annotate diagnostics with the offending line.
func New(filename, source string) *Lowerer {
	return &Lowerer{
		filename: filename,
		lines:    strings.Split(source, "\n"),
		globals:  swiss.NewMap[string, ir.Node](16),
	}
}

// Lower translates mod into the flat, source-ordered list of top-level IR
// nodes lang/alloc and lang/codegen consume.
func (l *Lowerer) Lower(mod *rawast.Module) ([]ir.Node, error) {
	l.pass1(mod)
	if l.errs.Len() > 0 {
		l.errs.Sort()
		return nil, l.errs.Err()
	}

	l.pass2()
	if l.errs.Len() > 0 {
		l.errs.Sort()
		return nil, l.errs.Err()
	}

	if fn, ok := l.globals.Get("main"); !ok {
		l.errs.Add(token.Position{Filename: l.filename}, "", "no main function defined")
	} else if _, isFn := fn.(*ir.FunctionDef); !isFn {
		l.errs.Add(token.Position{Filename: l.filename}, "", "%q is not a function", "main")
	}
	if l.errs.Len() > 0 {
		l.errs.Sort()
		return nil, l.errs.Err()
	}
	return l.topLevel, nil
}

// ---- pass 1: global discovery ----

func (l *Lowerer) pass1(mod *rawast.Module) {
	for _, stmt := range mod.Body {
		switch s := stmt.(type) {
		case *rawast.FunctionDef:
			l.declareFunction(s)
		case *rawast.AnnAssign:
			l.declareGlobal(s)
		default:
			l.errorf(stmt, "module level only allows function definitions and annotated globals")
		}
	}
}

func (l *Lowerer) declareFunction(s *rawast.FunctionDef) {
	if len(s.DecoratorList) > 0 {
		l.errorf(s, "decorators are not supported")
		return
	}
	if s.Args.Vararg != nil || s.Args.Kwarg != nil || len(s.Args.Kwonlyargs) > 0 || len(s.Args.Defaults) > 0 {
		l.errorf(s, "variadic, keyword-only and default arguments are not supported")
		return
	}
	if _, exists := l.globals.Get(s.Name); exists {
		l.errorf(s, "redefinition of %q", s.Name)
		return
	}
	returnKind, ok := types.ParseKind(s.Returns)
	if !ok {
		l.errorf(s, "function %q is missing a valid return type annotation", s.Name)
		return
	}

	seen := make(map[string]bool, len(s.Args.Args))
	args := make([]*ir.Argument, 0, len(s.Args.Args))
	ok = true
	for i, a := range s.Args.Args {
		if seen[a.Name] {
			l.errorf(a, "duplicate argument name %q", a.Name)
			ok = false
			continue
		}
		seen[a.Name] = true
		kind, valid := types.ParseKind(a.Annotation)
		if !valid || !kind.ValidInExpr() {
			l.errorf(a, "argument %q is missing a valid type annotation", a.Name)
			ok = false
			continue
		}
		args = append(args, ir.NewArgument(a.Name, kind, i))
	}
	if !ok {
		return
	}

	fn := ir.NewFunctionDef(s.Name, args, nil, returnKind)
	l.globals.Put(s.Name, fn)
	l.topLevel = append(l.topLevel, fn)
	l.pending = append(l.pending, funcPending{raw: s, fn: fn})
}

func (l *Lowerer) declareGlobal(s *rawast.AnnAssign) {
	name, ok := s.Target.(*rawast.Name)
	if !ok {
		l.errorf(s, "invalid global declaration target")
		return
	}
	if _, exists := l.globals.Get(name.ID); exists {
		l.errorf(s, "redefinition of %q", name.ID)
		return
	}
	kind, ok := types.ParseKind(s.Annotation)
	if !ok || !kind.ValidInExpr() {
		l.errorf(s, "global %q is missing a valid type annotation", name.ID)
		return
	}
	if s.Value == nil {
		l.errorf(s, "global %q requires an initializer", name.ID)
		return
	}

	lit, ok := l.lowerLiteral(s.Value)
	if !ok {
		l.errorf(s.Value, "global initializers must be literal constants")
		return
	}
	if lit.Type() != kind {
		l.errorf(s.Value, "cannot initialize %s global %q with a %s literal", kind, name.ID, lit.Type())
		return
	}

	g := ir.NewGlobal(name.ID, kind, lit)
	l.globals.Put(name.ID, g)
	l.topLevel = append(l.topLevel, g)
}

// lowerLiteral recognizes the literal expression forms spec.md §3 allows as
// IR leaves: numbers, strings, bracketed lists of numbers, and None/True/
// False. Used both for global initializers (which must be exactly this) and
// as one case of the general expression lowerer used in function bodies.
func (l *Lowerer) lowerLiteral(e rawast.Expr) (ir.Node, bool) {
	switch v := e.(type) {
	case *rawast.Number:
		if v.N < 0 || v.N > math.MaxUint32 {
			l.errorf(v, "integer literal %d is out of range for a 32-bit uint", v.N)
			return nil, false
		}
		return ir.NewUIntLiteral(uint32(v.N)), true
	case *rawast.Str:
		bytes, ok := asciiBytes(v.S)
		if !ok {
			l.errorf(v, "string literals must be ASCII")
			return nil, false
		}
		return ir.NewArrayLiteral(bytes), true
	case *rawast.List:
		bytes := make([]uint32, 0, len(v.Elts))
		for _, elt := range v.Elts {
			n, ok := elt.(*rawast.Number)
			if !ok {
				l.errorf(elt, "array literal elements must be integer literals")
				return nil, false
			}
			if n.N < 0 || n.N > math.MaxUint32 {
				l.errorf(n, "integer literal %d is out of range for a 32-bit uint", n.N)
				return nil, false
			}
			bytes = append(bytes, uint32(n.N))
		}
		return ir.NewArrayLiteral(bytes), true
	case *rawast.NameConstant:
		switch v.Kind {
		case rawast.ConstNone, rawast.ConstFalse:
			return ir.NewUIntLiteral(0), true
		case rawast.ConstTrue:
			return ir.NewUIntLiteral(1), true
		}
	}
	return nil, false
}

func asciiBytes(s string) ([]uint32, bool) {
	bytes := make([]uint32, 0, len(s))
	for _, r := range s {
		if r > 127 {
			return nil, false
		}
		bytes = append(bytes, uint32(r))
	}
	return bytes, true
}

// ---- pass 2: function body translation ----

func (l *Lowerer) pass2() {
	for _, p := range l.pending {
		l.lowerFunctionBody(p.raw, p.fn)
	}
}

func (l *Lowerer) lowerFunctionBody(raw *rawast.FunctionDef, fn *ir.FunctionDef) {
	fs := &funcScope{names: swiss.NewMap[string, ir.Node](8), nextSlot: len(fn.Args)}
	for _, a := range fn.Args {
		fs.names.Put(a.Name, a)
	}
	fn.Body = l.lowerBlock(raw.Body, fn, fs)
	fn.Locals = fs.locals
}

func (l *Lowerer) lowerBlock(stmts []rawast.Stmt, fn *ir.FunctionDef, fs *funcScope) []ir.Node {
	out := make([]ir.Node, 0, len(stmts))
	for _, s := range stmts {
		if n := l.lowerStmt(s, fn, fs); n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (l *Lowerer) lowerStmt(s rawast.Stmt, fn *ir.FunctionDef, fs *funcScope) ir.Node {
	switch v := s.(type) {
	case *rawast.AnnAssign:
		return l.lowerLocalDecl(v, fn, fs)
	case *rawast.Assign:
		return l.lowerAssign(v, fn, fs)
	case *rawast.For:
		return l.lowerFor(v, fn, fs)
	case *rawast.If:
		return l.lowerIf(v, fn, fs)
	case *rawast.Return:
		return l.lowerReturn(v, fn, fs)
	case *rawast.ExprStmt:
		return l.lowerExprStmt(v, fn, fs)
	default:
		l.errorf(s, "unsupported statement")
		return nil
	}
}

func (l *Lowerer) lowerLocalDecl(v *rawast.AnnAssign, fn *ir.FunctionDef, fs *funcScope) ir.Node {
	name, ok := v.Target.(*rawast.Name)
	if !ok {
		l.errorf(v, "invalid assignment target")
		return nil
	}
	if _, exists := fs.names.Get(name.ID); exists {
		l.errorf(v, "redefinition of %q", name.ID)
		return nil
	}
	kind, ok := types.ParseKind(v.Annotation)
	if !ok || !kind.ValidInExpr() {
		l.errorf(v, "local %q is missing a valid type annotation", name.ID)
		return nil
	}
	if v.Value == nil {
		l.errorf(v, "local %q requires an initializer", name.ID)
		return nil
	}
	rhs := l.lowerExpr(v.Value, fn, fs)
	if rhs == nil {
		return nil
	}
	if rhs.Type() != kind {
		l.errorf(v.Value, "cannot assign %s to %s local %q", rhs.Type(), kind, name.ID)
		return nil
	}

	local := ir.NewLocal(name.ID, kind, fs.nextSlot)
	fs.nextSlot++
	fs.locals = append(fs.locals, local)
	fs.names.Put(name.ID, local)
	return ir.NewAssignment(local, rhs)
}

func (l *Lowerer) lowerAssign(v *rawast.Assign, fn *ir.FunctionDef, fs *funcScope) ir.Node {
	if len(v.Targets) != 1 {
		l.errorf(v, "multiple assignment is not supported")
		return nil
	}
	rhs := l.lowerExpr(v.Value, fn, fs)
	if rhs == nil {
		return nil
	}

	switch t := v.Targets[0].(type) {
	case *rawast.Name:
		lhs, exists := fs.names.Get(t.ID)
		if !exists {
			l.errorf(t, "assignment to undefined name %q", t.ID)
			return nil
		}
		if lhs.Type() != rhs.Type() {
			l.errorf(v, "cannot assign %s to %s %q", rhs.Type(), lhs.Type(), t.ID)
			return nil
		}
		return ir.NewAssignment(lhs, rhs)

	case *rawast.Subscript:
		arr := l.lowerExpr(t.Value, fn, fs)
		idx := l.lowerExpr(t.Slice, fn, fs)
		if arr == nil || idx == nil {
			return nil
		}
		if arr.Type() != types.Array {
			l.errorf(t.Value, "subscript assignment base must be an array")
			return nil
		}
		if idx.Type() != types.Uint {
			l.errorf(t.Slice, "subscript index must be a uint")
			return nil
		}
		if rhs.Type() != types.Uint {
			l.errorf(v, "cannot assign a %s into an array element", rhs.Type())
			return nil
		}
		return ir.NewAssignment(ir.NewSubscript(arr, idx), rhs)

	default:
		l.errorf(v, "invalid assignment target")
		return nil
	}
}

func (l *Lowerer) lowerFor(v *rawast.For, fn *ir.FunctionDef, fs *funcScope) ir.Node {
	if len(v.OrElse) > 0 {
		l.errorf(v, "for/else is not supported")
		return nil
	}
	iter := l.lowerExpr(v.Iter, fn, fs)
	if iter == nil {
		return nil
	}
	if iter.Type() != types.Array {
		l.errorf(v.Iter, "for loop iterator must be an array")
		return nil
	}

	var target *ir.Local
	if existing, ok := fs.names.Get(v.Target.ID); ok {
		loc, isLocal := existing.(*ir.Local)
		if !isLocal {
			l.errorf(v, "for loop target %q must be a local variable", v.Target.ID)
			return nil
		}
		if loc.Type() != types.Uint {
			l.errorf(v, "for loop target %q must be a uint", v.Target.ID)
			return nil
		}
		target = loc
	} else {
		target = ir.NewLocal(v.Target.ID, types.Uint, fs.nextSlot)
		fs.nextSlot++
		fs.locals = append(fs.locals, target)
		fs.names.Put(v.Target.ID, target)
	}

	iterSlot := l.reserveHiddenSlot(fs, "$for.iter")
	remainingSlot := l.reserveHiddenSlot(fs, "$for.remaining")
	indexSlot := l.reserveHiddenSlot(fs, "$for.index")

	body := l.lowerBlock(v.Body, fn, fs)
	return ir.NewFor(target, iter, body, iterSlot, remainingSlot, indexSlot)
}

// reserveHiddenSlot allocates a LOCALS slot for codegen-internal bookkeeping
// that has no source-level name (spec.md §4.5's loop-remaining and loop-index
// state). It is appended to fs.locals, not fs.names, so FunctionDef.NumSlots
// accounts for it while it stays unreachable from user code.
func (l *Lowerer) reserveHiddenSlot(fs *funcScope, name string) int {
	slot := fs.nextSlot
	fs.nextSlot++
	fs.locals = append(fs.locals, ir.NewLocal(name, types.Uint, slot))
	return slot
}

func (l *Lowerer) lowerIf(v *rawast.If, fn *ir.FunctionDef, fs *funcScope) ir.Node {
	test := l.lowerExpr(v.Test, fn, fs)
	if test == nil {
		return nil
	}
	if test.Type() != types.Uint {
		l.errorf(v.Test, "if condition must be a uint")
		return nil
	}
	trueBody := l.lowerBlock(v.Body, fn, fs)
	falseBody := l.lowerBlock(v.Else, fn, fs)
	return ir.NewIf(test, trueBody, falseBody)
}

// lowerReturn implements the "missing value on uint/array synthesizes a
// zero/empty literal" rule of spec.md §4.1: a bare "return" is only an IR
// Return(nil) when the enclosing function is void; otherwise the lowerer
// fabricates the zero value so the IR-level invariant ("Value is nil only
// for void") always holds.
func (l *Lowerer) lowerReturn(v *rawast.Return, fn *ir.FunctionDef, fs *funcScope) ir.Node {
	if v.Value == nil {
		switch fn.ReturnKind {
		case types.Void:
			return ir.NewReturn(nil)
		case types.Uint:
			return ir.NewReturn(ir.NewUIntLiteral(0))
		default:
			return ir.NewReturn(ir.NewArrayLiteral(nil))
		}
	}

	val := l.lowerExpr(v.Value, fn, fs)
	if val == nil {
		return nil
	}
	if fn.ReturnKind == types.Void {
		l.errorf(v, "void function cannot return a value")
		return nil
	}
	if val.Type() != fn.ReturnKind {
		l.errorf(v.Value, "return type mismatch: expected %s, got %s", fn.ReturnKind, val.Type())
		return nil
	}
	return ir.NewReturn(val)
}

func (l *Lowerer) lowerExprStmt(v *rawast.ExprStmt, fn *ir.FunctionDef, fs *funcScope) ir.Node {
	call, ok := v.Value.(*rawast.Call)
	if !ok {
		l.errorf(v, "only function calls are valid as statements")
		return nil
	}
	return l.lowerCall(call, fn, fs)
}

// ---- expressions ----

func (l *Lowerer) lowerExpr(e rawast.Expr, fn *ir.FunctionDef, fs *funcScope) ir.Node {
	switch v := e.(type) {
	case *rawast.Number, *rawast.Str, *rawast.List, *rawast.NameConstant:
		lit, ok := l.lowerLiteral(v)
		if !ok {
			l.errorf(v, "invalid literal")
			return nil
		}
		return lit
	case *rawast.Name:
		return l.lowerName(v, fs)
	case *rawast.BinOp:
		return l.lowerBinOp(v, fn, fs)
	case *rawast.UnaryOp:
		return l.lowerUnaryOp(v, fn, fs)
	case *rawast.Subscript:
		return l.lowerSubscriptExpr(v, fn, fs)
	case *rawast.Call:
		return l.lowerCall(v, fn, fs)
	default:
		l.errorf(e, "unsupported expression")
		return nil
	}
}

func (l *Lowerer) lowerName(v *rawast.Name, fs *funcScope) ir.Node {
	if n, ok := fs.names.Get(v.ID); ok {
		return n
	}
	if g, ok := l.globals.Get(v.ID); ok {
		if gl, isGlobal := g.(*ir.Global); isGlobal {
			return gl
		}
		l.errorf(v, "%q is a function, not a value", v.ID)
		return nil
	}
	l.errorf(v, "undefined name %q", v.ID)
	return nil
}

func (l *Lowerer) lowerBinOp(v *rawast.BinOp, fn *ir.FunctionDef, fs *funcScope) ir.Node {
	left := l.lowerExpr(v.Left, fn, fs)
	right := l.lowerExpr(v.Right, fn, fs)
	if left == nil || right == nil {
		return nil
	}
	if left.Type() != types.Uint || right.Type() != types.Uint {
		l.errorf(v, "arithmetic requires uint operands")
		return nil
	}
	return ir.NewBinOp(convBinOp(v.Op), left, right)
}

func (l *Lowerer) lowerUnaryOp(v *rawast.UnaryOp, fn *ir.FunctionDef, fs *funcScope) ir.Node {
	operand := l.lowerExpr(v.Operand, fn, fs)
	if operand == nil {
		return nil
	}
	if operand.Type() != types.Uint {
		l.errorf(v, "unary operators require a uint operand")
		return nil
	}
	return ir.NewUnOp(convUnOp(v.Op), operand)
}

func (l *Lowerer) lowerSubscriptExpr(v *rawast.Subscript, fn *ir.FunctionDef, fs *funcScope) ir.Node {
	arr := l.lowerExpr(v.Value, fn, fs)
	idx := l.lowerExpr(v.Slice, fn, fs)
	if arr == nil || idx == nil {
		return nil
	}
	if arr.Type() != types.Array {
		l.errorf(v.Value, "subscript base must be an array")
		return nil
	}
	if idx.Type() != types.Uint {
		l.errorf(v.Slice, "subscript index must be a uint")
		return nil
	}
	return ir.NewSubscript(arr, idx)
}

func (l *Lowerer) lowerCall(v *rawast.Call, fn *ir.FunctionDef, fs *funcScope) ir.Node {
	if len(v.Keywords) > 0 {
		l.errorf(v, "keyword arguments are not supported")
		return nil
	}

	args := make([]ir.Node, 0, len(v.Args))
	ok := true
	for _, a := range v.Args {
		n := l.lowerExpr(a, fn, fs)
		if n == nil {
			ok = false
			continue
		}
		if !n.Type().ValidInExpr() {
			l.errorf(a, "void value used as an argument")
			ok = false
			continue
		}
		args = append(args, n)
	}
	if !ok {
		return nil
	}

	switch target := v.Func.(type) {
	case *rawast.Name:
		sig, found := l.globals.Get(target.ID)
		fnDef, isFn := sig.(*ir.FunctionDef)
		if !found || !isFn {
			l.errorf(v, "call to undefined function %q", target.ID)
			return nil
		}
		if len(args) != len(fnDef.Args) {
			l.errorf(v, "function %q takes %d argument(s), got %d", target.ID, len(fnDef.Args), len(args))
			return nil
		}
		for i, a := range args {
			if a.Type() != fnDef.Args[i].Type() {
				l.errorf(v.Args[i], "argument %d of %q: expected %s, got %s", i, target.ID, fnDef.Args[i].Type(), a.Type())
				return nil
			}
		}
		call := ir.NewCall(fnDef)
		call.Args = args
		return call

	case *rawast.Attribute:
		ns, isName := target.Value.(*rawast.Name)
		if !isName || ns.ID != "um" {
			l.errorf(v, "call target must be a function name or um.<builtin>")
			return nil
		}
		entry, found := builtin.Lookup(target.Attr)
		if !found {
			l.errorf(v, "unknown builtin um.%s", target.Attr)
			return nil
		}
		if len(args) != len(entry.Args) {
			l.errorf(v, "builtin um.%s takes %d argument(s), got %d", target.Attr, len(entry.Args), len(args))
			return nil
		}
		for i, a := range args {
			if a.Type() != entry.Args[i] {
				l.errorf(v.Args[i], "argument %d of um.%s: expected %s, got %s", i, target.Attr, entry.Args[i], a.Type())
				return nil
			}
		}
		bc := ir.NewBuiltinCall(entry.Name, entry.Return)
		bc.Args = args
		return bc

	default:
		l.errorf(v, "call target must be a function name or um.<builtin>")
		return nil
	}
}

func convBinOp(op rawast.BinOpKind) ir.BinOpKind {
	switch op {
	case rawast.Add:
		return ir.Add
	case rawast.Sub:
		return ir.Sub
	case rawast.Mul:
		return ir.Mul
	case rawast.Div:
		return ir.Div
	default:
		return ir.Add
	}
}

func convUnOp(op rawast.UnaryOpKind) ir.UnOpKind {
	switch op {
	case rawast.UAdd:
		return ir.UPlus
	case rawast.USub:
		return ir.UMinus
	case rawast.UInvert:
		return ir.UInvert
	case rawast.UNot:
		return ir.UNot
	default:
		return ir.UPlus
	}
}

// ---- diagnostics ----

func (l *Lowerer) errorf(n rawast.Node, format string, args ...any) {
	line, col := n.Pos()
	// The host tree's col_offset is 0-based; token.Position columns are 1-based.
	pos := token.Position{Filename: l.filename, Line: line, Column: col + 1}
	l.errs.Add(pos, l.sourceLine(line), format, args...)
}

func (l *Lowerer) sourceLine(line int) string {
	if line < 1 || line > len(l.lines) {
		return ""
	}
	return l.lines[line-1]
}
