// Package codegen is the codegen driver of spec.md §4.5: it walks one
// function's typed IR and produces native UM words, synthesizing the
// software call stack (§4.6) and expanding pseudo-instructions (large
// immediates, push/pop, conditional/unconditional jump) into the 14 native
// opcodes (§4.7) as it goes. It also emits the bootstrap preamble (§6
// Output format) that materializes every static allocation and transfers
// control into main.
//
// Grounded on original_source/compiler/compiler/instructions.py's IR-macro
// classes (Immediate, Jump, JumpIfTrue/False, Call, Return,
// UnconditionalMove) for the native-opcode role conventions (which operand
// is the destination, which the source, which the condition) and on
// nenuphar's lang/compiler/compiler.go for the "driver walks a tree,
// maintaining a running instruction pointer and a register/stack
// allocator" shape. The call convention implemented here is spec.md §4.6's
// own (push LOCALS + caller PIC index + args + resume IP; return value
// through STACK[0]), which differs from original_source's CallContext
// scheme — spec.md is authoritative where the two disagree.
package codegen

import (
	"fmt"

	"github.com/havrel-lang/umlc/lang/abi"
	"github.com/havrel-lang/umlc/lang/alloc"
	"github.com/havrel-lang/umlc/lang/builtin"
	"github.com/havrel-lang/umlc/lang/diag"
	"github.com/havrel-lang/umlc/lang/ir"
	"github.com/havrel-lang/umlc/lang/regalloc"
	"github.com/havrel-lang/umlc/lang/token"
	"github.com/havrel-lang/umlc/lang/types"
)

// ---- forward-reference labels (spec.md §9 "Placeholder integers") ----

// Label is a jump target resolved once its owning instruction is reached.
// Until then, any Orthography word referencing it is a patch cell.
type Label struct {
	resolved bool
	ip       uint32
}

func (l *Label) bind(ip uint32) { l.resolved = true; l.ip = ip }

type patch struct {
	cell int
	reg  abi.Register
	lbl  *Label
}

// Emitter accumulates native words for one code array — one function body,
// or the bootstrap — and resolves forward jump references once the whole
// array's length is fixed.
//
// Flattens the generator-based IP threading spec.md §9 describes into a
// stateful emit/IP counter, per that section's "flatten it into a stateful
// emitter" note.
type Emitter struct {
	words   []uint32
	patches []patch
}

func NewEmitter() *Emitter { return &Emitter{} }

// IP is the index the next emitted word will occupy.
func (e *Emitter) IP() uint32 { return uint32(len(e.words)) }

// Std emits one standard (non-Orthography) instruction.
func (e *Emitter) Std(op abi.Op, a, b, c abi.Register) {
	e.words = append(e.words, abi.Encode(op, a, b, c))
}

// Ortho emits a load-immediate instruction. value must already be known to
// fit the 25-bit field; callers needing a full 32-bit constant go through
// Driver.loadImmediate instead.
func (e *Emitter) Ortho(reg abi.Register, value uint32) {
	e.words = append(e.words, abi.EncodeOrthography(reg, value))
}

// OrthoLabel reserves a word that will become Orthography(reg, lbl's ip)
// once lbl is bound. Used for jump targets that are not yet known (forward
// references); the resolved ip must itself fit the 25-bit field, which
// holds for any program under 2^25 words.
func (e *Emitter) OrthoLabel(reg abi.Register, lbl *Label) {
	cell := len(e.words)
	e.words = append(e.words, 0)
	e.patches = append(e.patches, patch{cell: cell, reg: reg, lbl: lbl})
}

// NewLabel returns an unbound jump target.
func (e *Emitter) NewLabel() *Label { return &Label{} }

// Bind fixes lbl's address at the emitter's current IP.
func (e *Emitter) Bind(lbl *Label) { lbl.bind(e.IP()) }

// Words resolves every forward reference and returns the finished word
// sequence. An unresolved placeholder here is a fatal internal error
// (spec.md §7), not a user diagnostic — every label this package creates
// is bound before Words is called (CompileFunction does not call Words on a
// function whose codegen failed part-way).
func (e *Emitter) Words() []uint32 {
	for _, p := range e.patches {
		if !p.lbl.resolved {
			panic("codegen: internal error: unresolved jump target placeholder")
		}
		e.words[p.cell] = abi.EncodeOrthography(p.reg, p.lbl.ip)
	}
	return e.words
}

// ---- driver ----

// Driver lowers one function's IR (or the bootstrap) into native words.
// fn is nil while compiling the bootstrap.
type Driver struct {
	e     *Emitter
	pool  *regalloc.Pool
	table *alloc.Table
	errs  *diag.List
	fn    *ir.FunctionDef
}

func newDriver(table *alloc.Table, errs *diag.List, fn *ir.FunctionDef) *Driver {
	return &Driver{e: NewEmitter(), pool: regalloc.New(), table: table, errs: errs, fn: fn}
}

// site is the synthetic source position attached to this driver's
// register-exhaustion diagnostics. Codegen operates on lang/ir, whose
// nodes carry no source position (spec.md §3 lists none on the IR node
// shape), so the best identification available this late is the enclosing
// function's name; type and name diagnostics, which carry full line/column,
// are all raised earlier by lang/lower against the positioned raw tree.
func (d *Driver) site() token.Position {
	if d.fn == nil {
		return token.Position{Filename: "bootstrap"}
	}
	return token.Position{Filename: fmt.Sprintf("function %s", d.fn.Name)}
}

func (d *Driver) occupy(site token.Position) (*regalloc.Handle, bool) {
	h, derr := d.pool.Occupy(site)
	if derr != nil {
		if d.errs != nil {
			d.errs.Add(derr.Pos, derr.Source, "%s", derr.Msg)
		}
		return nil, false
	}
	return h, true
}

// loadImmediate materializes value into reg, expanding into chained
// Orthography+Addition steps when value exceeds the 25-bit immediate field
// (spec.md §4.7 "Large immediates").
func (d *Driver) loadImmediate(site token.Position, reg abi.Register, value uint32) bool {
	if value <= abi.OrthographyMax {
		d.e.Ortho(reg, value)
		return true
	}
	acc, ok := d.occupy(site)
	if !ok {
		return false
	}
	defer acc.Release()

	d.e.Ortho(reg, abi.OrthographyMax)
	remaining := value - abi.OrthographyMax
	for remaining > abi.OrthographyMax {
		d.e.Ortho(acc.Register(), abi.OrthographyMax)
		d.e.Std(abi.OpAdd, reg, reg, acc.Register())
		remaining -= abi.OrthographyMax
	}
	if remaining > 0 {
		d.e.Ortho(acc.Register(), remaining)
		d.e.Std(abi.OpAdd, reg, reg, acc.Register())
	}
	return true
}

// decrement computes reg -= 1 via reg += (2^32-1), materializing -1 cheaply
// as NAND(0,0) (NAND(a,a) == ~a, so NAND(0,0) == 0xFFFFFFFF). This is the
// same two's-complement trick spec.md §9 mandates for subtraction generally.
func (d *Driver) decrement(site token.Position, reg abi.Register) bool {
	negOne, ok := d.occupy(site)
	if !ok {
		return false
	}
	d.e.Ortho(negOne.Register(), 0)
	d.e.Std(abi.OpNand, negOne.Register(), negOne.Register(), negOne.Register())
	d.e.Std(abi.OpAdd, reg, reg, negOne.Register())
	negOne.Release()
	return true
}

// negate computes reg := -reg (two's complement): ~reg + 1.
func (d *Driver) negate(site token.Position, reg abi.Register) bool {
	d.e.Std(abi.OpNand, reg, reg, reg)
	one, ok := d.occupy(site)
	if !ok {
		return false
	}
	d.e.Ortho(one.Register(), 1)
	d.e.Std(abi.OpAdd, reg, reg, one.Register())
	one.Release()
	return true
}

// push stores val at STACK[STACK_TOP] and advances STACK_TOP by one.
func (d *Driver) push(site token.Position, val abi.Register) bool {
	d.e.Std(abi.OpAmend, abi.STACK, abi.STACK_TOP, val)
	one, ok := d.occupy(site)
	if !ok {
		return false
	}
	d.e.Ortho(one.Register(), 1)
	d.e.Std(abi.OpAdd, abi.STACK_TOP, abi.STACK_TOP, one.Register())
	one.Release()
	return true
}

// pop decrements STACK_TOP and reads the freed slot into dst.
func (d *Driver) pop(site token.Position, dst abi.Register) bool {
	if !d.decrement(site, abi.STACK_TOP) {
		return false
	}
	d.e.Std(abi.OpIndex, dst, abi.STACK, abi.STACK_TOP)
	return true
}

// emitBranch jumps to trueLbl if cond != 0, otherwise to falseLbl. The UM
// has no native conditional branch: this selects between the two targets
// with a ConditionalMove and always executes the resulting LoadProgram
// (spec.md §9's "a != 0 ? ... : ..." pattern, generalized to two labels).
func (d *Driver) emitBranch(site token.Position, cond abi.Register, trueLbl, falseLbl *Label) bool {
	selH, ok := d.occupy(site)
	if !ok {
		return false
	}
	trueH, ok := d.occupy(site)
	if !ok {
		selH.Release()
		return false
	}
	zeroH, ok := d.occupy(site)
	if !ok {
		selH.Release()
		trueH.Release()
		return false
	}

	d.e.OrthoLabel(selH.Register(), falseLbl)
	d.e.OrthoLabel(trueH.Register(), trueLbl)
	d.e.Std(abi.OpCMov, selH.Register(), trueH.Register(), cond)
	d.e.Ortho(zeroH.Register(), 0)
	d.e.Std(abi.OpLoadProgram, 0, zeroH.Register(), selH.Register())

	zeroH.Release()
	trueH.Release()
	selH.Release()
	return true
}

// emitJump unconditionally transfers control to target, within the current
// program (LoadProgram B=0, a self-duplicate that only changes the IP).
func (d *Driver) emitJump(site token.Position, target *Label) bool {
	progH, ok := d.occupy(site)
	if !ok {
		return false
	}
	ipH, ok := d.occupy(site)
	if !ok {
		progH.Release()
		return false
	}
	d.e.Ortho(progH.Register(), 0)
	d.e.OrthoLabel(ipH.Register(), target)
	d.e.Std(abi.OpLoadProgram, 0, progH.Register(), ipH.Register())
	ipH.Release()
	progH.Release()
	return true
}

func (d *Driver) storeSlot(site token.Position, slot int, rhsH *regalloc.Handle) bool {
	slotH, ok := d.occupy(site)
	if !ok {
		rhsH.Release()
		return false
	}
	d.e.Ortho(slotH.Register(), uint32(slot))
	d.e.Std(abi.OpAmend, abi.LOCALS, slotH.Register(), rhsH.Register())
	slotH.Release()
	rhsH.Release()
	return true
}

// containsCall reports whether evaluating n could execute a function call,
// which (per spec.md §4.6) clobbers every register — codegen uses this to
// decide whether a sibling subexpression's register must be saved to the
// stack before evaluating n.
func containsCall(n ir.Node) bool {
	switch v := n.(type) {
	case *ir.Call, *ir.BuiltinCall:
		return true
	case *ir.BinOp:
		return containsCall(v.Left) || containsCall(v.Right)
	case *ir.UnOp:
		return containsCall(v.Operand)
	case *ir.Subscript:
		return containsCall(v.Array) || containsCall(v.Index)
	default:
		return false
	}
}

// ---- expression-mode codegen (spec.md §4.5 "compute_into_register") ----

func (d *Driver) genExpr(n ir.Node) (*regalloc.Handle, bool) {
	site := d.site()
	switch v := n.(type) {
	case *ir.UIntLiteral:
		h, ok := d.occupy(site)
		if !ok {
			return nil, false
		}
		if !d.loadImmediate(site, h.Register(), v.Value) {
			h.Release()
			return nil, false
		}
		return h, true

	case *ir.ArrayLiteral:
		idx := d.table.StaticAddress(v)
		h, ok := d.occupy(site)
		if !ok {
			return nil, false
		}
		if !d.loadImmediate(site, h.Register(), idx) {
			h.Release()
			return nil, false
		}
		d.e.Std(abi.OpIndex, h.Register(), abi.PIC_TABLE, h.Register())
		return h, true

	case *ir.Global:
		return d.genGlobal(v)

	case *ir.Argument:
		return d.genSlotRead(v.Slot)

	case *ir.Local:
		return d.genSlotRead(v.Slot)

	case *ir.BinOp:
		return d.genBinOp(v)

	case *ir.UnOp:
		return d.genUnOp(v)

	case *ir.Subscript:
		return d.genSubscript(v)

	case *ir.Call:
		return d.genCall(v)

	case *ir.BuiltinCall:
		return d.genBuiltinCall(v)

	default:
		return nil, false
	}
}

func (d *Driver) genSlotRead(slot int) (*regalloc.Handle, bool) {
	site := d.site()
	h, ok := d.occupy(site)
	if !ok {
		return nil, false
	}
	if !d.loadImmediate(site, h.Register(), uint32(slot)) {
		h.Release()
		return nil, false
	}
	d.e.Std(abi.OpIndex, h.Register(), abi.LOCALS, h.Register())
	return h, true
}

func (d *Driver) genGlobal(g *ir.Global) (*regalloc.Handle, bool) {
	site := d.site()
	if g.Type() == types.Array {
		idx := d.table.StaticAddress(g)
		h, ok := d.occupy(site)
		if !ok {
			return nil, false
		}
		if !d.loadImmediate(site, h.Register(), idx) {
			h.Release()
			return nil, false
		}
		d.e.Std(abi.OpIndex, h.Register(), abi.PIC_TABLE, h.Register())
		return h, true
	}
	lit := g.Init.(*ir.UIntLiteral)
	h, ok := d.occupy(site)
	if !ok {
		return nil, false
	}
	if !d.loadImmediate(site, h.Register(), lit.Value) {
		h.Release()
		return nil, false
	}
	return h, true
}

func (d *Driver) genBinOp(v *ir.BinOp) (*regalloc.Handle, bool) {
	site := d.site()
	l, ok := d.genExpr(v.Left)
	if !ok {
		return nil, false
	}

	spill := containsCall(v.Right)
	if spill {
		if !d.push(site, l.Register()) {
			l.Release()
			return nil, false
		}
		l.Release()
	}

	r, ok := d.genExpr(v.Right)
	if !ok {
		if !spill {
			l.Release()
		}
		return nil, false
	}

	if spill {
		restored, ok := d.occupy(site)
		if !ok {
			r.Release()
			return nil, false
		}
		if !d.pop(site, restored.Register()) {
			restored.Release()
			r.Release()
			return nil, false
		}
		l = restored
	}

	switch v.Op {
	case ir.Add:
		d.e.Std(abi.OpAdd, l.Register(), l.Register(), r.Register())
	case ir.Sub:
		if !d.negate(site, r.Register()) {
			l.Release()
			r.Release()
			return nil, false
		}
		d.e.Std(abi.OpAdd, l.Register(), l.Register(), r.Register())
	case ir.Mul:
		d.e.Std(abi.OpMul, l.Register(), l.Register(), r.Register())
	case ir.Div:
		d.e.Std(abi.OpDiv, l.Register(), l.Register(), r.Register())
	}
	r.Release()
	return l, true
}

func (d *Driver) genUnOp(v *ir.UnOp) (*regalloc.Handle, bool) {
	site := d.site()
	operand, ok := d.genExpr(v.Operand)
	if !ok {
		return nil, false
	}

	switch v.Op {
	case ir.UPlus:
		return operand, true
	case ir.UMinus:
		if !d.negate(site, operand.Register()) {
			operand.Release()
			return nil, false
		}
		return operand, true
	case ir.UInvert:
		d.e.Std(abi.OpNand, operand.Register(), operand.Register(), operand.Register())
		return operand, true
	case ir.UNot:
		// result := (operand == 0) ? 1 : 0, synthesized as a cmov select
		// (spec.md §9's resolution of unary `not`).
		trueH, ok := d.occupy(site)
		if !ok {
			operand.Release()
			return nil, false
		}
		d.e.Ortho(trueH.Register(), 1)
		falseH, ok := d.occupy(site)
		if !ok {
			trueH.Release()
			operand.Release()
			return nil, false
		}
		d.e.Ortho(falseH.Register(), 0)
		d.e.Std(abi.OpCMov, trueH.Register(), falseH.Register(), operand.Register())
		falseH.Release()
		operand.Release()
		return trueH, true
	default:
		operand.Release()
		return nil, false
	}
}

// genIndex folds the +1 length-word skip into ixH (spec.md §4.5
// "Subscript"), loading a compile-time-folded constant when ix is a
// literal and emitting an Add otherwise.
func (d *Driver) genIndex(site token.Position, ixNode ir.Node, ixH *regalloc.Handle) bool {
	if lit, isLit := ixNode.(*ir.UIntLiteral); isLit {
		return d.loadImmediate(site, ixH.Register(), lit.Value+1)
	}
	one, ok := d.occupy(site)
	if !ok {
		return false
	}
	d.e.Ortho(one.Register(), 1)
	d.e.Std(abi.OpAdd, ixH.Register(), ixH.Register(), one.Register())
	one.Release()
	return true
}

func (d *Driver) genSubscript(v *ir.Subscript) (*regalloc.Handle, bool) {
	site := d.site()
	ixH, ok := d.genExpr(v.Index)
	if !ok {
		return nil, false
	}
	if !d.genIndex(site, v.Index, ixH) {
		ixH.Release()
		return nil, false
	}
	arrH, ok := d.genExpr(v.Array)
	if !ok {
		ixH.Release()
		return nil, false
	}
	d.e.Std(abi.OpIndex, arrH.Register(), arrH.Register(), ixH.Register())
	ixH.Release()
	return arrH, true
}

// genCall implements spec.md §4.6's call convention: push caller LOCALS and
// PIC index, push args in reverse, resolve the callee, push the resume IP
// (a fixed compile-time offset), and LoadProgram into the callee. The
// value is read back from STACK[0] once control returns.
func (d *Driver) genCall(v *ir.Call) (*regalloc.Handle, bool) {
	site := d.site()

	if !d.push(site, abi.LOCALS) {
		return nil, false
	}
	gIdxH, ok := d.occupy(site)
	if !ok {
		return nil, false
	}
	if !d.loadImmediate(site, gIdxH.Register(), d.table.StaticAddress(d.fn)) {
		gIdxH.Release()
		return nil, false
	}
	if !d.push(site, gIdxH.Register()) {
		gIdxH.Release()
		return nil, false
	}
	gIdxH.Release()

	for i := len(v.Args) - 1; i >= 0; i-- {
		argH, ok := d.genExpr(v.Args[i])
		if !ok {
			return nil, false
		}
		if !d.push(site, argH.Register()) {
			argH.Release()
			return nil, false
		}
		argH.Release()
	}

	fH, ok := d.occupy(site)
	if !ok {
		return nil, false
	}
	if !d.loadImmediate(site, fH.Register(), d.table.StaticAddress(v.Func)) {
		fH.Release()
		return nil, false
	}
	d.e.Std(abi.OpIndex, fH.Register(), abi.PIC_TABLE, fH.Register())

	// The resume IP is a fixed offset past the LoadProgram we are about to
	// emit: 1 word to load it, 3 to push it, 1 to load the zero operand,
	// 1 for the LoadProgram itself (spec.md §4.6 point 4).
	resumeIP := d.e.IP() + 1 + 3 + 1 + 1
	ipH, ok := d.occupy(site)
	if !ok {
		fH.Release()
		return nil, false
	}
	if !d.loadImmediate(site, ipH.Register(), resumeIP) {
		ipH.Release()
		fH.Release()
		return nil, false
	}
	if !d.push(site, ipH.Register()) {
		ipH.Release()
		fH.Release()
		return nil, false
	}
	ipH.Release()

	zeroH, ok := d.occupy(site)
	if !ok {
		fH.Release()
		return nil, false
	}
	d.e.Ortho(zeroH.Register(), 0)
	d.e.Std(abi.OpLoadProgram, 0, fH.Register(), zeroH.Register())
	zeroH.Release()
	fH.Release()

	// Control resumes here: read the return value from STACK[0].
	resultH, ok := d.occupy(site)
	if !ok {
		return nil, false
	}
	zero2H, ok := d.occupy(site)
	if !ok {
		resultH.Release()
		return nil, false
	}
	d.e.Ortho(zero2H.Register(), 0)
	d.e.Std(abi.OpIndex, resultH.Register(), abi.STACK, zero2H.Register())
	zero2H.Release()
	return resultH, true
}

func (d *Driver) genBuiltinCall(v *ir.BuiltinCall) (*regalloc.Handle, bool) {
	site := d.site()
	entry, _ := builtin.Lookup(v.Name)

	if entry.ReadLen {
		argH, ok := d.genExpr(v.Args[0])
		if !ok {
			return nil, false
		}
		zeroH, ok := d.occupy(site)
		if !ok {
			argH.Release()
			return nil, false
		}
		d.e.Ortho(zeroH.Register(), 0)
		d.e.Std(abi.OpIndex, argH.Register(), argH.Register(), zeroH.Register())
		zeroH.Release()
		return argH, true
	}

	args := make([]*regalloc.Handle, 0, len(v.Args))
	for _, a := range v.Args {
		h, ok := d.genExpr(a)
		if !ok {
			for _, prev := range args {
				prev.Release()
			}
			return nil, false
		}
		args = append(args, h)
	}

	switch entry.Opcode {
	case abi.OpOutput:
		d.e.Std(abi.OpOutput, 0, 0, args[0].Register())
		args[0].Release()
		return nil, true

	case abi.OpAlloc:
		sizeH := args[0]
		oneH, ok := d.occupy(site)
		if !ok {
			sizeH.Release()
			return nil, false
		}
		d.e.Ortho(oneH.Register(), 1)
		totalH, ok := d.occupy(site)
		if !ok {
			oneH.Release()
			sizeH.Release()
			return nil, false
		}
		d.e.Std(abi.OpAdd, totalH.Register(), sizeH.Register(), oneH.Register())
		resH, ok := d.occupy(site)
		if !ok {
			totalH.Release()
			oneH.Release()
			sizeH.Release()
			return nil, false
		}
		d.e.Std(abi.OpAlloc, 0, resH.Register(), totalH.Register())
		d.e.Ortho(oneH.Register(), 0) // reuse oneH to hold index 0
		d.e.Std(abi.OpAmend, resH.Register(), oneH.Register(), sizeH.Register())
		totalH.Release()
		oneH.Release()
		sizeH.Release()
		return resH, true

	case abi.OpFree:
		d.e.Std(abi.OpFree, 0, 0, args[0].Register())
		args[0].Release()
		return nil, true

	case abi.OpHalt:
		d.e.Std(abi.OpHalt, 0, 0, 0)
		return nil, true

	default:
		return nil, false
	}
}

// ---- statement-mode codegen (spec.md §4.5 "compile_node") ----

func (d *Driver) genBlock(body []ir.Node) bool {
	for _, s := range body {
		if !d.genStmt(s) {
			return false
		}
	}
	return true
}

func (d *Driver) genStmt(n ir.Node) bool {
	switch v := n.(type) {
	case *ir.Assignment:
		return d.genAssignment(v)
	case *ir.If:
		return d.genIf(v)
	case *ir.For:
		return d.genFor(v)
	case *ir.Return:
		return d.genReturn(v)
	case *ir.Call:
		h, ok := d.genExpr(v)
		if ok && h != nil {
			h.Release()
		}
		return ok
	case *ir.BuiltinCall:
		h, ok := d.genExpr(v)
		if ok && h != nil {
			h.Release()
		}
		return ok
	default:
		return true
	}
}

func (d *Driver) genAssignment(v *ir.Assignment) bool {
	site := d.site()
	rhsH, ok := d.genExpr(v.RHS)
	if !ok {
		return false
	}

	switch lhs := v.LHS.(type) {
	case *ir.Argument:
		return d.storeSlot(site, lhs.Slot, rhsH)
	case *ir.Local:
		return d.storeSlot(site, lhs.Slot, rhsH)
	case *ir.Subscript:
		arrH, ok := d.genExpr(lhs.Array)
		if !ok {
			rhsH.Release()
			return false
		}
		ixH, ok := d.genExpr(lhs.Index)
		if !ok {
			rhsH.Release()
			arrH.Release()
			return false
		}
		if !d.genIndex(site, lhs.Index, ixH) {
			rhsH.Release()
			arrH.Release()
			ixH.Release()
			return false
		}
		d.e.Std(abi.OpAmend, arrH.Register(), ixH.Register(), rhsH.Register())
		rhsH.Release()
		arrH.Release()
		ixH.Release()
		return true
	default:
		rhsH.Release()
		return true
	}
}

func (d *Driver) genIf(v *ir.If) bool {
	site := d.site()
	testH, ok := d.genExpr(v.Test)
	if !ok {
		return false
	}
	trueLbl, falseLbl, endLbl := d.e.NewLabel(), d.e.NewLabel(), d.e.NewLabel()
	if !d.emitBranch(site, testH.Register(), trueLbl, falseLbl) {
		testH.Release()
		return false
	}
	testH.Release()

	d.e.Bind(trueLbl)
	if !d.genBlock(v.True) {
		return false
	}
	if !d.emitJump(site, endLbl) {
		return false
	}

	d.e.Bind(falseLbl)
	if !d.genBlock(v.False) {
		return false
	}

	d.e.Bind(endLbl)
	return true
}

// genFor implements spec.md §4.5's loop lowering literally: the iterated
// array, the remaining-iteration count and the current index all live in
// LOCALS slots (v.IterSlot/RemainingSlot/IndexSlot, reserved by lang/lower),
// not in scratch registers held across the loop. Each iteration reloads
// whichever of the three it needs and releases it as soon as it is used;
// only the remaining count (the branch condition) is live while emitBranch
// runs — holding more than one of these live at that point would overrun the
// 4-register pool (spec.md §4.4) once emitBranch's three internal
// occupations stack on top.
func (d *Driver) genFor(v *ir.For) bool {
	site := d.site()

	iterH, ok := d.genExpr(v.Iter)
	if !ok {
		return false
	}
	zeroH, ok := d.occupy(site)
	if !ok {
		iterH.Release()
		return false
	}
	lenH, ok := d.occupy(site)
	if !ok {
		zeroH.Release()
		iterH.Release()
		return false
	}
	d.e.Ortho(zeroH.Register(), 0)
	d.e.Std(abi.OpIndex, lenH.Register(), iterH.Register(), zeroH.Register())
	zeroH.Release()
	if !d.storeSlot(site, v.RemainingSlot, lenH) {
		iterH.Release()
		return false
	}
	if !d.storeSlot(site, v.IterSlot, iterH) {
		return false
	}

	oneH, ok := d.occupy(site)
	if !ok {
		return false
	}
	d.e.Ortho(oneH.Register(), 1)
	if !d.storeSlot(site, v.IndexSlot, oneH) {
		return false
	}

	entryLbl, bodyLbl, exitLbl := d.e.NewLabel(), d.e.NewLabel(), d.e.NewLabel()
	d.e.Bind(entryLbl)

	remainingH, ok := d.genSlotRead(v.RemainingSlot)
	if !ok {
		return false
	}
	branched := d.emitBranch(site, remainingH.Register(), bodyLbl, exitLbl)
	remainingH.Release()
	if !branched {
		return false
	}

	d.e.Bind(bodyLbl)
	indexH, ok := d.genSlotRead(v.IndexSlot)
	if !ok {
		return false
	}
	loopIterH, ok := d.genSlotRead(v.IterSlot)
	if !ok {
		indexH.Release()
		return false
	}
	elemH, ok := d.occupy(site)
	if !ok {
		loopIterH.Release()
		indexH.Release()
		return false
	}
	d.e.Std(abi.OpIndex, elemH.Register(), loopIterH.Register(), indexH.Register())
	loopIterH.Release()
	indexH.Release()
	if !d.storeSlot(site, v.Target.Slot, elemH) {
		return false
	}

	if !d.genBlock(v.Body) {
		return false
	}

	remH, ok := d.genSlotRead(v.RemainingSlot)
	if !ok {
		return false
	}
	if !d.decrement(site, remH.Register()) {
		remH.Release()
		return false
	}
	if !d.storeSlot(site, v.RemainingSlot, remH) {
		return false
	}

	idxH, ok := d.genSlotRead(v.IndexSlot)
	if !ok {
		return false
	}
	incH, ok := d.occupy(site)
	if !ok {
		idxH.Release()
		return false
	}
	d.e.Ortho(incH.Register(), 1)
	d.e.Std(abi.OpAdd, idxH.Register(), idxH.Register(), incH.Register())
	incH.Release()
	if !d.storeSlot(site, v.IndexSlot, idxH) {
		return false
	}

	if !d.emitJump(site, entryLbl) {
		return false
	}

	d.e.Bind(exitLbl)
	return true
}

func (d *Driver) genReturn(v *ir.Return) bool {
	site := d.site()
	if v.Value != nil {
		valH, ok := d.genExpr(v.Value)
		if !ok {
			return false
		}
		zeroH, ok := d.occupy(site)
		if !ok {
			valH.Release()
			return false
		}
		d.e.Ortho(zeroH.Register(), 0)
		d.e.Std(abi.OpAmend, abi.STACK, zeroH.Register(), valH.Register())
		zeroH.Release()
		valH.Release()
	}
	return d.genEpilogue(site)
}

// genEpilogue implements spec.md §4.6's callee epilogue: abandon the
// current LOCALS (elided when the function declared zero slots, mirroring
// the prologue's elision), then either Halt (main) or unwind back into the
// caller's code array at the resume IP.
func (d *Driver) genEpilogue(site token.Position) bool {
	if d.fn.NumSlots() > 0 {
		d.e.Std(abi.OpFree, 0, 0, abi.LOCALS)
	}
	if d.fn.Name == "main" {
		d.e.Std(abi.OpHalt, 0, 0, 0)
		return true
	}

	raH, ok := d.occupy(site)
	if !ok {
		return false
	}
	if !d.pop(site, raH.Register()) {
		raH.Release()
		return false
	}

	gIdxH, ok := d.occupy(site)
	if !ok {
		raH.Release()
		return false
	}
	if !d.pop(site, gIdxH.Register()) {
		gIdxH.Release()
		raH.Release()
		return false
	}
	d.e.Std(abi.OpIndex, gIdxH.Register(), abi.PIC_TABLE, gIdxH.Register())

	callerLocalsH, ok := d.occupy(site)
	if !ok {
		gIdxH.Release()
		raH.Release()
		return false
	}
	if !d.pop(site, callerLocalsH.Register()) {
		callerLocalsH.Release()
		gIdxH.Release()
		raH.Release()
		return false
	}
	oneH, ok := d.occupy(site)
	if !ok {
		callerLocalsH.Release()
		gIdxH.Release()
		raH.Release()
		return false
	}
	d.e.Ortho(oneH.Register(), 1)
	d.e.Std(abi.OpCMov, abi.LOCALS, callerLocalsH.Register(), oneH.Register())
	oneH.Release()
	callerLocalsH.Release()

	d.e.Std(abi.OpLoadProgram, 0, gIdxH.Register(), raH.Register())
	gIdxH.Release()
	raH.Release()
	return true
}

// genPrologue implements spec.md §4.6's callee prologue: allocate LOCALS
// (elided when the function declares zero argument+local slots, matching
// the empty-`main` scenario in §8), and, when there are arguments, pop the
// resume IP, pop each argument into its slot, and push the resume IP back.
func (d *Driver) genPrologue() bool {
	site := d.site()
	n := d.fn.NumSlots()
	if n == 0 {
		return true
	}

	sizeH, ok := d.occupy(site)
	if !ok {
		return false
	}
	d.e.Ortho(sizeH.Register(), uint32(n))
	d.e.Std(abi.OpAlloc, 0, abi.LOCALS, sizeH.Register())
	sizeH.Release()

	if len(d.fn.Args) == 0 {
		return true
	}

	raH, ok := d.occupy(site)
	if !ok {
		return false
	}
	if !d.pop(site, raH.Register()) {
		raH.Release()
		return false
	}

	for i := range d.fn.Args {
		argH, ok := d.occupy(site)
		if !ok {
			raH.Release()
			return false
		}
		if !d.pop(site, argH.Register()) {
			argH.Release()
			raH.Release()
			return false
		}
		if !d.storeSlot(site, i, argH) {
			raH.Release()
			return false
		}
	}

	if !d.push(site, raH.Register()) {
		raH.Release()
		return false
	}
	raH.Release()
	return true
}

// CompileFunction lowers fn's body into a standalone native word sequence.
func CompileFunction(fn *ir.FunctionDef, table *alloc.Table, errs *diag.List) []uint32 {
	d := newDriver(table, errs, fn)
	if !d.genPrologue() {
		return nil
	}
	if !d.genBlock(fn.Body) {
		return nil
	}
	// A function whose body falls off the end without an explicit Return
	// still needs the epilogue emitted; lang/lower only synthesizes a
	// Return for a bare `return` statement, not for a missing one, so a
	// void function may legitimately have no Return node at all.
	d.genEpilogue(d.site())
	return d.e.Words()
}
