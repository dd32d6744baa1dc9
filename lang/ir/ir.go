// Package ir defines UMLC's typed intermediate representation (spec.md §3):
// an immutable, structurally-compared sum type built bottom-up by
// lang/lower and consumed by lang/alloc and lang/codegen.
//
// Modeled after nenuphar's lang/ast package (one struct per node kind) and
// its resolver.Binding convention of giving variables pointer identity
// rather than value identity: *Argument, *Local, *Global and *FunctionDef
// are compared and keyed by address, because spec.md requires "identity by
// name within their scope" — two references to the same variable share the
// same Go pointer, created once by lang/lower.
package ir

import "github.com/havrel-lang/umlc/lang/types"

// Node is the common interface implemented by every IR node, expression or
// statement alike (spec.md §3 treats them as one sum type; e.g. a
// FunctionDef's Body is "[IR]", not split into separate expression and
// statement lists).
type Node interface {
	// Type is the node's value type. Nodes that only ever appear in
	// statement position (Assignment, If, For, Return) report types.Void.
	Type() types.Kind
	irNode()
}

type node struct{ kind types.Kind }

func (n node) Type() types.Kind { return n.kind }
func (node) irNode()            {}

// ---- leaves ----

// UIntLiteral is a uint32 constant.
type UIntLiteral struct {
	node
	Value uint32
}

// NewUIntLiteral builds a uint literal. n must be in [0, 2^32-1] — the
// caller (lang/lower) is responsible for range-checking against spec.md
// §3's invariant before constructing one.
func NewUIntLiteral(v uint32) *UIntLiteral { return &UIntLiteral{node: node{types.Uint}, Value: v} }

// ArrayLiteral is a fixed array of uint32 contents, from a string literal
// or an explicit bracketed list (spec.md §3).
type ArrayLiteral struct {
	node
	Bytes []uint32
}

func NewArrayLiteral(bytes []uint32) *ArrayLiteral {
	return &ArrayLiteral{node: node{types.Array}, Bytes: bytes}
}

// Argument is a function parameter binding. Identity by pointer: every
// reference to the same parameter shares the same *Argument.
type Argument struct {
	node
	Name string
	// Slot is this argument's index into the callee's flattened
	// args+locals slot list (spec.md §3 invariant: "args first, then
	// locals in definition order"). Assigned once, at declaration.
	Slot int
}

func NewArgument(name string, kind types.Kind, slot int) *Argument {
	return &Argument{node: node{kind}, Name: name, Slot: slot}
}

// Local is a function-local variable binding. Identity by pointer.
type Local struct {
	node
	Name string
	Slot int
}

func NewLocal(name string, kind types.Kind, slot int) *Local {
	return &Local{node: node{kind}, Name: name, Slot: slot}
}

// Global is a module-level variable binding. Identity by pointer.
//
// Init holds the literal initializer (*UIntLiteral or *ArrayLiteral); for a
// Uint global, spec.md §4.3 says the value is inlined at every use site
// rather than indexed, so codegen reads Init directly instead of going
// through the static allocator.
type Global struct {
	node
	Name string
	Init Node
}

func NewGlobal(name string, kind types.Kind, init Node) *Global {
	return &Global{node: node{kind}, Name: name, Init: init}
}

// ---- function ----

// FunctionDef is a top-level function definition. Identity by pointer
// (used as the static allocator's and the codegen driver's key).
type FunctionDef struct {
	node
	Name       string
	Args       []*Argument
	Locals     []*Local
	Body       []Node
	ReturnKind types.Kind
}

func NewFunctionDef(name string, args []*Argument, locals []*Local, returnKind types.Kind) *FunctionDef {
	return &FunctionDef{node: node{types.Void}, Name: name, Args: args, Locals: locals, ReturnKind: returnKind}
}

// NumSlots is the size of this function's flattened LOCALS array: arguments
// occupy the low slots, followed by locals in declaration order.
func (f *FunctionDef) NumSlots() int { return len(f.Args) + len(f.Locals) }

// ---- operators ----

type BinOpKind uint8

const (
	Add BinOpKind = iota
	Sub
	Mul
	Div
)

func (k BinOpKind) String() string {
	switch k {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case Div:
		return "/"
	default:
		return "?"
	}
}

type UnOpKind uint8

const (
	UPlus UnOpKind = iota
	UMinus
	UInvert
	UNot
)

func (k UnOpKind) String() string {
	switch k {
	case UPlus:
		return "+"
	case UMinus:
		return "-"
	case UInvert:
		return "~"
	case UNot:
		return "not"
	default:
		return "?"
	}
}

// ---- composite expressions ----

// BinOp is a binary arithmetic expression; both operands and the result
// are uint (spec.md §3).
type BinOp struct {
	node
	Op          BinOpKind
	Left, Right Node
}

func NewBinOp(op BinOpKind, left, right Node) *BinOp {
	return &BinOp{node: node{types.Uint}, Op: op, Left: left, Right: right}
}

// UnOp is a unary expression; uint -> uint.
type UnOp struct {
	node
	Op      UnOpKind
	Operand Node
}

func NewUnOp(op UnOpKind, operand Node) *UnOp {
	return &UnOp{node: node{types.Uint}, Op: op, Operand: operand}
}

// Subscript indexes an array, producing a uint.
type Subscript struct {
	node
	Array, Index Node
}

func NewSubscript(array, index Node) *Subscript {
	return &Subscript{node: node{types.Uint}, Array: array, Index: index}
}

// Call invokes a user-defined function.
type Call struct {
	node
	Func *FunctionDef
	Args []Node
}

func NewCall(fn *FunctionDef) *Call {
	return &Call{node: node{fn.ReturnKind}, Func: fn}
}

// BuiltinCall invokes one of the fixed um.* builtins (spec.md §4.2). Name
// is the bare builtin name (e.g. "putchar"), already validated by
// lang/lower against lang/builtin's table.
type BuiltinCall struct {
	node
	Name string
	Args []Node
}

func NewBuiltinCall(name string, ret types.Kind) *BuiltinCall {
	return &BuiltinCall{node: node{ret}, Name: name}
}

// ---- statements ----

// Assignment stores a value into a Local, Argument or Subscript target.
type Assignment struct {
	node
	LHS, RHS Node
}

func NewAssignment(lhs, rhs Node) *Assignment {
	return &Assignment{node: node{types.Void}, LHS: lhs, RHS: rhs}
}

// If is a conditional; test must be uint, zero is false.
type If struct {
	node
	Test        Node
	True, False []Node
}

func NewIf(test Node, trueBody, falseBody []Node) *If {
	return &If{node: node{types.Void}, Test: test, True: trueBody, False: falseBody}
}

// For iterates element-wise uint bindings over an array.
//
// IterSlot, RemainingSlot and IndexSlot are hidden LOCALS slots lang/lower
// reserves alongside Target, one per loop, holding the iterated array
// handle, the loop's remaining-iteration count and its current index
// (spec.md §4.5: "store its length into a loop-remaining slot; initialize
// loop index to 1"). Codegen reloads them from LOCALS each iteration rather
// than pinning them in scratch registers, which the 4-register budget of
// spec.md §4.4 cannot otherwise sustain across a branch.
type For struct {
	node
	Target *Local
	Iter   Node
	Body   []Node

	IterSlot, RemainingSlot, IndexSlot int
}

func NewFor(target *Local, iter Node, body []Node, iterSlot, remainingSlot, indexSlot int) *For {
	return &For{
		node:          node{types.Void},
		Target:        target,
		Iter:          iter,
		Body:          body,
		IterSlot:      iterSlot,
		RemainingSlot: remainingSlot,
		IndexSlot:     indexSlot,
	}
}

// Return yields from the enclosing function. Value is nil only when the
// enclosing function returns void.
type Return struct {
	node
	Value Node
}

func NewReturn(value Node) *Return {
	return &Return{node: node{types.Void}, Value: value}
}
