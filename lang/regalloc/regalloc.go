// Package regalloc implements the 4-register scratch pool described by
// spec.md §4.4: AX/BX/CX/DX, handed out as scoped handles that must be
// released on every exit path (including error propagation), with no
// spilling — spill-freedom is a contract the codegen driver upholds by
// releasing temporaries before requesting the next one (spec.md §4.5).
//
// Grounded on the "scoped register ownership is a linear resource" design
// note (spec.md §9): a Handle is the linear resource, Release its
// destructor.
package regalloc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/havrel-lang/umlc/lang/abi"
	"github.com/havrel-lang/umlc/lang/diag"
	"github.com/havrel-lang/umlc/lang/token"
)

// Handle is a scoped claim on one scratch register. Call Release exactly
// once, on every exit path from the scope that requested it.
type Handle struct {
	pool     *Pool
	reg      abi.Register
	released bool
}

// Register is the scratch register this handle owns.
func (h *Handle) Register() abi.Register { return h.reg }

// Release returns the register to the pool. Releasing a handle twice is an
// internal contract violation (a lowering bug, not a user diagnostic), so
// it panics rather than erroring.
func (h *Handle) Release() {
	if h.released {
		panic("regalloc: register handle released twice")
	}
	h.released = true
	h.pool.release(h.reg)
}

// Pool is the scratch register allocator for one function's codegen.
type Pool struct {
	free        []abi.Register // stack of free scratch registers
	outstanding map[abi.Register]token.Position
}

// New returns a pool with all 4 scratch registers free.
func New() *Pool {
	free := make([]abi.Register, len(abi.Scratch))
	copy(free, abi.Scratch[:])
	return &Pool{free: free, outstanding: make(map[abi.Register]token.Position, len(abi.Scratch))}
}

// Occupy claims one scratch register, recording site (the requesting
// expression's source position) for use in the exhaustion diagnostic. It
// returns a *diag.Error, not a panic, when the pool is empty: register
// exhaustion is a real user-facing diagnostic (spec.md §7 "Resource"
// category), since sufficiently deep expressions can legitimately exceed 4
// live temporaries.
func (p *Pool) Occupy(site token.Position) (*Handle, *diag.Error) {
	if len(p.free) == 0 {
		return nil, p.exhaustedError(site)
	}
	reg := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.outstanding[reg] = site
	return &Handle{pool: p, reg: reg}, nil
}

func (p *Pool) release(reg abi.Register) {
	delete(p.outstanding, reg)
	p.free = append(p.free, reg)
}

// Occupied reports how many scratch registers are currently claimed. Used
// to check the "occupied count is 0 at every statement boundary" invariant
// (spec.md §8).
func (p *Pool) Occupied() int { return len(abi.Scratch) - len(p.free) }

func (p *Pool) exhaustedError(site token.Position) *diag.Error {
	sites := make([]token.Position, 0, len(p.outstanding))
	for _, s := range p.outstanding {
		sites = append(sites, s)
	}
	sort.Slice(sites, func(i, j int) bool {
		if sites[i].Line != sites[j].Line {
			return sites[i].Line < sites[j].Line
		}
		return sites[i].Column < sites[j].Column
	})

	var b strings.Builder
	fmt.Fprintf(&b, "no scratch register available (all %d are in use)", len(abi.Scratch))
	for _, s := range sites {
		fmt.Fprintf(&b, "\n\toutstanding claim at %s", s)
	}
	return &diag.Error{Pos: site, Msg: b.String()}
}
