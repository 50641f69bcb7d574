package combo

import (
	"github.com/slowlang/slow/src/compiler/ir"
)

// opcodeKey is the "same opcode, mode, arity and attribute" splitting
// characteristic: leaders in one partition must agree on all of it.
// Cliff Click's original combo.c represents this as an opcode_key_t
// hashed by opcode_hash and compared by cmp_irn_opcode; Go map keys
// need only be comparable, so the fields that drive that comparison
// become the struct itself and opcodeKey is used directly as a map
// key -- no separate hash function is needed.
type opcodeKey struct {
	op    ir.Op
	mode  ir.Mode
	arity int
	attr  attrKey
}

// attrKey holds the opcode-specific payload that must match for two
// nodes of the same opcode to be attribute-equal, grounded on the
// source's per-opcode branches inside cmp_irn_opcode: Const compares
// tarvals, SymConst compares the named entity, Proj compares its
// number, Switch compares the identity of its case table, Cmp and
// Confirm compare their relation.
type attrKey struct {
	constMode ir.Mode
	constBits uint64
	sym       ir.SymConst
	projNum   int
	cond      ir.Cond
	cases     *int64
}

func makeOpcodeKey(g *ir.Graph, n ir.Expr) opcodeKey {
	nd := g.N(n)

	k := opcodeKey{
		op:    nd.Op,
		mode:  nd.Mode,
		arity: len(nd.Args),
	}

	switch nd.Op {
	case ir.OpConst:
		k.attr.constMode = nd.Const.Mode
		k.attr.constBits = nd.Const.Bits
	case ir.OpSymConst:
		k.attr.sym = nd.Sym
	case ir.OpProj:
		k.attr.projNum = nd.ProjNum
	case ir.OpSwitch:
		if len(nd.Cases) > 0 {
			k.attr.cases = &nd.Cases[0]
		}
	case ir.OpCmp, ir.OpConfirm:
		k.attr.cond = nd.BoundCond
	}

	return k
}
