package combo

import (
	"tlog.app/go/tlog"

	"github.com/slowlang/slow/src/compiler/ir"
)

// Collaborators is the collaborator surface COMBO consumes from the IR
// construction/back-end side: the mode facts that gate float-strictness.
// defaultCollaborators below implements it; tests may substitute a fake
// to probe transfer-function edge cases in isolation.
type Collaborators interface {
	ModeIsFloat(m ir.Mode) bool
	StrictAlgebraic(m ir.Mode) bool
}

// defaultCollaborators is the production Collaborators, grounded
// directly on ir.Mode.IsFloat and a conservative (never strict)
// algebraic flag. compiler/ir has no equivalent concept, so this small
// default implementation lives in combo itself, next to the interface.
type defaultCollaborators struct{}

func (defaultCollaborators) ModeIsFloat(m ir.Mode) bool     { return m.IsFloat() }
func (defaultCollaborators) StrictAlgebraic(m ir.Mode) bool { return false }

// env is the pass's single explicit parameter carrying everything
// Cliff Click's original threads through a "current graph" global: the
// graph, the node/partition store, configuration and collaborators.
type env struct {
	g      *ir.Graph
	st     *store
	cfg    Config
	collab Collaborators
	tr     tlog.Span // zero value if Config.Trace is off; Printw on a zero Span is a no-op
}

func (c *env) typ(n ir.Expr) Lattice { return c.st.typ(n) }

// transferFuncs is the opcode-keyed dispatch table replacing virtual
// dispatch across opcodes; opcodes absent here fall through to
// computeDefault.
var transferFuncs = map[ir.Op]func(*env, ir.Expr) Lattice{
	ir.OpBad:      computeBad,
	ir.OpUnknown:  computeUnknown,
	ir.OpBlock:    computeBlock,
	ir.OpJmp:      computeJmp,
	ir.OpReturn:   computeReachableAlways,
	ir.OpEnd:      computeReachableAlways,
	ir.OpCall:     computeBottomAlways,
	ir.OpPhi:      computePhi,
	ir.OpAdd:      computeCommZero(func(a, b ir.TarVal) ir.TarVal { return a.Add(b) }),
	ir.OpOr:       computeCommZero(func(a, b ir.TarVal) ir.TarVal { return a.Or(b) }),
	ir.OpEor:      computeEor,
	ir.OpMul:      computeMul,
	ir.OpAnd:      computeAnd,
	ir.OpSub:      computeSub,
	ir.OpShl:      computeShift(func(a, b ir.TarVal) ir.TarVal { return a.Shl(b) }),
	ir.OpShr:      computeShift(func(a, b ir.TarVal) ir.TarVal { return a.Shr(b) }),
	ir.OpShrs:     computeShift(func(a, b ir.TarVal) ir.TarVal { return a.Shrs(b) }),
	ir.OpRotl:     computeShift(func(a, b ir.TarVal) ir.TarVal { return a.Rotl(b) }),
	ir.OpCmp:      computeCmp,
	ir.OpSymConst: computeSymConst,
	ir.OpProj:     computeProj,
	ir.OpConfirm:  computeConfirm,
	ir.OpConst:    computeConst,
	ir.OpMux:      computeMux,
}

func compute(c *env, n ir.Expr) Lattice {
	if f, ok := transferFuncs[c.g.Op(n)]; ok {
		return f(c, n)
	}

	return computeDefault(c, n)
}

// computeDefault mirrors default_compute: Top if any input is Top,
// Reachable for mode-X nodes once inputs settle, Bottom otherwise --
// the generic fallback for opcodes with no specialized rule (Sync,
// Load, Store, Start's own Proj handling delegated elsewhere).
func computeDefault(c *env, n ir.Expr) Lattice {
	nd := c.g.N(n)

	for _, a := range nd.Args {
		if a == ir.Nil {
			continue
		}

		if c.typ(a).IsTop() {
			return Top()
		}
	}

	if nd.Mode == ir.ModeX {
		return Reachable()
	}

	return Bottom()
}

func computeBad(*env, ir.Expr) Lattice     { return Top() }
func computeConst(c *env, n ir.Expr) Lattice { return ConstOf(c.g.N(n).Const) }

func computeUnknown(c *env, _ ir.Expr) Lattice {
	if c.cfg.UnknownAsTop {
		return Top()
	}

	return Bottom()
}

func computeReachableAlways(*env, ir.Expr) Lattice { return Reachable() }
func computeBottomAlways(*env, ir.Expr) Lattice    { return Bottom() }

// computeBlock: Reachable iff it is the start block, is explicitly
// labelled, or has at least one Reachable predecessor; else
// Unreachable. This implementation keeps Unreachable a distinct Kind
// from Top (see DESIGN.md): Cliff Click's original aliases
// tarval_unreachable to tarval_top as a C-side economy, but Go's Kind
// enum can carry the two as separate sum-type cases directly.
func computeBlock(c *env, n ir.Expr) Lattice {
	nd := c.g.N(n)

	if n == c.g.Start || nd.Labelled {
		return Reachable()
	}

	for _, ctrl := range nd.Args {
		if c.typ(ctrl).Kind == KReachable {
			return Reachable()
		}
	}

	return Unreachable()
}

func computeJmp(c *env, n ir.Expr) Lattice {
	return c.typ(c.g.N(n).Block)
}

// computePhi: Top if the containing block is
// Unreachable; else the meet of predecessor values whose control edge
// is Reachable and whose value is not Top -- any Bottom wins, a
// consistent single constant survives, otherwise Bottom, and if every
// live input was Top the Phi itself stays Top.
func computePhi(c *env, n ir.Expr) Lattice {
	nd := c.g.N(n)

	if c.typ(nd.Block).Kind != KReachable {
		return Top()
	}

	preds := c.g.Preds(nd.Block)

	var acc Lattice
	seen := false

	for i, val := range nd.Args {
		if i >= len(preds) {
			break
		}

		if c.typ(preds[i]).Kind != KReachable {
			continue
		}

		vt := c.typ(val)
		if vt.IsTop() {
			continue
		}

		if !seen {
			acc = vt
			seen = true

			continue
		}

		if acc.IsBottom() || vt.IsBottom() || !acc.Equal(vt) {
			acc = Bottom()
		}
	}

	if !seen {
		return Top()
	}

	return acc
}

func binArgs(c *env, n ir.Expr) (Lattice, Lattice, ir.Mode) {
	nd := c.g.N(n)
	return c.typ(nd.Args[0]), c.typ(nd.Args[1]), nd.Mode
}

// computeCommZero handles Add/Or: Top propagates, both-constant folds,
// and a zero operand yields the other operand's type outright (the
// mode-null shortcut for "neutral-element sharpening" -- distinct from
// the identityCommZero follower
// rule in identity.go, which only fires once the *values*, not just
// their type, are known equal to a partition).
func computeCommZero(op func(a, b ir.TarVal) ir.TarVal) func(*env, ir.Expr) Lattice {
	return func(c *env, n ir.Expr) Lattice {
		a, b, mode := binArgs(c, n)

		if a.IsTop() || b.IsTop() {
			return Top()
		}

		if a.Kind == KConst && b.Kind == KConst {
			return ConstOf(op(a.Const, b.Const))
		}

		zero := ir.Null(mode)

		if a.Kind == KConst && a.Const.Bits == zero.Bits {
			return b
		}

		if b.Kind == KConst && b.Const.Bits == zero.Bits {
			return a
		}

		return Bottom()
	}
}

func computeMul(c *env, n ir.Expr) Lattice {
	a, b, mode := binArgs(c, n)

	if a.IsTop() || b.IsTop() {
		return Top()
	}

	if a.Kind == KConst && b.Kind == KConst {
		return ConstOf(a.Const.Mul(b.Const))
	}

	one := ir.One(mode)

	if a.Kind == KConst && a.Const.Bits == one.Bits {
		return b
	}

	if b.Kind == KConst && b.Const.Bits == one.Bits {
		return a
	}

	return Bottom()
}

func computeAnd(c *env, n ir.Expr) Lattice {
	a, b, mode := binArgs(c, n)

	if a.IsTop() || b.IsTop() {
		return Top()
	}

	if a.Kind == KConst && b.Kind == KConst {
		return ConstOf(a.Const.And(b.Const))
	}

	all := ir.AllOnes(mode)

	if a.Kind == KConst && a.Const.Bits == all.Bits {
		return b
	}

	if b.Kind == KConst && b.Const.Bits == all.Bits {
		return a
	}

	return Bottom()
}

// samePartitionResult applies the "equal operand partitions" shortcut
// shared by Sub, Eor and Cmp: once both operands provably name the
// same value, the result (a mode-null, or a definite boolean) is known
// without folding constants -- but only if that result does not
// contradict a type this node already settled on, which would break
// monotonicity, grounded on combo.c's compute_Sub preserving a
// previously-assigned Bottom rather than reverting to the null
// shortcut.
func samePartitionResult(c *env, n ir.Expr, result Lattice) Lattice {
	old := c.typ(n)

	if old.IsBottom() {
		return Bottom()
	}

	if !old.IsTop() && !old.Equal(result) {
		return Bottom()
	}

	return result
}

func computeSub(c *env, n ir.Expr) Lattice {
	nd := c.g.N(n)
	a, b := c.typ(nd.Args[0]), c.typ(nd.Args[1])

	if a.IsTop() || b.IsTop() {
		return Top()
	}

	if a.Kind == KConst && b.Kind == KConst {
		return ConstOf(a.Const.Sub(b.Const))
	}

	zero := ir.Null(nd.Mode)
	if b.Kind == KConst && b.Const.Bits == zero.Bits {
		return a
	}

	if !c.collab.ModeIsFloat(nd.Mode) && c.st.partitionOf(nd.Args[0]) == c.st.partitionOf(nd.Args[1]) {
		return samePartitionResult(c, n, ConstOf(zero))
	}

	return Bottom()
}

func computeEor(c *env, n ir.Expr) Lattice {
	nd := c.g.N(n)
	a, b := c.typ(nd.Args[0]), c.typ(nd.Args[1])

	if a.IsTop() || b.IsTop() {
		return Top()
	}

	if a.Kind == KConst && b.Kind == KConst {
		return ConstOf(a.Const.Eor(b.Const))
	}

	zero := ir.Null(nd.Mode)
	if a.Kind == KConst && a.Const.Bits == zero.Bits {
		return b
	}

	if b.Kind == KConst && b.Const.Bits == zero.Bits {
		return a
	}

	if c.st.partitionOf(nd.Args[0]) == c.st.partitionOf(nd.Args[1]) {
		return samePartitionResult(c, n, ConstOf(zero))
	}

	return Bottom()
}

func computeShift(op func(a, b ir.TarVal) ir.TarVal) func(*env, ir.Expr) Lattice {
	return func(c *env, n ir.Expr) Lattice {
		nd := c.g.N(n)
		a, b := c.typ(nd.Args[0]), c.typ(nd.Args[1])

		if a.IsTop() || b.IsTop() {
			return Top()
		}

		if a.Kind == KConst && b.Kind == KConst {
			return ConstOf(op(a.Const, b.Const))
		}

		zero := ir.Null(nd.Mode)
		if b.Kind == KConst && b.Const.Bits == zero.Bits {
			return a
		}

		return Bottom()
	}
}

func computeCmp(c *env, n ir.Expr) Lattice {
	nd := c.g.N(n)
	a, b := c.typ(nd.Args[0]), c.typ(nd.Args[1])

	if a.IsTop() || b.IsTop() {
		return Top()
	}

	if a.Kind == KConst && b.Kind == KConst {
		return ConstOf(boolTarVal(a.Const.Cmp(nd.BoundCond, b.Const)))
	}

	if !c.collab.ModeIsFloat(c.g.Mode(nd.Args[0])) && c.st.partitionOf(nd.Args[0]) == c.st.partitionOf(nd.Args[1]) {
		return samePartitionResult(c, n, ConstOf(boolTarVal(equalityHolds(nd.BoundCond))))
	}

	return Bottom()
}

func boolTarVal(v bool) ir.TarVal {
	if v {
		return ir.One(ir.ModeBu)
	}

	return ir.Null(ir.ModeBu)
}

func equalityHolds(cond ir.Cond) bool {
	switch cond {
	case ir.CondEq, ir.CondLe, ir.CondGe:
		return true
	case ir.CondNe, ir.CondLt, ir.CondGt:
		return false
	default:
		panic("combo: unhandled Cond in equalityHolds: " + cond)
	}
}

func computeSymConst(c *env, n ir.Expr) Lattice {
	nd := c.g.N(n)

	if c.typ(nd.Block).Kind != KReachable {
		return Top()
	}

	if nd.Sym.IsAddr() {
		return SymOf(nd.Sym)
	}

	return ConstOf(ir.NewTarVal(nd.Mode, nd.Sym.Val))
}

func computeConfirm(c *env, n ir.Expr) Lattice {
	nd := c.g.N(n)
	val := nd.Args[0]

	if len(nd.Args) > 1 && nd.BoundCond == ir.CondEq {
		bound := c.typ(nd.Args[1])
		if bound.IsConstant() {
			return bound
		}
	}

	return c.typ(val)
}

func computeMux(c *env, n ir.Expr) Lattice {
	nd := c.g.N(n)

	for _, a := range nd.Args {
		if c.typ(a).IsTop() {
			return Top()
		}
	}

	return Bottom()
}

func computeProjCond(c *env, n, cond ir.Expr) Lattice {
	old := c.typ(n)
	if old.Kind == KReachable {
		return old
	}

	nd := c.g.N(n)
	sel := c.typ(c.g.N(cond).Args[0])

	trueBranch := nd.ProjNum == 1

	switch sel.Kind {
	case KConst:
		want := sel.Const.Bits != 0
		if want == trueBranch {
			return Reachable()
		}

		return Unreachable()
	case KBottom, KSym:
		return Reachable()
	default: // Top: selector unresolved.
		// A condition rooted in Top is always treated as "not taken"
		// for the true side. The false side additionally depends on
		// UnknownAsTop: aggressive folding takes it, conservative
		// folding leaves it unreachable too.
		if trueBranch {
			return Unreachable()
		}

		if c.cfg.UnknownAsTop {
			return Reachable()
		}

		return Unreachable()
	}
}

func computeProjSwitch(c *env, n, sw ir.Expr) Lattice {
	old := c.typ(n)
	if old.Kind == KReachable {
		return old
	}

	nd := c.g.N(n)
	swn := c.g.N(sw)
	sel := c.typ(swn.Args[0])

	switch sel.Kind {
	case KBottom, KSym:
		return Reachable()
	case KConst:
		for idx, cse := range swn.Cases {
			if cse == int64(sel.Const.Bits) {
				if nd.ProjNum == idx {
					return Reachable()
				}

				return Unreachable()
			}
		}

		if nd.ProjNum == -1 {
			return Reachable()
		}

		return Unreachable()
	default: // Top
		if c.cfg.UnknownAsTop && nd.ProjNum == -1 {
			return Reachable()
		}

		return Unreachable()
	}
}

func computeProj(c *env, n ir.Expr) Lattice {
	nd := c.g.N(n)
	pred := nd.Args[0]
	predOp := c.g.Op(pred)

	if c.typ(nd.Block).Kind != KReachable {
		return Top()
	}

	if c.typ(pred).IsTop() && predOp != ir.OpCond && predOp != ir.OpSwitch {
		return Top()
	}

	switch nd.Mode {
	case ir.ModeM:
		return Bottom()
	case ir.ModeX:
		switch predOp {
		case ir.OpCond:
			return computeProjCond(c, n, pred)
		case ir.OpSwitch:
			return computeProjSwitch(c, n, pred)
		default:
			return Reachable()
		}
	}

	return computeDefault(c, n)
}
