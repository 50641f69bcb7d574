package combo

import (
	"github.com/slowlang/slow/src/compiler/ir"
)

// identity returns the node n is a follower of, or n itself if no
// algebraic identity currently applies: Phi (congruent live inputs),
// Mul (x1), Add/Or/Eor (+0), shifts (<<0), Sub (-0), And (&all-ones),
// Confirm (copy), Mux (equal branches). Mux's single-input identity via
// its selector is deliberately not implemented -- a documented gap, not
// an oversight.
func identity(c *env, n ir.Expr) ir.Expr {
	switch c.g.Op(n) {
	case ir.OpPhi:
		return identityPhi(c, n)
	case ir.OpMul:
		return identityMulLike(c, n, ir.One(c.g.Mode(n)))
	case ir.OpAdd, ir.OpOr, ir.OpEor:
		return identityCommZero(c, n)
	case ir.OpShl, ir.OpShr, ir.OpShrs, ir.OpRotl:
		return identityShift(c, n)
	case ir.OpAnd:
		return identityAnd(c, n)
	case ir.OpSub:
		return identitySub(c, n)
	case ir.OpConfirm:
		return c.g.N(n).Args[0]
	case ir.OpMux:
		return identityMux(c, n)
	default:
		return n
	}
}

// identityPhi returns the single partition every live (control-reachable)
// input names, or n itself if two live inputs disagree. A Phi with no
// live inputs at all stays in the Top partition and must never be
// split by this rule.
func identityPhi(c *env, n ir.Expr) ir.Expr {
	nd := c.g.N(n)
	preds := c.g.Preds(nd.Block)

	var rep ir.Expr = ir.Nil
	var repPart *partition

	for i, val := range nd.Args {
		if i >= len(preds) || c.typ(preds[i]).Kind != KReachable {
			continue
		}

		p := c.st.partitionOf(val)

		if rep == ir.Nil {
			rep, repPart = val, p
			continue
		}

		if p != repPart {
			return n
		}
	}

	if rep == ir.Nil {
		return n
	}

	return rep
}

func identityCommZero(c *env, n ir.Expr) ir.Expr {
	nd := c.g.N(n)

	if c.collab.ModeIsFloat(nd.Mode) && c.collab.StrictAlgebraic(nd.Mode) {
		return n
	}

	a, b := nd.Args[0], nd.Args[1]
	zero := ir.Null(nd.Mode)

	if isConstEq(c, a, zero) {
		return b
	}

	if isConstEq(c, b, zero) {
		return a
	}

	return n
}

func identityMulLike(c *env, n ir.Expr, one ir.TarVal) ir.Expr {
	nd := c.g.N(n)

	if c.collab.ModeIsFloat(nd.Mode) && c.collab.StrictAlgebraic(nd.Mode) {
		return n
	}

	a, b := nd.Args[0], nd.Args[1]

	if isConstEq(c, a, one) {
		return b
	}

	if isConstEq(c, b, one) {
		return a
	}

	return n
}

func identityShift(c *env, n ir.Expr) ir.Expr {
	nd := c.g.N(n)
	b := nd.Args[1]

	if isConstEq(c, b, ir.Null(c.g.Mode(b))) {
		return nd.Args[0]
	}

	return n
}

func identityAnd(c *env, n ir.Expr) ir.Expr {
	nd := c.g.N(n)
	a, b := nd.Args[0], nd.Args[1]
	all := ir.AllOnes(nd.Mode)

	if isConstEq(c, a, all) {
		return b
	}

	if isConstEq(c, b, all) {
		return a
	}

	return n
}

func identitySub(c *env, n ir.Expr) ir.Expr {
	nd := c.g.N(n)

	if c.collab.ModeIsFloat(nd.Mode) && c.collab.StrictAlgebraic(nd.Mode) {
		return n
	}

	if isConstEq(c, nd.Args[1], ir.Null(nd.Mode)) {
		return nd.Args[0]
	}

	return n
}

// identityMux implements only the two-branch congruence: a Mux whose
// true and false operands are already in the same partition always
// evaluates to that value regardless of the selector.
func identityMux(c *env, n ir.Expr) ir.Expr {
	nd := c.g.N(n)
	t, f := nd.Args[1], nd.Args[2]

	if c.st.partitionOf(t) == c.st.partitionOf(f) {
		return t
	}

	return n
}

func isConstEq(c *env, n ir.Expr, v ir.TarVal) bool {
	t := c.typ(n)
	return t.Kind == KConst && t.Const.Mode == v.Mode && t.Const.Bits == v.Bits
}
