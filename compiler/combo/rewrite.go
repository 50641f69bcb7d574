package combo

import (
	"github.com/slowlang/slow/src/compiler/ir"
)

// rewriter translates the solver's fixed-point state into graph edits:
// block pruning, node replacement, and End keepalive cleanup. It only
// touches the ir.Graph after the solver has fully committed to a result
// -- combo never emits a partially-rewritten graph.
type rewriter struct {
	ctx      *env
	modified bool
	keep     map[ir.Expr]bool
}

func newRewriter(ctx *env) *rewriter {
	return &rewriter{ctx: ctx, keep: map[ir.Expr]bool{}}
}

func (rw *rewriter) run() {
	rw.collectMemoryKeeps()
	rw.applyBlocks()
	rw.applyNodes()
	rw.finishKeepalives()
}

// collectMemoryKeeps implements step 1: any mode-M node all of whose
// users are Unreachable or Top must survive as an End keepalive, since
// the rewrite below will otherwise strand it with no live user.
func (rw *rewriter) collectMemoryKeeps() {
	g := rw.ctx.g
	st := rw.ctx.st

	for n := range g.Nodes {
		e := ir.Expr(n)
		if g.Mode(e) != ir.ModeM {
			continue
		}

		live := false

		for _, edge := range g.N(e).DefUse {
			t := st.typ(edge.User)
			if t.Kind != KUnreachable && !t.IsTop() {
				live = true
				break
			}
		}

		if !live {
			rw.keep[e] = true
		}
	}
}

// applyBlocks implements step 2, per block: detach an Unreachable
// block from its predecessors, fuse a single-Jmp-predecessor block
// into that predecessor, or otherwise prune Unreachable control
// inputs and shorten every Phi in lockstep.
func (rw *rewriter) applyBlocks() {
	g := rw.ctx.g
	st := rw.ctx.st

	for n := range g.Nodes {
		b := ir.Expr(n)
		if g.Op(b) != ir.OpBlock {
			continue
		}

		nd := g.N(b)

		if st.typ(b).Kind == KUnreachable {
			if len(nd.Args) > 0 {
				g.SetInputs(b, nil)
				rw.modified = true
			}

			continue
		}

		if len(nd.Args) == 1 && b != g.Start && !nd.Labelled && !nd.Raise && g.Op(nd.Args[0]) == ir.OpJmp {
			pred := g.N(nd.Args[0]).Block
			g.Exchange(b, pred)
			rw.modified = true

			continue
		}

		preds := g.LivePreds(b, func(ctrl ir.Expr) bool { return st.typ(ctrl).Kind != KUnreachable })

		live := make([]int, 0, len(preds))
		for i, p := range preds {
			if p.Held {
				live = append(live, i)
			}
		}

		if len(live) == len(nd.Args) {
			rw.applyPhis(b)
			continue
		}

		newArgs := make([]ir.Expr, len(live))
		for j, i := range live {
			newArgs[j] = nd.Args[i]
		}

		g.SetInputs(b, newArgs)
		rw.modified = true

		for _, phi := range append([]ir.Expr(nil), nd.Phis...) {
			old := g.N(phi).Args
			na := make([]ir.Expr, len(live))

			for j, i := range live {
				if i < len(old) {
					na[j] = old[i]
				} else {
					na[j] = ir.Nil
				}
			}

			g.SetInputs(phi, na)
		}

		rw.applyPhis(b)
	}
}

// applyPhis replaces constant-typed Phis by that constant and Phis
// reduced to a single live input by that input, the tail of step 2.
func (rw *rewriter) applyPhis(b ir.Expr) {
	g := rw.ctx.g
	st := rw.ctx.st

	for _, phi := range append([]ir.Expr(nil), g.N(b).Phis...) {
		t := st.typ(phi)

		switch {
		case t.Kind == KConst:
			g.Exchange(phi, g.NewConst(b, t.Const))
			rw.modified = true
		case t.Kind == KSym:
			g.Exchange(phi, g.NewSymConst(b, g.Mode(phi), t.Sym))
			rw.modified = true
		default:
			if single, ok := singleLiveInput(g.N(phi).Args); ok {
				g.Exchange(phi, single)
				rw.modified = true
			}
		}
	}
}

func singleLiveInput(args []ir.Expr) (ir.Expr, bool) {
	var found ir.Expr = ir.Nil
	count := 0

	for _, a := range args {
		if a == ir.Nil {
			continue
		}

		if a != found {
			found = a
			count++
		}
	}

	return found, count == 1
}

// applyNodes implements step 3 for every non-Block node.
func (rw *rewriter) applyNodes() {
	g := rw.ctx.g
	st := rw.ctx.st

	n := len(g.Nodes)
	for i := 0; i < n; i++ {
		e := ir.Expr(i)

		nd := g.N(e)
		if nd.Op == ir.OpBlock || nd.Op == ir.OpBad || nd.Op == ir.OpUnknown || nd.Op == ir.OpConst {
			continue
		}

		if len(nd.DefUse) == 0 {
			continue // no users (e.g. already exchanged): replacing it changes nothing
		}

		if nd.Block != ir.Nil && st.typ(nd.Block).Kind == KUnreachable {
			g.Exchange(e, g.NewBad(nd.Mode))
			rw.modified = true

			continue
		}

		t := st.typ(e)

		switch {
		case t.IsTop():
			rw.applyTop(e, nd)
		case t.Kind == KConst:
			g.Exchange(e, g.NewConst(nd.Block, t.Const))
			rw.modified = true
		case t.Kind == KSym:
			g.Exchange(e, g.NewSymConst(nd.Block, nd.Mode, t.Sym))
			rw.modified = true
		default:
			rw.applyLeader(e, nd)
		}

		rw.applyProjCond(e, nd, t)
	}
}

func (rw *rewriter) applyTop(e ir.Expr, nd *ir.Node) {
	g := rw.ctx.g

	switch nd.Mode {
	case ir.ModeM, ir.ModeX, ir.ModeT:
		return
	default:
		g.Exchange(e, g.NewUnknown(nd.Mode))
		rw.modified = true
	}
}

// applyLeader replaces a follower, or a leader that isn't its
// partition's sole representative, by the canonical leader -- unless
// it is a Phi with an Unknown predecessor, which must not be
// strengthened by collapsing it onto a non-Unknown leader.
func (rw *rewriter) applyLeader(e ir.Expr, nd *ir.Node) {
	st := rw.ctx.st
	g := rw.ctx.g

	p := st.partitionOf(e)
	if p == nil {
		return
	}

	isFollower := st.info[e].isFollower
	if !isFollower && len(p.leaders) <= 1 {
		return
	}

	leader := canonicalLeader(p)
	if leader == ir.Nil || leader == e {
		return
	}

	if nd.Op == ir.OpPhi && hasUnknownInput(g, nd) {
		return
	}

	if g.Mode(leader) != nd.Mode {
		leader = g.NewConv(nd.Block, leader, nd.Mode)
	}

	g.Exchange(e, leader)
	rw.modified = true
}

// canonicalLeader is p's first leader, the one node every other member
// of p is replaced by.
func canonicalLeader(p *partition) ir.Expr {
	if len(p.leaders) == 0 {
		return ir.Nil
	}

	return p.leaders[0]
}

func hasUnknownInput(g *ir.Graph, nd *ir.Node) bool {
	for _, a := range nd.Args {
		if a != ir.Nil && g.Op(a) == ir.OpUnknown {
			return true
		}
	}

	return false
}

// applyProjCond collapses a Proj(Cond)/Proj(Switch) with exactly one
// Reachable sibling into a plain Jmp to the target block.
func (rw *rewriter) applyProjCond(e ir.Expr, nd *ir.Node, t Lattice) {
	if nd.Op != ir.OpProj || nd.Mode != ir.ModeX {
		return
	}

	g := rw.ctx.g
	st := rw.ctx.st

	pred := nd.Args[0]
	if g.Op(pred) != ir.OpCond && g.Op(pred) != ir.OpSwitch {
		return
	}

	if t.Kind != KReachable {
		return
	}

	siblingsReachable := 0

	for _, sibEdge := range g.N(pred).DefUse {
		if sibEdge.Pos != -1 && st.typ(sibEdge.User).Kind == KReachable {
			siblingsReachable++
		}
	}

	if siblingsReachable == 1 {
		g.Exchange(e, g.NewJmp(g.N(pred).Block))
		rw.modified = true
	}
}

// finishKeepalives implements step 4: drop keepalives that turned out
// Unreachable, add the newly discovered ones from step 1.
func (rw *rewriter) finishKeepalives() {
	g := rw.ctx.g
	st := rw.ctx.st

	out := make([]ir.Expr, 0, len(g.Keepalives)+len(rw.keep))
	seen := map[ir.Expr]bool{}

	for _, k := range g.Keepalives {
		if st.typ(k).Kind == KUnreachable {
			continue
		}

		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}

	for k := range rw.keep {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}

	if len(out) != len(g.Keepalives) {
		rw.modified = true
	}

	g.SetEndKeepalives(out)
}
