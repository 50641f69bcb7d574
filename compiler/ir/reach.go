package ir

// Pred pairs a block's control predecessor with whether it currently
// reaches that block. Cond is carried for shape parity with an earlier
// flat labeled-branch representation of this bookkeeping but is always
// the zero Cond here: a Jmp or Proj control edge names no relation of
// its own the way a per-value Confirm chain did there.
type Pred struct {
	Expr Expr
	Cond Cond
	Held bool
}

// LivePreds returns block's control predecessors in Preds(block) order,
// each tagged by live. The rewriter uses this to compute the retained
// predecessor list once Unreachable control edges are known.
func (g *Graph) LivePreds(block Expr, live func(ctrl Expr) bool) []Pred {
	preds := g.Preds(block)
	out := make([]Pred, len(preds))

	for i, p := range preds {
		out[i] = Pred{Expr: p, Held: live(p)}
	}

	return out
}
