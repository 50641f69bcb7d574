// Package combo implements the combined sparse conditional constant
// propagation, congruence-class discovery (global value numbering) and
// unreachable-code elimination pass over an ir.Graph: Cliff Click's
// algorithm, extended with commutativity awareness and algebraic
// identity followers.
package combo

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/slow/src/compiler/ir"
)

// Run drives the pass to a fixed point over g and rewrites it in place.
// It returns whether the graph was modified. On any invariant violation
// it returns an *InvariantError and leaves g untouched -- the rewrite
// walk only starts once the solver has committed to a result.
func Run(ctx context.Context, g *ir.Graph, cfg Config) (modified bool, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "combo: run", "graph", g.Name)
	defer tr.Finish("err", &err)

	_ = ctx // reserved for future cancellation checks between passes

	if err := checkInput(g); err != nil {
		return false, errors.Wrap(err, "ill-formed input graph")
	}

	g.SortDefUse()

	c := &env{g: g, cfg: cfg, collab: defaultCollaborators{}, tr: tr}
	c.st = newStore(g)

	initial := c.st.newPartition()
	for i := range g.Nodes {
		c.st.assign(initial, ir.Expr(i), false)
	}
	initial.typeIsTopOrConst = true
	initial.maxUserInputs = maxUserInputs(g)

	for i := range g.Nodes {
		c.st.setType(ir.Expr(i), Top())
	}

	sv := newSolver(c)
	c.st.setType(g.Start, Reachable())
	sv.scheduleUsers(g.Start)

	if cfg.Trace && tr.If("dump_partitions") {
		tr.Printw("combo: initial partition", "nodes", len(g.Nodes))
	}

	if err := sv.run(); err != nil {
		return false, wrapf(err, "combo: solver failed on %q", g.Name)
	}

	if cfg.CheckPartitions {
		if err := checkPartitions(c.st); err != nil {
			return false, wrapf(err, "combo: partition invariant check failed on %q", g.Name)
		}
	}

	if cfg.Trace && tr.If("dump_partitions") {
		tr.Printw("combo: fixed point reached", "partitions", len(c.st.parts))
	}

	rw := newRewriter(c)
	rw.run()

	return rw.modified, nil
}

func maxUserInputs(g *ir.Graph) int {
	max := -1

	for i := range g.Nodes {
		for _, e := range g.Nodes[i].DefUse {
			if e.Pos > max {
				max = e.Pos
			}
		}
	}

	return max
}

// checkInput enforces the precondition that no Bad node may sit on
// a live edge before the pass runs (callers are expected to have
// pruned dead code already).
func checkInput(g *ir.Graph) error {
	for i := range g.Nodes {
		n := ir.Expr(i)
		if g.Op(n) != ir.OpBad {
			continue
		}

		if len(g.N(n).DefUse) > 0 {
			return newInvariantError("Bad node %d has live users before combo runs", n)
		}
	}

	return nil
}

// checkPartitions asserts a partition invariant: every leader in a
// partition shares opcode, mode and arity with every other leader there.
func checkPartitions(st *store) error {
	for _, p := range st.parts {
		if len(p.leaders) == 0 {
			continue
		}

		want := makeOpcodeKey(st.g, p.leaders[0])

		for _, n := range p.leaders[1:] {
			if got := makeOpcodeKey(st.g, n); got != want {
				return newInvariantError("partition %d has mismatched leaders: %d and %d", p.id, p.leaders[0], n)
			}
		}
	}

	return nil
}
