package combo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/slow/src/compiler/ir"
)

// A Cmp that transiently computes True (its operands provably in the
// same partition, before that partition is later shown to be wrong)
// must not un-latch a Proj(Cond) branch it already drove Reachable
// once the Cmp's own value degrades back to Bottom: computeProjCond
// returns the old value outright once it is KReachable, never
// recomputing from a fresher, worse-looking selector.
func TestProjCondLatch(t *testing.T) {
	g := ir.NewGraph("proj_cond_latch")

	a := g.NewConst(g.Start, ir.NewTarVal(ir.Mode64, 0))
	cmp := g.NewCmp(g.Start, a, a, ir.CondEq)
	cnd := g.NewCond(g.Start, cmp)
	projT := g.NewProj(g.Start, cnd, ir.ModeX, 1)

	c := &env{g: g, cfg: DefaultConfig(), collab: defaultCollaborators{}}
	c.st = newStore(g)

	for i := range g.Nodes {
		c.st.setType(ir.Expr(i), Top())
	}

	c.st.setType(projT, Reachable())

	// Simulate the Cmp having since degraded to Bottom (its operands'
	// partitions no longer provably equal) -- irrelevant to the latch,
	// since computeProjCond never even reads sel once old is Reachable,
	// but set it anyway to document the scenario the latch protects.
	c.st.setType(cmp, Bottom())

	got := computeProjCond(c, projT, cnd)
	assert.Equal(t, KReachable, got.Kind, "a Proj(Cond) already Reachable must stay Reachable")
	assert.True(t, got.Equal(Reachable()))
}

// TestVerifyMonotoneCatchesRegression installs a synthetic transfer
// function that reports Bottom on its node's first evaluation and Const
// on every evaluation after -- the canonical shape of a broken transfer
// function, decreasing then increasing the same node's lattice element.
// Config.VerifyMonotone must turn that into an InvariantError instead of
// silently accepting the illegal retype.
func TestVerifyMonotoneCatchesRegression(t *testing.T) {
	g := ir.NewGraph("verify_monotone_regression")

	call := g.NewCall(g.Start, nil)
	x := g.NewProj(g.Start, call, ir.Mode64, 0)
	g.NewReturn(g.Start, []ir.Expr{x})
	g.SortDefUse()

	cfg := DefaultConfig()
	cfg.VerifyMonotone = true

	c := &env{g: g, cfg: cfg, collab: defaultCollaborators{}}
	c.st = newStore(g)

	p := c.st.newPartition()
	for i := range g.Nodes {
		c.st.assign(p, ir.Expr(i), false)
	}
	p.typeIsTopOrConst = true
	p.maxUserInputs = maxUserInputs(g)

	for i := range g.Nodes {
		c.st.setType(ir.Expr(i), Top())
	}

	saved := transferFuncs[ir.OpProj]
	defer func() { transferFuncs[ir.OpProj] = saved }()

	calls := 0
	transferFuncs[ir.OpProj] = func(*env, ir.Expr) Lattice {
		calls++
		if calls == 1 {
			return Bottom()
		}

		return ConstOf(ir.NewTarVal(ir.Mode64, 7))
	}

	sv := newSolver(c)

	p.cprop = append(p.cprop, x)
	require.NoError(t, sv.drain(p, &p.cprop))
	require.True(t, c.st.typ(x).IsBottom())

	p.cprop = append(p.cprop, x)
	err := sv.drain(p, &p.cprop)
	require.Error(t, err)

	var inv *InvariantError
	assert.ErrorAs(t, err, &inv)
}
