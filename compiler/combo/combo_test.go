package combo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/slow/src/compiler/combo"
	"github.com/slowlang/slow/src/compiler/ir"
)

func requireConst(t *testing.T, g *ir.Graph, e ir.Expr, want uint64) {
	t.Helper()

	require.Equal(t, ir.OpConst, g.Op(e), "expected a Const node")
	require.Equal(t, want, g.N(e).Const.Bits)
}

// Add(Const 2, Const 3) feeding a Return folds to Return(Const 5).
func TestConstantFold(t *testing.T) {
	g := ir.NewGraph("constant_fold")

	c2 := g.NewConst(g.Start, ir.NewTarVal(ir.Mode64, 2))
	c3 := g.NewConst(g.Start, ir.NewTarVal(ir.Mode64, 3))
	add := g.NewAdd(g.Start, ir.Mode64, c2, c3)
	ret := g.NewReturn(g.Start, []ir.Expr{add})

	modified, err := combo.Run(context.Background(), g, combo.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, modified)

	requireConst(t, g, g.N(ret).Args[0], 5)
}

// A Cond with a constant-true selector leaves the false side
// Unreachable and its Phi resolves to the true-side value.
func TestDeadBranch(t *testing.T) {
	g := ir.NewGraph("dead_branch")

	sel := g.NewConst(g.Start, ir.NewTarVal(ir.ModeBu, 1))
	cnd := g.NewCond(g.Start, sel)
	projT := g.NewProj(g.Start, cnd, ir.ModeX, 1)
	projF := g.NewProj(g.Start, cnd, ir.ModeX, 0)

	thenBlk := g.NewBlock(false)
	elseBlk := g.NewBlock(false)
	g.AddPred(thenBlk, projT)
	g.AddPred(elseBlk, projF)

	one := g.NewConst(thenBlk, ir.NewTarVal(ir.Mode64, 1))
	two := g.NewConst(elseBlk, ir.NewTarVal(ir.Mode64, 2))
	jmpThen := g.NewJmp(thenBlk)
	jmpElse := g.NewJmp(elseBlk)

	joinBlk := g.NewBlock(false)
	g.AddPred(joinBlk, jmpThen)
	g.AddPred(joinBlk, jmpElse)

	phi := g.NewPhi(joinBlk, ir.Mode64, []ir.Expr{one, two})
	ret := g.NewReturn(joinBlk, []ir.Expr{phi})

	modified, err := combo.Run(context.Background(), g, combo.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, modified)

	requireConst(t, g, g.N(ret).Args[0], 1)
	assert.Empty(t, g.N(elseBlk).Args, "unreachable block should be detached from its predecessors")
}

// Two syntactically identical Add nodes over the same operands, in
// the same order, are discovered congruent and the second collapses
// onto the first (global value numbering).
func TestCongruentDuplicate(t *testing.T) {
	g := ir.NewGraph("congruent_duplicate")

	sym := g.NewSymConst(g.Start, ir.Mode64, ir.SymConst{Kind: ir.SymAddr, Name: "g"})
	b := g.NewConst(g.Start, ir.NewTarVal(ir.Mode64, 9))
	add1 := g.NewAdd(g.Start, ir.Mode64, sym, b)
	add2 := g.NewAdd(g.Start, ir.Mode64, sym, b)

	ret := g.NewReturn(g.Start, []ir.Expr{add1, add2})

	modified, err := combo.Run(context.Background(), g, combo.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, modified)

	assert.Equal(t, g.N(ret).Args[0], g.N(ret).Args[1],
		"the two identical Add nodes must collapse onto the same node")
}

// Add(sym, b) and Add(b, sym), with operands in opposite order, are
// still discovered congruent: commutativity must merge the two
// operand positions before splitting, not just detect identical
// syntactic order.
func TestCommutativeCongruence(t *testing.T) {
	g := ir.NewGraph("commutative_congruence")

	sym := g.NewSymConst(g.Start, ir.Mode64, ir.SymConst{Kind: ir.SymAddr, Name: "g"})
	b := g.NewConst(g.Start, ir.NewTarVal(ir.Mode64, 9))
	add1 := g.NewAdd(g.Start, ir.Mode64, sym, b)
	add2 := g.NewAdd(g.Start, ir.Mode64, b, sym)

	ret := g.NewReturn(g.Start, []ir.Expr{add1, add2})

	modified, err := combo.Run(context.Background(), g, combo.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, modified)

	assert.Equal(t, g.N(ret).Args[0], g.N(ret).Args[1],
		"Add(sym,b) and Add(b,sym) must collapse onto the same node")
}

// Sub(a, Const 0) is discovered as a follower of a; And(x, ~0) is
// discovered as a follower of x. x is deliberately an opaque runtime
// value (a Call result) so the identity is exercised on a genuinely
// Bottom-typed node, not one whose type is already statically known.
func TestAlgebraicFollower(t *testing.T) {
	g := ir.NewGraph("algebraic_follower")

	call := g.NewCall(g.Start, nil)
	x := g.NewProj(g.Start, call, ir.Mode64, 0)
	zero := g.NewConst(g.Start, ir.NewTarVal(ir.Mode64, 0))
	sub := g.NewSub(g.Start, ir.Mode64, x, zero)

	allOnes := g.NewConst(g.Start, ir.AllOnes(ir.Mode64))
	and := g.NewAnd(g.Start, ir.Mode64, x, allOnes)

	ret := g.NewReturn(g.Start, []ir.Expr{sub, and})

	modified, err := combo.Run(context.Background(), g, combo.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, modified)

	assert.Equal(t, x, g.N(ret).Args[0], "Sub(x,0) must be replaced by x")
	assert.Equal(t, x, g.N(ret).Args[1], "And(x,~0) must be replaced by x")
}

// Running combo again on its own output performs no further changes.
func TestIdempotence(t *testing.T) {
	g := ir.NewGraph("idem")

	c2 := g.NewConst(g.Start, ir.NewTarVal(ir.Mode64, 2))
	c3 := g.NewConst(g.Start, ir.NewTarVal(ir.Mode64, 3))
	add := g.NewAdd(g.Start, ir.Mode64, c2, c3)
	g.NewReturn(g.Start, []ir.Expr{add})

	_, err := combo.Run(context.Background(), g, combo.DefaultConfig())
	require.NoError(t, err)

	modified, err := combo.Run(context.Background(), g, combo.DefaultConfig())
	require.NoError(t, err)
	assert.False(t, modified, "a second run over the already-reduced graph must be a no-op")
}

func TestDefaultConfig(t *testing.T) {
	cfg := combo.DefaultConfig()
	assert.True(t, cfg.UnknownAsTop)
	assert.True(t, cfg.Commutative)
	assert.False(t, cfg.VerifyMonotone)
}
