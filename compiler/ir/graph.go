// Package ir is the minimal SSA graph surface combo consumes and
// mutates: nodes addressed by a stable handle into an arena (Expr),
// explicit control-flow and memory edges, and sorted def-use lists.
//
// The representation generalizes the handle-based Expr/Exprs slice the
// front end historically used (see git history of this package) into a
// real node graph with predecessor lists and def-use edges, since combo
// needs both directions of every edge and a stable identity for nodes
// that participate in Phi cycles.
package ir

import "sort"

// Expr is a handle into a Graph's node arena. Nil is the zero handle
// used for "no node" (e.g. a Confirm with no bound, or a Block's Block
// field on the entry block).
type Expr int

const Nil Expr = -1

// Edge is one def-use link: an entry in def's DefUse means def is used
// by User at input position Pos. Pos -1 names the control edge.
type Edge struct {
	User Expr
	Pos  int
}

// Node is one SSA graph node. Opcode-specific attributes that don't
// apply to a given Op are left zero; combo never reads them for the
// wrong Op.
type Node struct {
	Op   Op
	Mode Mode

	// Args holds the node's ordered value/control predecessors. For
	// Phi, Args[i] is the value flowing from Block's i-th predecessor.
	// For Block, Args holds control-edge predecessors (Jmp/Proj nodes).
	Args []Expr

	// Block is the node's containing block; Nil for Block and Start
	// themselves.
	Block Expr

	DefUse []Edge

	// Phis is the intrusive list of Phi nodes attached to a Block.
	Phis []Expr

	Const TarVal
	Sym   SymConst

	// Cases holds Switch's case values, parallel in meaning to ProjNum
	// on that Switch's Projs (-1 marks the default Proj).
	Cases []int64

	// ProjNum is meaningful for Proj: 0/1 for Proj(Cond) (false/true),
	// a case index or -1 (default) for Proj(Switch), and the tuple
	// index for Proj(Call)/Proj(Load).
	ProjNum int

	// BoundCond is the relation a Cmp evaluates between its two
	// operands, or a Confirm evaluates against its bound input.
	BoundCond Cond

	Labelled bool // Block: never eligible for fusing away
	Raise    bool // Block: a Raise block, never fused
}

// PhiBranch is a (predecessor block, value) pair, used only for tracing:
// storage is the flat Args-aligned-to-Block.Args representation above.
type PhiBranch struct {
	B    Expr
	Expr Expr
}

// Graph is one function's SSA graph: an arena of Nodes plus the fixed
// Start/End anchors and the End-keepalive set.
type Graph struct {
	Name  string
	Nodes []Node

	Start Expr
	End   Expr

	Keepalives []Expr
}

// NewGraph creates an empty graph with a Start block and an End node.
func NewGraph(name string) *Graph {
	g := &Graph{Name: name}

	g.Start = g.alloc(Node{Op: OpBlock, Mode: ModeBB, Block: Nil, Labelled: true})
	g.End = g.alloc(Node{Op: OpEnd, Mode: ModeX, Block: g.Start})

	return g
}

func (g *Graph) alloc(n Node) Expr {
	id := Expr(len(g.Nodes))
	g.Nodes = append(g.Nodes, n)

	return id
}

// N returns a pointer to the node addressed by x, valid until the next
// call that appends to g.Nodes.
func (g *Graph) N(x Expr) *Node { return &g.Nodes[x] }

func (g *Graph) Mode(x Expr) Mode { return g.Nodes[x].Mode }
func (g *Graph) Op(x Expr) Op     { return g.Nodes[x].Op }

// AddEdge records that def is used by user at input position pos. Edges
// are appended unsorted; call SortDefUse once graph construction (or a
// rewrite) is done appending edges.
func (g *Graph) AddEdge(def, user Expr, pos int) {
	if def == Nil {
		return
	}

	n := g.N(def)
	n.DefUse = append(n.DefUse, Edge{User: user, Pos: pos})
}

// SortDefUse sorts every node's def-use array by input position
// ascending, the invariant combo's partition store relies on.
func (g *Graph) SortDefUse() {
	for i := range g.Nodes {
		du := g.Nodes[i].DefUse
		sort.Slice(du, func(a, b int) bool { return du[a].Pos < du[b].Pos })
	}
}

// link records def-use edges for every argument of n, including the
// control edge (position -1) when block != Nil.
func (g *Graph) link(id Expr, block Expr, args []Expr) {
	if block != Nil {
		g.AddEdge(block, id, -1)
	}

	for i, a := range args {
		g.AddEdge(a, id, i)
	}
}

func (g *Graph) NewBlock(labelled bool) Expr {
	return g.alloc(Node{Op: OpBlock, Mode: ModeBB, Block: Nil, Labelled: labelled})
}

// AddPred attaches a control-flow predecessor (a Jmp or a Proj(Cond)/
// Proj(Switch)) to block.
func (g *Graph) AddPred(block, ctrl Expr) {
	n := g.N(block)
	n.Args = append(n.Args, ctrl)
	g.AddEdge(ctrl, block, len(n.Args)-1)
}

func (g *Graph) NewJmp(block Expr) Expr {
	id := g.alloc(Node{Op: OpJmp, Mode: ModeX, Block: block})
	g.AddEdge(block, id, -1)

	return id
}

func (g *Graph) NewCond(block, sel Expr) Expr {
	id := g.alloc(Node{Op: OpCond, Mode: ModeT, Block: block, Args: []Expr{sel}})
	g.link(id, block, []Expr{sel})

	return id
}

func (g *Graph) NewSwitch(block, sel Expr, cases []int64) Expr {
	id := g.alloc(Node{Op: OpSwitch, Mode: ModeT, Block: block, Args: []Expr{sel}, Cases: cases})
	g.link(id, block, []Expr{sel})

	return id
}

// NewProj projects tuple index num out of pred. For Proj(Cond), num 0
// is the false branch and 1 is the true branch; for Proj(Switch), num
// is the case index and -1 is the default.
func (g *Graph) NewProj(block, pred Expr, mode Mode, num int) Expr {
	id := g.alloc(Node{Op: OpProj, Mode: mode, Block: block, Args: []Expr{pred}, ProjNum: num})
	g.link(id, block, []Expr{pred})

	return id
}

func (g *Graph) NewPhi(block Expr, mode Mode, args []Expr) Expr {
	id := g.alloc(Node{Op: OpPhi, Mode: mode, Block: block, Args: append([]Expr(nil), args...)})
	g.link(id, block, g.Nodes[id].Args)

	b := g.N(block)
	b.Phis = append(b.Phis, id)

	return id
}

func (g *Graph) NewConst(block Expr, c TarVal) Expr {
	id := g.alloc(Node{Op: OpConst, Mode: c.Mode, Block: block, Const: c})
	g.link(id, block, nil)

	return id
}

func (g *Graph) NewSymConst(block Expr, mode Mode, s SymConst) Expr {
	id := g.alloc(Node{Op: OpSymConst, Mode: mode, Block: block, Sym: s})
	g.link(id, block, nil)

	return id
}

func (g *Graph) newBinOp(op Op, block Expr, mode Mode, l, r Expr) Expr {
	id := g.alloc(Node{Op: op, Mode: mode, Block: block, Args: []Expr{l, r}})
	g.link(id, block, []Expr{l, r})

	return id
}

func (g *Graph) NewAdd(block Expr, mode Mode, l, r Expr) Expr  { return g.newBinOp(OpAdd, block, mode, l, r) }
func (g *Graph) NewSub(block Expr, mode Mode, l, r Expr) Expr  { return g.newBinOp(OpSub, block, mode, l, r) }
func (g *Graph) NewMul(block Expr, mode Mode, l, r Expr) Expr  { return g.newBinOp(OpMul, block, mode, l, r) }
func (g *Graph) NewAnd(block Expr, mode Mode, l, r Expr) Expr  { return g.newBinOp(OpAnd, block, mode, l, r) }
func (g *Graph) NewOr(block Expr, mode Mode, l, r Expr) Expr   { return g.newBinOp(OpOr, block, mode, l, r) }
func (g *Graph) NewEor(block Expr, mode Mode, l, r Expr) Expr  { return g.newBinOp(OpEor, block, mode, l, r) }
func (g *Graph) NewShl(block Expr, mode Mode, l, r Expr) Expr  { return g.newBinOp(OpShl, block, mode, l, r) }
func (g *Graph) NewShr(block Expr, mode Mode, l, r Expr) Expr  { return g.newBinOp(OpShr, block, mode, l, r) }
func (g *Graph) NewShrs(block Expr, mode Mode, l, r Expr) Expr { return g.newBinOp(OpShrs, block, mode, l, r) }
func (g *Graph) NewRotl(block Expr, mode Mode, l, r Expr) Expr { return g.newBinOp(OpRotl, block, mode, l, r) }

func (g *Graph) NewCmp(block Expr, l, r Expr, cond Cond) Expr {
	id := g.newBinOp(OpCmp, block, ModeBu, l, r)
	g.N(id).BoundCond = cond

	return id
}

func (g *Graph) NewConfirm(block, val, bound Expr, cond Cond) Expr {
	id := g.alloc(Node{Op: OpConfirm, Mode: g.Mode(val), Block: block, Args: []Expr{val, bound}, BoundCond: cond})
	g.link(id, block, []Expr{val, bound})

	return id
}

func (g *Graph) NewMux(block, sel, t, f Expr) Expr {
	id := g.alloc(Node{Op: OpMux, Mode: g.Mode(t), Block: block, Args: []Expr{sel, t, f}})
	g.link(id, block, []Expr{sel, t, f})

	return id
}

func (g *Graph) NewCall(block Expr, args []Expr) Expr {
	id := g.alloc(Node{Op: OpCall, Mode: ModeT, Block: block, Args: append([]Expr(nil), args...)})
	g.link(id, block, g.Nodes[id].Args)

	return id
}

func (g *Graph) NewReturn(block Expr, args []Expr) Expr {
	id := g.alloc(Node{Op: OpReturn, Mode: ModeX, Block: block, Args: append([]Expr(nil), args...)})
	g.link(id, block, g.Nodes[id].Args)
	g.AddPredToEnd(id)

	return id
}

// AddPredToEnd wires a Return (or other control-reaching-End node) as a
// predecessor of the graph's End node.
func (g *Graph) AddPredToEnd(ctrl Expr) {
	e := g.N(g.End)
	e.Args = append(e.Args, ctrl)
	g.AddEdge(ctrl, g.End, len(e.Args)-1)
}

func (g *Graph) NewSync(block Expr, preds []Expr) Expr {
	id := g.alloc(Node{Op: OpSync, Mode: ModeM, Block: block, Args: append([]Expr(nil), preds...)})
	g.link(id, block, g.Nodes[id].Args)

	return id
}

func (g *Graph) NewLoad(block, mem, addr Expr) Expr {
	id := g.alloc(Node{Op: OpLoad, Mode: ModeT, Block: block, Args: []Expr{mem, addr}})
	g.link(id, block, []Expr{mem, addr})

	return id
}

func (g *Graph) NewStore(block, mem, addr, val Expr) Expr {
	id := g.alloc(Node{Op: OpStore, Mode: ModeM, Block: block, Args: []Expr{mem, addr, val}})
	g.link(id, block, []Expr{mem, addr, val})

	return id
}

func (g *Graph) NewBad(mode Mode) Expr {
	return g.alloc(Node{Op: OpBad, Mode: mode, Block: g.Start})
}

func (g *Graph) NewUnknown(mode Mode) Expr {
	return g.alloc(Node{Op: OpUnknown, Mode: mode, Block: g.Start})
}

// NewConv inserts a mode conversion of x, used by the rewriter when
// exchanging a node for a congruent leader of a different mode.
func (g *Graph) NewConv(block, x Expr, mode Mode) Expr {
	id := g.alloc(Node{Op: OpConfirm, Mode: mode, Block: block, Args: []Expr{x}})
	g.link(id, block, []Expr{x})

	return id
}

// SetInputs replaces n's argument list wholesale, fixing up def-use
// edges for the removed and added arguments.
func (g *Graph) SetInputs(n Expr, args []Expr) {
	old := g.N(n).Args

	for i, a := range old {
		g.removeEdge(a, n, i)
	}

	g.N(n).Args = append([]Expr(nil), args...)

	for i, a := range args {
		g.AddEdge(a, n, i)
	}
}

func (g *Graph) removeEdge(def, user Expr, pos int) {
	if def == Nil {
		return
	}

	n := g.N(def)

	for i, e := range n.DefUse {
		if e.User == user && e.Pos == pos {
			n.DefUse = append(n.DefUse[:i], n.DefUse[i+1:]...)
			return
		}
	}
}

// Exchange redirects every user of old to new and leaves old with an
// empty def-use list; old's own input edges stay in place. Users are
// found via old's def-use list, which must be complete.
func (g *Graph) Exchange(old, new Expr) {
	if old == new {
		return
	}

	uses := g.N(old).DefUse
	g.N(old).DefUse = nil

	for _, e := range uses {
		if e.Pos == -1 {
			g.N(e.User).Block = new
		} else {
			g.N(e.User).Args[e.Pos] = new
		}

		g.AddEdge(new, e.User, e.Pos)
	}
}

func (g *Graph) AddEndKeepalive(node Expr) {
	g.Keepalives = append(g.Keepalives, node)
}

func (g *Graph) SetEndKeepalives(list []Expr) {
	g.Keepalives = append([]Expr(nil), list...)
}

// Preds returns block's control predecessors (the same slice as its
// Args, named for readability at call sites in combo).
func (g *Graph) Preds(block Expr) []Expr { return g.Nodes[block].Args }
