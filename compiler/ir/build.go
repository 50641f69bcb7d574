package ir

// Builder performs the SSA construction combo treats as an external
// collaborator: Phi insertion and immature-block maturation while a
// graph is built from straight-line, non-SSA input.
//
// It follows the sealed/incomplete-block formulation (read/write
// variable per block, seal once all predecessors are known) rather than
// the path-keyed job-scheduling merge resolution compiler/back used for
// the same responsibility in an earlier package layout (see
// DESIGN.md): that approach assumed a flat labeled-branch instruction
// stream, not a Block-per-node graph, and does not generalize onto this
// package's Node/Block/Phi model without a full rewrite of its own.
type Builder struct {
	g *Graph

	defs           map[Expr]map[string]Expr
	incompletePhis map[Expr]map[string]Expr
	sealed         map[Expr]bool
}

func NewBuilder(g *Graph) *Builder {
	return &Builder{
		g:              g,
		defs:           map[Expr]map[string]Expr{},
		incompletePhis: map[Expr]map[string]Expr{},
		sealed:         map[Expr]bool{},
	}
}

// WriteVariable records that block defines variable as value.
func (b *Builder) WriteVariable(variable string, block, value Expr) {
	m := b.defs[block]
	if m == nil {
		m = map[string]Expr{}
		b.defs[block] = m
	}

	m[variable] = value
}

// ReadVariable resolves variable's reaching definition at block, inserting
// Phis at merge points and along not-yet-sealed blocks as needed.
func (b *Builder) ReadVariable(variable string, block Expr) Expr {
	if v, ok := b.defs[block][variable]; ok {
		return v
	}

	return b.readVariableRecursive(variable, block)
}

func (b *Builder) readVariableRecursive(variable string, block Expr) Expr {
	var val Expr

	preds := b.g.Preds(block)

	switch {
	case !b.sealed[block]:
		val = b.newPhiOperandless(block)

		m := b.incompletePhis[block]
		if m == nil {
			m = map[string]Expr{}
			b.incompletePhis[block] = m
		}

		m[variable] = val
	case len(preds) == 1:
		val = b.ReadVariable(variable, preds[0])
	default:
		val = b.newPhiOperandless(block)
		b.WriteVariable(variable, block, val) // break Phi cycles
		val = b.addPhiOperands(variable, val)
	}

	b.WriteVariable(variable, block, val)

	return val
}

func (b *Builder) newPhiOperandless(block Expr) Expr {
	n := len(b.g.Preds(block))
	args := make([]Expr, n)

	for i := range args {
		args[i] = Nil
	}

	return b.g.NewPhi(block, Mode64, args)
}

func (b *Builder) addPhiOperands(variable string, phi Expr) Expr {
	n := b.g.N(phi)
	preds := b.g.Preds(n.Block)

	args := make([]Expr, len(preds))
	for i, p := range preds {
		args[i] = b.ReadVariable(variable, p)
	}

	b.g.SetInputs(phi, args)
	n.Mode = b.phiMode(args)

	return b.tryRemoveTrivialPhi(phi)
}

func (b *Builder) phiMode(args []Expr) Mode {
	for _, a := range args {
		if a != Nil {
			return b.g.Mode(a)
		}
	}

	return Mode64
}

// tryRemoveTrivialPhi collapses a Phi whose non-self operands are all
// the same value into that value (a new Unknown when there are none).
// Nil operands are skipped only before the first other operand; a Nil
// after it counts as a second distinct value. This mirrors the
// rewriter's own single-live-input Phi collapse but run eagerly during
// construction, the classic minimal-SSA optimization.
func (b *Builder) tryRemoveTrivialPhi(phi Expr) Expr {
	n := b.g.N(phi)

	var same Expr = Nil

	for _, op := range n.Args {
		if op == phi || op == same {
			continue
		}

		if same != Nil {
			return phi // more than one distinct operand: not trivial
		}

		same = op
	}

	if same == Nil {
		same = b.g.NewUnknown(n.Mode)
	}

	b.g.Exchange(phi, same)

	return same
}

// SealBlock marks block's predecessor list final, completing any Phis
// that were speculatively created while it was still open.
func (b *Builder) SealBlock(block Expr) {
	for variable, phi := range b.incompletePhis[block] {
		b.addPhiOperands(variable, phi)
	}

	delete(b.incompletePhis, block)
	b.sealed[block] = true
}
