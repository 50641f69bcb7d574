package combo

import (
	"tlog.app/go/tlog/tlwire"

	"github.com/slowlang/slow/src/compiler/ir"
)

// Kind tags a Lattice value's payload. Kind.String, Kind.order and
// Lattice.Equal panic on a Kind they do not name; IsConstant and the
// Cond/Switch selector switches in transfer.go have a default case
// instead, which treats every Kind they do not name as non-constant
// (IsConstant) or as Top (the selector switches).
type Kind uint8

const (
	KTop Kind = iota
	KBottom
	KReachable
	KUnreachable
	KConst
	KSym
)

func (k Kind) String() string {
	switch k {
	case KTop:
		return "Top"
	case KBottom:
		return "Bottom"
	case KReachable:
		return "Reachable"
	case KUnreachable:
		return "Unreachable"
	case KConst:
		return "Const"
	case KSym:
		return "Sym"
	default:
		panic("combo: unhandled Kind")
	}
}

// Lattice is a node's type during the fixed point: either a control-flow
// state (Reachable/Unreachable), a data value (a constant, a symbolic
// address, Bottom for "not a constant"), or Top for "unseen".
type Lattice struct {
	Kind  Kind
	Const ir.TarVal
	Sym   ir.SymConst
}

func Top() Lattice         { return Lattice{Kind: KTop} }
func Bottom() Lattice      { return Lattice{Kind: KBottom} }
func Reachable() Lattice   { return Lattice{Kind: KReachable} }
func Unreachable() Lattice { return Lattice{Kind: KUnreachable} }

func ConstOf(v ir.TarVal) Lattice { return Lattice{Kind: KConst, Const: v} }
func SymOf(s ir.SymConst) Lattice { return Lattice{Kind: KSym, Sym: s} }

func (l Lattice) IsTop() bool     { return l.Kind == KTop }
func (l Lattice) IsBottom() bool  { return l.Kind == KBottom }
func (l Lattice) IsConstant() bool {
	switch l.Kind {
	case KConst, KSym:
		return true
	default:
		return false
	}
}

// Equal reports whether two lattice elements carry the same information,
// used to detect "did this node's type actually change".
func (l Lattice) Equal(o Lattice) bool {
	if l.Kind != o.Kind {
		return false
	}

	switch l.Kind {
	case KTop, KBottom, KReachable, KUnreachable:
		return true
	case KConst:
		return l.Const.Mode == o.Const.Mode && l.Const.Bits == o.Const.Bits
	case KSym:
		return l.Sym == o.Sym
	default:
		panic("combo: unhandled Kind in Lattice.Equal")
	}
}

// order gives every Kind a rank so Below can compare across variants.
// The data domain (Top > Const/Sym > Bottom) and the control domain
// (Unreachable > Reachable) are disjoint -- a node's Mode determines
// which one applies -- but share one scale so a single Below check
// covers both descents: transitions are monotone downward only.
func (k Kind) order() int {
	switch k {
	case KTop:
		return 3
	case KUnreachable:
		return 2
	case KConst, KSym:
		return 1
	case KBottom, KReachable:
		return 0
	default:
		panic("combo: unhandled Kind in order")
	}
}

// Below reports whether l is at or below o in the lattice, the relation
// VerifyMonotone checks holds on every retype.
func (l Lattice) Below(o Lattice) bool {
	if l.Equal(o) {
		return true
	}

	lo, oo := l.Kind.order(), o.Kind.order()
	if lo != oo {
		return lo < oo
	}

	// Same rank, different value: two distinct constants/symbols, or
	// Bottom against Reachable (both rank 0, from disjoint domains).
	// Neither side is below the other except through equality (already
	// handled above) -- so this is not comparable, which for a monotone
	// descent means "not below".
	return false
}

func (l Lattice) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	switch l.Kind {
	case KConst:
		b = e.AppendMap(b, 2)
		b = e.AppendKeyString(b, "kind", l.Kind.String())
		b = e.AppendKeyString(b, "const", l.Const.String())
	case KSym:
		b = e.AppendMap(b, 2)
		b = e.AppendKeyString(b, "kind", l.Kind.String())
		b = e.AppendKeyString(b, "sym", l.Sym.Name)
	default:
		b = e.AppendMap(b, 1)
		b = e.AppendKeyString(b, "kind", l.Kind.String())
	}

	return b
}
