package ir

import "math/bits"

// TarVal is an arbitrary-precision target value with a mode, matching the
// "tarval" the original combo.c folds constants with. We back it with a
// uint64 and mask to the mode's width on every construction and
// operation; wider modes than 64 bits are out of scope for this compiler.
type TarVal struct {
	Mode Mode
	Bits uint64
}

func mask(m Mode, v uint64) uint64 {
	w := m.Bits()

	if w == 0 || w >= 64 {
		return v
	}

	return v & (1<<uint(w) - 1)
}

// NewTarVal builds a constant of the given mode, truncated to its width.
func NewTarVal(m Mode, v uint64) TarVal {
	return TarVal{Mode: m, Bits: mask(m, v)}
}

// Null, One and AllOnes are the neutral elements combo's algebraic
// identities are keyed on.
func Null(m Mode) TarVal    { return NewTarVal(m, 0) }
func One(m Mode) TarVal     { return NewTarVal(m, 1) }
func AllOnes(m Mode) TarVal { return NewTarVal(m, ^uint64(0)) }

func (a TarVal) IsZero() bool    { return a.Bits == 0 }
func (a TarVal) IsOne() bool     { return a.Bits == mask(a.Mode, 1) }
func (a TarVal) IsAllOnes() bool { return a.Bits == mask(a.Mode, ^uint64(0)) }

func (a TarVal) Add(b TarVal) TarVal { return NewTarVal(a.Mode, a.Bits+b.Bits) }
func (a TarVal) Sub(b TarVal) TarVal { return NewTarVal(a.Mode, a.Bits-b.Bits) }
func (a TarVal) Mul(b TarVal) TarVal { return NewTarVal(a.Mode, a.Bits*b.Bits) }
func (a TarVal) And(b TarVal) TarVal { return NewTarVal(a.Mode, a.Bits&b.Bits) }
func (a TarVal) Or(b TarVal) TarVal  { return NewTarVal(a.Mode, a.Bits|b.Bits) }
func (a TarVal) Eor(b TarVal) TarVal { return NewTarVal(a.Mode, a.Bits^b.Bits) }

func (a TarVal) Shl(b TarVal) TarVal { return NewTarVal(a.Mode, a.Bits<<uint(b.Bits%64)) }
func (a TarVal) Shr(b TarVal) TarVal { return NewTarVal(a.Mode, a.Bits>>uint(b.Bits%64)) }

func (a TarVal) Shrs(b TarVal) TarVal {
	w := uint(a.Mode.Bits())
	if w == 0 || w > 64 {
		w = 64
	}

	v := int64(a.Bits << (64 - w))
	v >>= int64(64 - w)

	shifted := v >> uint(b.Bits%uint64(w))

	return NewTarVal(a.Mode, uint64(shifted)&mask(a.Mode, ^uint64(0)))
}

func (a TarVal) Rotl(b TarVal) TarVal {
	w := uint(a.Mode.Bits())
	if w == 0 || w > 64 {
		return NewTarVal(a.Mode, a.Bits)
	}

	n := uint(b.Bits) % w

	if w == 64 {
		return NewTarVal(a.Mode, bits.RotateLeft64(a.Bits, int(n)))
	}

	return NewTarVal(a.Mode, a.Bits<<n|a.Bits>>(w-n))
}

// Cmp evaluates the given relation between two constants.
func (a TarVal) Cmp(cond Cond, b TarVal) bool {
	switch cond {
	case CondEq:
		return a.Bits == b.Bits
	case CondNe:
		return a.Bits != b.Bits
	case CondLt:
		return a.Bits < b.Bits
	case CondLe:
		return a.Bits <= b.Bits
	case CondGt:
		return a.Bits > b.Bits
	case CondGe:
		return a.Bits >= b.Bits
	default:
		panic("ir: unhandled Cond in TarVal.Cmp: " + cond)
	}
}

// SymConstKind distinguishes the different things a SymConst can name.
type SymConstKind uint8

const (
	SymAddr SymConstKind = iota
	SymSize
	SymAlign
)

// SymConst is a symbolic-address lattice payload: either the address of
// a named entity, or a fold-able size/alignment constant for one.
type SymConst struct {
	Kind SymConstKind
	Name string
	Val  uint64 // meaningful for SymSize/SymAlign
}

func (s SymConst) IsAddr() bool { return s.Kind == SymAddr }
