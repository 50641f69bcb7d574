package combo

// Config carries the tuning knobs and verification switches for one Run.
// It is a plain value struct passed by value rather than functional
// options.
type Config struct {
	// UnknownAsTop selects whether an Unknown node computes Top
	// (aggressive folding of code guarded by it) or Bottom
	// (conservative). Both are legal; DefaultConfig picks Top,
	// matching the more aggressive default in Cliff Click's original.
	UnknownAsTop bool

	// Commutative enables the "aa vs ab" input-normalization split for
	// commutative opcodes (Add, Mul, And, Or, Eor) so that
	// op(a,b) and op(b,a) land in the same partition.
	Commutative bool

	// GlobalCongruences controls whether the control input participates
	// in per-input splitting for every node: true skips it (GCSE
	// mode, end_idx 0 in the source), false includes it (end_idx -1,
	// local congruences only).
	GlobalCongruences bool

	// VerifyMonotone asserts, after every retype, that the new lattice
	// element is not above the previous one. Expensive; default off.
	VerifyMonotone bool

	// CheckPartitions asserts, once the solver reaches its fixed point,
	// that the leaders of every partition share one opcode key (opcode,
	// mode, arity, attributes). Empty partitions are not checked.
	CheckPartitions bool

	// Trace enables tlog span dumps of worklist and partition counts at
	// each outer-loop iteration.
	Trace bool
}

// DefaultConfig matches the source's shipped defaults: aggressive Unknown
// folding, commutativity handling on, local congruences, verification
// off.
func DefaultConfig() Config {
	return Config{
		UnknownAsTop: true,
		Commutative:  true,
	}
}
