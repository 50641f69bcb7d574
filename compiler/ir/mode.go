package ir

// Mode is the output width/kind of a Node: a data width, or one of the
// control-plane markers (X, M, T, BB, boolean).
type Mode uint8

const (
	ModeBB Mode = iota // Block nodes
	ModeX              // control flow
	ModeM              // memory
	ModeT              // tuple (Cond, Switch, Call, Load)
	ModeBu             // boolean
	Mode32
	Mode64
	Mode32F
	Mode64F
)

var modeNames = [...]string{
	ModeBB:  "BB",
	ModeX:   "X",
	ModeM:   "M",
	ModeT:   "T",
	ModeBu:  "b",
	Mode32:  "Iu32",
	Mode64:  "Iu64",
	Mode32F: "F32",
	Mode64F: "F64",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) && modeNames[m] != "" {
		return modeNames[m]
	}

	return "Mode(?)"
}

// IsData reports whether m carries an arithmetic value (as opposed to
// control, memory, tuple or block bookkeeping).
func (m Mode) IsData() bool {
	switch m {
	case Mode32, Mode64, Mode32F, Mode64F, ModeBu:
		return true
	default:
		return false
	}
}

// Bits is the width in bits of m's data, or 0 for non-data modes.
func (m Mode) Bits() int {
	switch m {
	case Mode32, Mode32F:
		return 32
	case Mode64, Mode64F:
		return 64
	case ModeBu:
		return 1
	default:
		return 0
	}
}

// IsFloat backs combo's Collaborators.ModeIsFloat.
func (m Mode) IsFloat() bool {
	return m == Mode32F || m == Mode64F
}
