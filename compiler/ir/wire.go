package ir

import (
	"strconv"

	"tlog.app/go/tlog/tlwire"
)

// PhiBranches reconstructs the (predecessor block, value) view of a Phi
// node's flat Args, for tracing only; storage stays the Args-aligned-to
// -Block.Args representation graph.go uses.
func (g *Graph) PhiBranches(phi Expr) []PhiBranch {
	n := g.N(phi)
	preds := g.Preds(n.Block)

	out := make([]PhiBranch, 0, len(n.Args))
	for i, a := range n.Args {
		b := Nil
		if i < len(preds) {
			b = preds[i]
		}

		out = append(out, PhiBranch{B: b, Expr: a})
	}

	return out
}

func (p PhiBranch) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 2)
	b = e.AppendKeyInt64(b, "b", int64(p.B))
	b = e.AppendKeyInt64(b, "id", int64(p.Expr))

	return b
}

func (e Edge) TlogAppend(b []byte) []byte {
	var enc tlwire.Encoder

	b = enc.AppendMap(b, 2)
	b = enc.AppendKeyInt64(b, "user", int64(e.User))
	b = enc.AppendKeyInt(b, "pos", e.Pos)

	return b
}

func (t TarVal) String() string {
	return t.Mode.String() + "#" + strconv.FormatUint(t.Bits, 10)
}
