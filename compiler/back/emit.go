// Package back turns an optimized ir.Graph into text: a small linear
// listing of blocks and the instructions they contain, in def order.
//
// An earlier register-allocating backend here targeted an ir.Package/
// ir.Node model this repository no longer has; porting its allocator
// and scheduler onto the Block/Node graph combo consumes would have
// been a fresh implementation in all but name, so this package instead
// keeps the tlog span / errors.Wrap tracing convention used across the
// rest of the pipeline and its role -- the last stage after
// optimization -- with a much smaller body of actual codegen (see
// DESIGN.md).
package back

import (
	"context"
	"fmt"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/slow/src/compiler/ir"
	"github.com/slowlang/slow/src/compiler/set"
)

// Emitter is the pipeline's final stage: compiler/front calls it once
// combo.Run has reduced a graph to a fixed point.
type Emitter struct{}

// Emit renders g as a textual instruction listing, one block per
// section, one node per line.
func (Emitter) Emit(ctx context.Context, g *ir.Graph) (obj []byte, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "back: emit", "graph", g.Name)
	defer tr.Finish("err", &err)

	var b strings.Builder

	fmt.Fprintf(&b, "func %s\n", g.Name)

	done := set.MakeBits[ir.Expr](0)

	for i := range g.Nodes {
		block := ir.Expr(i)
		if g.Op(block) != ir.OpBlock {
			continue
		}

		if err := emitBlock(&b, g, block, &done); err != nil {
			return nil, errors.Wrap(err, "block %d", block)
		}
	}

	tr.Printw("emitted", "bytes", b.Len())

	return []byte(b.String()), nil
}

func emitBlock(b *strings.Builder, g *ir.Graph, block ir.Expr, done *set.Bits[ir.Expr]) error {
	fmt.Fprintf(b, "block %d:\n", block)

	for _, phi := range g.N(block).Phis {
		emitNode(b, g, phi)
		done.Set(phi)
	}

	for i := range g.Nodes {
		n := ir.Expr(i)
		nd := g.N(n)

		if nd.Op == ir.OpBlock || nd.Block != block || done.IsSet(n) {
			continue
		}

		if nd.Op == ir.OpBad {
			return errors.New("bad node %d reached codegen", n)
		}

		done.Set(n)
		emitNode(b, g, n)
	}

	return nil
}

func emitNode(b *strings.Builder, g *ir.Graph, n ir.Expr) {
	nd := g.N(n)

	fmt.Fprintf(b, "\t%%%d = %s.%s", n, nd.Op, nd.Mode)

	for _, a := range nd.Args {
		if a == ir.Nil {
			b.WriteString(" -")
			continue
		}

		fmt.Fprintf(b, " %%%d", a)
	}

	switch nd.Op {
	case ir.OpConst:
		fmt.Fprintf(b, " #%d", nd.Const.Bits)
	case ir.OpSymConst:
		fmt.Fprintf(b, " @%s", nd.Sym.Name)
	case ir.OpProj:
		fmt.Fprintf(b, " .%d", nd.ProjNum)
	case ir.OpConfirm:
		if nd.BoundCond != "" {
			fmt.Fprintf(b, " %s", nd.BoundCond)
		}
	}

	b.WriteByte('\n')
}
