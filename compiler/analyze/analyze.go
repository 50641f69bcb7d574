// Package analyze turns the parser's ast.Node tree into an ir.Graph: a
// single-block function computing the tree's value and returning it.
// Real variable/control-flow ASTs would drive ir.Builder's read/write
// variable bookkeeping the way build.go documents; the grammar this
// front end currently parses (parse.Expr) never branches or assigns,
// so every graph analyze produces has exactly one block.
package analyze

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	"tlog.app/go/errors"

	"github.com/slowlang/slow/src/compiler/ast"
	"github.com/slowlang/slow/src/compiler/ir"
	"github.com/slowlang/slow/src/compiler/parse"
)

// UnsupportedASTNodeError is returned for an ast.Node analyze has no
// case for.
type UnsupportedASTNodeError struct{ T ast.Node }

// Analyze builds an ir.Graph named name computing x's value in
// Mode64 and returning it.
func Analyze(ctx context.Context, st *parse.State, name string, x ast.Node) (g *ir.Graph, err error) {
	g = ir.NewGraph(name)

	v, err := walk(g, st, x)
	if err != nil {
		return nil, errors.Wrap(err, "analyze")
	}

	g.NewReturn(g.Start, []ir.Expr{v})

	return g, nil
}

func walk(g *ir.Graph, st *parse.State, x ast.Node) (ir.Expr, error) {
	switch x := x.(type) {
	case ast.Int:
		v, err := strconv.ParseUint(string(st.Text(x.Pos, x.End)), 10, 64)
		if err != nil {
			return ir.Nil, errors.Wrap(err, "parse Int value")
		}

		return g.NewConst(g.Start, ir.NewTarVal(ir.Mode64, v)), nil
	case ast.Add:
		l, err := walk(g, st, x.Left)
		if err != nil {
			return ir.Nil, errors.Wrap(err, "left operand")
		}

		r, err := walk(g, st, x.Right)
		if err != nil {
			return ir.Nil, errors.Wrap(err, "right operand")
		}

		return g.NewAdd(g.Start, ir.Mode64, l, r), nil
	default:
		return ir.Nil, NewUnsupportedASTNode(x)
	}
}

func NewUnsupportedASTNode(x ast.Node) UnsupportedASTNodeError {
	return UnsupportedASTNodeError{T: x}
}

func (e UnsupportedASTNodeError) Error() string {
	return fmt.Sprintf("unsupported node: %v", reflect.TypeOf(e.T))
}
