// Package front drives the pipeline compiler.Compile exposes: parse the
// source text, analyze it into an ir.Graph, run combo to a fixed point,
// and hand the result to back for emission.
package front

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/slow/src/compiler/analyze"
	"github.com/slowlang/slow/src/compiler/back"
	"github.com/slowlang/slow/src/compiler/combo"
	"github.com/slowlang/slow/src/compiler/parse"
)

// State holds one compilation's parser state between AddFile and the
// later pipeline stages, the way parse.State does for parse alone.
type State struct {
	parse *parse.State
	name  string
}

// New creates a State ready for AddFile.
func New() *State {
	return &State{
		parse: &parse.State{Grammar: parse.Expr{}},
	}
}

// AddFile appends text under name to the source the pipeline will parse.
func (s *State) AddFile(ctx context.Context, name string, text []byte) {
	s.name = name
	s.parse.AddFile(name, text)
}

// Compile runs the whole pipeline over the files added so far.
func (s *State) Compile(ctx context.Context) (obj []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: compile", "name", s.name)
	defer tr.Finish("err", &err)

	x, err := s.parse.Parse(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "parse")
	}

	g, err := analyze.Analyze(ctx, s.parse, s.name, x)
	if err != nil {
		return nil, errors.Wrap(err, "analyze")
	}

	if _, err := combo.Run(ctx, g, combo.DefaultConfig()); err != nil {
		return nil, errors.Wrap(err, "combo")
	}

	obj, err = back.Emitter{}.Emit(ctx, g)
	if err != nil {
		return nil, errors.Wrap(err, "emit")
	}

	return obj, nil
}
