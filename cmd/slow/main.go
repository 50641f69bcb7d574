package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/slow/src/compiler"
	"github.com/slowlang/slow/src/compiler/analyze"
	"github.com/slowlang/slow/src/compiler/combo"
	"github.com/slowlang/slow/src/compiler/parse"
)

func main() {
	parseCmd := &cli.Command{
		Name:   "parse",
		Action: parseAct,
		Args:   cli.Args{},
	}

	compileCmd := &cli.Command{
		Name:   "compile",
		Action: compileAct,
		Args:   cli.Args{},
	}

	comboCmd := &cli.Command{
		Name:   "combo",
		Action: comboAct,
		Args:   cli.Args{},
	}

	app := &cli.Command{
		Name:        "slow",
		Description: "slow is a tool for managining slow source code",
		Commands: []*cli.Command{
			parseCmd,
			compileCmd,
			comboCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func parseAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		x, err := parse.ParseFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		fmt.Printf("ast: %+v\n", x)
	}

	return nil
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		obj, err := compiler.CompileFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		fmt.Printf("%s", obj)
	}

	return nil
}

// comboAct runs analyze then combo alone, over each file, printing the
// node count before and after and whether the pass touched the graph --
// a driver for inspecting the pass in isolation, not part of it.
func comboAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		text, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read %v", a)
		}

		st := parse.New()
		st.Grammar = parse.Expr{}
		st.AddFile(a, text)

		x, err := st.Parse(ctx)
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}

		g, err := analyze.Analyze(ctx, st, a, x)
		if err != nil {
			return errors.Wrap(err, "analyze %v", a)
		}

		before := len(g.Nodes)

		modified, err := combo.Run(ctx, g, combo.DefaultConfig())
		if err != nil {
			return errors.Wrap(err, "combo %v", a)
		}

		fmt.Printf("%s: nodes %d -> %d, modified=%v\n", a, before, len(g.Nodes), modified)
	}

	return nil
}
