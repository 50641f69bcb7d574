package combo

import (
	"nikand.dev/go/heap"

	"github.com/slowlang/slow/src/compiler/ir"
)

// solver drives the two worklists: C, the constant propagation queue,
// ordered by partition id via a heap so pop order is deterministic
// given a fixed initial walk; and W, the splitting queue, a plain FIFO
// since Cliff Click's original threads it as a singly-linked list with
// no priority.
type solver struct {
	ctx *env

	c heap.Heap[partID]
	w []partID

	fallen []ir.Expr // scratch, reused per propagate call
}

func newSolver(ctx *env) *solver {
	return &solver{
		ctx: ctx,
		c:   heap.Heap[partID]{Less: func(d []partID, i, j int) bool { return d[i] < d[j] }},
	}
}

func (sv *solver) enqueueC(p *partition, n ir.Expr) {
	if sv.ctx.st.info[n].onCprop {
		return
	}

	sv.ctx.st.info[n].onCprop = true

	if sv.ctx.g.Mode(n) == ir.ModeX || sv.ctx.g.Op(n) == ir.OpCond || sv.ctx.g.Op(n) == ir.OpSwitch {
		p.cpropX = append(p.cpropX, n)
	} else {
		p.cprop = append(p.cprop, n)
	}

	if !p.onCprop {
		p.onCprop = true
		sv.c.Push(p.id)
	}
}

func (sv *solver) enqueueW(p *partition) {
	if p.onWorklist {
		return
	}

	p.onWorklist = true
	sv.w = append(sv.w, p.id)
}

// scheduleUsers pushes every def-use user of n onto its own partition's
// cprop queue, plus the T-mode fan-out (Projs of a tuple node) and the
// Block-fan-out (every Phi in a block whose reachability just changed),
// matching the propagate step's fan-out rule.
func (sv *solver) scheduleUsers(n ir.Expr) {
	st := sv.ctx.st
	g := sv.ctx.g

	for _, e := range g.N(n).DefUse {
		up := st.partitionOf(e.User)
		if up != nil {
			sv.enqueueC(up, e.User)
		}
	}

	if g.Op(n) == ir.OpBlock {
		for _, phi := range g.N(n).Phis {
			if p := st.partitionOf(phi); p != nil {
				sv.enqueueC(p, phi)
			}
		}
	}
}

// propagate drains one partition's cprop queue, then its cpropX queue
// (Cond/Switch and their Projs are always resolved after every plain
// data node has settled, the pass's ordering guarantee), retypes
// each node, and finally splits off whatever changed.
func (sv *solver) propagate(p *partition) error {
	p.onCprop = false
	sv.fallen = sv.fallen[:0]

	if err := sv.drain(p, &p.cprop); err != nil {
		return err
	}

	if err := sv.drain(p, &p.cpropX); err != nil {
		return err
	}

	if len(sv.fallen) > 0 && len(sv.fallen) < p.memberCount() {
		p2 := sv.splitFallen(p, sv.fallen)
		sv.settlePartition(p)
		sv.settlePartition(p2)
	} else {
		sv.settlePartition(p)
	}

	return nil
}

func (sv *solver) drain(p *partition, queue *[]ir.Expr) error {
	st := sv.ctx.st

	for len(*queue) > 0 {
		n := (*queue)[0]
		*queue = (*queue)[1:]
		st.info[n].onCprop = false

		if st.info[n].isFollower {
			if id := identity(sv.ctx, n); id == n {
				st.promote(p, n)
				sv.enqueueW(p)
			}
		}

		old := st.typ(n)
		nt := compute(sv.ctx, n)

		if nt.Equal(old) {
			continue
		}

		if sv.ctx.cfg.VerifyMonotone && !old.IsTop() && !nt.Below(old) {
			return newInvariantError("non-monotone retype of node %d: %v -> %v", n, old.Kind, nt.Kind)
		}

		st.setType(n, nt)
		sv.fallen = append(sv.fallen, n)
		sv.scheduleUsers(n)
	}

	return nil
}

// splitFallen moves the changed nodes into a fresh partition, using
// the race split when the source partition has followers (their
// def-use edges must be walked to decide which side they belong to)
// and the fast path otherwise.
func (sv *solver) splitFallen(p *partition, fallen []ir.Expr) *partition {
	if len(p.followers) == 0 {
		return sv.ctx.st.splitOff(p, fallen)
	}

	leaders := make([]ir.Expr, 0, len(fallen))

	for _, n := range fallen {
		if !sv.ctx.st.info[n].isFollower {
			leaders = append(leaders, n)
		}
	}

	if len(leaders) == 0 {
		return sv.ctx.st.splitOff(p, fallen)
	}

	return sv.ctx.st.raceSplit(p, leaders)
}

// settlePartition performs the demotion scan (any leader whose type is
// Bottom and whose algebraic identity names another leader in the same
// partition becomes a follower) and then the lattice and opcode
// splitters, before scheduling the result for input-based refinement on
// W.
func (sv *solver) settlePartition(p *partition) {
	if p == nil || p.memberCount() == 0 {
		return
	}

	st := sv.ctx.st

	for _, n := range append([]ir.Expr(nil), p.leaders...) {
		if !st.typ(n).IsBottom() {
			continue
		}

		id := identity(sv.ctx, n)
		if id != n && st.partitionOf(id) == p {
			st.demote(p, n)
		}
	}

	for _, part := range sv.splitByType(p) {
		for _, part2 := range sv.splitByOpcode(part) {
			sv.enqueueW(part2)
		}
	}
}

func (sv *solver) splitByType(p *partition) []*partition {
	return sv.splitByKey(p, func(n ir.Expr) any {
		t := sv.ctx.st.typ(n)
		return t // Lattice is comparable: TarVal/SymConst fields are plain values.
	})
}

func (sv *solver) splitByOpcode(p *partition) []*partition {
	return sv.splitByKey(p, func(n ir.Expr) any {
		return makeOpcodeKey(sv.ctx.g, n)
	})
}

// splitByKey buckets p's leaders by keyFn, keeps the largest bucket in
// place and spins the rest off into fresh partitions, returning every
// resulting partition (p included).
func (sv *solver) splitByKey(p *partition, keyFn func(ir.Expr) any) []*partition {
	if len(p.leaders) <= 1 {
		return []*partition{p}
	}

	groups := map[any][]ir.Expr{}
	order := []any{}

	for _, n := range p.leaders {
		k := keyFn(n)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}

		groups[k] = append(groups[k], n)
	}

	if len(groups) <= 1 {
		return []*partition{p}
	}

	biggest := order[0]
	for _, k := range order[1:] {
		if len(groups[k]) > len(groups[biggest]) {
			biggest = k
		}
	}

	out := []*partition{p}

	for _, k := range order {
		if k == biggest {
			continue
		}

		members := groups[k]
		if len(p.followers) > 0 {
			// A type/opcode split can produce more than two buckets, so
			// the two-sided race split doesn't apply here; each
			// follower's own identity() target already says exactly
			// which leader it must travel with.
			members = append(append([]ir.Expr(nil), members...), sv.followersFollowing(p, members)...)
		}

		if np := sv.ctx.st.splitOff(p, members); np != nil {
			out = append(out, np)
		}
	}

	return out
}

// followersFollowing returns p's followers whose algebraic identity
// names one of the given leaders.
func (sv *solver) followersFollowing(p *partition, leaders []ir.Expr) []ir.Expr {
	want := map[ir.Expr]bool{}
	for _, n := range leaders {
		want[n] = true
	}

	var out []ir.Expr

	for _, f := range p.followers {
		if want[identity(sv.ctx, f)] {
			out = append(out, f)
		}
	}

	return out
}

// refine implements the touched-input splitting step: for every input
// index from -1 (control) up to the partition's widest def-use
// position, collect the touched user partitions (leader users only;
// followers stay with their leader) and split each one where the
// touched subset is a proper non-empty subset of its leaders.
//
// Commutative arity-2 users are handled separately by
// refineCommutative before the per-index loop runs, and are then
// skipped inside refineByInput at idx 0 and 1: a node reached through
// commutative op(a,b) may touch x via position 0 (as a) on one call
// and position 1 (as b) on another op instance in the same partition,
// and treating those as two independent single-index splits can
// separate op(a,b) from op(b,a) even though they are congruent. See
// original_source/ir/opt/combo.c's collect_commutative_touched, which
// gathers both positions before ever bifurcating.
func (sv *solver) refine(x *partition) {
	x.onWorklist = false

	if x.memberCount() == 0 {
		return
	}

	lo := 0
	if !sv.ctx.cfg.GlobalCongruences {
		lo = -1
	}

	if sv.ctx.cfg.Commutative {
		sv.refineCommutative(x)
	}

	for idx := lo; idx <= x.maxUserInputs; idx++ {
		sv.refineByInput(x, idx)
	}
}

// refineCommutative merges the position-0 and position-1 touched sets
// of every commutative arity-2 user of x into one set per target
// partition, then bifurcates it into "aa" (both operands in the same
// partition) and "ab" (operands in different partitions) before
// splitting, so the two positions never race each other into separate
// splitOff calls.
func (sv *solver) refineCommutative(x *partition) {
	st := sv.ctx.st
	touched := map[partID][]ir.Expr{}
	seen := map[ir.Expr]bool{}

	visit := func(n ir.Expr) {
		for _, e := range sv.ctx.g.N(n).DefUse {
			if e.Pos != 0 && e.Pos != 1 {
				continue
			}

			if st.info[e.User].isFollower {
				continue // followers travel with their leader, never split by inputs
			}

			nd := sv.ctx.g.N(e.User)
			if !nd.Op.IsCommutative() || len(nd.Args) != 2 {
				continue
			}

			ut := st.typ(e.User)
			if ut.IsConstant() {
				if nd.Op == ir.OpEor {
					if up := st.partitionOf(e.User); up != nil {
						sv.enqueueC(up, e.User)
					}
				}

				continue
			}

			if seen[e.User] {
				continue
			}
			seen[e.User] = true

			up := st.partitionOf(e.User)
			if up == nil {
				continue
			}

			touched[up.id] = append(touched[up.id], e.User)
		}
	}

	for _, n := range x.leaders {
		visit(n)
	}

	for _, n := range x.followers {
		visit(n)
	}

	for pid, nodes := range touched {
		z := st.parts[pid]
		if z == nil {
			continue
		}

		nodes = sv.bifurcateCommutative(z, nodes)

		if len(nodes) == 0 || len(nodes) >= len(z.leaders) {
			continue
		}

		if np := st.splitOff(z, nodes); np != nil {
			sv.enqueueW(z)
			sv.enqueueW(np)
		}
	}
}

func (sv *solver) refineByInput(x *partition, idx int) {
	st := sv.ctx.st
	touched := map[partID][]ir.Expr{}

	visit := func(n ir.Expr) {
		for _, e := range sv.ctx.g.N(n).DefUse {
			if e.Pos != idx {
				continue
			}

			if st.info[e.User].isFollower {
				continue // followers travel with their leader, never split by inputs
			}

			if sv.ctx.cfg.Commutative && (idx == 0 || idx == 1) {
				nd := sv.ctx.g.N(e.User)
				if nd.Op.IsCommutative() && len(nd.Args) == 2 {
					continue // merged and handled by refineCommutative
				}
			}

			ut := st.typ(e.User)
			if ut.IsConstant() {
				op := sv.ctx.g.Op(e.User)
				if op == ir.OpSub || op == ir.OpCmp || op == ir.OpEor {
					if up := st.partitionOf(e.User); up != nil {
						sv.enqueueC(up, e.User)
					}
				}

				continue
			}

			up := st.partitionOf(e.User)
			if up == nil {
				continue
			}

			touched[up.id] = append(touched[up.id], e.User)
		}
	}

	for _, n := range x.leaders {
		visit(n)
	}

	for _, n := range x.followers {
		visit(n)
	}

	for pid, nodes := range touched {
		z := sv.ctx.st.parts[pid]
		if z == nil {
			continue
		}

		if len(nodes) == 0 || len(nodes) >= len(z.leaders) {
			continue
		}

		if np := sv.ctx.st.splitOff(z, nodes); np != nil {
			sv.enqueueW(z)
			sv.enqueueW(np)
		}
	}
}

// bifurcateCommutative separates, among nodes (already every touched
// commutative arity-2 user of z regardless of which operand position
// the touch came through, per refineCommutative), those whose two
// operands sit in the same partition ("aa") from those whose operands
// differ ("ab"), since op(a,a) is never congruent to op(a,b).
func (sv *solver) bifurcateCommutative(z *partition, nodes []ir.Expr) []ir.Expr {
	var aa, rest []ir.Expr

	for _, n := range nodes {
		nd := sv.ctx.g.N(n)
		if !nd.Op.IsCommutative() || len(nd.Args) != 2 {
			rest = append(rest, n)
			continue
		}

		if sv.ctx.st.partitionOf(nd.Args[0]) == sv.ctx.st.partitionOf(nd.Args[1]) {
			aa = append(aa, n)
		} else {
			rest = append(rest, n)
		}
	}

	if len(aa) == 0 || len(rest) == 0 {
		return nodes
	}

	if np := sv.ctx.st.splitOff(z, aa); np != nil {
		sv.enqueueW(z)
		sv.enqueueW(np)
	}

	return rest
}

// run drains both worklists to a fixed point, draining C in full
// before ever popping W whenever both are non-empty at an outer-loop
// boundary, the pass's ordering guarantee.
func (sv *solver) run() error {
	for sv.c.Len() > 0 || len(sv.w) > 0 {
		if sv.ctx.cfg.Trace && sv.ctx.tr.If("dump_partitions") {
			sv.ctx.tr.Printw("combo: outer loop", "cprop_pending", sv.c.Len(), "worklist_pending", len(sv.w), "partitions", len(sv.ctx.st.parts))
		}

		if sv.c.Len() > 0 {
			pid := sv.c.Pop()

			p := sv.ctx.st.parts[pid]
			if p == nil {
				continue
			}

			if err := sv.propagate(p); err != nil {
				return err
			}

			continue
		}

		pid := sv.w[0]
		sv.w = sv.w[1:]

		p := sv.ctx.st.parts[pid]
		if p == nil {
			continue
		}

		sv.refine(p)
	}

	return nil
}
