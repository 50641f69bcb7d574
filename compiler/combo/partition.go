package combo

import (
	"github.com/slowlang/slow/src/compiler/ir"
	"github.com/slowlang/slow/src/compiler/set"
)

// partID names a partition for the lifetime of one Run; ids are never
// reused so worklist membership tests stay simple.
type partID int

// partition is a congruence class: the source's partition_t, rendered
// as slices instead of intrusive lists since Go's arena already gives
// every node a stable integer handle to key maps and worklists by.
type partition struct {
	id partID

	leaders   []ir.Expr
	followers []ir.Expr

	cprop  []ir.Expr // leaders scheduled for data retyping
	cpropX []ir.Expr // leaders scheduled for control (Cond/Switch) retyping

	typeIsTopOrConst bool // true iff every member's type is Top or a constant
	maxUserInputs    int  // widest def-use input position among members

	onCprop    bool // already queued on the solver's C worklist
	onWorklist bool // already queued on the solver's W worklist
}

func (p *partition) memberCount() int { return len(p.leaders) + len(p.followers) }

// nodeInfo is the per-node wrapper the source calls node_t: back-pointer
// to the owning partition, current lattice element, and the follower
// flag. It is owned by the pass and discarded when Run returns.
type nodeInfo struct {
	part       partID
	typ        Lattice
	isFollower bool
	onCprop    bool // already sitting in its partition's cprop/cpropX queue
}

// store holds every nodeInfo and partition alive during one Run.
type store struct {
	g *ir.Graph

	info  []nodeInfo // indexed by ir.Expr
	parts map[partID]*partition
	next  partID
}

func newStore(g *ir.Graph) *store {
	return &store{
		g:     g,
		info:  make([]nodeInfo, len(g.Nodes)),
		parts: map[partID]*partition{},
	}
}

func (s *store) newPartition() *partition {
	p := &partition{id: s.next}
	s.parts[p.id] = p
	s.next++

	return p
}

func (s *store) partitionOf(n ir.Expr) *partition {
	return s.parts[s.info[n].part]
}

func (s *store) typ(n ir.Expr) Lattice { return s.info[n].typ }

func (s *store) setType(n ir.Expr, t Lattice) { s.info[n].typ = t }

func (s *store) assign(p *partition, n ir.Expr, follower bool) {
	s.info[n].part = p.id
	s.info[n].isFollower = follower

	if follower {
		p.followers = append(p.followers, n)
	} else {
		p.leaders = append(p.leaders, n)
	}
}

// removeMember deletes n from p's leader or follower slice (whichever
// it is currently in), used when moving n into a fresh partition.
func removeMember(list []ir.Expr, n ir.Expr) []ir.Expr {
	for i, x := range list {
		if x == n {
			return append(list[:i], list[i+1:]...)
		}
	}

	return list
}

// promote turns a follower into a leader, the reaction to an algebraic
// identity resolving to itself, or to follower promotion during a race
// split. The node's def-use
// edges are already globally sorted; promoting it does not require
// resorting here because this store never inspects the leader/follower
// split point of a predecessor's def-use array directly -- combo walks
// def-use edges by position, not by leader/follower region, so no
// resort is needed beyond marking the node itself a leader.
func (s *store) promote(p *partition, n ir.Expr) {
	if !s.info[n].isFollower {
		return
	}

	p.followers = removeMember(p.followers, n)
	s.info[n].isFollower = false
	p.leaders = append(p.leaders, n)
}

// demote turns a leader whose value is provably an algebraic identity
// of another leader in the same partition into a follower -- the scan
// performed after a partition's fallen nodes settle.
func (s *store) demote(p *partition, n ir.Expr) {
	if s.info[n].isFollower {
		return
	}

	p.leaders = removeMember(p.leaders, n)
	s.info[n].isFollower = true
	p.followers = append(p.followers, n)
}

// splitOff moves the members named in group out of p into a fresh
// partition and returns it. group must be a non-empty proper subset of
// p's leaders (the fast split, when p has no followers) or of its
// combined leader+follower membership when p has followers (the race
// split below decides which nodes move; splitOff performs the move
// once that decision is made).
func (s *store) splitOff(p *partition, group []ir.Expr) *partition {
	if len(group) == 0 || len(group) == p.memberCount() {
		return nil
	}

	np := s.newPartition()
	np.typeIsTopOrConst = p.typeIsTopOrConst
	np.maxUserInputs = p.maxUserInputs

	for _, n := range group {
		follower := s.info[n].isFollower

		if follower {
			p.followers = removeMember(p.followers, n)
		} else {
			p.leaders = removeMember(p.leaders, n)
		}

		s.assign(np, n, follower)
	}

	return np
}

// raceSplit implements a Hopcroft-style work-balancing split: starting
// from seed (side 1) and p's remaining leaders (side
// 2), alternately advance one BFS step per side over follower def-use
// edges, tagging each newly reached follower with the side that found
// it first. A follower reached by the second side after the first one
// tagged it is promoted to leader on the spot -- it cannot be congruent to only one
// side once both sides' leaders use it. The side that exhausts its
// frontier first is declared the winner; only nodes it walked (leaders
// and followers) move to the new partition, bounding the work by the
// smaller side.
//
// Membership and per-side tagging are kept in set.Bitmap indexed by
// node handle rather than Go maps: the arena gives every node a dense
// integer index up front, so a fixed-size bitmap sized once to
// len(s.g.Nodes) covers the whole race without per-lookup hashing.
func (s *store) raceSplit(p *partition, seed []ir.Expr) *partition {
	if len(seed) == 0 || len(seed) == len(p.leaders) {
		return s.splitOff(p, seed)
	}

	n := len(s.g.Nodes)

	inSeed := set.MakeBitmap(n)
	for _, e := range seed {
		inSeed.Set(int(e))
	}

	other := make([]ir.Expr, 0, len(p.leaders)-len(seed))

	for _, e := range p.leaders {
		if !inSeed.IsSet(int(e)) {
			other = append(other, e)
		}
	}

	side := [2][]ir.Expr{append([]ir.Expr(nil), seed...), other}
	frontier := [2][]ir.Expr{side[0], side[1]}
	visited := [2]set.Bitmap{set.MakeBitmap(n), set.MakeBitmap(n)}

	for i, ns := range side {
		for _, e := range ns {
			visited[i].Set(int(e))
		}
	}

	tagged := set.MakeBitmap(n)  // whether a follower has been reached by either side yet
	tagSide := set.MakeBitmap(n) // set means side 1 found it first, unset means side 0

	winner := -1

	for winner < 0 {
		progressed := false

		for i := 0; i < 2; i++ {
			if len(frontier[i]) == 0 {
				continue
			}

			progressed = true

			var next []ir.Expr

			for _, fn := range frontier[i] {
				for _, e := range s.g.N(fn).DefUse {
					if e.Pos < 0 {
						continue // control/block-ownership edges never carry algebraic identity
					}

					u := e.User

					if s.info[u].part != p.id || !s.info[u].isFollower {
						continue
					}

					if tagged.IsSet(int(u)) {
						prior := 0
						if tagSide.IsSet(int(u)) {
							prior = 1
						}

						if prior != i {
							s.promote(p, u)
							side[0] = append(side[0], u) // treated as leader from now on
						}

						continue
					}

					tagged.Set(int(u))
					if i == 1 {
						tagSide.Set(int(u))
					}

					side[i] = append(side[i], u)

					if !visited[i].IsSet(int(u)) {
						visited[i].Set(int(u))
						next = append(next, u)
					}
				}
			}

			frontier[i] = next

			if len(frontier[i]) == 0 {
				winner = i
				break
			}
		}

		if !progressed {
			winner = 0
		}
	}

	return s.splitOff(p, side[winner])
}
