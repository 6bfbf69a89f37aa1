package sequentiator

import (
	"math"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
)

// matchGaps merges sequences of different families that continue each
// other across a gap between blocks or a missing layer. Every sequence
// absorbs partners until none is left. An absorbed family is not matched
// again and its sequences give way to the merged ones; the other copies of
// the seed's family stay candidates.
func (r *run) matchGaps() {
	if len(r.sequences) < 2 {
		return
	}
	var merged []topology.Sequence
	matched := make(map[int]bool)

	for _, seq := range r.sequences {
		if r.late() {
			return
		}
		if matched[seq.Family()] || !seq.Fast() || len(seq.Nodes) < 2 {
			continue
		}
		cur := seq.Clone()
		joined := false
		for {
			partner, j, ok := r.canMatch(cur)
			if !ok {
				break
			}
			next, converged := cur.Match(r.sequences[partner], j)
			if !converged && j.Kink == 0 {
				cat.Tracef("%s + %s: fit did not converge", cur.Name(), r.sequences[partner].Name())
				break
			}
			cat.Diagf("matched %s with %s", cur.Name(), r.sequences[partner].Name())
			matched[r.sequences[partner].Family()] = true
			cur, joined = next, true
		}
		if joined {
			merged = append(merged, cur)
		}
	}
	if len(merged) == 0 {
		return
	}

	for _, s := range r.sequences {
		if !matched[s.Family()] {
			merged = append(merged, s)
		}
	}
	r.sequences = merged
	r.makeFamilies()
}

// matchLimit is the largest distance between two ends joined with a kink
// inside a block.
func (r *run) matchLimit() float64 {
	return math.Sqrt2 * math.Cos(math.Pi/8) * r.cfg.CellDistance
}

// junctionNodes returns the nodes of a and b the junction joins. With a
// kink, shared cells move the joining node one step inwards.
func junctionNodes(a, b topology.Sequence, j topology.Junction, kink bool) (topology.Node, topology.Node) {
	na, nb := len(a.Nodes), len(b.Nodes)
	ia, ib := na-1, 0
	if j.InvertA {
		ia = 0
	}
	if j.InvertB {
		ib = nb - 1
	}
	if kink {
		if j.CellsToDelete == 2 && na > 1 {
			if j.InvertA {
				ia = 1
			} else {
				ia = na - 2
			}
		}
		if j.CellsToDelete == 1 && nb > 1 {
			if j.InvertB {
				ib = nb - 2
			} else {
				ib = 1
			}
		}
	}
	return a.Nodes[ia], b.Nodes[ib]
}

type matchCandidate struct {
	index int
	j     topology.Junction
	prob  float64
	chi2  float64
	kink  bool
}

// canMatch looks for the sequence that best continues s: the highest
// helix probability of the merged track wins, ties going to the lower
// chi2. A smooth join must reach ProbMin; a join with a kink only needs
// the ends to meet.
func (r *run) canMatch(s topology.Sequence) (int, topology.Junction, bool) {
	limit := r.matchLimit()
	var best *matchCandidate

	for k, other := range r.sequences {
		if s.SameFamilies(other) || len(other.Nodes) == 0 || len(s.Nodes) == 0 {
			continue
		}

		c, ok := r.smoothMatch(s, other)
		if !ok {
			c, ok = r.kinkMatch(s, other, limit)
		}
		if !ok {
			continue
		}
		c.index = k
		if best == nil || c.prob > best.prob || (c.prob == best.prob && c.chi2 < best.chi2) {
			cc := c
			best = &cc
		}
	}
	if best == nil {
		return 0, topology.Junction{}, false
	}
	return best.index, best.j, true
}

func (r *run) smoothMatch(s, other topology.Sequence) (matchCandidate, bool) {
	j, ok := s.GoodMatch(other, r.cfg.NOffLayers)
	if !ok {
		return matchCandidate{}, false
	}
	m, converged := s.Match(other, j)
	if !converged {
		return matchCandidate{}, false
	}
	na, nb := junctionNodes(s, other, j, false)
	if !r.withinRange(na, nb, m) {
		return matchCandidate{}, false
	}
	p := m.HelixProb()
	if p <= r.cfg.ProbMin {
		return matchCandidate{}, false
	}
	return matchCandidate{j: j, prob: p, chi2: m.HelixChi2()}, true
}

func (r *run) kinkMatch(s, other topology.Sequence, limit float64) (matchCandidate, bool) {
	j, ok := s.GoodMatchWithKink(other, limit, r.cfg.NOffLayers)
	if !ok {
		return matchCandidate{}, false
	}
	na, nb := junctionNodes(s, other, j, true)
	for _, n := range []topology.Node{na, nb} {
		if r.gapNumber(n.Cell) == 0 {
			return matchCandidate{}, false
		}
		for _, h := range r.calos {
			if r.near(n.Cell, h) {
				return matchCandidate{}, false
			}
		}
	}

	a, b := s.Clone(), other.Clone()
	if _, ok := a.IntersectSequence(&b, &j, limit); !ok {
		return matchCandidate{}, false
	}
	m, _ := s.Match(other, j)
	if !r.withinRange(na, nb, m) {
		return matchCandidate{}, false
	}
	return matchCandidate{j: j, prob: m.HelixProb(), chi2: m.HelixChi2(), kink: true}, true
}
