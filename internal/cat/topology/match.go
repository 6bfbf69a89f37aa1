package topology

import (
	"math"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"
)

// Junction describes how two sequences are to be joined: which of them
// must be reversed so that A's tail meets B's head, whether the join
// crosses the gap between blocks, how many duplicated boundary cells to
// drop and where a kink is to be recorded.
type Junction struct {
	InvertA       bool `json:"invert_a"`
	InvertB       bool `json:"invert_b"`
	AcrossGap     bool `json:"across_gap"`
	CellsToDelete int  `json:"cells_to_delete"`
	// Kink is 0 for a smooth join, 1 for a kink on A's last node and 2 on
	// B's first node.
	Kink int `json:"kink"`
}

// endPair picks the closest pairing of end points: A's last to B's first,
// A's last to B's last, A's first to B's last, then A's first to B's first.
// The first pairing reaching the minimum wins.
func endPair(a, b Sequence) (invA, invB bool) {
	af, al := a.Nodes[0].EP, a.Nodes[len(a.Nodes)-1].EP
	bf, bl := b.Nodes[0].EP, b.Nodes[len(b.Nodes)-1].EP
	ff := af.Distance(bf).Value
	fl := af.Distance(bl).Value
	lf := al.Distance(bf).Value
	ll := al.Distance(bl).Value
	switch {
	case lf <= ff && lf <= fl && lf <= ll:
		return false, false
	case ll <= ff && ll <= fl && ll <= lf:
		return false, true
	case fl <= ff && fl <= ll && fl <= lf:
		return true, true
	}
	return true, false
}

// tail returns the end node of s on the junction side and the one next to
// it. atEnd selects the last node.
func tail(s Sequence, atEnd bool) (end, inner Node) {
	n := len(s.Nodes)
	if atEnd {
		end = s.Nodes[n-1]
		if n > 1 {
			inner = s.Nodes[n-2]
		}
		return end, inner
	}
	end = s.Nodes[0]
	if n > 1 {
		inner = s.Nodes[1]
	}
	return end, inner
}

// vertexAt returns the helix vertex at the end (atEnd) or start of s.
func vertexAt(s Sequence, atEnd bool) Vertex {
	if atEnd {
		return s.DecayHelixVertex
	}
	return s.HelixVertex
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// GoodMatch reports whether seq can continue s across a gap or a missing
// layer without a kink, and which ends meet.
func (s Sequence) GoodMatch(seq Sequence, nOffLayers int) (Junction, bool) {
	if !seq.Fast() || len(seq.Nodes) < 1 || len(s.Nodes) < 1 {
		return Junction{}, false
	}
	if s.Nodes[0].Cell.Block*seq.Nodes[0].Cell.Block < 0 {
		cat.Tracef("%s, %s: opposite sides of the foil", s.Name(), seq.Name())
		return Junction{}, false
	}
	if s.Family() == seq.Family() {
		return Junction{}, false
	}

	j := Junction{}
	j.InvertA, j.InvertB = endPair(s, seq)
	aEnd, _ := tail(s, !j.InvertA)
	bEnd, _ := tail(seq, j.InvertB)

	blocks := aEnd.Cell.Block - bEnd.Cell.Block
	if abs(blocks) > 1 {
		return Junction{}, false
	}
	if vertexAt(s, !j.InvertA).IsCalo() || vertexAt(seq, j.InvertB).IsCalo() {
		return Junction{}, false
	}
	if abs(aEnd.Cell.Layer-bEnd.Cell.Layer) > 1+nOffLayers {
		return Junction{}, false
	}
	if blocks == 0 && abs(aEnd.Cell.Number-bEnd.Cell.Number) > 1+nOffLayers {
		return Junction{}, false
	}
	return j, true
}

// GoodMatchWithKink is GoodMatch for joins that may bend. The two ends may
// share one or two cells, which are then dropped from the merged track.
// Within a block the ends must lie within limit (scaled by the number of
// shared cells plus one).
func (s Sequence) GoodMatchWithKink(seq Sequence, limit float64, nOffLayers int) (Junction, bool) {
	if !seq.Fast() || len(s.Nodes) < 2 || len(seq.Nodes) < 2 {
		return Junction{}, false
	}
	if s.Nodes[0].Cell.Block*seq.Nodes[0].Cell.Block < 0 {
		return Junction{}, false
	}

	j := Junction{}
	j.InvertA, j.InvertB = endPair(s, seq)
	aEnd, aInner := tail(s, !j.InvertA)
	bEnd, bInner := tail(seq, j.InvertB)

	blocks := aEnd.Cell.Block - bEnd.Cell.Block
	if abs(blocks) > 1 {
		return Junction{}, false
	}
	forbidden := func(v Vertex) bool { return v.IsCalo() || v.IsFoil() }
	if forbidden(vertexAt(s, !j.InvertA)) || forbidden(vertexAt(seq, j.InvertB)) {
		return Junction{}, false
	}

	from, to := aEnd, bEnd
	switch {
	case aEnd.Cell.ID == bEnd.Cell.ID:
		j.CellsToDelete = 1
		to = bInner
	case aInner.Cell.ID == bEnd.Cell.ID && aEnd.Cell.ID == bInner.Cell.ID:
		j.CellsToDelete = 2
		from, to = aInner, bInner
	}

	if abs(blocks) == 1 {
		j.AcrossGap = true
	} else if d := aEnd.EP.Distance(bEnd.EP).Value; d > limit*float64(j.CellsToDelete+1) {
		return Junction{}, false
	}
	if abs(from.Cell.Layer-to.Cell.Layer) > 1+nOffLayers {
		return Junction{}, false
	}
	if !j.AcrossGap && abs(from.Cell.Number-to.Cell.Number) > 1+nOffLayers {
		return Junction{}, false
	}
	return j, true
}

// IntersectSequence looks for the point where s and seq meet when joined
// as j describes, and records in j which side carries the kink. Within a
// block the helix of s is crossed with the circle of seq; across the gap
// each track is extrapolated to the plane of the other's end.
func (s *Sequence) IntersectSequence(seq *Sequence, j *Junction, limit float64) (geom.Point, bool) {
	j.Kink = 0
	if !s.HasHelix {
		s.CalculateHelix()
	}
	if !seq.HasHelix {
		seq.CalculateHelix()
	}
	if !s.HasHelix || !seq.HasHelix {
		return geom.Point{}, false
	}
	atEndA := !j.InvertA
	atEndB := j.InvertB

	if !j.AcrossGap {
		aEnd, aInner := tail(*s, atEndA)
		from := aEnd
		if j.CellsToDelete == 2 {
			from = aInner
		}
		ep, ok := s.Helix.IntersectCircle(seq.Helix.Circle(), from.EP)
		if !ok {
			return geom.Point{}, false
		}
		bEnd, bInner := tail(*seq, atEndB)
		to := bEnd
		if j.CellsToDelete == 1 {
			to = bInner
		}
		distA := pulledDistance(from.EP.Distance(ep))
		distB := pulledDistance(to.EP.Distance(ep))
		return ep, distA <= limit && distB <= limit
	}

	aEnd, _ := tail(*s, atEndA)
	bEnd, _ := tail(*seq, atEndB)

	// B's head seen from A, and A's tail seen from B.
	epB, distB, okB := s.reachPlane(bEnd.EP, atEndA)
	epA, distA, okA := seq.reachPlane(aEnd.EP, atEndB)

	var ep geom.Point
	var dist geom.Double
	switch {
	case okA && okB && distA.Value < distB.Value:
		ep, dist, j.Kink = epA, distA, 1
	case okA && okB:
		ep, dist, j.Kink = epB, distB, 2
	case okA:
		ep, dist, j.Kink = epA, distA, 1
	case okB:
		ep, dist, j.Kink = epB, distB, 2
	default:
		return geom.Point{}, false
	}
	return ep, math.Max(dist.Value-dist.Error, 0) < 2*limit
}

// reachPlane extrapolates s from one end to the plane z = target.z with
// both the helix and the end tangent, keeping the crossing nearest target.
func (s Sequence) reachPlane(target geom.Point, atEnd bool) (geom.Point, geom.Double, bool) {
	z0 := target.Z.Value
	best, bestDist, ok := geom.Point{}, geom.Double{}, false
	if p, hit := s.HelixAtZ(z0, atEnd); hit {
		best, bestDist, ok = p, target.HorDistance(p), true
	}
	if p, hit := s.TangentAtZ(z0, atEnd); hit {
		if d := target.HorDistance(p); !ok || d.Value < bestDist.Value {
			best, bestDist, ok = p, d, true
		}
	}
	return best, bestDist, ok
}

func pulledDistance(d geom.Double) float64 {
	return math.Abs(math.Max(d.Value-d.Error, 0))
}

// Match joins s and seq as j describes and refits the helix of the result.
// The flag reports whether the helix fit converged.
func (s Sequence) Match(seq Sequence, j Junction) (Sequence, bool) {
	first, second := s.Clone(), seq.Clone()
	if j.InvertA {
		first = first.Invert()
	}
	if j.InvertB {
		second = second.Invert()
	}
	for _, name := range second.Names {
		first.AddName(name)
	}

	if j.CellsToDelete == 1 || j.CellsToDelete == 2 {
		second.RemoveFirstNode()
	}
	if j.CellsToDelete == 2 {
		first.RemoveLastNode()
	}
	if len(first.Nodes) == 0 || len(second.Nodes) == 0 {
		return first, false
	}

	last := len(first.Nodes) - 1
	if j.Kink == 1 {
		first.Nodes[last].IsKink = true
	}
	for i, in := range second.Nodes {
		in = in.Strip()
		prev := first.Nodes[len(first.Nodes)-1]
		if i == 0 {
			tailNode := &first.Nodes[last]
			tailNode.Links = append(tailNode.Links, Link{Cell: in.Cell})
			if last > 0 {
				tailNode.AddTriplet(Triplet{CA: first.Nodes[last-1].Cell, CB: tailNode.Cell, CC: in.Cell})
			}
			if j.Kink == 2 {
				in.IsKink = true
			}
		}
		if i+1 < len(second.Nodes) {
			next := second.Nodes[i+1].Cell
			in.Triplets = []Triplet{{CA: prev.Cell, CB: in.Cell, CC: next}}
			in.Links = []Link{{Cell: next}}
		}
		first.Nodes = append(first.Nodes, in)
	}

	first.AppendStep(0, 1)
	first.Chi2s = append(first.Chi2s, second.Chi2s...)
	first.Probs = append(first.Probs, second.Probs...)
	first.Chi2sAll = append(first.Chi2sAll, second.Chi2sAll...)
	first.ProbsAll = append(first.ProbsAll, second.ProbsAll...)

	first.DecayHelixVertex = second.DecayHelixVertex
	first.DecayTangentVertex = second.DecayTangentVertex
	first.Free = false

	ok := first.CalculateHelix()
	return first, ok
}
