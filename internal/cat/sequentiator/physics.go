package sequentiator

import (
	"math"
	"slices"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
)

func absInt(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// gapNumber returns the index of the gap a cell faces: 0 for the layer
// next to the foil, g for the first or last layer of block g, -1 for a
// layer inside a block.
func (r *run) gapNumber(c topology.Cell) int {
	ln := absInt(c.Layer)
	if ln == 0 {
		return 0
	}
	counter := 0
	for i, planes := range r.cfg.PlanesPerBlock {
		counter += planes
		if ln == counter-1 || ln == counter {
			return i + 1
		}
	}
	return -1
}

// gapWidth is the width (mm) of gap g, zero past the configured gaps.
func (r *run) gapWidth(g int) float64 {
	if g < 0 || g >= len(r.cfg.GapsZ) {
		return 0
	}
	return r.cfg.GapsZ[g]
}

// near reports whether cell c faces calorimeter hit h: same side of the
// foil, on a block boundary, within NOffLayers layers of the block.
func (r *run) near(c topology.Cell, h topology.CaloHit) bool {
	if c.Side() != h.Side() {
		return false
	}
	if r.gapNumber(c) <= 0 {
		return false
	}
	return absInt(absInt(h.Layer)-absInt(c.Layer)) <= r.cfg.NOffLayers
}

// withinRange reports whether the helix of seq stays, between nodes a and
// b, within the |z| band the two cells span. Cells facing the same gap
// may reach across it.
func (r *run) withinRange(a, b topology.Node, seq topology.Sequence) bool {
	if len(r.cfg.GapsZ) == 0 || !seq.HasHelix {
		return true
	}
	d := r.cfg.CellDistance
	za, zb := math.Abs(a.Cell.EP.Z.Value), math.Abs(b.Cell.EP.Z.Value)
	lo, hi := math.Min(za, zb)-d, math.Max(za, zb)+d

	ga, gb := r.gapNumber(a.Cell), r.gapNumber(b.Cell)
	if a.Cell.Block == b.Cell.Block && ga == gb && ga >= 0 {
		gapLayer := 0
		for i := 0; i < ga && i < len(r.cfg.PlanesPerBlock); i++ {
			gapLayer += r.cfg.PlanesPerBlock[i]
		}
		w := r.gapWidth(ga)
		if absInt(a.Cell.Layer) < gapLayer {
			lo, hi = za-d, za+d+w
		} else {
			lo, hi = za-d-w, za+d
		}
	}

	loZ, hiZ := seq.Helix.AbsZRange(a.EP, b.EP)
	return hiZ <= hi && loZ >= lo
}

// interpretPhysics fits every sequence of three or more nodes, drops those
// whose helix fit fails, and attaches charge, momentum, length and the
// foil and calorimeter vertices to the others.
func (r *run) interpretPhysics() {
	for i := 0; i < len(r.sequences); {
		seq := &r.sequences[i]
		if len(seq.Nodes) <= 2 {
			i++
			continue
		}
		if !seq.CalculateHelix() && !seq.HasKink() {
			cat.Tracef("%s: helix fit failed", seq.Name())
			r.sequences = slices.Delete(r.sequences, i, i+1)
			continue
		}
		seq.CalculateCharge()
		seq.CalculateMomentum(r.cfg.BField)
		r.attachCaloVertices(seq)
		r.attachFoilVertices(seq)
		seq.CalculateLength()
		i++
	}
}

// attachCaloVertices extrapolates each end of seq to the nearest
// calorimeter hit facing it. Both ends never share a hit.
func (r *run) attachCaloVertices(seq *topology.Sequence) {
	if len(r.calos) == 0 {
		return
	}
	n := len(seq.Nodes)
	end := r.closestCalo(*seq, seq.Nodes[n-1].Cell, true, nil)
	var taken []int
	if end.ok {
		taken = append(taken, end.hit.ID)
		r.attachCalo(seq, end, true)
	}
	if begin := r.closestCalo(*seq, seq.Nodes[0].Cell, false, taken); begin.ok {
		r.attachCalo(seq, begin, false)
	}
}

type caloMatch struct {
	hit     topology.CaloHit
	helix   geom.Point
	tangent geom.Point
	hasHel  bool
	hasTan  bool
	ok      bool
}

func (r *run) closestCalo(seq topology.Sequence, c topology.Cell, atEnd bool, exclude []int) caloMatch {
	best := caloMatch{}
	bestDist := math.Inf(1)
	for _, h := range r.calos {
		if slices.Contains(exclude, h.ID) || !r.near(c, h) {
			continue
		}
		z := h.Position.Z.Value
		m := caloMatch{hit: h}
		m.helix, m.hasHel = seq.HelixAtZ(z, atEnd)
		m.tangent, m.hasTan = seq.TangentAtZ(z, atEnd)
		dist := math.Inf(1)
		if m.hasHel {
			dist = m.helix.Distance(h.Position).Value
		}
		if m.hasTan {
			dist = math.Min(dist, m.tangent.Distance(h.Position).Value)
		}
		if (m.hasHel || m.hasTan) && dist < bestDist {
			m.ok = true
			best, bestDist = m, dist
		}
	}
	return best
}

func (r *run) attachCalo(seq *topology.Sequence, m caloMatch, atEnd bool) {
	if m.hasHel {
		seq.AttachVertex(topology.Vertex{Point: m.helix, Kind: topology.VertexCalo, CaloID: m.hit.ID}, false, atEnd)
	}
	if m.hasTan {
		seq.AttachVertex(topology.Vertex{Point: m.tangent, Kind: topology.VertexCalo, CaloID: m.hit.ID}, true, atEnd)
	}
}

// attachFoilVertices extrapolates an end on the first layer to the foil.
func (r *run) attachFoilVertices(seq *topology.Sequence) {
	n := len(seq.Nodes)
	for _, atEnd := range []bool{false, true} {
		c := seq.Nodes[0].Cell
		if atEnd {
			c = seq.Nodes[n-1].Cell
		}
		if r.gapNumber(c) != 0 {
			continue
		}
		if p, ok := seq.HelixAtZ(0, atEnd); ok {
			seq.AttachVertex(topology.Vertex{Point: p, Kind: topology.VertexFoil}, false, atEnd)
		}
		if p, ok := seq.TangentAtZ(0, atEnd); ok {
			seq.AttachVertex(topology.Vertex{Point: p, Kind: topology.VertexFoil}, true, atEnd)
		}
	}
}
