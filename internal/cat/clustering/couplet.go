package clustering

import (
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
)

var vertical = geom.Vector{X: geom.D(0, 0), Y: geom.D(1, 0), Z: geom.D(0, 0)}

// axes returns the horizontal unit vector from a to b and the horizontal
// unit vector perpendicular to it.
func axes(a, b topology.Cell) (forward, transverse geom.Vector) {
	forward = geom.NewVector(a.EP, b.EP).Hor().Unit()
	transverse = forward.Cross(vertical).Unit()
	return forward, transverse
}

// wirePoint is the wire position with the horizontal errors set to the
// drift radius error.
func wirePoint(c topology.Cell) geom.Point {
	p := c.EP
	p.X.Error = c.R.Error
	p.Z.Error = c.R.Error
	return p
}

// NewCouplet enumerates the straight lines from ca to cb that touch both
// drift circles. Small cells count as points.
func NewCouplet(ca, cb topology.Cell) topology.Couplet {
	c := topology.Couplet{CA: ca, CB: cb}
	forward, transverse := axes(ca, cb)
	dist := ca.EP.HorDistance(cb.EP)
	add := func(a, b geom.Point) {
		c.Tangents = append(c.Tangents, topology.Tangent{Line: geom.Line{A: a, B: b}})
	}

	switch {
	case ca.Small() && cb.Small():
		add(wirePoint(ca), wirePoint(cb))

	case cb.Small():
		cos := ca.R.Div(dist)
		for _, sign := range []int{1, -1} {
			add(ca.BuildFromCell(forward, transverse, cos, sign), wirePoint(cb))
		}

	case ca.Small():
		cos := cb.R.Div(dist).Neg()
		for _, sign := range []int{1, -1} {
			add(wirePoint(ca), cb.BuildFromCell(forward, transverse, cos, sign))
		}

	default:
		parallel := ca.R.Sub(cb.R).Div(dist)
		for _, sign := range []int{1, -1} {
			add(ca.BuildFromCell(forward, transverse, parallel, sign),
				cb.BuildFromCell(forward, transverse, parallel, sign))
		}
		if ca.Intersect(cb) {
			// near-crossing segments around the midpoint, with a loose
			// transverse position
			mid := geom.VectorOf(ca.EP).Add(geom.VectorOf(cb.EP)).Scale(0.5)
			offset := geom.D(0.1, (ca.R.Value+cb.R.Value)/4)
			for _, sign := range []int{1, -1} {
				shift := transverse.ScaleD(offset).Scale(float64(sign))
				add(mid.Add(shift).Point(), mid.Sub(shift).Point())
			}
			break
		}
		crossed := ca.R.Add(cb.R).Div(dist)
		for _, sign := range []int{1, -1} {
			add(ca.BuildFromCell(forward, transverse, crossed, sign),
				cb.BuildFromCell(forward, transverse, crossed.Neg(), -sign))
		}
	}
	return c
}
