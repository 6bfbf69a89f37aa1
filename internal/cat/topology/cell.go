package topology

import (
	"fmt"
	"math"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"
)

const (
	// SmallRadius is the drift radius (mm) at or below which a cell is
	// treated as a point.
	SmallRadius = 2.0
	// unknownVerticalError flags a hit without a longitudinal measurement.
	unknownVerticalError = 1000.0
)

// Cell is one drift-cell hit. It is read-only to the track finder.
type Cell struct {
	ID     int         `json:"id"`
	Layer  int         `json:"layer"`
	Block  int         `json:"block"`
	Number int         `json:"number"`
	EP     geom.Point  `json:"ep"`
	R      geom.Double `json:"r"`
	// Slow marks a delayed hit, typically from an alpha particle.
	Slow   bool        `json:"slow,omitempty"`
}

func (c Cell) String() string {
	return fmt.Sprintf("cell %d (layer %d, block %d, number %d)", c.ID, c.Layer, c.Block, c.Number)
}

// Fast reports whether the hit is prompt.
func (c Cell) Fast() bool {
	return !c.Slow
}

// Small reports whether the drift radius is too small to resolve an azimuth.
func (c Cell) Small() bool {
	return c.R.Value <= SmallRadius
}

// UnknownVertical reports whether the hit carries no longitudinal position.
func (c Cell) UnknownVertical() bool {
	return c.EP.Y.Value == 0 && c.EP.Y.Error > unknownVerticalError
}

// Side returns +1 or -1 for the side of the foil the cell is on.
func (c Cell) Side() int {
	if c.EP.Z.Value > 0 {
		return 1
	}
	return -1
}

// PointEP returns the wire position with the horizontal errors widened to
// the drift radius, the representation used for small cells.
func (c Cell) PointEP() geom.Point {
	p := c.EP
	p.X.Error = c.R.Error
	p.Z.Error = c.R.Error
	if c.Small() {
		p.X.Error = math.Max(c.R.Value, c.R.Error)
		p.Z.Error = p.X.Error
	}
	return p
}

// Intersect reports whether the drift circles of the two cells overlap in
// the horizontal plane.
func (c Cell) Intersect(o Cell) bool {
	d := c.EP.HorDistance(o.EP).Value
	return d < c.R.Value+o.R.Value
}

// SameQuadrant reports whether a and b lie in the same quadrant around the
// wire. A coordinate within its error of the wire matches either sign.
func (c Cell) SameQuadrant(a, b geom.Point) bool {
	da := geom.NewVector(c.EP, a)
	db := geom.NewVector(c.EP, b)
	return sameSign(da.X, db.X) && sameSign(da.Z, db.Z)
}

func sameSign(a, b geom.Double) bool {
	if math.Abs(a.Value) <= a.Error || math.Abs(b.Value) <= b.Error {
		return true
	}
	return (a.Value > 0) == (b.Value > 0)
}

// AngularAverage returns the point of the drift circle at the mean azimuth
// of a and b, and the azimuth separation between them.
func (c Cell) AngularAverage(a, b geom.Point) (geom.Point, geom.Double) {
	phiA := geom.NewVector(c.EP, a).Phi()
	phiB := geom.NewVector(c.EP, b).Phi()
	phiB.Value = geom.NearAngle(phiB.Value, phiA.Value)

	sep := phiA.Sub(phiB)
	avg := phiA.Add(phiB).Scale(0.5)

	p := geom.Point{
		X: c.EP.X.Add(c.R.Mul(avg.Cos())),
		Y: geom.Average([]geom.Double{a.Y, b.Y}),
		Z: c.EP.Z.Add(c.R.Mul(avg.Sin())),
	}
	return p, sep
}

// BuildFromCell returns the point of the drift circle whose direction from
// the wire has the given cosine with forward, on the side of transverse
// selected by sign.
func (c Cell) BuildFromCell(forward, transverse geom.Vector, cos geom.Double, sign int) geom.Point {
	one := geom.D(1, 0)
	sin2 := one.Sub(cos.Square())
	if sin2.Value < 0 {
		sin2.Value = 0
	}
	sin := sin2.Sqrt()
	dir := forward.ScaleD(cos).Add(transverse.ScaleD(sin).Scale(float64(sign)))
	p := geom.VectorOf(c.EP).Add(dir.ScaleD(c.R)).Point()
	p.Y = c.EP.Y
	return p
}

// CaloHit is a calorimeter block that fired. Position is the centre of its
// front face; Layer is the tracker layer the block faces.
type CaloHit struct {
	ID       int        `json:"id"`
	Layer    int        `json:"layer"`
	Block    int        `json:"block"`
	Position geom.Point `json:"position"`
}

// Side returns the side of the foil the calorimeter is on.
func (h CaloHit) Side() int {
	if h.Position.Z.Value > 0 {
		return 1
	}
	return -1
}
