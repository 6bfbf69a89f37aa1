package geom

import "math"

// Line is the straight segment A -> B.
type Line struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

// ForwardAxis returns B - A.
func (l Line) ForwardAxis() Vector {
	return NewVector(l.A, l.B)
}

// Invert swaps the end points.
func (l Line) Invert() Line {
	return Line{A: l.B, B: l.A}
}

// KinkPhi is the horizontal turning angle from l to next.
func (l Line) KinkPhi(next Line) Double {
	return l.ForwardAxis().KinkPhi(next.ForwardAxis())
}

// KinkTheta is the change of elevation from l to next.
func (l Line) KinkTheta(next Line) Double {
	return l.ForwardAxis().KinkTheta(next.ForwardAxis())
}

// Chi2 scores the kink between l and next. The first result includes the
// elevation term when useTheta is set; the second is the azimuth-only term.
func (l Line) Chi2(next Line, useTheta bool) (chi2, phiOnly float64) {
	phiOnly = pull2(l.KinkPhi(next))
	chi2 = phiOnly
	if useTheta {
		chi2 += pull2(l.KinkTheta(next))
	}
	return chi2, phiOnly
}

// pull2 returns (value/error)². A zero error only counts when the value is
// also non-zero.
func pull2(d Double) float64 {
	if d.Error == 0 {
		if d.Value == 0 {
			return 0
		}
		return math.Inf(1)
	}
	r := d.Value / d.Error
	return r * r
}

// Circle lives in the horizontal plane at height Center.Y.
type Circle struct {
	Center Point  `json:"center"`
	Radius Double `json:"radius"`
}

// PhiOfPoint returns the azimuth of p around the centre, shifted to lie
// within π of ref.
func (c Circle) PhiOfPoint(p Point, ref float64) Double {
	phi := NewVector(c.Center, p).Phi()
	phi.Value = NearAngle(phi.Value, ref)
	return phi
}

// Position returns the point of the circle at azimuth phi.
func (c Circle) Position(phi Double) Point {
	return Point{
		X: c.Center.X.Add(phi.Cos().Mul(c.Radius)),
		Y: c.Center.Y,
		Z: c.Center.Z.Add(phi.Sin().Mul(c.Radius)),
	}
}

// Chi2 sums the squared horizontal residuals of the points, following the
// azimuth continuously from one point to the next.
func (c Circle) Chi2(ps []Point) float64 {
	var chi2, ref float64
	for _, p := range ps {
		phi := c.PhiOfPoint(p, ref)
		ref = phi.Value
		chi2 += NewVector(p, c.Position(phi)).Hor().Length2().Value
	}
	return chi2
}

// Helix is a circle in x-z whose height advances by Pitch per radian:
// y(phi) = Center.Y + Pitch*phi.
type Helix struct {
	Center Point  `json:"center"`
	Radius Double `json:"radius"`
	Pitch  Double `json:"pitch"`
}

// Circle returns the horizontal projection.
func (h Helix) Circle() Circle {
	return Circle{Center: h.Center, Radius: h.Radius}
}

func (h Helix) PhiOfPoint(p Point, ref float64) Double {
	return h.Circle().PhiOfPoint(p, ref)
}

// Position returns the helix point at azimuth phi.
func (h Helix) Position(phi Double) Point {
	p := h.Circle().Position(phi)
	p.Y = h.Center.Y.Add(h.Pitch.Mul(phi))
	return p
}

// Chi2 is the error-weighted squared residual of p against the helix.
func (h Helix) Chi2(p Point, ref float64) float64 {
	r := NewVector(p, h.Position(h.PhiOfPoint(p, ref)))
	return finitePull2(r.X) + finitePull2(r.Y) + finitePull2(r.Z)
}

// finitePull2 ignores components without an error estimate.
func finitePull2(d Double) float64 {
	if d.Error == 0 {
		return 0
	}
	r := d.Value / d.Error
	return r * r
}

// Chi2s returns the per-point chi2 of ps, following the azimuth from point
// to point.
func (h Helix) Chi2s(ps []Point) []float64 {
	out := make([]float64, 0, len(ps))
	var ref float64
	for i, p := range ps {
		phi := h.PhiOfPoint(p, ref)
		if i == 0 {
			phi = h.PhiOfPoint(p, 0)
		}
		ref = phi.Value
		out = append(out, h.Chi2(p, ref))
	}
	return out
}

// Invert returns the helix travelled in the opposite direction. The curve
// itself does not change.
func (h Helix) Invert() Helix {
	return h
}

// ArcLength returns the path length between two azimuths.
func (h Helix) ArcLength(phiA, phiB Double) Double {
	step := h.Radius.Square().Add(h.Pitch.Square()).Sqrt()
	return step.Mul(phiB.Sub(phiA).Abs())
}

// IntersectPlaneZ returns the point where the helix crosses the plane
// z = z0 nearest in azimuth to from. It reports false when the circle does
// not reach the plane.
func (h Helix) IntersectPlaneZ(z0 float64, from Point) (Point, bool) {
	if h.Radius.Value <= 0 {
		return Point{}, false
	}
	s := (z0 - h.Center.Z.Value) / h.Radius.Value
	if s < -1 || s > 1 {
		return Point{}, false
	}
	ref := h.PhiOfPoint(from, 0).Value
	a := NearAngle(math.Asin(s), ref)
	b := NearAngle(math.Pi-math.Asin(s), ref)
	phi := a
	if math.Abs(b-ref) < math.Abs(a-ref) {
		phi = b
	}
	errPhi := h.PhiOfPoint(from, ref).Error
	p := h.Position(D(phi, errPhi))
	p.Z = D(z0, p.Z.Error)
	return p, true
}

// IntersectLineZ returns the point of the infinite line through l at z = z0.
func IntersectLineZ(l Line, z0 float64) (Point, bool) {
	axis := l.ForwardAxis()
	if axis.Z.Value == 0 {
		return Point{}, false
	}
	t := (z0 - l.A.Z.Value) / axis.Z.Value
	p := VectorOf(l.A).Add(axis.Scale(t)).Point()
	p.Z = D(z0, p.Z.Error)
	return p, true
}

// IntersectCircle returns the crossing of c and o whose azimuth around c is
// nearest to that of from. It reports false when the circles do not meet.
func (c Circle) IntersectCircle(o Circle, from Point) (Point, bool) {
	d := c.Center.HorDistance(o.Center).Value
	r0, r1 := c.Radius.Value, o.Radius.Value
	if d == 0 || d > r0+r1 || d < math.Abs(r0-r1) {
		return Point{}, false
	}
	a := (r0*r0 - r1*r1 + d*d) / (2 * d)
	h := math.Sqrt(math.Max(r0*r0-a*a, 0))
	ux := (o.Center.X.Value - c.Center.X.Value) / d
	uz := (o.Center.Z.Value - c.Center.Z.Value) / d
	mx := c.Center.X.Value + a*ux
	mz := c.Center.Z.Value + a*uz

	ref := c.PhiOfPoint(from, 0)
	best := Double{}
	for i, s := range []float64{1, -1} {
		p := Point{X: D(mx+s*h*uz, 0), Z: D(mz-s*h*ux, 0)}
		phi := c.PhiOfPoint(p, ref.Value)
		if i == 0 || math.Abs(phi.Value-ref.Value) < math.Abs(best.Value-ref.Value) {
			best = phi
		}
	}
	best.Error = ref.Error
	return c.Position(best), true
}

// DeltaPhi is the azimuth advance from a to b along the helix.
func (h Helix) DeltaPhi(a, b Point) Double {
	phiA := h.PhiOfPoint(a, 0)
	phiB := h.PhiOfPoint(b, phiA.Value)
	return phiB.Sub(phiA)
}

// IntersectCircle returns the point where the helix meets the vertical
// cylinder over o, nearest in azimuth to from.
func (h Helix) IntersectCircle(o Circle, from Point) (Point, bool) {
	p, ok := h.Circle().IntersectCircle(o, from)
	if !ok {
		return Point{}, false
	}
	ref := h.PhiOfPoint(from, 0)
	return h.Position(h.PhiOfPoint(p, ref.Value)), true
}

// AbsZRange returns the smallest and largest |z| the helix reaches between
// the azimuths of a and b.
func (h Helix) AbsZRange(a, b Point) (lo, hi float64) {
	phiA := h.PhiOfPoint(a, 0).Value
	phiB := h.PhiOfPoint(b, phiA).Value
	if phiB < phiA {
		phiA, phiB = phiB, phiA
	}
	zAt := func(phi float64) float64 {
		return h.Center.Z.Value + h.Radius.Value*math.Sin(phi)
	}
	zmin, zmax := math.Min(zAt(phiA), zAt(phiB)), math.Max(zAt(phiA), zAt(phiB))
	// sin is stationary at π/2 + kπ.
	for k := math.Ceil((phiA - math.Pi/2) / math.Pi); math.Pi/2+k*math.Pi <= phiB; k++ {
		z := zAt(math.Pi/2 + k*math.Pi)
		zmin = math.Min(zmin, z)
		zmax = math.Max(zmax, z)
	}
	switch {
	case zmin >= 0:
		return zmin, zmax
	case zmax <= 0:
		return -zmax, -zmin
	}
	return 0, math.Max(-zmin, zmax)
}
