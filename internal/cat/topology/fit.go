package topology

import (
	"errors"
	"math"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"
)

// momentumPerTeslaMM converts radius (mm) times field (tesla) to MeV/c.
const momentumPerTeslaMM = 0.3

// CalculateHelix fits a helix through the node points: a circle in x-z,
// then the azimuth against y, inverted to give the height at azimuth 0
// and the pitch. It reports whether the circle fit converged. A collinear
// chain counts as converged, with a very large radius.
func (s *Sequence) CalculateHelix() bool {
	s.HasHelix = false
	s.FitConverged = false
	if len(s.Nodes) < 3 {
		return false
	}
	pts := s.points()
	xs := make([]geom.Double, len(pts))
	ys := make([]geom.Double, len(pts))
	zs := make([]geom.Double, len(pts))
	for i, p := range pts {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}

	circ, err := geom.FitCircle(xs, zs)
	if circ.Radius.Value <= 0 || circ.Radius.IsNaN() {
		cat.Diagf("%s: no circle through %d nodes: %v", s.Name(), len(pts), err)
		return false
	}
	converged := err == nil || errors.Is(err, geom.ErrCollinear)
	if !converged {
		cat.Diagf("%s: circle fit not converged: %v", s.Name(), err)
	}

	phis := unwrappedPhis(circ, pts)
	y0, pitch := geom.Average(ys), geom.D(0, 0)
	if fit, err := geom.FitLine(ys, phis); err == nil {
		if inv, ok := fit.Invert(); ok {
			y0, pitch = inv.Y0, inv.Tangent
		}
	}

	s.Helix = geom.Helix{
		Center: geom.Point{X: circ.Center.X, Y: y0, Z: circ.Center.Z},
		Radius: circ.Radius,
		Pitch:  pitch,
	}
	s.HelixChi2s = s.Helix.Chi2s(pts)
	s.HasHelix = true
	s.FitConverged = converged
	return converged
}

// unwrappedPhis follows the azimuth from point to point so that no step
// jumps by more than π.
func unwrappedPhis(c geom.Circle, pts []geom.Point) []geom.Double {
	out := make([]geom.Double, len(pts))
	var ref float64
	for i, p := range pts {
		phi := c.PhiOfPoint(p, ref)
		ref = phi.Value
		out[i] = phi
	}
	return out
}

// CalculateCharge sets the tangent, helix and detailed charge estimates
// from the sense of rotation along the track.
func (s *Sequence) CalculateCharge() {
	s.HasCharge, s.HasHelixCharge, s.HasDetailed = false, false, false
	n := len(s.Nodes)
	if n < 3 {
		return
	}
	vi := geom.NewVector(s.Nodes[0].EP, s.Nodes[1].EP)
	vf := geom.NewVector(s.Nodes[n-2].EP, s.Nodes[n-1].EP)
	if d := vi.KinkPhi(vf); d.Value != 0 {
		s.Charge, s.HasCharge = unitCharge(d), true
	}

	if s.HasHelix {
		phis := unwrappedPhis(s.Helix.Circle(), s.points())
		if d := phis[n-1].Sub(phis[0]); d.Value != 0 {
			s.HelixCharge, s.HasHelixCharge = unitCharge(d), true
		}
	}

	var signs []geom.Double
	for i := 0; i+2 < n; i++ {
		a := geom.NewVector(s.Nodes[i].EP, s.Nodes[i+1].EP)
		b := geom.NewVector(s.Nodes[i+1].EP, s.Nodes[i+2].EP)
		if d := a.KinkPhi(b); d.Value != 0 {
			signs = append(signs, unitCharge(d))
		}
	}
	s.DetailedCharge = geom.Double{}
	if avg := geom.Average(signs); avg.Value != 0 {
		s.DetailedCharge, s.HasDetailed = unitCharge(avg), true
	}
	cat.Tracef("%s: charge %v helix %v detailed %v", s.Name(), s.Charge, s.HelixCharge, s.DetailedCharge)
}

func unitCharge(d geom.Double) geom.Double {
	return geom.D(float64(d.Sign()), d.Error/math.Abs(d.Value))
}

// ChargeEstimate returns the tangent charge, falling back to the helix and
// then the detailed estimate when the simpler ones are undefined.
func (s Sequence) ChargeEstimate() (geom.Double, bool) {
	switch {
	case s.HasCharge:
		return s.Charge, true
	case s.HasHelixCharge:
		return s.HelixCharge, true
	case s.HasDetailed:
		return s.DetailedCharge, true
	}
	return geom.Double{}, false
}

// InitialDir is the unit direction at the start of the track, taken from
// the helix vertex when one is attached.
func (s Sequence) InitialDir() geom.Vector {
	if len(s.Nodes) < 2 {
		return geom.Vector{}
	}
	if s.HelixVertex.Set {
		return geom.NewVector(s.HelixVertex.Point, s.Nodes[0].EP).Unit()
	}
	return geom.NewVector(s.Nodes[0].EP, s.Nodes[1].EP).Unit()
}

// FinalDir is the unit direction at the end of the track.
func (s Sequence) FinalDir() geom.Vector {
	n := len(s.Nodes)
	if n < 2 {
		return geom.Vector{}
	}
	if s.DecayHelixVertex.Set {
		return geom.NewVector(s.Nodes[n-1].EP, s.DecayHelixVertex.Point).Unit()
	}
	return geom.NewVector(s.Nodes[n-2].EP, s.Nodes[n-1].EP).Unit()
}

// CalculateMomentum sets the momentum (MeV/c) from the helix in a field of
// bfield tesla, along the initial direction. A NaN result is stored as the
// zero vector with HasMomentum unset.
func (s *Sequence) CalculateMomentum(bfield float64) {
	s.HasMomentum = false
	if !s.HasHelix {
		return
	}
	mom := s.Helix.Radius.Square().Add(s.Helix.Pitch.Square()).Sqrt().Scale(momentumPerTeslaMM * bfield)
	s.Momentum = s.InitialDir().ScaleD(mom)
	if s.Momentum.IsNaN() {
		cat.Diagf("%s: momentum is NaN, set to 0", s.Name())
		s.Momentum = geom.Vector{}
		return
	}
	s.HasMomentum = true
}

// CalculateLength sets the helix arc length and the polyline length, both
// extended to the attached vertices.
func (s *Sequence) CalculateLength() {
	n := len(s.Nodes)
	if n >= 3 && s.HasHelix {
		pts := s.points()
		if s.HelixVertex.Set {
			pts = append([]geom.Point{s.HelixVertex.Point}, pts...)
		}
		if s.DecayHelixVertex.Set {
			pts = append(pts, s.DecayHelixVertex.Point)
		}
		phis := unwrappedPhis(s.Helix.Circle(), pts)
		s.HelixLength = s.Helix.ArcLength(phis[0], phis[len(phis)-1])
		s.HasHelixLength = true
	}
	if n >= 2 {
		tl := geom.D(0, 0)
		for i := 1; i < n; i++ {
			tl = tl.Add(s.Nodes[i].EP.Distance(s.Nodes[i-1].EP))
		}
		if s.TangentVertex.Set {
			tl = tl.Add(s.TangentVertex.Point.Distance(s.Nodes[0].EP))
		}
		if s.DecayTangentVertex.Set {
			tl = tl.Add(s.Nodes[n-1].EP.Distance(s.DecayTangentVertex.Point))
		}
		s.Length, s.HasLength = tl, true
	}
}

// HelixAtZ extrapolates the helix from the last node (atEnd) or the first
// node to the plane z = z0.
func (s Sequence) HelixAtZ(z0 float64, atEnd bool) (geom.Point, bool) {
	if !s.HasHelix || len(s.Nodes) == 0 {
		return geom.Point{}, false
	}
	from := s.Nodes[0].EP
	if atEnd {
		from = s.Nodes[len(s.Nodes)-1].EP
	}
	return s.Helix.IntersectPlaneZ(z0, from)
}

// TangentAtZ extends the straight end segment from the last node (atEnd)
// or the first node to the plane z = z0. Only forward crossings count.
func (s Sequence) TangentAtZ(z0 float64, atEnd bool) (geom.Point, bool) {
	n := len(s.Nodes)
	if n < 2 {
		return geom.Point{}, false
	}
	l := geom.Line{A: s.Nodes[1].EP, B: s.Nodes[0].EP}
	if atEnd {
		l = geom.Line{A: s.Nodes[n-2].EP, B: s.Nodes[n-1].EP}
	}
	p, ok := geom.IntersectLineZ(l, z0)
	if !ok {
		return geom.Point{}, false
	}
	if geom.NewVector(l.B, p).Dot(l.ForwardAxis()).Value < 0 {
		return geom.Point{}, false
	}
	return p, true
}

// AttachVertex stores v as the helix or tangent vertex at the start or
// the end of the track.
func (s *Sequence) AttachVertex(v Vertex, tangent, atEnd bool) {
	v.Set = true
	switch {
	case tangent && atEnd:
		s.DecayTangentVertex = v
	case tangent:
		s.TangentVertex = v
	case atEnd:
		s.DecayHelixVertex = v
	default:
		s.HelixVertex = v
	}
}
