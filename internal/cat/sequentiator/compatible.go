package sequentiator

import (
	"math"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
)

// maxKinkDeg is the largest turn allowed between the incoming and the
// outgoing segment of a step.
const maxKinkDeg = 90.0

// compatible reports whether joint j continues seq onto cell cc. On
// success the joint's first two points are moved to the averaged
// positions on the last two cells. The joint's local chi2 is recorded
// either way.
func (r *run) compatible(seq *topology.Sequence, j *topology.Joint, cc topology.Cell) bool {
	s := len(seq.Nodes)
	if s < 2 {
		return false
	}
	second, last := seq.Nodes[s-2], seq.Nodes[s-1]
	ca, cb := second.Cell, last.Cell

	ndof := 2
	useTheta := !(ca.UnknownVertical() || cb.UnknownVertical() || cc.UnknownVertical())
	if !useTheta {
		ndof--
	}

	if !ca.Small() && !ca.SameQuadrant(second.EP, j.A) {
		return false
	}
	if !cb.Small() && !cb.SameQuadrant(last.EP, j.B) {
		return false
	}

	pa, pb := j.A, j.B
	var chi2, dA, dAlpha float64
	if s > 2 {
		if !ca.Small() && !ca.Intersect(cb) {
			var sep geom.Double
			pa, sep = ca.AngularAverage(second.EP, j.A)
			chi2 += separationChi2(sep)
			ndof++
		}
		if !cb.Small() && !cb.Intersect(ca) && !cb.Intersect(cc) {
			var sep geom.Double
			pb, sep = cb.AngularAverage(last.EP, j.B)
			chi2 += separationChi2(sep)
			ndof++
		}

		in := geom.NewVector(seq.Nodes[s-3].EP, second.EP)
		out := geom.NewVector(last.EP, j.C)
		if math.Abs(in.KinkPhi(out).Value)*180/math.Pi > maxKinkDeg {
			return false
		}
		dA, dAlpha = chi2Change(seq, pa, pb)
	}

	kink, phiOnly := geom.Line{A: pa, B: pb}.Chi2(geom.Line{A: pb, B: j.C}, useTheta)
	chi2 += kink
	prob := geom.Probof(chi2, ndof)
	j.Chi2, j.Ndof, j.P = chi2, ndof, prob
	seq.Chi2sAll = append(seq.Chi2sAll, chi2)
	seq.ProbsAll = append(seq.ProbsAll, prob)

	netProb := 1.0
	if net := chi2 + dA + dAlpha; net > 0 {
		netProb = geom.Probof(net, ndof)
	}
	if netProb > r.cfg.ProbMin && geom.Probof(phiOnly, 1) > r.cfg.ProbMin {
		j.A, j.B = pa, pb
		return true
	}
	return false
}

// separationChi2 is the squared pull of an azimuth separation.
func separationChi2(sep geom.Double) float64 {
	if sep.Error == 0 {
		if sep.Value == 0 {
			return 0
		}
		return math.Inf(1)
	}
	r := sep.Value / sep.Error
	return r * r
}

// chi2Change returns how the kink chi2 of the second-last node (dA) and
// of the node before it (dAlpha) change when the last two fitted points of
// seq move to newA and newB. A change that would make a chi2 negative is
// dropped.
func chi2Change(seq *topology.Sequence, newA, newB geom.Point) (dA, dAlpha float64) {
	s := len(seq.Nodes)
	if s < 3 {
		return 0, 0
	}
	alpha, a, b := seq.Nodes[s-3], seq.Nodes[s-2], seq.Nodes[s-1]
	useTheta := !(alpha.Cell.UnknownVertical() || a.Cell.UnknownVertical() || b.Cell.UnknownVertical())

	alphaA := geom.Line{A: alpha.EP, B: a.EP}
	old, _ := alphaA.Chi2(geom.Line{A: a.EP, B: b.EP}, useTheta)
	old = math.Min(old, a.Chi2)
	newAlphaA := geom.Line{A: alpha.EP, B: newA}
	nw, _ := newAlphaA.Chi2(geom.Line{A: newA, B: newB}, useTheta)
	dA = clampChange(old, nw-old)

	if s >= 4 {
		alpha0 := seq.Nodes[s-4]
		useTheta0 := !(alpha0.Cell.UnknownVertical() || alpha.Cell.UnknownVertical() || a.Cell.UnknownVertical())
		in := geom.Line{A: alpha0.EP, B: alpha.EP}
		old0, _ := in.Chi2(alphaA, useTheta0)
		old0 = math.Min(old0, alpha.Chi2)
		nw0, _ := in.Chi2(newAlphaA, useTheta0)
		dAlpha = clampChange(old0, nw0-old0)
	}
	return dA, dAlpha
}

func clampChange(old, d float64) float64 {
	if math.IsNaN(d) || old+d <= 0 {
		return 0
	}
	return d
}
