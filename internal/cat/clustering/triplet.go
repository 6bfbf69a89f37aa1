package clustering

import (
	"math"
	"sort"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
)

const (
	reversalCutDeg = 60.
	alongCutDeg    = 30.
)

func degrees(d geom.Double) float64 {
	return d.Value * 180 / math.Pi
}

// perpendicular reports whether phi (degrees) is within alongCutDeg of a
// right angle.
func perpendicular(phi float64) bool {
	return math.Abs(phi-90) < alongCutDeg || math.Abs(phi+90) < alongCutDeg || math.Abs(phi-270) < alongCutDeg
}

// NewTriplet combines the tangents of ba (from cb to ca) with those of bc
// (from cb to cc) into joints through cb. Every combination is scored; the
// ones above ProbMin are refined into at most two joints, best first.
func (cfg Config) NewTriplet(ca, cb, cc topology.Cell, ba, bc topology.Couplet) topology.Triplet {
	t := topology.Triplet{CA: ca, CB: cb, CC: cc}
	intersectAB := ca.Intersect(cb)
	intersectBC := cb.Intersect(cc)
	axisBA := geom.NewVector(cb.EP, ca.EP).Hor()
	axisBC := geom.NewVector(cb.EP, cc.EP).Hor()
	useTheta := !(ca.UnknownVertical() || cb.UnknownVertical() || cc.UnknownVertical())

	var joints []topology.Joint
	for _, t1 := range ba.Tangents {
		for _, t2 := range bc.Tangents {
			a := t1.ForwardAxis().Hor()
			d := t2.ForwardAxis().Hor()
			// both tangents leaving cb the same way would reverse the track
			if math.Abs(degrees(a.KinkPhi(d))) < reversalCutDeg {
				continue
			}

			withSeparation := true
			switch {
			case cb.Small():
				withSeparation = false
			case intersectAB:
				if perpendicular(degrees(a.KinkPhi(axisBA))) &&
					math.Abs(degrees(axisBA.KinkPhi(axisBC))) < reversalCutDeg {
					continue
				}
			case intersectBC:
				if perpendicular(degrees(d.KinkPhi(axisBC))) &&
					math.Abs(degrees(axisBC.KinkPhi(axisBA))) < reversalCutDeg {
					continue
				}
			}

			ndof := 2
			if withSeparation {
				ndof++
			}
			if !useTheta {
				ndof--
			}

			var p geom.Point
			var sep geom.Double
			if cb.Small() {
				p = wirePoint(cb)
			} else {
				p, sep = cb.AngularAverage(t1.A, t2.A)
			}
			in := geom.Line{A: t1.B, B: p}
			out := geom.Line{A: p, B: t2.B}

			chi2, _ := in.Chi2(out, useTheta)
			if withSeparation && sep.Error > 0 {
				r := sep.Value / sep.Error
				chi2 += r * r
			}
			prob := geom.Probof(chi2, ndof)
			t.Chi2s = append(t.Chi2s, chi2)
			t.Probs = append(t.Probs, prob)
			if prob <= cfg.ProbMin {
				continue
			}
			joints = append(joints, topology.Joint{A: in.A, B: p, C: out.B, Chi2: chi2, Ndof: ndof, P: prob})
		}
	}
	t.Joints = cfg.refine(t, joints, intersectAB && intersectBC)
	if len(t.Joints) > 0 {
		cat.Tracef("triplet %d -> %d -> %d: %d joints", ca.ID, cb.ID, cc.ID, len(t.Joints))
	}
	return t
}

// refine drops a joint when another one reaches the same quadrants of the
// outer cells, passes the middle cell on the other side, and bends less.
// The rest is ordered by chi2 and cut to two; the second is dropped when
// its chi2 exceeds the best by more than Ratio, unless both pairs of cells
// intersect.
func (cfg Config) refine(t topology.Triplet, joints []topology.Joint, bothIntersect bool) []topology.Joint {
	var out []topology.Joint
	for i, ji := range joints {
		larger := false
		for j, jj := range joints {
			if i == j {
				continue
			}
			if !t.CA.SameQuadrant(ji.A, jj.A) || t.CB.SameQuadrant(ji.B, jj.B) || !t.CC.SameQuadrant(ji.C, jj.C) {
				continue
			}
			delta := ji.KinkPhi().Abs().Sub(jj.KinkPhi().Abs())
			if delta.Value > delta.Error {
				larger = true
				break
			}
		}
		if !larger {
			out = append(out, ji)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Chi2 < out[j].Chi2 })
	if len(out) > 2 {
		out = out[:2]
	}
	if len(out) == 2 &&
		t.CA.SameQuadrant(out[0].A, out[1].A) &&
		t.CC.SameQuadrant(out[0].C, out[1].C) &&
		!bothIntersect &&
		out[1].Chi2/out[0].Chi2 > cfg.Ratio {
		out = out[:1]
	}
	return out
}
