package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// StraightRadius is the radius used to represent a straight track as a circle.
const StraightRadius = 1e8

var (
	// ErrTooFewPoints is returned when a fit has fewer points than parameters.
	ErrTooFewPoints = errors.New("geom: too few points for fit")
	// ErrCollinear is returned by FitCircle when the points lie on a line.
	// The returned circle is then a very large circle through the end points.
	ErrCollinear = errors.New("geom: points are collinear")
	// ErrOutOfOrder is returned by FitCircle when the points do not advance
	// monotonically in azimuth along the fitted circle.
	ErrOutOfOrder = errors.New("geom: points out of azimuthal order")
	// ErrDegenerate is returned when the normal equations are singular.
	ErrDegenerate = errors.New("geom: degenerate fit")
)

// weights returns 1/σx² + 1/σy² per point, falling back to 1 when the sum
// is not finite.
func weights(xs, ys []Double) []float64 {
	w := make([]float64, len(xs))
	for i := range xs {
		wi := 1/(xs[i].Error*xs[i].Error) + 1/(ys[i].Error*ys[i].Error)
		if math.IsNaN(wi) || math.IsInf(wi, 0) {
			wi = 1
		}
		w[i] = wi
	}
	return w
}

func values(ds []Double) []float64 {
	out := make([]float64, len(ds))
	for i, d := range ds {
		out[i] = d.Value
	}
	return out
}

// FitCircle fits a circle to the horizontal points (xs[i], zs[i]) with the
// weighted algebraic method and returns it. A non-nil error means the fit
// did not converge; the circle is still the best available estimate.
func FitCircle(xs, zs []Double) (Circle, error) {
	if len(xs) != len(zs) {
		return Circle{}, fmt.Errorf("geom: circle fit with %d x and %d z values", len(xs), len(zs))
	}
	if len(xs) < 3 {
		return Circle{}, ErrTooFewPoints
	}

	x, z := values(xs), values(zs)
	w := weights(xs, zs)

	sum := func(f func(i int) float64) float64 {
		terms := make([]float64, len(x))
		for i := range x {
			terms[i] = w[i] * f(i)
		}
		return floats.Sum(terms)
	}
	sw := floats.Sum(w)
	swx := floats.Dot(w, x)
	swz := floats.Dot(w, z)
	swxx := sum(func(i int) float64 { return x[i] * x[i] })
	swxz := sum(func(i int) float64 { return x[i] * z[i] })
	swzz := sum(func(i int) float64 { return z[i] * z[i] })
	swxzz := sum(func(i int) float64 { return x[i] * z[i] * z[i] })
	swxxz := sum(func(i int) float64 { return x[i] * x[i] * z[i] })
	swxxx := sum(func(i int) float64 { return x[i] * x[i] * x[i] })
	swzzz := sum(func(i int) float64 { return z[i] * z[i] * z[i] })

	a := sw*swxx - swx*swx
	b := sw*swxz - swx*swz
	c := sw*swzz - swz*swz
	d := (sw*swxzz - swx*swzz + sw*swxxx - swx*swxx) / 2
	e := (sw*swxxz - swz*swxx + sw*swzzz - swz*swzz) / 2

	for _, v := range []float64{a, b, c, d, e} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Circle{}, ErrDegenerate
		}
	}

	// a and c are weighted variances, so a*c - b² vanishes for collinear points.
	scale := (a + c) * (a + c)
	if scale == 0 {
		return Circle{}, ErrDegenerate
	}
	if math.Abs(a*c-b*b) <= 1e-9*scale {
		return straightCircle(xs, zs), ErrCollinear
	}

	var centre mat.VecDense
	normal := mat.NewDense(2, 2, []float64{a, b, b, c})
	if err := centre.SolveVec(normal, mat.NewVecDense(2, []float64{d, e})); err != nil {
		return Circle{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	xc, zc := centre.AtVec(0), centre.AtVec(1)

	var rsum float64
	for i := range x {
		rsum += math.Hypot(x[i]-xc, z[i]-zc)
	}
	circ := Circle{
		Center: Point{X: D(xc, 0), Y: D(0, 0), Z: D(zc, 0)},
		Radius: D(rsum/float64(len(x)), 0),
	}

	var ex, ez, er float64
	for i := range x {
		p := Point{X: xs[i], Z: zs[i]}
		r := NewVector(p, circ.Position(circ.PhiOfPoint(p, 0)))
		ex += r.X.Value * r.X.Value
		ez += r.Z.Value * r.Z.Value
		er += r.X.Value*r.X.Value + r.Z.Value*r.Z.Value
	}
	n := float64(len(x))
	circ.Center.X.Error = math.Sqrt(ex / n)
	circ.Center.Z.Error = math.Sqrt(ez / n)
	circ.Radius.Error = math.Sqrt(er / n)

	if !pointsInOrder(circ, xs, zs) {
		return circ, ErrOutOfOrder
	}
	return circ, nil
}

// straightCircle represents the line from the first to the last point as
// a circle of radius ~StraightRadius passing through both ends.
func straightCircle(xs, zs []Double) Circle {
	first := Point{X: xs[0], Z: zs[0]}
	last := Point{X: xs[len(xs)-1], Z: zs[len(zs)-1]}
	axis := NewVector(first, last).Hor()
	half := axis.Length().Value / 2
	u := axis.Unit()
	normal := Vector{X: u.Z.Neg(), Y: D(0, 0), Z: u.X}
	mid := VectorOf(first).Add(axis.Scale(0.5))
	centre := mid.Add(normal.Scale(StraightRadius)).Point()
	centre.Y = D(0, 0)
	return Circle{Center: centre, Radius: D(math.Hypot(StraightRadius, half), first.X.Error)}
}

// pointsInOrder checks that consecutive points advance in azimuth with the
// same sense as the overall first-to-last advance.
func pointsInOrder(c Circle, xs, zs []Double) bool {
	s := len(xs)
	if s < 3 {
		return true
	}
	pt := func(i int) Point { return Point{X: xs[i], Z: zs[i]} }

	second := c.PhiOfPoint(pt(1), 0)
	initial := c.PhiOfPoint(pt(0), second.Value)
	penultimate := c.PhiOfPoint(pt(s-2), initial.Value)
	final := c.PhiOfPoint(pt(s-1), penultimate.Value)
	overall := final.Sub(initial)

	phiA := initial
	for i := 1; i < s; i++ {
		phiA = c.PhiOfPoint(pt(i-1), phiA.Value)
		phiB := c.PhiOfPoint(pt(i), phiA.Value)
		prod := phiB.Sub(phiA).Mul(overall)
		if prod.Value < -prod.Error {
			return false
		}
	}
	return true
}

// LineFit is y = Y0 + Tangent*x.
type LineFit struct {
	Y0      Double `json:"y0"`
	Tangent Double `json:"tangent"`
}

// FitLine fits y against x, weighting each point by its y error.
func FitLine(xs, ys []Double) (LineFit, error) {
	if len(xs) != len(ys) {
		return LineFit{}, fmt.Errorf("geom: line fit with %d x and %d y values", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return LineFit{}, ErrTooFewPoints
	}
	x, y := values(xs), values(ys)
	w := make([]float64, len(ys))
	for i, v := range ys {
		w[i] = 1
		if v.Error > 0 {
			w[i] = 1 / (v.Error * v.Error)
		}
	}
	wx := make([]float64, len(x))
	floats.MulTo(wx, w, x)

	sw := floats.Sum(w)
	sx := floats.Sum(wx)
	sy := floats.Dot(w, y)
	sxx := floats.Dot(wx, x)
	sxy := floats.Dot(wx, y)

	delta := sw*sxx - sx*sx
	if delta <= 1e-12*math.Max(sw*sxx, 1e-300) {
		return LineFit{Y0: D(sy/sw, 1/math.Sqrt(sw))}, ErrDegenerate
	}
	return LineFit{
		Y0:      D((sxx*sy-sx*sxy)/delta, math.Sqrt(sxx/delta)),
		Tangent: D((sw*sxy-sx*sy)/delta, math.Sqrt(sw/delta)),
	}, nil
}

// Invert re-expresses the fit as x = Y0' + Tangent'*y. It reports false
// when the slope is zero.
func (f LineFit) Invert() (LineFit, bool) {
	if f.Tangent.Value == 0 {
		return LineFit{}, false
	}
	one := D(1, 0)
	return LineFit{
		Y0:      f.Y0.Neg().Div(f.Tangent),
		Tangent: one.Div(f.Tangent),
	}, true
}
