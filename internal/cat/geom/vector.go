package geom

import "math"

// Point is a position with per-coordinate uncertainty. X and Z span the
// horizontal plane; Y runs along the wires.
type Point struct {
	X Double `json:"x"`
	Y Double `json:"y"`
	Z Double `json:"z"`
}

// P builds a Point with the given values and a common error.
func P(x, y, z, err float64) Point {
	return Point{X: D(x, err), Y: D(y, err), Z: D(z, err)}
}

// Distance returns the 3D distance to q.
func (p Point) Distance(q Point) Double {
	return NewVector(p, q).Length()
}

// HorDistance returns the distance to q projected on the x-z plane.
func (p Point) HorDistance(q Point) Double {
	return NewVector(p, q).Hor().Length()
}

// Vector is a displacement with per-component uncertainty.
type Vector struct {
	X Double `json:"x"`
	Y Double `json:"y"`
	Z Double `json:"z"`
}

// NewVector returns the vector from -> to.
func NewVector(from, to Point) Vector {
	return Vector{X: to.X.Sub(from.X), Y: to.Y.Sub(from.Y), Z: to.Z.Sub(from.Z)}
}

// VectorOf returns the position vector of p.
func VectorOf(p Point) Vector {
	return Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// Point converts the vector back to a position.
func (v Vector) Point() Point {
	return Point{X: v.X, Y: v.Y, Z: v.Z}
}

func (v Vector) Add(w Vector) Vector {
	return Vector{X: v.X.Add(w.X), Y: v.Y.Add(w.Y), Z: v.Z.Add(w.Z)}
}

func (v Vector) Sub(w Vector) Vector {
	return Vector{X: v.X.Sub(w.X), Y: v.Y.Sub(w.Y), Z: v.Z.Sub(w.Z)}
}

// Scale multiplies every component by k.
func (v Vector) Scale(k float64) Vector {
	return Vector{X: v.X.Scale(k), Y: v.Y.Scale(k), Z: v.Z.Scale(k)}
}

// ScaleD multiplies every component by a measured factor.
func (v Vector) ScaleD(k Double) Vector {
	return Vector{X: v.X.Mul(k), Y: v.Y.Mul(k), Z: v.Z.Mul(k)}
}

// Hor drops the longitudinal component.
func (v Vector) Hor() Vector {
	return Vector{X: v.X, Y: D(0, 0), Z: v.Z}
}

func (v Vector) Length2() Double {
	return v.X.Square().Add(v.Y.Square()).Add(v.Z.Square())
}

func (v Vector) Length() Double {
	return v.Length2().Sqrt()
}

// Unit returns v scaled to unit length. The zero vector is returned unchanged.
func (v Vector) Unit() Vector {
	l := v.Length().Value
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

func (v Vector) Dot(w Vector) Double {
	return v.X.Mul(w.X).Add(v.Y.Mul(w.Y)).Add(v.Z.Mul(w.Z))
}

func (v Vector) Cross(w Vector) Vector {
	return Vector{
		X: v.Y.Mul(w.Z).Sub(v.Z.Mul(w.Y)),
		Y: v.Z.Mul(w.X).Sub(v.X.Mul(w.Z)),
		Z: v.X.Mul(w.Y).Sub(v.Y.Mul(w.X)),
	}
}

// Phi is the azimuth in the horizontal plane, measured from +x towards +z.
func (v Vector) Phi() Double {
	return Atan2(v.Z, v.X)
}

// Theta is the elevation above the horizontal plane.
func (v Vector) Theta() Double {
	return Atan2(v.Y, v.Hor().Length())
}

// KinkPhi is the horizontal turning angle from v to w, wrapped into (-π, π].
func (v Vector) KinkPhi(w Vector) Double {
	d := w.Phi().Sub(v.Phi())
	d.Value = FixAngle(d.Value)
	return d
}

// KinkTheta is the change of elevation from v to w.
func (v Vector) KinkTheta(w Vector) Double {
	return w.Theta().Sub(v.Theta())
}

// IsNaN reports whether any component is not a number.
func (v Vector) IsNaN() bool {
	return v.X.IsNaN() || v.Y.IsNaN() || v.Z.IsNaN()
}

// Angle returns the unsigned angle between v and w in [0, π].
func (v Vector) Angle(w Vector) float64 {
	lv, lw := v.Length().Value, w.Length().Value
	if lv == 0 || lw == 0 {
		return 0
	}
	c := v.Dot(w).Value / (lv * lw)
	return math.Acos(math.Max(-1, math.Min(1, c)))
}
