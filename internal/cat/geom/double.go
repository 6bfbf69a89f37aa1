package geom

import (
	"fmt"
	"math"
)

// Double is a measured value with its one-sigma uncertainty. Arithmetic
// propagates errors to first order assuming uncorrelated operands.
type Double struct {
	Value float64 `json:"value"`
	Error float64 `json:"error"`
}

// D builds a Double.
func D(value, err float64) Double {
	return Double{Value: value, Error: err}
}

// Add returns a + b.
func (a Double) Add(b Double) Double {
	return Double{Value: a.Value + b.Value, Error: math.Hypot(a.Error, b.Error)}
}

// Sub returns a - b.
func (a Double) Sub(b Double) Double {
	return Double{Value: a.Value - b.Value, Error: math.Hypot(a.Error, b.Error)}
}

// Mul returns a * b.
func (a Double) Mul(b Double) Double {
	return Double{
		Value: a.Value * b.Value,
		Error: math.Hypot(b.Value*a.Error, a.Value*b.Error),
	}
}

// Div returns a / b. Division by an exact zero yields ±Inf or NaN like float64.
func (a Double) Div(b Double) Double {
	v := a.Value / b.Value
	return Double{
		Value: v,
		Error: math.Hypot(a.Error/b.Value, a.Value*b.Error/(b.Value*b.Value)),
	}
}

// Scale multiplies value and error by k.
func (a Double) Scale(k float64) Double {
	return Double{Value: a.Value * k, Error: a.Error * math.Abs(k)}
}

// Neg flips the sign of the value.
func (a Double) Neg() Double {
	return Double{Value: -a.Value, Error: a.Error}
}

// Abs returns |a|.
func (a Double) Abs() Double {
	return Double{Value: math.Abs(a.Value), Error: a.Error}
}

// Square returns a².
func (a Double) Square() Double {
	return Double{Value: a.Value * a.Value, Error: 2 * math.Abs(a.Value) * a.Error}
}

// Sqrt returns √a. At zero the error is taken as √err to stay finite.
func (a Double) Sqrt() Double {
	v := math.Sqrt(a.Value)
	if v == 0 {
		return Double{Value: 0, Error: math.Sqrt(a.Error)}
	}
	return Double{Value: v, Error: a.Error / (2 * v)}
}

// Cos returns cos(a).
func (a Double) Cos() Double {
	return Double{Value: math.Cos(a.Value), Error: math.Abs(math.Sin(a.Value)) * a.Error}
}

// Sin returns sin(a).
func (a Double) Sin() Double {
	return Double{Value: math.Sin(a.Value), Error: math.Abs(math.Cos(a.Value)) * a.Error}
}

// Atan2 returns atan2(y, x) with propagated error.
func Atan2(y, x Double) Double {
	r2 := x.Value*x.Value + y.Value*y.Value
	v := math.Atan2(y.Value, x.Value)
	if r2 == 0 {
		return Double{Value: v, Error: math.Pi}
	}
	return Double{
		Value: v,
		Error: math.Sqrt(math.Pow(x.Value*y.Error, 2)+math.Pow(y.Value*x.Error, 2)) / r2,
	}
}

// IsNaN reports whether the value is not a number.
func (a Double) IsNaN() bool {
	return math.IsNaN(a.Value)
}

// Sign returns -1, 0 or +1 following the value.
func (a Double) Sign() int {
	switch {
	case a.Value > 0:
		return 1
	case a.Value < 0:
		return -1
	}
	return 0
}

func (a Double) String() string {
	return fmt.Sprintf("%.4g ± %.2g", a.Value, a.Error)
}

// Average returns the error-weighted mean of the values. Entries with zero
// error are weighted as if their error were 1.
func Average(vs []Double) Double {
	if len(vs) == 0 {
		return Double{}
	}
	var sw, swx float64
	for _, v := range vs {
		w := 1.0
		if v.Error > 0 {
			w = 1 / (v.Error * v.Error)
		}
		sw += w
		swx += w * v.Value
	}
	return Double{Value: swx / sw, Error: 1 / math.Sqrt(sw)}
}

// FixAngle wraps phi into (-π, π].
func FixAngle(phi float64) float64 {
	for phi > math.Pi {
		phi -= 2 * math.Pi
	}
	for phi <= -math.Pi {
		phi += 2 * math.Pi
	}
	return phi
}

// NearAngle shifts phi by multiples of 2π until it lies within π of ref.
func NearAngle(phi, ref float64) float64 {
	for phi-ref > math.Pi {
		phi -= 2 * math.Pi
	}
	for phi-ref < -math.Pi {
		phi += 2 * math.Pi
	}
	return phi
}
