package topology

import "github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"

// Tangent is one candidate straight connection between two cells.
type Tangent struct {
	geom.Line
	Used bool `json:"used"`
}

// Joint is one candidate local solution through three cells: A on the
// first cell, B on the middle cell, C on the last.
type Joint struct {
	A    geom.Point `json:"a"`
	B    geom.Point `json:"b"`
	C    geom.Point `json:"c"`
	Used bool       `json:"used"`
	Chi2 float64    `json:"chi2"`
	Ndof int        `json:"ndof"`
	P    float64    `json:"p"`
}

// Invert returns the joint travelled from C to A.
func (j Joint) Invert() Joint {
	out := j
	out.A, out.C = j.C, j.A
	return out
}

// KinkPhi is the horizontal turning angle at B.
func (j Joint) KinkPhi() geom.Double {
	return geom.Line{A: j.A, B: j.B}.KinkPhi(geom.Line{A: j.B, B: j.C})
}

// KinkTheta is the change of elevation at B.
func (j Joint) KinkTheta() geom.Double {
	return geom.Line{A: j.A, B: j.B}.KinkTheta(geom.Line{A: j.B, B: j.C})
}

// Alternatives is the state shared by couplets and triplets: an ordered
// list of candidate solutions consumed one at a time.
type Alternatives interface {
	Size() int
	// Iteration is the index of the first unused alternative, or Size()
	// when all have been used.
	Iteration() int
	IsFree() bool
	IsBegun() bool
	SetFree(bool)
	SetBegun(bool)
	// SetAllUsed marks every alternative used and latches begun.
	SetAllUsed()
	// IncreaseIteration marks the next unused alternative used. It
	// reports false when none was left.
	IncreaseIteration() bool
}

var (
	_ Alternatives = (*Couplet)(nil)
	_ Alternatives = (*Triplet)(nil)
)

// Couplet holds the tangents from CA to CB.
type Couplet struct {
	CA       Cell      `json:"ca"`
	CB       Cell      `json:"cb"`
	Tangents []Tangent `json:"tangents"`
	Free     bool      `json:"free"`
	Begun    bool      `json:"begun"`
}

func (c *Couplet) Size() int { return len(c.Tangents) }

func (c *Couplet) Iteration() int {
	for i, t := range c.Tangents {
		if !t.Used {
			return i
		}
	}
	return len(c.Tangents)
}

func (c *Couplet) IsFree() bool { return c.Free }
func (c *Couplet) IsBegun() bool { return c.Begun }
func (c *Couplet) SetFree(f bool) { c.Free = f }
func (c *Couplet) SetBegun(b bool) { c.Begun = b }

func (c *Couplet) SetAllUsed() {
	for i := range c.Tangents {
		c.Tangents[i].Used = true
	}
	c.Begun = true
}

func (c *Couplet) IncreaseIteration() bool {
	i := c.Iteration()
	if i >= len(c.Tangents) {
		return false
	}
	c.Tangents[i].Used = true
	return true
}

// Clone returns a deep copy.
func (c Couplet) Clone() Couplet {
	out := c
	out.Tangents = append([]Tangent(nil), c.Tangents...)
	return out
}

// Invert returns the couplet from CB to CA.
func (c Couplet) Invert() Couplet {
	out := Couplet{CA: c.CB, CB: c.CA, Free: c.Free, Begun: c.Begun}
	out.Tangents = make([]Tangent, len(c.Tangents))
	for i, t := range c.Tangents {
		out.Tangents[i] = Tangent{Line: t.Invert(), Used: t.Used}
	}
	return out
}

// Triplet holds the joints CA -> CB -> CC, where CB is the owning node.
type Triplet struct {
	CA     Cell      `json:"ca"`
	CB     Cell      `json:"cb"`
	CC     Cell      `json:"cc"`
	Joints []Joint   `json:"joints"`
	Free   bool      `json:"free"`
	Begun  bool      `json:"begun"`
	Chi2s  []float64 `json:"chi2s,omitempty"`
	Probs  []float64 `json:"probs,omitempty"`
}

func (t *Triplet) Size() int { return len(t.Joints) }

func (t *Triplet) Iteration() int {
	for i, j := range t.Joints {
		if !j.Used {
			return i
		}
	}
	return len(t.Joints)
}

func (t *Triplet) IsFree() bool { return t.Free }
func (t *Triplet) IsBegun() bool { return t.Begun }
func (t *Triplet) SetFree(f bool) { t.Free = f }
func (t *Triplet) SetBegun(b bool) { t.Begun = b }

func (t *Triplet) SetAllUsed() {
	for i := range t.Joints {
		t.Joints[i].Used = true
	}
	t.Begun = true
}

func (t *Triplet) IncreaseIteration() bool {
	i := t.Iteration()
	if i >= len(t.Joints) {
		return false
	}
	t.Joints[i].Used = true
	return true
}

// Connects reports whether the triplet joins cells a and c, in either order.
func (t *Triplet) Connects(a, c int) bool {
	return (t.CA.ID == a && t.CC.ID == c) || (t.CA.ID == c && t.CC.ID == a)
}

// Clone returns a deep copy.
func (t Triplet) Clone() Triplet {
	out := t
	out.Joints = append([]Joint(nil), t.Joints...)
	out.Chi2s = append([]float64(nil), t.Chi2s...)
	out.Probs = append([]float64(nil), t.Probs...)
	return out
}

// Invert returns the triplet CC -> CB -> CA.
func (t Triplet) Invert() Triplet {
	out := t.Clone()
	out.CA, out.CC = t.CC, t.CA
	for i := range out.Joints {
		out.Joints[i] = out.Joints[i].Invert()
	}
	return out
}
