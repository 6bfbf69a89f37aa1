package topology

import "github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"

// TopologicalType classifies a node by the links the cluster found for it.
type TopologicalType string

const (
	TypeIsolated    TopologicalType = "ISOLATED"
	TypeVertex      TopologicalType = "VERTEX"
	TypeMultiVertex TopologicalType = "MULTI_VERTEX"
	TypeBridge      TopologicalType = "BRIDGE"
	TypeOther       TopologicalType = "OTHER"
)

// Link is a candidate next cell of a node within one sequence.
type Link struct {
	Cell  Cell `json:"cell"`
	Free  bool `json:"free"`
	Begun bool `json:"begun"`
}

// Node is a cell bound into one position of one sequence. Couplets are
// used at position 0, triplets everywhere else.
type Node struct {
	Cell     Cell       `json:"cell"`
	Couplets []Couplet  `json:"couplets,omitempty"`
	Triplets []Triplet  `json:"triplets,omitempty"`
	Links    []Link     `json:"links,omitempty"`
	Free     bool       `json:"free"`
	IsKink   bool       `json:"is_kink"`
	Chi2     float64    `json:"chi2"`
	Ndof     int        `json:"ndof"`
	EP       geom.Point `json:"ep"`
}

// NewNode returns a node for c whose fitted point starts at the wire.
func NewNode(c Cell) Node {
	return Node{Cell: c, EP: c.PointEP()}
}

// Prob is the chi-square probability of the node's local fit.
func (n Node) Prob() float64 {
	return geom.Probof(n.Chi2, n.Ndof)
}

func (n Node) TopologicalType() TopologicalType {
	switch {
	case len(n.Couplets) == 0:
		return TypeIsolated
	case len(n.Triplets) == 0 && len(n.Couplets) == 1:
		return TypeVertex
	case len(n.Triplets) == 0:
		return TypeMultiVertex
	case len(n.Triplets) == 1:
		return TypeBridge
	}
	return TypeOther
}

// Clone returns a deep copy that shares no slices with n.
func (n Node) Clone() Node {
	out := n
	if n.Couplets != nil {
		out.Couplets = make([]Couplet, len(n.Couplets))
		for i, c := range n.Couplets {
			out.Couplets[i] = c.Clone()
		}
	}
	if n.Triplets != nil {
		out.Triplets = make([]Triplet, len(n.Triplets))
		for i, t := range n.Triplets {
			out.Triplets[i] = t.Clone()
		}
	}
	out.Links = append([]Link(nil), n.Links...)
	return out
}

// CoupletIndex returns the index of the couplet towards cell id.
func (n Node) CoupletIndex(id int) (int, bool) {
	for i, c := range n.Couplets {
		if c.CB.ID == id {
			return i, true
		}
	}
	return 0, false
}

// TripletIndex returns the index of the triplet joining cells a and c.
func (n Node) TripletIndex(a, c int) (int, bool) {
	for i := range n.Triplets {
		if n.Triplets[i].Connects(a, c) {
			return i, true
		}
	}
	return 0, false
}

// HasTripletWith reports whether any triplet of n has id at one of its ends.
func (n Node) HasTripletWith(id int) bool {
	for _, t := range n.Triplets {
		if t.CA.ID == id || t.CC.ID == id {
			return true
		}
	}
	return false
}

// RemoveCouplet drops the couplet at index i.
func (n *Node) RemoveCouplet(i int) {
	if i < 0 || i >= len(n.Couplets) {
		return
	}
	n.Couplets = append(n.Couplets[:i:i], n.Couplets[i+1:]...)
}

// AddTriplet appends t.
func (n *Node) AddTriplet(t Triplet) {
	n.Triplets = append(n.Triplets, t)
}

// Strip returns the node without couplets, triplets or links, the form a
// node takes once its sequence is inverted or merged.
func (n Node) Strip() Node {
	out := n
	out.Couplets = nil
	out.Triplets = nil
	out.Links = nil
	return out
}
