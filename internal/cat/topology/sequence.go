package topology

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"
)

// VertexKind names what a track end was attached to.
type VertexKind string

const (
	VertexFoil VertexKind = "foil"
	VertexCalo VertexKind = "calo"
	VertexKink VertexKind = "kink"
)

// Vertex is an extrapolated track end. CaloID is meaningful only for calo
// vertices.
type Vertex struct {
	Point  geom.Point `json:"point"`
	Kind   VertexKind `json:"kind,omitempty"`
	CaloID int        `json:"calo_id,omitempty"`
	Set    bool       `json:"set"`
}

// IsCalo reports whether the vertex sits on a calorimeter hit.
func (v Vertex) IsCalo() bool { return v.Set && v.Kind == VertexCalo }

// IsFoil reports whether the vertex sits on the source foil.
func (v Vertex) IsFoil() bool { return v.Set && v.Kind == VertexFoil }

// Sequence is an ordered chain of nodes forming one track candidate.
type Sequence struct {
	Nodes []Node   `json:"nodes"`
	Free  bool     `json:"free"`
	Names []string `json:"names"`

	// Chi2s and Probs hold one entry per accepted growth step.
	Chi2s []float64 `json:"chi2s"`
	Probs []float64 `json:"probs"`
	// Chi2sAll and ProbsAll hold every compatibility evaluation.
	Chi2sAll   []float64 `json:"chi2s_all,omitempty"`
	ProbsAll   []float64 `json:"probs_all,omitempty"`
	HelixChi2s []float64 `json:"helix_chi2s,omitempty"`

	Helix          geom.Helix  `json:"helix"`
	HasHelix       bool        `json:"has_helix"`
	FitConverged   bool        `json:"fit_converged"`
	Charge         geom.Double `json:"charge"`
	HasCharge      bool        `json:"has_charge"`
	HelixCharge    geom.Double `json:"helix_charge"`
	HasHelixCharge bool        `json:"has_helix_charge"`
	DetailedCharge geom.Double `json:"detailed_charge"`
	HasDetailed    bool        `json:"has_detailed_charge"`
	Momentum       geom.Vector `json:"momentum"`
	HasMomentum    bool        `json:"has_momentum"`
	Length         geom.Double `json:"length"`
	HelixLength    geom.Double `json:"helix_length"`
	HasLength      bool        `json:"has_length"`
	HasHelixLength bool        `json:"has_helix_length"`

	HelixVertex        Vertex `json:"helix_vertex"`
	DecayHelixVertex   Vertex `json:"decay_helix_vertex"`
	TangentVertex      Vertex `json:"tangent_vertex"`
	DecayTangentVertex Vertex `json:"decay_tangent_vertex"`
}

// NewSequence starts a sequence on node n.
func NewSequence(n Node) Sequence {
	n.Free = false
	return Sequence{Nodes: []Node{n}}
}

// Clone returns a deep copy.
func (s Sequence) Clone() Sequence {
	out := s
	out.Nodes = make([]Node, len(s.Nodes))
	for i, n := range s.Nodes {
		out.Nodes[i] = n.Clone()
	}
	out.Names = slices.Clone(s.Names)
	out.Chi2s = slices.Clone(s.Chi2s)
	out.Probs = slices.Clone(s.Probs)
	out.Chi2sAll = slices.Clone(s.Chi2sAll)
	out.ProbsAll = slices.Clone(s.ProbsAll)
	out.HelixChi2s = slices.Clone(s.HelixChi2s)
	return out
}

// Name is the first name, or "" for an unnamed sequence.
func (s Sequence) Name() string {
	if len(s.Names) == 0 {
		return ""
	}
	return s.Names[0]
}

// SetName replaces all names with name.
func (s *Sequence) SetName(name string) {
	s.Names = []string{name}
}

// AddName records another name, typically after a merge.
func (s *Sequence) AddName(name string) {
	if name == "" || slices.Contains(s.Names, name) {
		return
	}
	s.Names = append(s.Names, name)
}

// MakeName formats the name of copy ncopy in family nfamily.
func MakeName(nfamily, ncopy int) string {
	return fmt.Sprintf("track_%d_%d", nfamily, ncopy)
}

// FamilyOf parses the family number of a name, or -1.
func FamilyOf(name string) int {
	rest, ok := strings.CutPrefix(name, "track_")
	if !ok {
		return -1
	}
	fam, _, _ := strings.Cut(rest, "_")
	n, err := strconv.Atoi(fam)
	if err != nil {
		return -1
	}
	return n
}

// Family is the family of the first name.
func (s Sequence) Family() int {
	return FamilyOf(s.Name())
}

// Families lists the family of every name, in name order.
func (s Sequence) Families() []int {
	out := make([]int, 0, len(s.Names))
	for _, n := range s.Names {
		if f := FamilyOf(n); f >= 0 && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// SameFamilies reports whether the two sequences share any family.
func (s Sequence) SameFamilies(o Sequence) bool {
	for _, f := range s.Families() {
		if slices.Contains(o.Families(), f) {
			return true
		}
	}
	return false
}

func (s Sequence) Chi2() float64 {
	var chi2 float64
	for _, n := range s.Nodes {
		chi2 += n.Chi2
	}
	return chi2
}

func (s Sequence) Ndof() int {
	var ndof int
	for _, n := range s.Nodes {
		ndof += n.Ndof
	}
	return ndof
}

// Prob is the probability of the summed node chi2.
func (s Sequence) Prob() float64 {
	return geom.Probof(s.Chi2(), s.Ndof())
}

func (s Sequence) HelixChi2() float64 {
	var chi2 float64
	for _, c := range s.HelixChi2s {
		chi2 += c
	}
	return chi2
}

// HelixNdof is nine per node beyond the first two.
func (s Sequence) HelixNdof() int {
	if len(s.Nodes) <= 2 {
		return 0
	}
	return 9 * (len(s.Nodes) - 2)
}

func (s Sequence) HelixProb() float64 {
	return geom.Probof(s.HelixChi2(), s.HelixNdof())
}

// Fast reports whether the sequence starts on a prompt hit.
func (s Sequence) Fast() bool {
	if len(s.Nodes) == 0 {
		return true
	}
	return s.Nodes[0].Cell.Fast()
}

func (s Sequence) node(i int, what string) Node {
	if i < 0 || i >= len(s.Nodes) {
		cat.Diagf("%s: no %s node in a sequence of %d nodes", s.Name(), what, len(s.Nodes))
		return Node{}
	}
	return s.Nodes[i]
}

// LastNode returns the tail node, or a zero Node when empty.
func (s Sequence) LastNode() Node { return s.node(len(s.Nodes)-1, "last") }

func (s Sequence) SecondLastNode() Node { return s.node(len(s.Nodes)-2, "second last") }

// MiddleNode returns node s/2 for an even size and (s-1)/2 for an odd size.
func (s Sequence) MiddleNode() Node { return s.node(len(s.Nodes)/2, "middle") }

// HasCell reports whether the cell appears in any node.
func (s Sequence) HasCell(c Cell) bool {
	return s.NodeIndex(c.ID) >= 0
}

// NodeIndex returns the position of the node on cell id, or -1.
func (s Sequence) NodeIndex(id int) int {
	for i, n := range s.Nodes {
		if n.Cell.ID == id {
			return i
		}
	}
	return -1
}

// HasKink reports whether any node was flagged as a kink by a merge.
func (s Sequence) HasKink() bool {
	for _, n := range s.Nodes {
		if n.IsKink {
			return true
		}
	}
	return false
}

// PhiKink is the horizontal turning angle (degrees) at node i.
func (s Sequence) PhiKink(i int) float64 {
	if i <= 0 || i >= len(s.Nodes)-1 {
		return 0
	}
	l1 := geom.Line{A: s.Nodes[i-1].EP, B: s.Nodes[i].EP}
	l2 := geom.Line{A: s.Nodes[i].EP, B: s.Nodes[i+1].EP}
	return math.Abs(l1.KinkPhi(l2).Value) * 180 / math.Pi
}

// Invert returns the sequence travelled backwards. Node alternatives are
// dropped, the step history is reversed, vertices swap ends and the
// charges and momentum change sign.
func (s Sequence) Invert() Sequence {
	out := s.Clone()
	n := len(s.Nodes)
	for i := range s.Nodes {
		out.Nodes[i] = s.Nodes[n-1-i].Strip()
	}
	slices.Reverse(out.Chi2s)
	slices.Reverse(out.Probs)
	slices.Reverse(out.HelixChi2s)

	out.Helix = s.Helix.Invert()
	out.Charge = s.Charge.Neg()
	out.HelixCharge = s.HelixCharge.Neg()
	out.DetailedCharge = s.DetailedCharge.Neg()
	out.Momentum = s.Momentum.Scale(-1)

	out.HelixVertex, out.DecayHelixVertex = s.DecayHelixVertex, s.HelixVertex
	out.TangentVertex, out.DecayTangentVertex = s.DecayTangentVertex, s.TangentVertex
	return out
}

// Contained reports whether s is redundant given big: every cell of s is
// in big and s is not longer. At equal size both must end in the same
// quadrants and s must be the worse of the two.
func (s Sequence) Contained(big Sequence) bool {
	if len(s.Nodes) > len(big.Nodes) {
		return false
	}
	for _, n := range s.Nodes {
		if !big.HasCell(n.Cell) {
			return false
		}
	}
	if len(s.Nodes) == len(big.Nodes) {
		return s.sameExtremeQuadrants(big) && s.worseThan(big)
	}
	return true
}

// sameExtremeQuadrants compares the fitted end points of s and o on the
// cells at either end of s, whichever way o runs.
func (s Sequence) sameExtremeQuadrants(o Sequence) bool {
	if len(s.Nodes) == 0 {
		return true
	}
	for _, n := range []Node{s.Nodes[0], s.Nodes[len(s.Nodes)-1]} {
		i := o.NodeIndex(n.Cell.ID)
		if i < 0 {
			return false
		}
		if !n.Cell.Small() && !n.Cell.SameQuadrant(n.EP, o.Nodes[i].EP) {
			return false
		}
	}
	return true
}

// worseThan orders two sequences over the same cells: lower probability,
// then higher chi2, then the later name.
func (s Sequence) worseThan(o Sequence) bool {
	if ps, po := s.Prob(), o.Prob(); ps != po {
		return ps < po
	}
	if cs, co := s.Chi2(), o.Chi2(); cs != co {
		return cs > co
	}
	return nameOrder(s.Name()) > nameOrder(o.Name())
}

// nameOrder ranks names by creation order; unnamed sequences rank first.
func nameOrder(name string) int {
	rest, ok := strings.CutPrefix(name, "track_")
	if !ok {
		return -1
	}
	fam, cp, _ := strings.Cut(rest, "_")
	f, err1 := strconv.Atoi(fam)
	c, err2 := strconv.Atoi(cp)
	if err1 != nil || err2 != nil {
		return -1
	}
	return f<<20 | c
}

// IsBridge reports whether s joins a and b: one end lies in a and the
// other in b.
func (s Sequence) IsBridge(a, b Sequence) bool {
	if len(s.Nodes) == 0 {
		return false
	}
	front, back := s.Nodes[0].Cell, s.Nodes[len(s.Nodes)-1].Cell
	return (a.HasCell(front) && b.HasCell(back)) || (b.HasCell(front) && a.HasCell(back))
}

// LinkIndexOfCell returns the index of the couplet (node 0) or triplet
// (other nodes) of node inode that leads to cell c. Links across a gap
// between blocks have no alternatives.
func (s Sequence) LinkIndexOfCell(inode int, c Cell) (int, bool) {
	if inode < 0 || inode >= len(s.Nodes) {
		return 0, false
	}
	n := s.Nodes[inode]
	if d := n.Cell.Block - c.Block; d == 1 || d == -1 {
		return 0, false
	}
	if inode == 0 {
		return n.CoupletIndex(c.ID)
	}
	return n.TripletIndex(c.ID, s.Nodes[inode-1].Cell.ID)
}

// LinkAlternatives returns the couplet or triplet at index of node inode,
// or nil when out of range.
func (s *Sequence) LinkAlternatives(inode, index int) Alternatives {
	if inode < 0 || inode >= len(s.Nodes) || index < 0 {
		return nil
	}
	n := &s.Nodes[inode]
	if inode == 0 {
		if index >= len(n.Couplets) {
			return nil
		}
		return &n.Couplets[index]
	}
	if index >= len(n.Triplets) {
		return nil
	}
	return &n.Triplets[index]
}

// SetFreeLevel recomputes the free flags: a link is free while its
// alternatives have an unused member, and a node or the sequence is free
// when any of its links is.
func (s *Sequence) SetFreeLevel() {
	s.Free = false
	for i := range s.Nodes {
		n := &s.Nodes[i]
		n.Free = false
		for il := range n.Links {
			l := &n.Links[il]
			l.Free = false
			idx, ok := s.LinkIndexOfCell(i, l.Cell)
			if !ok {
				continue
			}
			if i == 0 {
				if s.HasCell(l.Cell) {
					l.Begun = true
					continue
				}
				for _, t := range n.Couplets[idx].Tangents {
					if !t.Used {
						l.Free, n.Free, s.Free = true, true, true
					}
				}
				continue
			}
			t := &n.Triplets[idx]
			if s.HasCell(t.CA) && s.HasCell(t.CC) {
				l.Begun = true
			}
			for _, j := range t.Joints {
				if !j.Used {
					l.Free, n.Free, s.Free = true, true, true
				}
			}
		}
	}
}

// LastFreeNode returns the last free node, the position of its first free
// link and the alternatives index that link maps to.
func (s Sequence) LastFreeNode() (inode, ilink, index int, ok bool) {
	found := false
	for i, n := range s.Nodes {
		if !n.Free {
			continue
		}
		inode, found = i, false
		for il, l := range n.Links {
			if l.Free {
				ilink, found = il, true
				break
			}
		}
	}
	if !found {
		return 0, 0, 0, false
	}
	index, ok = s.LinkIndexOfCell(inode, s.Nodes[inode].Links[ilink].Cell)
	return inode, ilink, index, ok
}

// IncreaseIteration consumes the next alternative of link index on node
// inode, clearing its free flag once none is left.
func (s *Sequence) IncreaseIteration(inode, index int) {
	a := s.LinkAlternatives(inode, index)
	if a == nil {
		return
	}
	if !a.IncreaseIteration() {
		a.SetFree(false)
	}
}

// CopyToLastFreeNode returns the prefix of s up to its last free node, with
// everything before the branching alternative marked as consumed, and
// advances that alternative on s so it is never handed out twice. It
// returns the copy, the branching node and the alternatives index.
func (s *Sequence) CopyToLastFreeNode() (Sequence, int, int, bool) {
	lfn, ilink, index, ok := s.LastFreeNode()
	if !ok {
		return Sequence{}, 0, 0, false
	}

	cp := Sequence{Names: slices.Clone(s.Names), Chi2sAll: slices.Clone(s.Chi2sAll), ProbsAll: slices.Clone(s.ProbsAll)}
	for i := 0; i <= lfn; i++ {
		n := s.Nodes[i].Clone()
		n.Free = false
		consumed := func(k int) bool { return i < lfn || k < index }
		for k := range n.Couplets {
			if consumed(k) {
				c := &n.Couplets[k]
				c.Free, c.Begun = false, true
				c.SetAllUsed()
			}
		}
		for k := range n.Triplets {
			if consumed(k) {
				t := &n.Triplets[k]
				t.Free, t.Begun = false, true
				t.SetAllUsed()
			}
		}
		links := n.Links[:0:0]
		for k, l := range n.Links {
			if i == lfn && k > ilink {
				continue
			}
			if i < lfn || k < ilink {
				l.Free, l.Begun = false, true
			}
			links = append(links, l)
		}
		n.Links = links
		cp.Nodes = append(cp.Nodes, n)
	}
	steps := min(lfn, len(s.Chi2s))
	cp.Chi2s = slices.Clone(s.Chi2s[:steps])
	cp.Probs = slices.Clone(s.Probs[:min(lfn, len(s.Probs))])

	s.IncreaseIteration(lfn, index)
	if a := cp.LinkAlternatives(lfn, index); a != nil {
		a.SetFree(true)
	}
	if a := s.LinkAlternatives(lfn, index); a != nil {
		switch {
		case !a.IsBegun():
			a.SetBegun(true)
			a.SetFree(false)
		case a.Iteration()+1 == a.Size():
			a.SetFree(false)
		}
	}

	s.SetFreeLevel()
	cp.SetFreeLevel()
	return cp, lfn, index, true
}

// AppendStep records the chi2 and probability of one accepted step.
func (s *Sequence) AppendStep(chi2, prob float64) {
	s.Chi2s = append(s.Chi2s, chi2)
	s.Probs = append(s.Probs, prob)
}

// RemoveFirstNode drops the head node and its step.
func (s *Sequence) RemoveFirstNode() {
	if len(s.Nodes) == 0 {
		return
	}
	s.Nodes = slices.Delete(s.Nodes, 0, 1)
	if len(s.Chi2s) > 0 {
		s.Chi2s = s.Chi2s[1:]
	}
	if len(s.Probs) > 0 {
		s.Probs = s.Probs[1:]
	}
}

// RemoveLastNode drops the tail node and its step.
func (s *Sequence) RemoveLastNode() {
	if len(s.Nodes) == 0 {
		return
	}
	s.Nodes = s.Nodes[:len(s.Nodes)-1]
	if len(s.Chi2s) > 0 {
		s.Chi2s = s.Chi2s[:len(s.Chi2s)-1]
	}
	if len(s.Probs) > 0 {
		s.Probs = s.Probs[:len(s.Probs)-1]
	}
}

func (s Sequence) points() []geom.Point {
	out := make([]geom.Point, len(s.Nodes))
	for i, n := range s.Nodes {
		out[i] = n.EP
	}
	return out
}
