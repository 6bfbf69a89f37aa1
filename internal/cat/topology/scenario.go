package topology

import (
	"math"
	"slices"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"
)

// Scenario is one self-consistent set of sequences explaining an event.
type Scenario struct {
	Sequences     []Sequence `json:"sequences"`
	NFreeFamilies int        `json:"n_free_families"`
	NOverlaps     int        `json:"n_overlaps"`
	Chi2          float64    `json:"chi2"`
	Ndof          int        `json:"ndof"`
}

// Clone returns a deep copy.
func (sc Scenario) Clone() Scenario {
	out := sc
	out.Sequences = make([]Sequence, len(sc.Sequences))
	for i, s := range sc.Sequences {
		out.Sequences[i] = s.Clone()
	}
	return out
}

// HasName reports whether a sequence of the scenario carries name.
func (sc Scenario) HasName(name string) bool {
	for _, s := range sc.Sequences {
		if slices.Contains(s.Names, name) {
			return true
		}
	}
	return false
}

// CalculateNFreeFamilies counts the families that no sequence of the
// scenario represents.
func (sc *Scenario) CalculateNFreeFamilies(families []int) {
	taken := make(map[int]bool)
	for _, s := range sc.Sequences {
		for _, f := range s.Families() {
			taken[f] = true
		}
	}
	n := 0
	seen := make(map[int]bool)
	for _, f := range families {
		if seen[f] {
			continue
		}
		seen[f] = true
		if !taken[f] {
			n++
		}
	}
	sc.NFreeFamilies = n
}

// CalculateNOverlaps counts cells used by more than one sequence, and
// calorimeter hits claimed by more than one track end.
func (sc *Scenario) CalculateNOverlaps() {
	cells := make(map[int]bool)
	calos := make(map[int]bool)
	n := 0
	for _, s := range sc.Sequences {
		for _, nd := range s.Nodes {
			if cells[nd.Cell.ID] {
				n++
			}
			cells[nd.Cell.ID] = true
		}
		if v := s.DecayHelixVertex; v.IsCalo() {
			if calos[v.CaloID] {
				n++
			}
			calos[v.CaloID] = true
		}
	}
	sc.NOverlaps = n
}

func (sc *Scenario) CalculateChi2() {
	sc.Chi2, sc.Ndof = 0, 0
	for _, s := range sc.Sequences {
		sc.Chi2 += s.Chi2()
		sc.Ndof += s.Ndof()
	}
}

// Calculate refreshes every figure of merit.
func (sc *Scenario) Calculate(families []int) {
	sc.CalculateNFreeFamilies(families)
	sc.CalculateNOverlaps()
	sc.CalculateChi2()
}

// ReducedChi2 is chi2/ndof. Without degrees of freedom it is 0 for a zero
// chi2 and +Inf otherwise.
func (sc Scenario) ReducedChi2() float64 {
	if sc.Ndof <= 0 {
		if sc.Chi2 == 0 {
			return 0
		}
		return math.Inf(1)
	}
	r := sc.Chi2 / float64(sc.Ndof)
	if math.IsNaN(r) {
		return math.Inf(1)
	}
	return r
}

func (sc Scenario) Prob() float64 {
	return geom.Probof(sc.Chi2, sc.Ndof)
}

// Better orders scenarios by fewer free families, then fewer overlaps,
// then lower reduced chi2.
func (sc Scenario) Better(o Scenario) bool {
	if sc.NFreeFamilies != o.NFreeFamilies {
		return sc.NFreeFamilies < o.NFreeFamilies
	}
	if sc.NOverlaps != o.NOverlaps {
		return sc.NOverlaps < o.NOverlaps
	}
	return sc.ReducedChi2() < o.ReducedChi2()
}

// NFreeCells counts the tracker and calorimeter hits that no sequence of
// the scenario uses.
func (sc Scenario) NFreeCells(cells []Cell, calos []CaloHit) int {
	used := make(map[int]bool)
	usedCalo := make(map[int]bool)
	for _, s := range sc.Sequences {
		for _, n := range s.Nodes {
			used[n.Cell.ID] = true
		}
		if s.DecayHelixVertex.IsCalo() {
			usedCalo[s.DecayHelixVertex.CaloID] = true
		}
	}
	n := 0
	for _, c := range cells {
		if !used[c.ID] {
			n++
		}
	}
	for _, h := range calos {
		if !usedCalo[h.ID] {
			n++
		}
	}
	return n
}
