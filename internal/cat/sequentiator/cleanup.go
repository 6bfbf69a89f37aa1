package sequentiator

import (
	"math"
	"slices"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
)

// wallKinkDeg is the turn at the second or second-last node above which
// an end cell on the foil or a calorimeter is suspected to belong to
// another track.
const wallKinkDeg = 45.0

// cleanUp compares the newest sequence with every other one and removes
// what is redundant: a sequence contained in another, one that leaves the
// range allowed by its helix, and a short bridge between two longer
// sequences. Free sequences are kept since they may still grow. It
// reports whether anything was removed.
func (r *run) cleanUp() bool {
	changed := false
	for i := 0; i+1 < len(r.sequences); {
		back := len(r.sequences) - 1
		if r.sequences[back].Contained(r.sequences[i]) && !r.sequences[back].Free {
			cat.Tracef("%s contained in %s", r.sequences[back].Name(), r.sequences[i].Name())
			r.sequences = r.sequences[:back]
			changed = true
			continue
		}
		if r.sequences[i].Contained(r.sequences[back]) && !r.sequences[i].Free {
			cat.Tracef("%s contained in %s", r.sequences[i].Name(), r.sequences[back].Name())
			r.sequences = slices.Delete(r.sequences, i, i+1)
			changed = true
			continue
		}
		if !changed && !r.inRange(r.sequences[i]) {
			cat.Tracef("%s leaves its helix range", r.sequences[i].Name())
			r.sequences = slices.Delete(r.sequences, i, i+1)
			changed = true
			continue
		}
		if r.removeBridges(&i) {
			changed = true
		}
		i++
	}
	return changed
}

// removeBridges drops sequences joining sequence *i and the newest one, or
// the newest one when it joins *i and another sequence, provided the
// bridge is shorter than both.
func (r *run) removeBridges(i *int) bool {
	changed := false
	for k := 0; k < len(r.sequences); {
		back := len(r.sequences) - 1
		if *i >= back {
			break
		}
		if k == *i || k == back {
			k++
			continue
		}
		is, ks, bs := r.sequences[*i], r.sequences[k], r.sequences[back]
		if !ks.Free && ks.IsBridge(is, bs) && len(ks.Nodes) < len(is.Nodes) && len(ks.Nodes) < len(bs.Nodes) {
			cat.Tracef("%s bridges %s and %s", ks.Name(), is.Name(), bs.Name())
			r.sequences = slices.Delete(r.sequences, k, k+1)
			if k < *i {
				*i--
			}
			changed = true
			continue
		}
		if !bs.Free && bs.IsBridge(is, ks) && len(bs.Nodes) < len(is.Nodes) && len(bs.Nodes) < len(ks.Nodes) {
			cat.Tracef("%s bridges %s and %s", bs.Name(), is.Name(), ks.Name())
			r.sequences = r.sequences[:back]
			changed = true
			continue
		}
		k++
	}
	return changed
}

// inRange reports whether every pair of consecutive nodes of seq stays in
// the z range its helix may cover.
func (r *run) inRange(seq topology.Sequence) bool {
	for k := 0; k+1 < len(seq.Nodes); k++ {
		if !r.withinRange(seq.Nodes[k], seq.Nodes[k+1], seq) {
			return false
		}
	}
	return true
}

// directOutOfFoil turns every sequence so that it starts on its end nearer
// the foil.
func (r *run) directOutOfFoil() {
	directOutOfFoil(r.sequences)
}

func directOutOfFoil(seqs []topology.Sequence) {
	for i, s := range seqs {
		if len(s.Nodes) == 0 {
			continue
		}
		first, last := s.Nodes[0].EP.Z.Value, s.Nodes[len(s.Nodes)-1].EP.Z.Value
		if math.Abs(first) > math.Abs(last) {
			seqs[i] = s.Invert()
		}
	}
}

// makeFamilies lists the distinct families of the current sequences in
// order of appearance.
func (r *run) makeFamilies() {
	r.families = nil
	for _, s := range r.sequences {
		if f := s.Family(); !slices.Contains(r.families, f) {
			r.families = append(r.families, f)
		}
	}
}

// belongsToOtherFamily reports whether a sequence of another family
// already uses c.
func (r *run) belongsToOtherFamily(c topology.Cell, seq topology.Sequence) bool {
	for _, s := range r.sequences {
		if s.SameFamilies(seq) {
			continue
		}
		if s.HasCell(c) {
			return true
		}
	}
	return false
}

// refineNearWalls drops an end cell facing the foil or a calorimeter when
// the track turns sharply just before it and another family claims it,
// or when the track turns sharply next to a calorimeter hit.
func (r *run) refineNearWalls() {
	for i := range r.sequences {
		seq := &r.sequences[i]
		if len(seq.Nodes) < 3 {
			continue
		}

		n := len(seq.Nodes)
		if r.gapNumber(seq.Nodes[n-2].Cell) == 0 && seq.PhiKink(n-2) > wallKinkDeg && r.belongsToOtherFamily(seq.Nodes[n-1].Cell, *seq) {
			cat.Tracef("%s: dropping last cell at the foil", seq.Name())
			seq.RemoveLastNode()
		}
		if len(seq.Nodes) < 3 {
			continue
		}
		if r.gapNumber(seq.Nodes[1].Cell) == 0 && seq.PhiKink(1) > wallKinkDeg && r.belongsToOtherFamily(seq.Nodes[0].Cell, *seq) {
			cat.Tracef("%s: dropping first cell at the foil", seq.Name())
			seq.RemoveFirstNode()
		}

		for _, h := range r.calos {
			if len(seq.Nodes) < 3 {
				break
			}
			if r.near(seq.Nodes[1].Cell, h) && seq.PhiKink(1) > wallKinkDeg {
				cat.Tracef("%s: dropping first cell at calo %d", seq.Name(), h.ID)
				seq.RemoveFirstNode()
				continue
			}
			n := len(seq.Nodes)
			if r.near(seq.Nodes[n-2].Cell, h) && seq.PhiKink(n-2) > wallKinkDeg {
				cat.Tracef("%s: dropping last cell at calo %d", seq.Name(), h.ID)
				seq.RemoveLastNode()
			}
		}
	}
}
