package sequentiator

import (
	"slices"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
)

// step is one accepted extension of a sequence.
type step struct {
	cell  topology.Cell
	point geom.Point
	chi2  float64
	prob  float64
}

// sequentiateCluster grows sequences from every acceptable seed of cl.
func (r *run) sequentiateCluster(cl *topology.Cluster) {
	for i := range cl.Nodes {
		if !r.goodFirstNode(&cl.Nodes[i]) {
			continue
		}
		seed := cl.Nodes[i].Clone()
		r.makeNewSequence(seed, cl)
		if r.late() {
			return
		}
		r.makeCopySequence(seed.Cell, cl)
	}
}

// goodFirstNode reports whether n may seed a sequence. A vertex already
// used by a sequence is rejected. A multi-vertex loses the couplets towards
// the partners it already reached as the end of a sequence.
func (r *run) goodFirstNode(n *topology.Node) bool {
	typ := n.TopologicalType()
	switch typ {
	case topology.TypeVertex, topology.TypeMultiVertex, topology.TypeIsolated:
	default:
		return false
	}

	var done []int
	for _, seq := range r.sequences {
		if !seq.HasCell(n.Cell) {
			continue
		}
		if typ == topology.TypeVertex {
			return false
		}
		k := len(seq.Nodes)
		if k < 2 {
			continue
		}
		var partner int
		switch n.Cell.ID {
		case seq.Nodes[0].Cell.ID:
			partner = seq.Nodes[1].Cell.ID
		case seq.Nodes[k-1].Cell.ID:
			partner = seq.Nodes[k-2].Cell.ID
		default:
			continue
		}
		if !slices.Contains(done, partner) {
			done = append(done, partner)
		}
	}

	if typ == topology.TypeMultiVertex {
		for _, id := range done {
			if i, ok := n.CoupletIndex(id); ok {
				n.RemoveCouplet(i)
				cat.Tracef("%s: dropped couplet towards cell %d", n.Cell, id)
			}
		}
	}
	return true
}

func (r *run) makeNewSequence(seed topology.Node, cl *topology.Cluster) {
	if r.late() {
		return
	}
	seq := topology.NewSequence(seed)
	for r.evolve(&seq, cl) {
	}
	if r.late() {
		return
	}

	r.nFamily++
	r.nCopy = 0
	if len(seq.Nodes) == 2 {
		r.addPair(seq)
		return
	}
	r.name(&seq)
	cat.Tracef("new %s with %d nodes", seq.Name(), len(seq.Nodes))
	r.sequences = append(r.sequences, seq)
	r.cleanUp()
}

// evolve adds one node to seq. It returns false once the sequence cannot
// grow any more.
func (r *run) evolve(seq *topology.Sequence, cl *topology.Cluster) bool {
	if r.late() || len(seq.Nodes) < 1 {
		return false
	}
	s := len(seq.Nodes)
	if s == 3 {
		// the first couplet can no longer branch
		i, ok := seq.LinkIndexOfCell(0, seq.Nodes[1].Cell)
		if !ok {
			return false
		}
		seq.Nodes[0].Couplets[i].SetAllUsed()
	}

	st, ok := r.pickNewCell(seq, cl)
	if !ok {
		seq.SetFreeLevel()
		if s == 1 {
			n := &seq.Nodes[0]
			ep := n.Cell.EP
			ep.X.Error = n.Cell.R.Value
			ep.Z.Error = n.Cell.R.Value
			n.EP = ep
		}
		return false
	}

	next, found := cl.NodeOfCell(st.cell.ID)
	if !found {
		cat.Diagf("%s: link to cell %d outside the cluster", st.cell, st.cell.ID)
		seq.SetFreeLevel()
		return false
	}
	next.Free = false
	if s > 1 {
		next.EP = st.point
	}
	seq.Nodes = append(seq.Nodes, next)
	seq.AppendStep(st.chi2, st.prob)
	seq.SetFreeLevel()
	return true
}

// fillLinksOfNode lists the candidate next cells of node inode. The seed
// prefers partners that continue it through a triplet.
func (r *run) fillLinksOfNode(seq *topology.Sequence, inode int, cl *topology.Cluster) {
	n := &seq.Nodes[inode]
	if inode == 0 {
		continued := make([]bool, len(n.Couplets))
		anyContinued := false
		for i, c := range n.Couplets {
			if partner, ok := cl.NodeOfCell(c.CB.ID); ok && partner.HasTripletWith(n.Cell.ID) {
				continued[i] = true
				anyContinued = true
			}
		}
		for i, c := range n.Couplets {
			if seq.HasCell(c.CB) || (anyContinued && !continued[i]) {
				continue
			}
			n.Links = append(n.Links, topology.Link{Cell: c.CB})
		}
		return
	}

	prev := seq.Nodes[inode-1].Cell.ID
	for _, t := range n.Triplets {
		switch {
		case t.CA.ID == prev && !seq.HasCell(t.CC):
			n.Links = append(n.Links, topology.Link{Cell: t.CC})
		case t.CC.ID == prev && !seq.HasCell(t.CA):
			n.Links = append(n.Links, topology.Link{Cell: t.CA})
		}
	}
}

// pickNewCell takes the next unexplored alternative of the last node.
func (r *run) pickNewCell(seq *topology.Sequence, cl *topology.Cluster) (step, bool) {
	s := len(seq.Nodes)
	if len(seq.Nodes[s-1].Links) == 0 {
		r.fillLinksOfNode(seq, s-1, cl)
	}
	last := &seq.Nodes[s-1]

	for il := range last.Links {
		l := &last.Links[il]
		if !l.Free && l.Begun {
			continue
		}
		l.Begun, l.Free = true, false
		if s == 1 {
			return step{cell: l.Cell, prob: 1}, true
		}

		idx, ok := seq.LinkIndexOfCell(s-1, l.Cell)
		if !ok {
			continue
		}
		t := &last.Triplets[idx]
		if t.Iteration() >= t.Size() {
			return step{}, false
		}
		if t.Iteration() == 0 {
			r.pruneJoints(seq, t, l.Cell)
		}
		iteration := t.Iteration()
		if len(t.Joints) == 0 || iteration >= len(t.Joints) {
			continue
		}
		if iteration+1 == len(t.Joints) {
			l.Free = false
		} else {
			l.Free, last.Free, seq.Free = true, true, true
		}

		seq.IncreaseIteration(s-1, idx)
		j := t.Joints[iteration]
		if s >= 3 {
			dA, dAlpha := chi2Change(seq, j.A, j.B)
			seq.Nodes[s-2].Chi2 += dA
			if s >= 4 {
				seq.Nodes[s-3].Chi2 += dAlpha
			}
		}
		seq.Nodes[s-2].EP = j.A
		last.EP = j.B
		last.Chi2 = j.Chi2
		last.Ndof = j.Ndof
		return step{cell: l.Cell, point: j.C, chi2: j.Chi2, prob: j.P}, true
	}
	return step{}, false
}

// pruneJoints drops the joints of t that do not continue seq towards link.
// Joints are turned to run from the previous node to link first.
func (r *run) pruneJoints(seq *topology.Sequence, t *topology.Triplet, link topology.Cell) {
	kept := make([]topology.Joint, 0, len(t.Joints))
	for _, j := range t.Joints {
		if t.CA.ID == link.ID {
			j = j.Invert()
		}
		if !r.compatible(seq, &j, link) {
			continue
		}
		kept = append(kept, j)
	}
	if len(kept) < len(t.Joints) {
		cat.Tracef("%s -> %s: %d of %d joints compatible", seq.Nodes[len(seq.Nodes)-1].Cell, link, len(kept), len(t.Joints))
	}
	t.Joints = kept
}

func (r *run) makeCopySequence(seed topology.Cell, cl *topology.Cluster) {
	defer func() { r.nCopy = 0 }()
	for {
		i, ok := r.freeSequenceBeginningWith(seed)
		if !ok || r.late() {
			return
		}
		cp, lfn, index, ok := r.sequences[i].CopyToLastFreeNode()
		if !ok {
			r.sequences[i].Free = false
			continue
		}
		for r.evolve(&cp, cl) {
		}
		if r.late() {
			return
		}

		if len(cp.Nodes) == lfn+1 {
			r.cleanUp()
			continue
		}
		if idx, ok := cp.LinkIndexOfCell(lfn, cp.Nodes[lfn+1].Cell); ok {
			if a := r.sequences[i].LinkAlternatives(lfn, idx); a != nil {
				a.SetAllUsed()
			}
		}
		r.sequences[i].SetFreeLevel()

		orig := r.sequences[i]
		if cp.Contained(orig) && !cp.Free {
			r.cleanUp()
			continue
		}
		if orig.Contained(cp) {
			inheritState(&cp, orig, lfn, index)
			cp.SetFreeLevel()
			r.sequences = slices.Delete(r.sequences, i, i+1)
			r.cleanUp()
		}

		r.nCopy++
		if len(cp.Nodes) == 2 {
			r.addPair(cp)
			continue
		}
		r.name(&cp)
		cat.Tracef("copy %s with %d nodes", cp.Name(), len(cp.Nodes))
		r.sequences = append(r.sequences, cp)
		r.cleanUp()
	}
}

// inheritState carries the exploration state of orig into cp for the nodes
// before the branching node lfn, and for the other alternatives of lfn.
func inheritState(cp *topology.Sequence, orig topology.Sequence, lfn, index int) {
	for k := 0; k <= lfn && k < len(orig.Nodes) && k < len(cp.Nodes); k++ {
		src, dst := orig.Nodes[k], &cp.Nodes[k]
		if k < lfn {
			dst.Free = src.Free
		}
		if k < lfn || lfn == 0 {
			for ic := range min(len(src.Couplets), len(dst.Couplets)) {
				if k == lfn && ic == index {
					continue
				}
				inheritCouplet(&dst.Couplets[ic], src.Couplets[ic])
			}
		}
		if k < lfn || lfn > 0 {
			for it := range min(len(src.Triplets), len(dst.Triplets)) {
				if k == lfn && it == index {
					continue
				}
				inheritTriplet(&dst.Triplets[it], src.Triplets[it])
			}
		}
	}
}

func inheritCouplet(dst *topology.Couplet, src topology.Couplet) {
	dst.Free, dst.Begun = src.Free, src.Begun
	for i := range min(len(src.Tangents), len(dst.Tangents)) {
		dst.Tangents[i].Used = src.Tangents[i].Used
	}
}

func inheritTriplet(dst *topology.Triplet, src topology.Triplet) {
	dst.Free, dst.Begun = src.Free, src.Begun
	for i := range min(len(src.Joints), len(dst.Joints)) {
		dst.Joints[i].Used = src.Joints[i].Used
	}
}

func (r *run) freeSequenceBeginningWith(c topology.Cell) (int, bool) {
	for i, s := range r.sequences {
		if s.Free && len(s.Nodes) > 0 && s.Nodes[0].Cell.ID == c.ID {
			return i, true
		}
	}
	return 0, false
}

// addPair stores a two-cell sequence once per tangent of its couplet.
// Every tangent after the first is a new copy of the same family.
func (r *run) addPair(seq topology.Sequence) {
	if len(seq.Nodes) != 2 {
		return
	}
	ci, ok := seq.Nodes[0].CoupletIndex(seq.Nodes[1].Cell.ID)
	if !ok {
		return
	}
	tangents := slices.Clone(seq.Nodes[0].Couplets[ci].Tangents)

	pair := topology.Sequence{
		Nodes:    []topology.Node{seq.Nodes[0].Clone(), seq.Nodes[1].Clone()},
		Chi2sAll: slices.Clone(seq.Chi2sAll),
		ProbsAll: slices.Clone(seq.ProbsAll),
	}
	pair.AppendStep(0, 1)

	cleaning := true
	for it, tg := range tangents {
		pair.Nodes[0].EP, pair.Nodes[0].Free = tg.Line.A, false
		pair.Nodes[1].EP, pair.Nodes[1].Free = tg.Line.B, false
		if it > 0 {
			r.nCopy++
			for k := range pair.Nodes[0].Couplets {
				pair.Nodes[0].Couplets[k].SetAllUsed()
			}
			for k := range pair.Nodes[1].Triplets {
				pair.Nodes[1].Triplets[k].SetAllUsed()
			}
		}
		pair.SetFreeLevel()

		p := pair.Clone()
		r.name(&p)
		r.sequences = append(r.sequences, p)
		if cleaning {
			cleaning = r.cleanUp()
		}
	}
}
