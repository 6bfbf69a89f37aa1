package topology

// Cluster is a connected island of cells with the couplets and triplets
// found between them. The growth automaton only reads it.
type Cluster struct {
	Nodes []Node `json:"nodes"`
}

// NodeOfCell returns a copy of the node built on cell id.
func (c Cluster) NodeOfCell(id int) (Node, bool) {
	for _, n := range c.Nodes {
		if n.Cell.ID == id {
			return n.Clone(), true
		}
	}
	return Node{}, false
}

// HasTriplet reports whether the node on cell b has a triplet joining a
// and c.
func (c Cluster) HasTriplet(a, b, cc int) bool {
	for _, n := range c.Nodes {
		if n.Cell.ID != b {
			continue
		}
		_, ok := n.TripletIndex(a, cc)
		return ok
	}
	return false
}

// Cells lists the cells of the cluster in node order.
func (c Cluster) Cells() []Cell {
	out := make([]Cell, len(c.Nodes))
	for i, n := range c.Nodes {
		out[i] = n.Cell
	}
	return out
}

// Event is the input of one reconstruction: the tracker hits and the
// calorimeter hits recorded together.
type Event struct {
	ID       int       `json:"id"`
	Cells    []Cell    `json:"cells"`
	CaloHits []CaloHit `json:"calo_hits,omitempty"`
}
