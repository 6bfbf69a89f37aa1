// Package clustering groups drift-cell hits into connected islands and
// precomputes, for every cell of an island, the couplets towards its
// neighbours and the triplets through it.
package clustering

import (
	"math"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/config"
)

// Config holds the clustering parameters.
type Config struct {
	CellDistance    float64 // wire to wire distance (mm)
	Ratio           float64 // max chi2 ratio between the two joints kept per triplet
	ProbMin         float64 // min probability of a joint
	MinClusterCells int     // smaller islands are dropped
}

// DefaultConfig returns the clustering parameters of config.DefaultCATConfig.
func DefaultConfig() Config {
	return ConfigFromCAT(config.DefaultCATConfig())
}

// ConfigFromCAT maps the track finder configuration onto Config.
func ConfigFromCAT(cfg *config.CATConfig) Config {
	return Config{
		CellDistance:    cfg.GetCellDistance(),
		Ratio:           cfg.GetRatio(),
		ProbMin:         cfg.GetProbMin(),
		MinClusterCells: cfg.GetMinClusterCells(),
	}
}

// Near levels between two cells.
const (
	farAway  = 0
	diagonal = 1
	sideBy   = 2
)

// nearLevel classifies the horizontal wire distance between two cells:
// side by side, diagonal, or further.
func (cfg Config) nearLevel(a, b topology.Cell) int {
	d := a.EP.HorDistance(b.EP).Value
	// cells are octagonal
	side := math.Cos(math.Pi/8) * cfg.CellDistance
	diag := math.Sqrt2 * side
	precision := 0.15 * side
	switch {
	case math.Abs(d-side) < precision:
		return sideBy
	case math.Abs(d-diag) < precision:
		return diagonal
	}
	return farAway
}

// nearCells lists the cells next to c with the same timing on the same
// side of the foil.
func (cfg Config) nearCells(c topology.Cell, cells []topology.Cell) []topology.Cell {
	var out []topology.Cell
	for _, k := range cells {
		if k.ID == c.ID || k.Fast() != c.Fast() || k.Side() != c.Side() {
			continue
		}
		if cfg.nearLevel(c, k) > farAway {
			out = append(out, k)
		}
	}
	return out
}

// BuildClusters splits cells into islands reachable from one another
// through neighbouring cells. Islands never mix the two sides of the foil,
// nor prompt with delayed hits. Each island node carries its couplets and
// triplets.
func BuildClusters(cells []topology.Cell, cfg Config) []topology.Cluster {
	var clusters []topology.Cluster
	for _, side := range []int{1, -1} {
		for _, fast := range []bool{true, false} {
			added := make(map[int]bool)
			for _, c := range cells {
				if c.Side() != side || c.Fast() != fast || added[c.ID] {
					continue
				}
				added[c.ID] = true

				var nodes []topology.Node
				queue := []topology.Cell{c}
				for i := 0; i < len(queue); i++ {
					conn := queue[i]
					node := topology.NewNode(conn)
					near := cfg.nearCells(conn, cells)
					for _, cand := range near {
						if !cfg.goodCouplet(conn, cand, near) {
							continue
						}
						node.Couplets = append(node.Couplets, NewCouplet(conn, cand))
						cat.Tracef("couplet %d -> %d", conn.ID, cand.ID)
						if !added[cand.ID] {
							added[cand.ID] = true
							queue = append(queue, cand)
						}
					}
					cfg.calculateTriplets(&node)
					nodes = append(nodes, node)
				}

				if len(nodes) < cfg.MinClusterCells {
					cat.Diagf("dropping cluster of %d cells started at cell %d", len(nodes), c.ID)
					continue
				}
				clusters = append(clusters, topology.Cluster{Nodes: nodes})
			}
		}
	}
	cat.Diagf("%d cells form %d clusters", len(cells), len(clusters))
	return clusters
}

// goodCouplet rejects the couplet a -> cand when a third cell near both,
// and no further from them than they are from each other, carries a
// triplet a <-> cand.
func (cfg Config) goodCouplet(a, cand topology.Cell, nearA []topology.Cell) bool {
	ac := cfg.nearLevel(a, cand)
	for _, b := range nearA {
		if b.ID == cand.ID {
			continue
		}
		bc := cfg.nearLevel(b, cand)
		if bc == farAway || bc < ac || cfg.nearLevel(b, a) < ac {
			continue
		}
		t := cfg.NewTriplet(a, b, cand, NewCouplet(b, a), NewCouplet(b, cand))
		if len(t.Joints) > 0 {
			cat.Tracef("couplet %d -> %d bridged by cell %d", a.ID, cand.ID, b.ID)
			return false
		}
	}
	return true
}

// calculateTriplets builds the triplets through n from every pair of its
// couplets. Pairs without a surviving joint are not recorded.
func (cfg Config) calculateTriplets(n *topology.Node) {
	if len(n.Couplets) < 2 {
		return
	}
	for i := range n.Couplets {
		for j := i; j < len(n.Couplets); j++ {
			c1, c2 := n.Couplets[i].CB, n.Couplets[j].CB
			if c1.ID == c2.ID {
				continue
			}
			t := cfg.NewTriplet(c1, n.Cell, c2, n.Couplets[i], n.Couplets[j])
			if len(t.Joints) > 0 {
				n.AddTriplet(t)
			}
		}
	}
}
