package clustering

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/config"
)

const cellPitch = 44.0

// gridCell places a cell of radius r on the wire grid: layers along z,
// numbers along x.
func gridCell(id, layer, number int, r float64) topology.Cell {
	return topology.Cell{
		ID:     id,
		Layer:  layer,
		Block:  1,
		Number: number,
		EP:     geom.P(cellPitch*float64(number), 0, cellPitch*float64(layer+1), 0.5),
		R:      geom.D(r, 0.5),
	}
}

func TestConfigFromCAT(t *testing.T) {
	cfg := ConfigFromCAT(&config.CATConfig{})
	assert.Equal(t, 44.0, cfg.CellDistance)
	assert.Equal(t, 10000.0, cfg.Ratio)
	assert.Equal(t, 1, cfg.MinClusterCells)
	assert.Equal(t, cfg, DefaultConfig())
}

func TestNearLevel(t *testing.T) {
	cfg := DefaultConfig()
	a := gridCell(0, 0, 0, 10)
	tests := []struct {
		name string
		b    topology.Cell
		want int
	}{
		{"next layer", gridCell(1, 1, 0, 10), sideBy},
		{"next wire", gridCell(1, 0, 1, 10), sideBy},
		{"diagonal", gridCell(1, 1, 1, 10), diagonal},
		{"two layers away", gridCell(1, 2, 0, 10), farAway},
		{"knight move", gridCell(1, 2, 1, 10), farAway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.nearLevel(a, tt.b))
		})
	}
}

func assertTangent(t *testing.T, c topology.Cell, touch, other geom.Point) {
	t.Helper()
	radius := geom.NewVector(c.EP, touch).Hor()
	line := geom.NewVector(touch, other).Hor()
	assert.InDelta(t, c.R.Value, radius.Length().Value, 1e-9, "point on the drift circle")
	assert.InDelta(t, 0, radius.Dot(line).Value/line.Length().Value, 1e-9, "line touches the circle")
}

func TestNewCoupletCircleCircle(t *testing.T) {
	ca, cb := gridCell(0, 0, 0, 10), gridCell(1, 1, 0, 6)
	c := NewCouplet(ca, cb)
	require.Len(t, c.Tangents, 4)
	for _, tg := range c.Tangents {
		assertTangent(t, ca, tg.A, tg.B)
		assertTangent(t, cb, tg.B, tg.A)
		assert.InDelta(t, 0, tg.A.Y.Value, 1e-12)
	}

	// Parallel tangents keep both ends on one side of the wire axis;
	// crossed ones switch sides.
	assert.Equal(t, math.Signbit(c.Tangents[0].A.X.Value), math.Signbit(c.Tangents[0].B.X.Value))
	assert.NotEqual(t, math.Signbit(c.Tangents[2].A.X.Value), math.Signbit(c.Tangents[2].B.X.Value))
}

func TestNewCoupletIntersecting(t *testing.T) {
	ca, cb := gridCell(0, 0, 0, 25), gridCell(1, 1, 0, 25)
	require.True(t, ca.Intersect(cb))
	c := NewCouplet(ca, cb)
	require.Len(t, c.Tangents, 4)

	mid := 1.5 * cellPitch
	for _, tg := range c.Tangents[2:] {
		assert.InDelta(t, mid, tg.A.Z.Value, 1e-9)
		assert.InDelta(t, 0.1, math.Abs(tg.A.X.Value), 1e-9)
		assert.Greater(t, tg.A.X.Error, 12.0, "loose transverse position")
		assert.InDelta(t, -tg.A.X.Value, tg.B.X.Value, 1e-9)
	}
}

func TestNewCoupletSmallCells(t *testing.T) {
	big, small := gridCell(0, 0, 0, 10), gridCell(1, 1, 0, 1)

	c := NewCouplet(big, small)
	require.Len(t, c.Tangents, 2)
	for _, tg := range c.Tangents {
		assertTangent(t, big, tg.A, tg.B)
		assert.Equal(t, small.EP.X.Value, tg.B.X.Value)
		assert.Equal(t, small.R.Error, tg.B.X.Error)
	}

	c = NewCouplet(small, big)
	require.Len(t, c.Tangents, 2)
	for _, tg := range c.Tangents {
		assertTangent(t, big, tg.B, tg.A)
	}

	c = NewCouplet(small, gridCell(2, 2, 0, 1.5))
	require.Len(t, c.Tangents, 1)
}

func TestNewTripletStraightColumn(t *testing.T) {
	cfg := DefaultConfig()
	a, b, c := gridCell(0, 0, 0, 10), gridCell(1, 1, 0, 10), gridCell(2, 2, 0, 10)
	tr := cfg.NewTriplet(a, b, c, NewCouplet(b, a), NewCouplet(b, c))

	require.Len(t, tr.Joints, 2)
	assert.Len(t, tr.Chi2s, len(tr.Probs))
	sides := map[bool]bool{}
	for _, j := range tr.Joints {
		assert.InDelta(t, 0, j.Chi2, 1e-9)
		assert.Equal(t, 3, j.Ndof)
		assert.InDelta(t, j.A.X.Value, j.C.X.Value, 1e-9, "no bend")
		sides[j.B.X.Value > 0] = true
	}
	assert.Len(t, sides, 2, "one joint on each side of the wires")
	assert.LessOrEqual(t, tr.Joints[0].Chi2, tr.Joints[1].Chi2)
}

func TestNewTripletProbMinMonotonic(t *testing.T) {
	cfg := DefaultConfig()
	a, b, c := gridCell(0, 0, 0, 10), gridCell(1, 1, 0, 10), gridCell(2, 1, 1, 10)

	loose := cfg.NewTriplet(a, b, c, NewCouplet(b, a), NewCouplet(b, c))
	cfg.ProbMin = 0.999999
	strict := cfg.NewTriplet(a, b, c, NewCouplet(b, a), NewCouplet(b, c))
	assert.LessOrEqual(t, len(strict.Joints), len(loose.Joints))
	assert.Equal(t, len(loose.Chi2s), len(strict.Chi2s), "every combination is scored")
}

func TestBuildClustersColumn(t *testing.T) {
	cells := []topology.Cell{gridCell(0, 0, 0, 10), gridCell(1, 1, 0, 10), gridCell(2, 2, 0, 10)}
	clusters := BuildClusters(cells, DefaultConfig())
	require.Len(t, clusters, 1)

	cl := clusters[0]
	require.Len(t, cl.Nodes, 3)
	n0, ok := cl.NodeOfCell(0)
	require.True(t, ok)
	assert.Equal(t, topology.TypeVertex, n0.TopologicalType())
	n1, _ := cl.NodeOfCell(1)
	assert.Equal(t, topology.TypeBridge, n1.TopologicalType())
	assert.True(t, cl.HasTriplet(0, 1, 2))
	assert.True(t, cl.HasTriplet(2, 1, 0))
}

func TestBuildClustersSplits(t *testing.T) {
	slow := gridCell(1, 1, 0, 10)
	slow.Slow = true
	behind := gridCell(2, 0, 0, 10)
	behind.EP.Z = geom.D(-cellPitch, 0.5)
	behind.Block = -1
	lone := gridCell(3, 5, 5, 10)
	cells := []topology.Cell{gridCell(0, 0, 0, 10), slow, behind, lone}

	clusters := BuildClusters(cells, DefaultConfig())
	assert.Len(t, clusters, 4, "prompt, delayed and the two foil sides never mix")

	cfg := DefaultConfig()
	cfg.MinClusterCells = 2
	assert.Empty(t, BuildClusters(cells, cfg))
}

func TestGoodCouplet(t *testing.T) {
	cfg := DefaultConfig()
	// b is the only neighbour of a; c is beyond reach.
	a, b, c := gridCell(0, 0, 0, 10), gridCell(1, 1, 1, 10), gridCell(2, 2, 2, 10)
	near := cfg.nearCells(a, []topology.Cell{a, b, c})
	require.Len(t, near, 1)
	assert.True(t, cfg.goodCouplet(a, b, near), "no third cell near both")
}
