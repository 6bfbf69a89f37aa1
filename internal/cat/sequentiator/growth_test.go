package sequentiator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/clustering"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
)

func newTestRun(cfg Config) *run {
	return &run{
		cfg:      cfg,
		ctx:      context.Background(),
		deadline: NewDeadline(nil, 0),
		nFamily:  -1,
	}
}

// chain builds a finished sequence over cells with the node points on the
// wires.
func chain(cells ...topology.Cell) topology.Sequence {
	seq := topology.NewSequence(topology.NewNode(cells[0]))
	for _, c := range cells[1:] {
		seq.Nodes = append(seq.Nodes, topology.NewNode(c))
		seq.AppendStep(0, 1)
	}
	return seq
}

func TestGapNumber(t *testing.T) {
	cfg := testConfig()
	cfg.PlanesPerBlock = []int{4, 2, 3}
	r := newTestRun(cfg)

	tests := []struct {
		layer int
		want  int
	}{
		{0, 0},
		{1, -1},
		{2, -1},
		{3, 1},
		{4, 1},
		{5, 2},
		{6, 2},
		{7, -1},
		{8, 3},
		{9, 3},
		{-3, 1},
		{12, -1},
	}
	for _, tt := range tests {
		got := r.gapNumber(topology.Cell{Layer: tt.layer})
		assert.Equal(t, tt.want, got, "layer %d", tt.layer)
	}
}

func TestGapWidth(t *testing.T) {
	r := newTestRun(testConfig())
	assert.Equal(t, 0.0, r.gapWidth(0))
	assert.Equal(t, 20.0, r.gapWidth(1))
	assert.Equal(t, 0.0, r.gapWidth(2))
	assert.Equal(t, 0.0, r.gapWidth(-1))
}

func TestNearCalo(t *testing.T) {
	cfg := testConfig()
	cfg.NOffLayers = 1
	r := newTestRun(cfg)

	edge := gridCell(0, 3, 0, 10)
	inner := gridCell(1, 1, 0, 10)
	hit := topology.CaloHit{ID: 7, Layer: 4, Position: geom.P(0, 0, 300, 1)}
	behind := topology.CaloHit{ID: 8, Layer: 4, Position: geom.P(0, 0, -300, 1)}
	far := topology.CaloHit{ID: 9, Layer: 6, Position: geom.P(0, 0, 300, 1)}

	assert.True(t, r.near(edge, hit))
	assert.False(t, r.near(inner, hit), "cell inside a block")
	assert.False(t, r.near(edge, behind), "other side of the foil")
	assert.False(t, r.near(edge, far), "too many layers away")
}

func TestWithinRangeWithoutHelix(t *testing.T) {
	r := newTestRun(testConfig())
	seq := chain(gridCell(0, 0, 0, 1), gridCell(1, 1, 0, 1))
	assert.True(t, r.withinRange(seq.Nodes[0], seq.Nodes[1], seq))

	cfg := testConfig()
	cfg.GapsZ = nil
	seq.HasHelix = true
	assert.True(t, newTestRun(cfg).withinRange(seq.Nodes[0], seq.Nodes[1], seq))
}

func TestWithinRangeStraightTrack(t *testing.T) {
	r := newTestRun(testConfig())
	seq := chain(gridCell(0, 0, 0, 1), gridCell(1, 1, 0, 1), gridCell(2, 2, 0, 1))
	require.True(t, seq.CalculateHelix())
	assert.True(t, r.inRange(seq))
}

func TestGoodFirstNode(t *testing.T) {
	c0, c1, c2, c3 := gridCell(0, 1, 1, 10), gridCell(1, 0, 1, 10), gridCell(2, 2, 1, 10), gridCell(3, 3, 1, 10)

	t.Run("multi vertex drops reached partners", func(t *testing.T) {
		r := newTestRun(testConfig())
		r.sequences = []topology.Sequence{chain(c0, c1)}
		n := topology.Node{Cell: c0, Couplets: []topology.Couplet{{CA: c0, CB: c1}, {CA: c0, CB: c2}}}
		require.Equal(t, topology.TypeMultiVertex, n.TopologicalType())

		assert.True(t, r.goodFirstNode(&n))
		require.Len(t, n.Couplets, 1)
		assert.Equal(t, c2.ID, n.Couplets[0].CB.ID)
	})

	t.Run("used vertex", func(t *testing.T) {
		r := newTestRun(testConfig())
		r.sequences = []topology.Sequence{chain(c1, c0)}
		n := topology.Node{Cell: c0, Couplets: []topology.Couplet{{CA: c0, CB: c1}}}
		assert.False(t, r.goodFirstNode(&n))
	})

	t.Run("fresh vertex", func(t *testing.T) {
		r := newTestRun(testConfig())
		r.sequences = []topology.Sequence{chain(c2, c3)}
		n := topology.Node{Cell: c0, Couplets: []topology.Couplet{{CA: c0, CB: c1}}}
		assert.True(t, r.goodFirstNode(&n))
	})

	t.Run("bridge", func(t *testing.T) {
		r := newTestRun(testConfig())
		n := topology.Node{
			Cell:     c0,
			Couplets: []topology.Couplet{{CA: c0, CB: c1}, {CA: c0, CB: c2}},
			Triplets: []topology.Triplet{{CA: c1, CB: c0, CC: c2}},
		}
		assert.False(t, r.goodFirstNode(&n))
	})
}

func TestChi2Change(t *testing.T) {
	seq := chain(gridCell(0, 0, 0, 1), gridCell(1, 1, 0, 1), gridCell(2, 2, 0, 1))
	a, b := seq.Nodes[1].EP, seq.Nodes[2].EP

	dA, dAlpha := chi2Change(&seq, a, b)
	assert.Zero(t, dA)
	assert.Zero(t, dAlpha)

	bent := b
	bent.X = geom.D(20, b.X.Error)
	dA, _ = chi2Change(&seq, a, bent)
	assert.Greater(t, dA, 0.0)

	short := chain(gridCell(0, 0, 0, 1), gridCell(1, 1, 0, 1))
	dA, dAlpha = chi2Change(&short, a, bent)
	assert.Zero(t, dA)
	assert.Zero(t, dAlpha)
}

func TestClampChange(t *testing.T) {
	assert.Equal(t, 2.0, clampChange(1, 2))
	assert.Equal(t, -0.5, clampChange(1, -0.5))
	assert.Zero(t, clampChange(1, -1))
	assert.Zero(t, clampChange(1, -3))
}

func TestCompatibleProbMinMonotonic(t *testing.T) {
	a, b, c := gridCell(0, 0, 0, 10), gridCell(1, 1, 0, 10), gridCell(2, 2, 1, 10)
	clusters := clustering.BuildClusters([]topology.Cell{a, b, c}, clustering.DefaultConfig())
	require.Len(t, clusters, 1)
	cl := clusters[0]

	seed, ok := cl.NodeOfCell(a.ID)
	require.True(t, ok)
	seq := topology.NewSequence(seed)
	require.True(t, newTestRun(testConfig()).evolve(&seq, &cl))
	require.Len(t, seq.Nodes, 2)

	idx, ok := seq.LinkIndexOfCell(1, c)
	require.True(t, ok)
	tr := seq.Nodes[1].Triplets[idx]
	require.NotEmpty(t, tr.Joints)

	probMins := []float64{0, 1e-200, 1e-10, 1e-3, 0.5, 0.99, 1}
	for ij, joint := range tr.Joints {
		if tr.CA.ID == c.ID {
			joint = joint.Invert()
		}
		rejected := false
		for _, pm := range probMins {
			cfg := testConfig()
			cfg.ProbMin = pm
			s, j := seq.Clone(), joint
			accepted := newTestRun(cfg).compatible(&s, &j, c)
			if rejected {
				assert.False(t, accepted, "joint %d accepted at probmin %g after a rejection", ij, pm)
			}
			rejected = rejected || !accepted
			assert.Len(t, s.Chi2sAll, len(seq.Chi2sAll)+1, "every evaluation is recorded")
		}
		assert.True(t, rejected, "nothing passes probmin 1")
	}
}

func TestCompatibleTooShort(t *testing.T) {
	seq := chain(gridCell(0, 0, 0, 10))
	j := topology.Joint{}
	assert.False(t, newTestRun(testConfig()).compatible(&seq, &j, gridCell(1, 1, 0, 10)))
}

func TestEvolveIsolatedCell(t *testing.T) {
	c := gridCell(0, 0, 0, 10)
	cl := topology.Cluster{Nodes: []topology.Node{topology.NewNode(c)}}
	seq := topology.NewSequence(cl.Nodes[0])

	r := newTestRun(testConfig())
	assert.False(t, r.evolve(&seq, &cl))
	require.Len(t, seq.Nodes, 1)
	assert.Equal(t, c.R.Value, seq.Nodes[0].EP.X.Error)
	assert.Equal(t, c.R.Value, seq.Nodes[0].EP.Z.Error)
	assert.False(t, seq.Free)
}

func TestPickBestScenario(t *testing.T) {
	_, ok := pickBestScenario(nil)
	assert.False(t, ok)

	one := topology.Sequence{Names: []string{"track_0_0"}}
	two := topology.Sequence{Names: []string{"track_1_0"}}
	scenarios := []topology.Scenario{
		{Sequences: []topology.Sequence{one}, NFreeFamilies: 1},
		{Sequences: []topology.Sequence{one, two}, NFreeFamilies: 0, NOverlaps: 1},
		{Sequences: []topology.Sequence{two, one}, NFreeFamilies: 0, NOverlaps: 1},
		{Sequences: []topology.Sequence{two}, NFreeFamilies: 1},
	}
	best, ok := pickBestScenario(scenarios)
	require.True(t, ok)
	assert.Equal(t, "track_0_0", best.Sequences[0].Name(), "ties keep the earlier scenario")
	assert.Equal(t, 0, best.NFreeFamilies)
}

func TestDirectOutOfFoil(t *testing.T) {
	seq := chain(gridCell(0, 2, 0, 1), gridCell(1, 1, 0, 1), gridCell(2, 0, 0, 1))
	seqs := []topology.Sequence{seq}
	directOutOfFoil(seqs)
	assert.Equal(t, []int{2, 1, 0}, cellIDs(seqs[0]))

	directOutOfFoil(seqs)
	assert.Equal(t, []int{2, 1, 0}, cellIDs(seqs[0]), "already outward")
}

func TestMakeFamilies(t *testing.T) {
	r := newTestRun(testConfig())
	for _, name := range []string{"track_2_0", "track_0_0", "track_2_1", "track_1_0"} {
		r.sequences = append(r.sequences, topology.Sequence{Names: []string{name}})
	}
	r.makeFamilies()
	assert.Equal(t, []int{2, 0, 1}, r.families)
}

func TestCleanUpDropsContained(t *testing.T) {
	r := newTestRun(testConfig())
	long := chain(gridCell(0, 0, 0, 1), gridCell(1, 1, 0, 1), gridCell(2, 2, 0, 1))
	long.SetName("track_0_0")
	short := chain(gridCell(1, 1, 0, 1), gridCell(2, 2, 0, 1))
	short.SetName("track_1_0")

	r.sequences = []topology.Sequence{long, short}
	assert.True(t, r.cleanUp())
	require.Len(t, r.sequences, 1)
	assert.Equal(t, "track_0_0", r.sequences[0].Name())

	r.sequences = []topology.Sequence{short, long}
	assert.True(t, r.cleanUp())
	require.Len(t, r.sequences, 1)
	assert.Equal(t, "track_0_0", r.sequences[0].Name())

	r.sequences = []topology.Sequence{long}
	assert.False(t, r.cleanUp())
}
