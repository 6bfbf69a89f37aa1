package topology

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"
)

// helixSequence places nodes on a helix of radius 500 around the y axis,
// with y = 10 + 20*phi.
func helixSequence(phis ...float64) Sequence {
	var s Sequence
	for i, phi := range phis {
		c := layerCell(i, i, 0)
		n := NewNode(c)
		n.EP = geom.P(500*math.Cos(phi), 10+20*phi, 500*math.Sin(phi), 0.1)
		s.Nodes = append(s.Nodes, n)
		if i > 0 {
			s.AppendStep(0, 1)
		}
	}
	return s
}

func TestCalculateHelix(t *testing.T) {
	s := helixSequence(0.1, 0.2, 0.3, 0.4, 0.5)
	require.True(t, s.CalculateHelix())
	assert.True(t, s.FitConverged)
	assert.InDelta(t, 500, s.Helix.Radius.Value, 1e-6)
	assert.InDelta(t, 0, s.Helix.Center.X.Value, 1e-6)
	assert.InDelta(t, 0, s.Helix.Center.Z.Value, 1e-6)
	assert.InDelta(t, 20, s.Helix.Pitch.Value, 1e-6)
	assert.InDelta(t, 10, s.Helix.Center.Y.Value, 1e-6)
	assert.Len(t, s.HelixChi2s, 5)
	assert.InDelta(t, 0, s.HelixChi2(), 1e-6)
	assert.InDelta(t, 1, s.HelixProb(), 1e-9)
}

func TestCalculateHelixCollinear(t *testing.T) {
	s := chain(layerCell(0, 0, 0), layerCell(1, 1, 0), layerCell(2, 2, 0))
	require.True(t, s.CalculateHelix())
	assert.Greater(t, s.Helix.Radius.Value, 1e7)
	assert.InDelta(t, 0, s.Helix.Pitch.Value, 1e-9)

	short := chain(layerCell(0, 0, 0), layerCell(1, 1, 0))
	assert.False(t, short.CalculateHelix())
	assert.False(t, short.HasHelix)
}

func TestCalculateCharge(t *testing.T) {
	s := helixSequence(0.1, 0.2, 0.3, 0.4)
	require.True(t, s.CalculateHelix())
	s.CalculateCharge()
	require.True(t, s.HasCharge)
	assert.Equal(t, 1.0, s.Charge.Value)
	assert.Equal(t, 1.0, s.HelixCharge.Value)
	assert.Equal(t, 1.0, s.DetailedCharge.Value)

	inv := s.Invert()
	assert.Equal(t, -1.0, inv.Charge.Value)
	require.True(t, inv.CalculateHelix())
	inv.CalculateCharge()
	assert.Equal(t, -1.0, inv.Charge.Value)
	assert.Equal(t, -1.0, inv.HelixCharge.Value)

	q, ok := inv.ChargeEstimate()
	assert.True(t, ok)
	assert.Equal(t, -1.0, q.Value)

	straight := chain(layerCell(0, 0, 0), layerCell(1, 1, 0), layerCell(2, 2, 0))
	straight.CalculateCharge()
	assert.False(t, straight.HasCharge)
	assert.False(t, straight.HasDetailed)
}

func TestCalculateMomentumAndLength(t *testing.T) {
	s := helixSequence(0.1, 0.2, 0.3, 0.4, 0.5)
	require.True(t, s.CalculateHelix())
	s.CalculateMomentum(0.0025)
	require.True(t, s.HasMomentum)
	want := 0.3 * 0.0025 * math.Hypot(500, 20)
	assert.InDelta(t, want, s.Momentum.Length().Value, 1e-9)
	assert.Greater(t, s.Momentum.Dot(s.InitialDir()).Value, 0.0)

	s.CalculateLength()
	require.True(t, s.HasHelixLength)
	assert.InDelta(t, math.Hypot(500, 20)*0.4, s.HelixLength.Value, 1e-6)
	require.True(t, s.HasLength)
	assert.Less(t, s.Length.Value, s.HelixLength.Value)

	s.AttachVertex(Vertex{Point: geom.P(500, 10, 0, 1), Kind: VertexFoil}, false, false)
	s.CalculateLength()
	assert.InDelta(t, math.Hypot(500, 20)*0.5, s.HelixLength.Value, 1e-6)
}

func TestCalculateMomentumNaN(t *testing.T) {
	s := helixSequence(0.1, 0.2, 0.3)
	require.True(t, s.CalculateHelix())
	s.Helix.Pitch = geom.D(math.NaN(), 0)

	s.CalculateMomentum(0.0025)
	assert.False(t, s.HasMomentum)
	assert.False(t, s.Momentum.IsNaN(), "NaN momentum is cleared")
	assert.Equal(t, geom.Vector{}, s.Momentum)

	inv := s.Invert()
	assert.False(t, inv.Momentum.IsNaN())
}

func TestExtrapolateToPlane(t *testing.T) {
	s := helixSequence(0.1, 0.2, 0.3, 0.4)
	require.True(t, s.CalculateHelix())

	p, ok := s.HelixAtZ(0, false)
	require.True(t, ok)
	assert.InDelta(t, 500, p.X.Value, 1e-6)
	assert.InDelta(t, 10, p.Y.Value, 1e-6)

	_, ok = s.HelixAtZ(900, true)
	assert.False(t, ok, "the circle never reaches z = 900")

	p, ok = s.TangentAtZ(0, false)
	require.True(t, ok)
	assert.Greater(t, p.X.Value, 490.0)
	_, ok = s.TangentAtZ(0, true)
	assert.False(t, ok, "the end segment points away from the foil")

	s.AttachVertex(Vertex{Point: p, Kind: VertexFoil}, true, false)
	assert.True(t, s.TangentVertex.IsFoil())
	assert.False(t, s.HelixVertex.Set)
}
