package monitor

import (
	"bytes"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/geom"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/sequentiator"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/storage/sqlite"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
)

func testCell(id, layer int) topology.Cell {
	return topology.Cell{
		ID:    id,
		Layer: layer,
		Block: 1,
		EP:    geom.P(0, 0, 44*float64(layer+1), 0.5),
		R:     geom.D(10, 0.5),
	}
}

func testEvent() (topology.Event, sequentiator.Result) {
	cells := []topology.Cell{testCell(0, 0), testCell(1, 1), testCell(2, 2)}
	ev := topology.Event{
		ID:       3,
		Cells:    cells,
		CaloHits: []topology.CaloHit{{ID: 1, Layer: 3, Block: 1, Position: geom.P(0, 0, 200, 1)}},
	}
	seq := topology.NewSequence(topology.NewNode(cells[0]))
	for _, c := range cells[1:] {
		seq.Nodes = append(seq.Nodes, topology.NewNode(c))
		seq.AppendStep(0.5, 0.9)
	}
	seq.SetName("track_0_0")
	seq.Chi2sAll = []float64{0.5, 0, 2.5, math.Inf(1)}

	other := topology.NewSequence(topology.NewNode(cells[0]))
	other.Nodes = append(other.Nodes, topology.NewNode(cells[1]))
	other.SetName("track_0_1")

	res := sequentiator.Result{
		Sequences:   []topology.Sequence{seq, other},
		Scenario:    topology.Scenario{Sequences: []topology.Sequence{seq}, Chi2: 1, Ndof: 2},
		HasScenario: true,
	}
	return ev, res
}

func TestEventPlotter_StartStop(t *testing.T) {
	ep := NewEventPlotter()
	assert.False(t, ep.IsEnabled())

	dir := filepath.Join(t.TempDir(), "nested", "plots")
	require.NoError(t, ep.Start(dir))
	assert.True(t, ep.IsEnabled())
	assert.Equal(t, dir, ep.OutputDir())
	_, err := os.Stat(dir)
	assert.NoError(t, err, "Start creates the directory")

	ep.Stop()
	assert.False(t, ep.IsEnabled())
}

func TestEventPlotter_RecordDisabled(t *testing.T) {
	ep := NewEventPlotter()
	ev, res := testEvent()
	ep.Record(ev, res)
	assert.Zero(t, ep.EventCount())
}

func TestEventPlotter_GeneratePlotsNoOutputDir(t *testing.T) {
	_, err := NewEventPlotter().GeneratePlots()
	assert.Error(t, err)
}

func TestEventPlotter_GeneratePlots(t *testing.T) {
	ep := NewEventPlotter()
	dir := t.TempDir()
	require.NoError(t, ep.Start(dir))

	ev, res := testEvent()
	ep.Record(ev, res)
	skipped := topology.Event{ID: 4, Cells: ev.Cells}
	ep.Record(skipped, sequentiator.Result{Skipped: true, Elapsed: 5 * time.Second})
	ep.Record(topology.Event{ID: 5}, sequentiator.Result{})
	ep.Stop()
	require.Equal(t, 3, ep.EventCount())

	n, err := ep.GeneratePlots()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for _, id := range []int{3, 4, 5} {
		info, err := os.Stat(filepath.Join(dir, EventPlotName(id)))
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestEventPlotter_StartResetsEvents(t *testing.T) {
	ep := NewEventPlotter()
	require.NoError(t, ep.Start(t.TempDir()))
	ev, res := testEvent()
	ep.Record(ev, res)
	require.NoError(t, ep.Start(t.TempDir()))
	assert.Zero(t, ep.EventCount())
}

func TestEventTitle(t *testing.T) {
	ev, res := testEvent()
	assert.Equal(t, "Event 3 - 1 tracks, chi2/ndof 1.00/2", eventTitle(ev, res))
	assert.Equal(t, "Event 3 - skipped after 5s", eventTitle(ev, sequentiator.Result{Skipped: true, Elapsed: 5 * time.Second}))
	assert.Equal(t, "Event 3 - no scenario", eventTitle(ev, sequentiator.Result{}))
}

func TestTrackPointsWithVertices(t *testing.T) {
	_, res := testEvent()
	seq := res.Sequences[0]
	assert.Len(t, trackPoints(seq), 3)

	seq.HelixVertex = topology.Vertex{Point: geom.P(0, 0, 0, 1), Kind: topology.VertexFoil, Set: true}
	seq.DecayHelixVertex = topology.Vertex{Point: geom.P(0, 0, 200, 1), Kind: topology.VertexCalo, CaloID: 1, Set: true}
	pts := trackPoints(seq)
	require.Len(t, pts, 5)
	assert.Equal(t, 0.0, pts[0].X)
	assert.Equal(t, 200.0, pts[4].X)
}

func TestDriftCircle(t *testing.T) {
	c := testCell(0, 0)
	pts := driftCircle(c)
	require.Len(t, pts, circleSegments+1)
	for _, p := range pts {
		assert.InDelta(t, c.R.Value, math.Hypot(p.X-c.EP.Z.Value, p.Y-c.EP.X.Value), 1e-9)
	}
	assert.InDelta(t, pts[0].X, pts[circleSegments].X, 1e-9, "closed")
}

func TestXExtent(t *testing.T) {
	_, _, ok := xExtent(topology.Event{})
	assert.False(t, ok)

	ev, _ := testEvent()
	lo, hi, ok := xExtent(ev)
	require.True(t, ok)
	assert.Equal(t, -10.0, lo)
	assert.Equal(t, 10.0, hi)
}

func TestTrackColors(t *testing.T) {
	assert.Nil(t, trackColors(0))

	colors := trackColors(4)
	require.Len(t, colors, 4)
	seen := make(map[color.Color]bool)
	for _, c := range colors {
		assert.False(t, seen[c], "colour %v repeated", c)
		seen[c] = true
	}
}

func TestHslToRGB(t *testing.T) {
	tests := []struct {
		name    string
		h, s, l float64
		r, g, b uint8
	}{
		{"black", 0, 0, 0, 0, 0, 0},
		{"white", 0, 0, 1, 255, 255, 255},
		{"red", 0, 1, 0.5, 255, 0, 0},
		{"green", 1.0 / 3.0, 1, 0.5, 0, 255, 0},
		{"blue", 2.0 / 3.0, 1, 0.5, 0, 0, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := hslToRGB(tt.h, tt.s, tt.l)
			assert.InDelta(t, tt.r, r, 1)
			assert.InDelta(t, tt.g, g, 1)
			assert.InDelta(t, tt.b, b, 1)
		})
	}
}

func TestMakePlotOutputDir(t *testing.T) {
	now := time.Date(2026, 3, 1, 17, 31, 29, 0, time.UTC)
	assert.Equal(t, filepath.Join("plots", "events", "20260301_173129"), MakePlotOutputDir("plots", "/data/events.json", now))
	assert.Equal(t, filepath.Join("plots", "run_20260301_173129"), MakePlotOutputDir("plots", "", now))
	assert.Equal(t, filepath.Join("plots", "run_7_-_calib", "20260301_173129"), MakePlotOutputDir("plots", "in/run 7 - calib.json", now))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"events", "events"},
		{"run 7 (calib)", "run_7_calib"},
		{"..hidden", "hidden"},
		{"ééé", "events"},
		{"", "events"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeName(tt.in), "input %q", tt.in)
	}
}

func TestRenderChi2History(t *testing.T) {
	ev, res := testEvent()
	var buf bytes.Buffer
	require.NoError(t, RenderChi2History(&buf, ev, res))

	html := buf.String()
	assert.Contains(t, html, "Event 3 compatibility chi2")
	assert.Contains(t, html, "track_0_0")
	assert.NotContains(t, html, "track_0_1", "sequences without evaluations are left out")
}

func TestChi2Series(t *testing.T) {
	data := chi2Series([]float64{0.5, 0, math.NaN(), math.Inf(1), 3})
	require.Len(t, data, 5)
	assert.Equal(t, 0.5, data[0].Value)
	for _, i := range []int{1, 2, 3} {
		assert.Equal(t, "-", data[i].Value, "index %d", i)
	}
	assert.Equal(t, 3.0, data[4].Value)
}

func TestRenderRunSummary(t *testing.T) {
	run := sqlite.Run{RunID: "run_abc", NEvents: 2, NSkipped: 1}
	events := []sqlite.EventSummary{
		{EventID: 1, NSequences: 2, NScenarioSequences: 1, Prob: 0.4},
		{EventID: 2, Skipped: true},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderRunSummary(&buf, run, events))

	html := buf.String()
	assert.True(t, strings.Contains(html, "Sequences per event"))
	assert.Contains(t, html, "Scenario probability")
	assert.Contains(t, html, "run=run_abc events=2 skipped=1")
}
