package monitor

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/sequentiator"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
)

// circleSegments is the number of chords drawn per drift circle.
const circleSegments = 36

var (
	cellColor  = color.RGBA{R: 90, G: 90, B: 90, A: 255}
	wireColor  = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	caloColor  = color.RGBA{R: 200, G: 40, B: 40, A: 255}
	foilColor  = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	rejectGrey = color.RGBA{R: 170, G: 170, B: 170, A: 255}
)

// EventPlotter records reconstructed events and draws each one in the
// bending (x, z) view: drift circles, calorimeter hits, candidate
// sequences dashed and the chosen scenario in colour.
type EventPlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string
	events    []recordedEvent
}

type recordedEvent struct {
	event  topology.Event
	result sequentiator.Result
}

// NewEventPlotter returns a disabled plotter.
func NewEventPlotter() *EventPlotter {
	return &EventPlotter{}
}

// Start enables recording into outputDir, creating it if needed.
func (ep *EventPlotter) Start(outputDir string) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	ep.outputDir = outputDir
	ep.enabled = true
	ep.events = nil
	return nil
}

// Stop disables recording. Call GeneratePlots to write the files.
func (ep *EventPlotter) Stop() {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.enabled = false
}

// IsEnabled reports whether Record keeps events.
func (ep *EventPlotter) IsEnabled() bool {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.enabled
}

// Record keeps ev and its reconstruction for plotting. Skipped events are
// kept too and drawn without tracks.
func (ep *EventPlotter) Record(ev topology.Event, res sequentiator.Result) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if !ep.enabled {
		return
	}
	ep.events = append(ep.events, recordedEvent{event: ev, result: res})
}

// EventCount returns the number of recorded events.
func (ep *EventPlotter) EventCount() int {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return len(ep.events)
}

// OutputDir returns the directory plots are written to.
func (ep *EventPlotter) OutputDir() string {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	return ep.outputDir
}

// GeneratePlots writes one PNG per recorded event and returns how many
// were written.
func (ep *EventPlotter) GeneratePlots() (int, error) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if ep.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}

	n := 0
	for _, rec := range ep.events {
		p, err := eventPlot(rec.event, rec.result)
		if err != nil {
			return n, fmt.Errorf("event %d: %w", rec.event.ID, err)
		}
		file := filepath.Join(ep.outputDir, EventPlotName(rec.event.ID))
		if err := p.Save(8*vg.Inch, 8*vg.Inch, file); err != nil {
			return n, fmt.Errorf("save event %d: %w", rec.event.ID, err)
		}
		n++
	}
	return n, nil
}

// EventPlotName is the file name of the plot of event id.
func EventPlotName(id int) string {
	return fmt.Sprintf("event_%05d_xz.png", id)
}

func eventPlot(ev topology.Event, res sequentiator.Result) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = eventTitle(ev, res)
	p.X.Label.Text = "z (mm)"
	p.Y.Label.Text = "x (mm)"
	p.Add(plotter.NewGrid())

	if len(ev.Cells) > 0 {
		wires := make(plotter.XYs, len(ev.Cells))
		for i, c := range ev.Cells {
			wires[i] = plotter.XY{X: c.EP.Z.Value, Y: c.EP.X.Value}
			if c.R.Value <= 0 {
				continue
			}
			circle, err := plotter.NewLine(driftCircle(c))
			if err != nil {
				return nil, err
			}
			circle.Color = cellColor
			circle.Width = vg.Points(0.5)
			p.Add(circle)
		}
		s, err := plotter.NewScatter(wires)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Shape = draw.CrossGlyph{}
		s.GlyphStyle.Color = wireColor
		s.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(s)
	}

	if len(ev.CaloHits) > 0 {
		hits := make(plotter.XYs, len(ev.CaloHits))
		for i, h := range ev.CaloHits {
			hits[i] = plotter.XY{X: h.Position.Z.Value, Y: h.Position.X.Value}
		}
		s, err := plotter.NewScatter(hits)
		if err != nil {
			return nil, err
		}
		s.GlyphStyle.Shape = draw.TriangleGlyph{}
		s.GlyphStyle.Color = caloColor
		s.GlyphStyle.Radius = vg.Points(4)
		p.Add(s)
		p.Legend.Add("calo", s)
	}

	chosen := make(map[string]bool)
	if res.HasScenario {
		for _, s := range res.Scenario.Sequences {
			chosen[s.Name()] = true
		}
	}
	for _, s := range res.Sequences {
		if chosen[s.Name()] || len(s.Nodes) < 2 {
			continue
		}
		l, err := plotter.NewLine(trackPoints(s))
		if err != nil {
			return nil, err
		}
		l.Color = rejectGrey
		l.Width = vg.Points(0.75)
		l.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
		p.Add(l)
	}
	if res.HasScenario {
		colors := trackColors(len(res.Scenario.Sequences))
		for i, s := range res.Scenario.Sequences {
			if len(s.Nodes) == 0 {
				continue
			}
			l, pts, err := plotter.NewLinePoints(trackPoints(s))
			if err != nil {
				return nil, err
			}
			l.Color = colors[i]
			l.Width = vg.Points(1.5)
			pts.GlyphStyle.Color = colors[i]
			pts.GlyphStyle.Shape = draw.CircleGlyph{}
			pts.GlyphStyle.Radius = vg.Points(2)
			p.Add(l, pts)
			p.Legend.Add(s.Name(), l)
		}
	}

	if lo, hi, ok := xExtent(ev); ok {
		foil, err := plotter.NewLine(plotter.XYs{{X: 0, Y: lo}, {X: 0, Y: hi}})
		if err != nil {
			return nil, err
		}
		foil.Color = foilColor
		foil.Width = vg.Points(2)
		p.Add(foil)
		p.Legend.Add("foil", foil)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

func eventTitle(ev topology.Event, res sequentiator.Result) string {
	switch {
	case res.Skipped:
		return fmt.Sprintf("Event %d - skipped after %s", ev.ID, res.Elapsed.Round(time.Millisecond))
	case res.HasScenario:
		sc := res.Scenario
		return fmt.Sprintf("Event %d - %d tracks, chi2/ndof %.2f/%d", ev.ID, len(sc.Sequences), sc.Chi2, sc.Ndof)
	}
	return fmt.Sprintf("Event %d - no scenario", ev.ID)
}

// driftCircle approximates the drift circle of c in the (z, x) plane.
func driftCircle(c topology.Cell) plotter.XYs {
	pts := make(plotter.XYs, circleSegments+1)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / circleSegments
		pts[i] = plotter.XY{
			X: c.EP.Z.Value + c.R.Value*math.Sin(a),
			Y: c.EP.X.Value + c.R.Value*math.Cos(a),
		}
	}
	return pts
}

// trackPoints lists the node points of s, with its vertices at either end
// when they were attached.
func trackPoints(s topology.Sequence) plotter.XYs {
	pts := make(plotter.XYs, 0, len(s.Nodes)+2)
	if s.HelixVertex.Set {
		pts = append(pts, plotter.XY{X: s.HelixVertex.Point.Z.Value, Y: s.HelixVertex.Point.X.Value})
	}
	for _, n := range s.Nodes {
		pts = append(pts, plotter.XY{X: n.EP.Z.Value, Y: n.EP.X.Value})
	}
	if s.DecayHelixVertex.Set {
		pts = append(pts, plotter.XY{X: s.DecayHelixVertex.Point.Z.Value, Y: s.DecayHelixVertex.Point.X.Value})
	}
	return pts
}

// xExtent returns the x range covered by the event's hits.
func xExtent(ev topology.Event) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, c := range ev.Cells {
		lo = math.Min(lo, c.EP.X.Value-c.R.Value)
		hi = math.Max(hi, c.EP.X.Value+c.R.Value)
	}
	for _, h := range ev.CaloHits {
		lo = math.Min(lo, h.Position.X.Value)
		hi = math.Max(hi, h.Position.X.Value)
	}
	return lo, hi, lo <= hi
}

// MakePlotOutputDir names a per-run plot directory under baseDir:
// <baseDir>/<input basename>/<timestamp>, or <baseDir>/run_<timestamp>
// without an input file.
func MakePlotOutputDir(baseDir, inputFile string, now time.Time) string {
	ts := now.Format("20060102_150405")
	if inputFile == "" {
		return filepath.Join(baseDir, "run_"+ts)
	}
	base := filepath.Base(inputFile)
	return filepath.Join(baseDir, sanitizeName(base[:len(base)-len(filepath.Ext(base))]), ts)
}

// sanitizeName keeps ASCII letters, digits, dot, dash and underscore and
// collapses every other run of characters into one underscore.
func sanitizeName(s string) string {
	var b strings.Builder
	under := false
	for _, r := range s {
		ok := r == '.' || r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		switch {
		case ok:
			b.WriteRune(r)
			under = false
		case !under:
			b.WriteByte('_')
			under = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "events"
	}
	return out
}
