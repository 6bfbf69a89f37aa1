package monitor

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/sequentiator"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/storage/sqlite"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
)

// RenderChi2History writes an HTML line chart with one series per
// sequence: the chi2 of every compatibility evaluation made while it grew.
func RenderChi2History(w io.Writer, ev topology.Event, res sequentiator.Result) error {
	longest := 0
	for _, s := range res.Sequences {
		longest = max(longest, len(s.Chi2sAll))
	}
	x := make([]int, longest)
	for i := range x {
		x[i] = i
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: fmt.Sprintf("Event %d chi2", ev.ID), Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Event %d compatibility chi2", ev.ID), Subtitle: fmt.Sprintf("sequences=%d evaluations=%d", len(res.Sequences), longest)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "evaluation", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "chi2", Type: "log"}),
	)
	line.SetXAxis(x)
	for _, s := range res.Sequences {
		if len(s.Chi2sAll) == 0 {
			continue
		}
		line.AddSeries(s.Name(), chi2Series(s.Chi2sAll),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}),
		)
	}
	return line.Render(w)
}

// chi2Series drops the non-positive values a log axis cannot show.
func chi2Series(chi2s []float64) []opts.LineData {
	data := make([]opts.LineData, len(chi2s))
	for i, v := range chi2s {
		if v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) {
			data[i] = opts.LineData{Value: v}
		} else {
			data[i] = opts.LineData{Value: "-"}
		}
	}
	return data
}

// RenderRunSummary writes an HTML page for a stored run: the number of
// sequences per event and the scenario probability per event.
func RenderRunSummary(w io.Writer, run sqlite.Run, events []sqlite.EventSummary) error {
	ids := make([]string, len(events))
	nseq := make([]opts.BarData, len(events))
	nscen := make([]opts.BarData, len(events))
	probs := make([]opts.ScatterData, 0, len(events))
	skipped := 0
	for i, e := range events {
		ids[i] = strconv.Itoa(e.EventID)
		nseq[i] = opts.BarData{Value: e.NSequences}
		nscen[i] = opts.BarData{Value: e.NScenarioSequences}
		if e.Skipped {
			skipped++
			continue
		}
		probs = append(probs, opts.ScatterData{Value: []interface{}{e.EventID, e.Prob}})
	}
	subtitle := fmt.Sprintf("run=%s events=%d skipped=%d", run.RunID, len(events), skipped)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Sequences per event", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(ids).
		AddSeries("sequences", nseq).
		AddSeries("in scenario", nscen)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Scenario probability", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "event", Type: "value", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "prob", Min: 0, Max: 1}),
	)
	scatter.AddSeries("prob", probs, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))

	page := components.NewPage()
	page.AddCharts(bar, scatter)
	return page.Render(w)
}
