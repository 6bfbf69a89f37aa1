package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/clustering"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/monitor"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/sequentiator"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/storage/sqlite"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/config"
)

type runOptions struct {
	input      string
	configPath string
	dbPath     string
	plotsDir   string
	printLevel string
	charts     bool
}

func newRunCmd() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconstruct the events of an events file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), o)
		},
	}
	cmd.Flags().StringVarP(&o.input, "input", "i", "", "events file (JSON)")
	cmd.Flags().StringVarP(&o.configPath, "config", "c", "", "track finder config (JSON or YAML); built-in defaults when empty")
	cmd.Flags().StringVar(&o.dbPath, "db", "", "record the run in this SQLite ledger")
	cmd.Flags().StringVar(&o.plotsDir, "plots", "", "write event plots under this directory")
	cmd.Flags().StringVar(&o.printLevel, "print-level", "", "mute, normal, verbose or vverbose; overrides the config")
	cmd.Flags().BoolVar(&o.charts, "charts", false, "with --plots, also write chi2 history charts")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func loadConfig(path string) (*config.CATConfig, error) {
	if path == "" {
		return config.DefaultCATConfig(), nil
	}
	return config.LoadCATConfig(path)
}

func runEvents(ctx context.Context, out, logw io.Writer, o runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}
	levelName := cfg.GetPrintLevel()
	if o.printLevel != "" {
		levelName = o.printLevel
	}
	level, err := cat.ParsePrintLevel(levelName)
	if err != nil {
		return err
	}
	cat.SetPrintLevel(level, logw)

	events, err := readEvents(o.input)
	if err != nil {
		return err
	}

	finder := sequentiator.New(sequentiator.ConfigFromCAT(cfg), nil)
	clusterCfg := clustering.ConfigFromCAT(cfg)

	var (
		store *sqlite.RunStore
		runID string
	)
	if o.dbPath != "" {
		db, err := sqlite.OpenDB(o.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := sqlite.MigrateUp(db, nil); err != nil {
			return err
		}
		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		store = sqlite.NewRunStore(db, nil)
		if runID, err = store.StartRun(cfgJSON); err != nil {
			return err
		}
		cat.Opsf("run %s started: %d events", runID, len(events))
	}

	var plotter *monitor.EventPlotter
	if o.plotsDir != "" {
		plotter = monitor.NewEventPlotter()
		if err := plotter.Start(monitor.MakePlotOutputDir(o.plotsDir, o.input, time.Now())); err != nil {
			return err
		}
	}

	for _, ev := range events {
		res, err := finder.Reconstruct(ctx, ev, clusterCfg)
		if err != nil {
			return fmt.Errorf("event %d: %w", ev.ID, err)
		}
		fmt.Fprintln(out, summaryLine(ev, res))

		if store != nil {
			if err := store.RecordEvent(runID, sqlite.Summarize(ev, res)); err != nil {
				return err
			}
		}
		if plotter != nil {
			plotter.Record(ev, res)
			if o.charts {
				if err := writeChi2Chart(plotter.OutputDir(), ev, res); err != nil {
					return err
				}
			}
		}
	}

	if store != nil {
		if err := store.FinishRun(runID); err != nil {
			return err
		}
		run, err := store.GetRun(runID)
		if err != nil {
			return err
		}
		cat.Opsf("run %s finished: %d events, %d skipped", run.RunID, run.NEvents, run.NSkipped)
		if plotter != nil {
			if err := writeRunSummary(plotter.OutputDir(), store, *run); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "run %s\n", runID)
	}
	if plotter != nil {
		plotter.Stop()
		n, err := plotter.GeneratePlots()
		if err != nil {
			return err
		}
		log.Printf("wrote %d event plots to %s", n, plotter.OutputDir())
	}
	return nil
}

func summaryLine(ev topology.Event, res sequentiator.Result) string {
	switch {
	case res.Skipped:
		return fmt.Sprintf("event %d: skipped after %s", ev.ID, res.Elapsed.Round(time.Millisecond))
	case !res.HasScenario:
		return fmt.Sprintf("event %d: cells=%d no tracks", ev.ID, len(ev.Cells))
	}
	sc := res.Scenario
	return fmt.Sprintf("event %d: cells=%d sequences=%d tracks=%d free=%d chi2=%.3f ndof=%d prob=%.3g",
		ev.ID, len(ev.Cells), len(res.Sequences), len(sc.Sequences),
		sc.NFreeCells(ev.Cells, ev.CaloHits), sc.Chi2, sc.Ndof, sc.Prob())
}

func writeChi2Chart(dir string, ev topology.Event, res sequentiator.Result) error {
	f, err := os.Create(filepath.Join(dir, fmt.Sprintf("event_%05d_chi2.html", ev.ID)))
	if err != nil {
		return fmt.Errorf("create chi2 chart: %w", err)
	}
	defer f.Close()
	if err := monitor.RenderChi2History(f, ev, res); err != nil {
		return fmt.Errorf("render chi2 chart: %w", err)
	}
	return f.Close()
}

func writeRunSummary(dir string, store *sqlite.RunStore, run sqlite.Run) error {
	events, err := store.ListEvents(run.RunID)
	if err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, "run_summary.html"))
	if err != nil {
		return fmt.Errorf("create run summary: %w", err)
	}
	defer f.Close()
	if err := monitor.RenderRunSummary(f, run, events); err != nil {
		return fmt.Errorf("render run summary: %w", err)
	}
	return f.Close()
}
