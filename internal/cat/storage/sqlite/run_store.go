package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/sequentiator"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/timeutil"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run is one invocation of the track finder over a set of events.
type Run struct {
	RunID      string          `json:"run_id"`
	ConfigJSON json.RawMessage `json:"config_json,omitempty"`
	StartedAt  int64           `json:"started_at"`
	FinishedAt int64           `json:"finished_at,omitempty"`
	NEvents    int             `json:"n_events"`
	NSkipped   int             `json:"n_skipped"`
}

// Finished reports whether FinishRun was called.
func (r Run) Finished() bool { return r.FinishedAt != 0 }

// EventSummary holds the figures of merit of one reconstructed event.
type EventSummary struct {
	EventID            int           `json:"event_id"`
	NCells             int           `json:"n_cells"`
	NFreeCells         int           `json:"n_free_cells"`
	NSequences         int           `json:"n_sequences"`
	NScenarioSequences int           `json:"n_scenario_sequences"`
	NFreeFamilies      int           `json:"n_free_families"`
	NOverlaps          int           `json:"n_overlaps"`
	Chi2               float64       `json:"chi2"`
	Ndof               int           `json:"ndof"`
	Prob               float64       `json:"prob"`
	Skipped            bool          `json:"skipped"`
	Elapsed            time.Duration `json:"elapsed"`
	RecordedAt         int64         `json:"recorded_at"`
}

// Summarize reduces the result of ev to its summary.
func Summarize(ev topology.Event, res sequentiator.Result) EventSummary {
	s := EventSummary{
		EventID:    ev.ID,
		NCells:     len(ev.Cells),
		NFreeCells: len(ev.Cells),
		NSequences: len(res.Sequences),
		Skipped:    res.Skipped,
		Elapsed:    res.Elapsed,
	}
	if res.HasScenario {
		sc := res.Scenario
		s.NFreeCells = sc.NFreeCells(ev.Cells, ev.CaloHits)
		s.NScenarioSequences = len(sc.Sequences)
		s.NFreeFamilies = sc.NFreeFamilies
		s.NOverlaps = sc.NOverlaps
		s.Chi2 = finite(sc.Chi2)
		s.Ndof = sc.Ndof
		s.Prob = finite(sc.Prob())
	}
	return s
}

// finite maps NaN and infinities, which SQLite stores as NULL, to 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// RunStore records runs and their per-event summaries.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore returns a store over a migrated database. A nil clock uses
// the wall clock.
func NewRunStore(db *sql.DB, clock timeutil.Clock) *RunStore {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunStore{db: db, clock: clock}
}

// StartRun opens a run and returns its id.
func (s *RunStore) StartRun(configJSON json.RawMessage) (string, error) {
	runID := "run_" + uuid.New().String()
	var cfg interface{}
	if len(configJSON) > 0 {
		cfg = string(configJSON)
	}
	now := s.clock.Now().UnixNano()
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(`INSERT INTO cat_runs (run_id, config_json, started_at) VALUES (?, ?, ?)`,
			runID, cfg, now)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// RecordEvent stores the summary of one event of run runID. Recording the
// same event twice replaces the first summary.
func (s *RunStore) RecordEvent(runID string, ev EventSummary) error {
	if ev.RecordedAt == 0 {
		ev.RecordedAt = s.clock.Now().UnixNano()
	}
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var exists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM cat_runs WHERE run_id = ?`, runID).Scan(&exists); err != nil {
			return fmt.Errorf("lookup run: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}

		_, err = tx.Exec(`
			INSERT OR REPLACE INTO cat_events (
				run_id, event_id, n_cells, n_free_cells, n_sequences, n_scenario_sequences,
				n_free_families, n_overlaps, chi2, ndof, prob, skipped, elapsed_ns, recorded_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, ev.EventID, ev.NCells, ev.NFreeCells, ev.NSequences, ev.NScenarioSequences,
			ev.NFreeFamilies, ev.NOverlaps, finite(ev.Chi2), ev.Ndof, finite(ev.Prob), ev.Skipped,
			ev.Elapsed.Nanoseconds(), ev.RecordedAt,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		_, err = tx.Exec(`
			UPDATE cat_runs SET
				n_events  = (SELECT COUNT(*) FROM cat_events WHERE run_id = ?),
				n_skipped = (SELECT COUNT(*) FROM cat_events WHERE run_id = ? AND skipped = 1)
			WHERE run_id = ?`, runID, runID, runID)
		if err != nil {
			return fmt.Errorf("update run counters: %w", err)
		}
		return tx.Commit()
	})
}

// FinishRun stamps the end time of run runID.
func (s *RunStore) FinishRun(runID string) error {
	now := s.clock.Now().UnixNano()
	return retryOnBusy(func() error {
		res, err := s.db.Exec(`UPDATE cat_runs SET finished_at = ? WHERE run_id = ?`, now, runID)
		if err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}
		return nil
	})
}

// GetRun returns run runID.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	var r Run
	var cfg sql.NullString
	var finished sql.NullInt64
	err := s.db.QueryRow(`
		SELECT run_id, config_json, started_at, finished_at, n_events, n_skipped
		FROM cat_runs WHERE run_id = ?`, runID).Scan(
		&r.RunID, &cfg, &r.StartedAt, &finished, &r.NEvents, &r.NSkipped)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	if finished.Valid {
		r.FinishedAt = finished.Int64
	}
	return &r, nil
}

// ListRuns returns every run, newest first.
func (s *RunStore) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, started_at, COALESCE(finished_at, 0), n_events, n_skipped
		FROM cat_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt, &r.NEvents, &r.NSkipped); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListEvents returns the event summaries of run runID in event order.
func (s *RunStore) ListEvents(runID string) ([]EventSummary, error) {
	rows, err := s.db.Query(`
		SELECT event_id, n_cells, n_free_cells, n_sequences, n_scenario_sequences,
		       n_free_families, n_overlaps, chi2, ndof, prob, skipped, elapsed_ns, recorded_at
		FROM cat_events WHERE run_id = ? ORDER BY event_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventSummary
	for rows.Next() {
		var e EventSummary
		var elapsed int64
		if err := rows.Scan(&e.EventID, &e.NCells, &e.NFreeCells, &e.NSequences, &e.NScenarioSequences,
			&e.NFreeFamilies, &e.NOverlaps, &e.Chi2, &e.Ndof, &e.Prob, &e.Skipped, &elapsed, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Elapsed = time.Duration(elapsed)
		out = append(out, e)
	}
	return out, rows.Err()
}
