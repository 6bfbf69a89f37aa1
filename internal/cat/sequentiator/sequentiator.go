// Package sequentiator grows track candidates cell by cell through the
// clusters of an event, cleans and merges them, and picks the scenario
// that best explains the event.
package sequentiator

import (
	"context"
	"time"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/clustering"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/timeutil"
)

// Result is the outcome of one event.
type Result struct {
	Scenario    topology.Scenario   `json:"scenario"`
	HasScenario bool                `json:"has_scenario"`
	Sequences   []topology.Sequence `json:"sequences"`
	// Skipped is set when the time budget ran out; nothing else is then
	// filled in.
	Skipped bool          `json:"skipped"`
	Elapsed time.Duration `json:"elapsed"`
}

// Sequentiator reconstructs events one at a time. It keeps no state
// between events and may be shared.
type Sequentiator struct {
	cfg   Config
	clock timeutil.Clock
}

// New returns a Sequentiator timing events with clock. A nil clock uses
// the wall clock.
func New(cfg Config, clock timeutil.Clock) *Sequentiator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Sequentiator{cfg: cfg.clone(), clock: clock}
}

// Config returns a copy of the parameters in use.
func (s *Sequentiator) Config() Config {
	return s.cfg.clone()
}

// Reconstruct clusters the cells of ev and sequentiates the clusters.
func (s *Sequentiator) Reconstruct(ctx context.Context, ev topology.Event, ccfg clustering.Config) (Result, error) {
	clusters := clustering.BuildClusters(ev.Cells, ccfg)
	res, err := s.Sequentiate(ctx, clusters, ev.CaloHits)
	if err != nil {
		return res, err
	}
	if res.Skipped {
		cat.Opsf("event %d skipped after %v", ev.ID, res.Elapsed)
	}
	return res, nil
}

// Sequentiate runs the growth automaton over clusters, then cleanup,
// physics interpretation, gap matching and the scenario search. The
// clusters are not modified. An error is returned only when ctx is done.
func (s *Sequentiator) Sequentiate(ctx context.Context, clusters []topology.Cluster, calos []topology.CaloHit) (Result, error) {
	r := &run{
		cfg:      s.cfg,
		ctx:      ctx,
		deadline: NewDeadline(s.clock, s.cfg.MaxTime),
		calos:    calos,
		nFamily:  -1,
	}
	r.clusters = make([]topology.Cluster, len(clusters))
	for i, cl := range clusters {
		nodes := make([]topology.Node, len(cl.Nodes))
		for k, n := range cl.Nodes {
			nodes[k] = n.Clone()
		}
		r.clusters[i] = topology.Cluster{Nodes: nodes}
	}

	res := r.execute()
	res.Elapsed = r.deadline.Elapsed()
	switch r.phase {
	case Stop:
		return Result{Elapsed: res.Elapsed}, ctx.Err()
	case SkipEvent:
		return Result{Skipped: true, Elapsed: res.Elapsed}, nil
	}
	return res, nil
}

// run is the working set of one event.
type run struct {
	cfg      Config
	ctx      context.Context
	deadline *Deadline
	phase    Phase

	clusters  []topology.Cluster
	calos     []topology.CaloHit
	sequences []topology.Sequence
	families  []int

	nFamily int
	nCopy   int
}

// late checks the deadline. Once it fires it stays fired.
func (r *run) late() bool {
	if r.phase == Continue {
		r.phase = r.deadline.Check(r.ctx)
	}
	return r.phase != Continue
}

func (r *run) execute() Result {
	if len(r.clusters) == 0 {
		return Result{}
	}
	for i := range r.clusters {
		r.sequentiateCluster(&r.clusters[i])
		if r.late() {
			return Result{}
		}
	}
	cat.Diagf("%d clusters grew %d sequences", len(r.clusters), len(r.sequences))

	r.cleanUp()
	r.directOutOfFoil()
	r.interpretPhysics()
	r.makeFamilies()
	r.matchGaps()
	r.cleanUp()
	r.directOutOfFoil()
	r.refineNearWalls()
	r.interpretPhysics()
	if r.late() {
		return Result{}
	}

	sc, ok := r.makeScenarios()
	if r.late() {
		return Result{}
	}
	if ok {
		cat.Diagf("best scenario: %d sequences, %d free families, %d overlaps, chi2 %.3g/%d",
			len(sc.Sequences), sc.NFreeFamilies, sc.NOverlaps, sc.Chi2, sc.Ndof)
	}
	return Result{Scenario: sc, HasScenario: ok, Sequences: r.sequences}
}

// name labels seq with the current family and copy numbers.
func (r *run) name(seq *topology.Sequence) {
	seq.SetName(topology.MakeName(r.nFamily, r.nCopy))
}
