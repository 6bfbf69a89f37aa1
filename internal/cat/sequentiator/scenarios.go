package sequentiator

import (
	"slices"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat"
	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/cat/topology"
)

// makeScenarios builds one scenario per sequence, grows each by adding
// the sequence of another family that improves it most, and returns the
// best of them.
func (r *run) makeScenarios() (topology.Scenario, bool) {
	var scenarios []topology.Scenario
	for _, seq := range r.sequences {
		if r.late() {
			return topology.Scenario{}, false
		}
		sc := topology.Scenario{Sequences: []topology.Sequence{seq.Clone()}}
		sc.Calculate(r.families)
		for r.canAddFamily(&sc) {
		}
		scenarios = append(scenarios, sc)
	}
	for i := range scenarios {
		directOutOfFoil(scenarios[i].Sequences)
	}
	return pickBestScenario(scenarios)
}

// canAddFamily extends sc with the sequence that makes it best, if any
// makes it better.
func (r *run) canAddFamily(sc *topology.Scenario) bool {
	if sc.NFreeFamilies == 0 {
		return false
	}
	best, found := *sc, false
	for _, seq := range r.sequences {
		if sc.HasName(seq.Name()) {
			continue
		}
		trial := topology.Scenario{Sequences: append(slices.Clone(sc.Sequences), seq.Clone())}
		trial.Calculate(r.families)
		if trial.Better(best) {
			best, found = trial, true
		}
	}
	if !found {
		return false
	}
	cat.Tracef("scenario grows to %d sequences, %d free families", len(best.Sequences), best.NFreeFamilies)
	*sc = best
	return true
}

// pickBestScenario returns the best scenario. Equal scenarios keep the
// earlier one.
func pickBestScenario(scenarios []topology.Scenario) (topology.Scenario, bool) {
	if len(scenarios) == 0 {
		return topology.Scenario{}, false
	}
	best := 0
	for i := 1; i < len(scenarios); i++ {
		if scenarios[i].Better(scenarios[best]) {
			best = i
		}
	}
	return scenarios[best], true
}
