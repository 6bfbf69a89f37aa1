package sequentiator

import (
	"slices"
	"time"

	"github.com/SuperNEMO-DBD/Falaise-sub002/internal/config"
)

// Config holds the growth and matching parameters.
type Config struct {
	ProbMin        float64       // min probability of every accepted step
	MaxTime        time.Duration // per event budget, zero for none
	NOffLayers     int           // layers a gap match may skip
	CellDistance   float64       // wire to wire distance (mm)
	PlanesPerBlock []int         // layers in each block, foil outwards
	GapsZ          []float64     // width (mm) of the gap on the foil side of each block
	BField         float64       // magnetic field (tesla)
}

// DefaultConfig returns the parameters of config.DefaultCATConfig.
func DefaultConfig() Config {
	return ConfigFromCAT(config.DefaultCATConfig())
}

// ConfigFromCAT maps the track finder configuration onto Config.
func ConfigFromCAT(cfg *config.CATConfig) Config {
	return Config{
		ProbMin:        cfg.GetProbMin(),
		MaxTime:        cfg.GetMaxTime(),
		NOffLayers:     cfg.GetNOffLayers(),
		CellDistance:   cfg.GetCellDistance(),
		PlanesPerBlock: cfg.GetPlanesPerBlock(),
		GapsZ:          cfg.GetGapsZ(),
		BField:         cfg.GetBField(),
	}
}

func (c Config) clone() Config {
	c.PlanesPerBlock = slices.Clone(c.PlanesPerBlock)
	c.GapsZ = slices.Clone(c.GapsZ)
	return c
}
