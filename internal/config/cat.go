package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical track finder defaults file.
const DefaultConfigPath = "config/cat.defaults.json"

// ErrUnsupportedFormat is returned for config files that are neither JSON
// nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// CATConfig is the root configuration of the track finder. Every field is
// optional: the Get* methods fall back to the built-in defaults, so partial
// files are safe.
type CATConfig struct {
	// Engine params
	PrintLevel *string  `json:"print_level,omitempty" yaml:"print_level,omitempty"`
	ProbMin    *float64 `json:"probmin,omitempty" yaml:"probmin,omitempty"`
	MaxTime    *string  `json:"max_time,omitempty" yaml:"max_time,omitempty"` // duration string like "5s"
	NOffLayers *int     `json:"n_off_layers,omitempty" yaml:"n_off_layers,omitempty"`

	// Geometry params
	CellDistance   *float64  `json:"cell_distance,omitempty" yaml:"cell_distance,omitempty"` // mm, wire to wire
	PlanesPerBlock []int     `json:"planes_per_block,omitempty" yaml:"planes_per_block,omitempty"`
	GapsZ          []float64 `json:"gaps_z,omitempty" yaml:"gaps_z,omitempty"` // mm, one per block
	BField         *float64  `json:"bfield,omitempty" yaml:"bfield,omitempty"` // tesla

	// Clustering params
	Ratio           *float64 `json:"ratio,omitempty" yaml:"ratio,omitempty"`
	MinClusterCells *int     `json:"min_cluster_cells,omitempty" yaml:"min_cluster_cells,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyCATConfig returns a CATConfig with all fields unset.
func EmptyCATConfig() *CATConfig {
	return &CATConfig{}
}

// DefaultCATConfig returns a CATConfig with every field set to its default.
func DefaultCATConfig() *CATConfig {
	return &CATConfig{
		PrintLevel:      ptrString("normal"),
		ProbMin:         ptrFloat64(1e-200),
		MaxTime:         ptrString("5s"),
		NOffLayers:      ptrInt(1),
		CellDistance:    ptrFloat64(44),
		PlanesPerBlock:  []int{4, 2, 3},
		GapsZ:           []float64{0, 0, 0},
		BField:          ptrFloat64(0.0025),
		Ratio:           ptrFloat64(10000),
		MinClusterCells: ptrInt(1),
	}
}

// LoadCATConfig loads a CATConfig from a JSON or YAML file, chosen by
// extension. The file must be under 1MB and pass Validate.
func LoadCATConfig(path string) (*CATConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyCATConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *CATConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/cat/sequentiator/
		"../../../../" + DefaultConfigPath, // from internal/cat/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadCATConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *CATConfig) Validate() error {
	if c.ProbMin != nil && (*c.ProbMin < 0 || *c.ProbMin >= 1) {
		return fmt.Errorf("probmin must be in [0, 1), got %g", *c.ProbMin)
	}

	if c.MaxTime != nil && *c.MaxTime != "" {
		d, err := time.ParseDuration(*c.MaxTime)
		if err != nil {
			return fmt.Errorf("invalid max_time '%s': %w", *c.MaxTime, err)
		}
		if d <= 0 {
			return fmt.Errorf("max_time must be positive, got %v", d)
		}
	}

	if c.PrintLevel != nil {
		switch *c.PrintLevel {
		case "", "mute", "normal", "verbose", "vverbose":
		default:
			return fmt.Errorf("unknown print_level %q", *c.PrintLevel)
		}
	}

	if c.NOffLayers != nil && *c.NOffLayers < 0 {
		return fmt.Errorf("n_off_layers must be non-negative, got %d", *c.NOffLayers)
	}

	if c.CellDistance != nil && *c.CellDistance <= 0 {
		return fmt.Errorf("cell_distance must be positive, got %g", *c.CellDistance)
	}

	for i, n := range c.PlanesPerBlock {
		if n <= 0 {
			return fmt.Errorf("planes_per_block[%d] must be positive, got %d", i, n)
		}
	}
	if c.PlanesPerBlock != nil && c.GapsZ != nil && len(c.GapsZ) != len(c.PlanesPerBlock) {
		return fmt.Errorf("gaps_z has %d entries, planes_per_block has %d", len(c.GapsZ), len(c.PlanesPerBlock))
	}

	if c.BField != nil && *c.BField < 0 {
		return fmt.Errorf("bfield must be non-negative, got %g", *c.BField)
	}

	if c.Ratio != nil && *c.Ratio <= 0 {
		return fmt.Errorf("ratio must be positive, got %g", *c.Ratio)
	}

	if c.MinClusterCells != nil && *c.MinClusterCells < 1 {
		return fmt.Errorf("min_cluster_cells must be at least 1, got %d", *c.MinClusterCells)
	}

	return nil
}

// GetPrintLevel returns the print_level value or the default.
func (c *CATConfig) GetPrintLevel() string {
	if c.PrintLevel == nil || *c.PrintLevel == "" {
		return "normal"
	}
	return *c.PrintLevel
}

// GetProbMin returns the probmin value or the default.
func (c *CATConfig) GetProbMin() float64 {
	if c.ProbMin == nil {
		return 1e-200
	}
	return *c.ProbMin
}

// GetMaxTime parses and returns the MaxTime as a time.Duration.
func (c *CATConfig) GetMaxTime() time.Duration {
	if c.MaxTime == nil || *c.MaxTime == "" {
		return 5 * time.Second // default
	}
	d, err := time.ParseDuration(*c.MaxTime)
	if err != nil || d <= 0 {
		return 5 * time.Second // default on parse error
	}
	return d
}

// GetNOffLayers returns the n_off_layers value or the default.
func (c *CATConfig) GetNOffLayers() int {
	if c.NOffLayers == nil {
		return 1
	}
	return *c.NOffLayers
}

// GetCellDistance returns the cell_distance value or the default.
func (c *CATConfig) GetCellDistance() float64 {
	if c.CellDistance == nil {
		return 44
	}
	return *c.CellDistance
}

// GetPlanesPerBlock returns a copy of planes_per_block or the default.
func (c *CATConfig) GetPlanesPerBlock() []int {
	if len(c.PlanesPerBlock) == 0 {
		return []int{4, 2, 3}
	}
	return append([]int(nil), c.PlanesPerBlock...)
}

// GetGapsZ returns a copy of gaps_z or zero gaps for every block.
func (c *CATConfig) GetGapsZ() []float64 {
	if len(c.GapsZ) == 0 {
		return make([]float64, len(c.GetPlanesPerBlock()))
	}
	return append([]float64(nil), c.GapsZ...)
}

// GetBField returns the bfield value or the default.
func (c *CATConfig) GetBField() float64 {
	if c.BField == nil {
		return 0.0025
	}
	return *c.BField
}

// GetRatio returns the ratio value or the default.
func (c *CATConfig) GetRatio() float64 {
	if c.Ratio == nil {
		return 10000
	}
	return *c.Ratio
}

// GetMinClusterCells returns the min_cluster_cells value or the default.
func (c *CATConfig) GetMinClusterCells() int {
	if c.MinClusterCells == nil {
		return 1
	}
	return *c.MinClusterCells
}
