package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultCATConfig(t *testing.T) {
	cfg := DefaultCATConfig()

	if cfg.ProbMin == nil || *cfg.ProbMin != 1e-200 {
		t.Errorf("Expected ProbMin 1e-200, got %v", cfg.ProbMin)
	}
	if cfg.MaxTime == nil || *cfg.MaxTime != "5s" {
		t.Errorf("Expected MaxTime '5s', got %v", cfg.MaxTime)
	}
	if cfg.NOffLayers == nil || *cfg.NOffLayers != 1 {
		t.Errorf("Expected NOffLayers 1, got %v", cfg.NOffLayers)
	}

	if cfg.GetMaxTime() != 5*time.Second {
		t.Errorf("GetMaxTime() = %v, want 5s", cfg.GetMaxTime())
	}
	if cfg.GetBField() != 0.0025 {
		t.Errorf("GetBField() = %f, want 0.0025", cfg.GetBField())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadCATConfigJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "probmin": 0.001,
  "max_time": "250ms",
  "n_off_layers": 2,
  "planes_per_block": [3, 3],
  "gaps_z": [0, 10]
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadCATConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetProbMin() != 0.001 {
		t.Errorf("Expected ProbMin 0.001, got %g", cfg.GetProbMin())
	}
	if cfg.GetMaxTime() != 250*time.Millisecond {
		t.Errorf("Expected MaxTime 250ms, got %v", cfg.GetMaxTime())
	}
	if cfg.GetNOffLayers() != 2 {
		t.Errorf("Expected NOffLayers 2, got %d", cfg.GetNOffLayers())
	}
	if got := cfg.GetPlanesPerBlock(); len(got) != 2 || got[0] != 3 {
		t.Errorf("Expected planes [3 3], got %v", got)
	}
	// Unset fields keep their defaults.
	if cfg.GetCellDistance() != 44 {
		t.Errorf("Expected default CellDistance 44, got %f", cfg.GetCellDistance())
	}
}

func TestLoadCATConfigYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.yaml")

	testYAML := "print_level: vverbose\nratio: 50\nmin_cluster_cells: 3\n"
	if err := os.WriteFile(configPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadCATConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetPrintLevel() != "vverbose" {
		t.Errorf("Expected print level vverbose, got %q", cfg.GetPrintLevel())
	}
	if cfg.GetRatio() != 50 {
		t.Errorf("Expected Ratio 50, got %f", cfg.GetRatio())
	}
	if cfg.GetMinClusterCells() != 3 {
		t.Errorf("Expected MinClusterCells 3, got %d", cfg.GetMinClusterCells())
	}
}

func TestLoadCATConfigMissing(t *testing.T) {
	_, err := LoadCATConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadCATConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "probmin": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadCATConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadCATConfigRejectsUnknownExtension(t *testing.T) {
	_, err := LoadCATConfig("/some/path/config.toml")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoadCATConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadCATConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *CATConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     DefaultCATConfig(),
			wantErr: false,
		},
		{
			name:    "empty config is valid",
			cfg:     &CATConfig{},
			wantErr: false,
		},
		{
			name:    "probmin of one",
			cfg:     &CATConfig{ProbMin: ptrFloat64(1)},
			wantErr: true,
		},
		{
			name:    "negative probmin",
			cfg:     &CATConfig{ProbMin: ptrFloat64(-1e-3)},
			wantErr: true,
		},
		{
			name:    "invalid max time",
			cfg:     &CATConfig{MaxTime: ptrString("soon")},
			wantErr: true,
		},
		{
			name:    "zero max time",
			cfg:     &CATConfig{MaxTime: ptrString("0s")},
			wantErr: true,
		},
		{
			name:    "unknown print level",
			cfg:     &CATConfig{PrintLevel: ptrString("loud")},
			wantErr: true,
		},
		{
			name:    "negative n off layers",
			cfg:     &CATConfig{NOffLayers: ptrInt(-1)},
			wantErr: true,
		},
		{
			name:    "zero cell distance",
			cfg:     &CATConfig{CellDistance: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "empty block",
			cfg:     &CATConfig{PlanesPerBlock: []int{4, 0}},
			wantErr: true,
		},
		{
			name:    "gaps do not match blocks",
			cfg:     &CATConfig{PlanesPerBlock: []int{4, 2}, GapsZ: []float64{0}},
			wantErr: true,
		},
		{
			name:    "negative bfield",
			cfg:     &CATConfig{BField: ptrFloat64(-0.1)},
			wantErr: true,
		},
		{
			name:    "zero ratio",
			cfg:     &CATConfig{Ratio: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "zero min cluster cells",
			cfg:     &CATConfig{MinClusterCells: ptrInt(0)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetMaxTime(t *testing.T) {
	tests := []struct {
		name string
		cfg  *CATConfig
		want time.Duration
	}{
		{
			name: "500 milliseconds",
			cfg:  &CATConfig{MaxTime: ptrString("500ms")},
			want: 500 * time.Millisecond,
		},
		{
			name: "1 minute",
			cfg:  &CATConfig{MaxTime: ptrString("1m")},
			want: time.Minute,
		},
		{
			name: "nil pointer returns default",
			cfg:  &CATConfig{},
			want: 5 * time.Second,
		},
		{
			name: "empty string returns default",
			cfg:  &CATConfig{MaxTime: ptrString("")},
			want: 5 * time.Second,
		},
		{
			name: "invalid duration returns default",
			cfg:  &CATConfig{MaxTime: ptrString("invalid")},
			want: 5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetMaxTime()
			if got != tt.want {
				t.Errorf("GetMaxTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetGapsZDefaultsToBlocks(t *testing.T) {
	cfg := &CATConfig{PlanesPerBlock: []int{4, 2}}
	gaps := cfg.GetGapsZ()
	if len(gaps) != 2 || gaps[0] != 0 || gaps[1] != 0 {
		t.Errorf("GetGapsZ() = %v, want [0 0]", gaps)
	}

	// Returned slices are copies.
	cfg.GetPlanesPerBlock()[0] = 99
	if cfg.PlanesPerBlock[0] != 4 {
		t.Errorf("GetPlanesPerBlock() aliases the config")
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadCATConfig("../../config/cat.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	def := DefaultCATConfig()
	if cfg.GetProbMin() != def.GetProbMin() {
		t.Errorf("Expected %g, got %g", def.GetProbMin(), cfg.GetProbMin())
	}
	if cfg.GetMaxTime() != def.GetMaxTime() {
		t.Errorf("Expected %v, got %v", def.GetMaxTime(), cfg.GetMaxTime())
	}
	if cfg.GetRatio() != def.GetRatio() {
		t.Errorf("Expected %f, got %f", def.GetRatio(), cfg.GetRatio())
	}
}

func TestLoadExampleConfigFile(t *testing.T) {
	cfg, err := LoadCATConfig("../../config/cat.example.yaml")
	if err != nil {
		t.Fatalf("Failed to load example: %v", err)
	}
	if cfg.GetPrintLevel() != "verbose" {
		t.Errorf("Expected verbose, got %q", cfg.GetPrintLevel())
	}
	if cfg.GetNOffLayers() != 2 {
		t.Errorf("Expected 2, got %d", cfg.GetNOffLayers())
	}
	if got := cfg.GetGapsZ(); len(got) != 3 || got[1] != 12.5 {
		t.Errorf("Expected gaps [0 12.5 12.5], got %v", got)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if cfg.GetCellDistance() != 44 {
		t.Errorf("Expected CellDistance 44, got %f", cfg.GetCellDistance())
	}
}
