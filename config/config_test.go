package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fedbench/fedsim/pkg/crypto"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.NumClients != 10 {
		t.Errorf("NumClients = %d, want 10", cfg.NumClients)
	}
	if cfg.Strategy.Name != "scaffold" {
		t.Errorf("Strategy.Name = %q, want scaffold", cfg.Strategy.Name)
	}
	if cfg.ServerDevice != "cpu" {
		t.Errorf("ServerDevice = %q, want cpu", cfg.ServerDevice)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fedsim.toml")
	content := `
num_clients = 4
num_rounds = 2

[strategy]
name = "fedavg"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.NumClients != 4 {
		t.Errorf("NumClients = %d, want 4", cfg.NumClients)
	}
	if cfg.NumRounds != 2 {
		t.Errorf("NumRounds = %d, want 2", cfg.NumRounds)
	}
	if cfg.Strategy.Name != "fedavg" {
		t.Errorf("Strategy.Name = %q, want fedavg", cfg.Strategy.Name)
	}
	// Values the file leaves out keep their defaults.
	if cfg.NumEpochs != 1 {
		t.Errorf("NumEpochs = %d, want default 1", cfg.NumEpochs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml"), nil); err == nil {
		t.Fatalf("Expected error for missing file")
	}
}

func TestOverrides(t *testing.T) {
	tests := []struct {
		name      string
		overrides []string
		check     func(t *testing.T, cfg *Config)
		wantErr   string
	}{
		{
			name:      "top-level int",
			overrides: []string{"num_rounds=7"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.NumRounds != 7 {
					t.Errorf("NumRounds = %d, want 7", cfg.NumRounds)
				}
			},
		},
		{
			name:      "nested string and float",
			overrides: []string{"strategy.name=fedavg", "strategy.fraction_fit=0.5"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Strategy.Name != "fedavg" {
					t.Errorf("Strategy.Name = %q, want fedavg", cfg.Strategy.Name)
				}
				if cfg.Strategy.FractionFit != 0.5 {
					t.Errorf("FractionFit = %f, want 0.5", cfg.Strategy.FractionFit)
				}
			},
		},
		{
			name:      "bool",
			overrides: []string{"monitor.enabled=true"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.Monitor.Enabled {
					t.Errorf("Monitor.Enabled = false, want true")
				}
			},
		},
		{
			name:      "unknown key",
			overrides: []string{"no.such.key=1"},
			wantErr:   "unknown config key",
		},
		{
			name:      "missing equals",
			overrides: []string{"num_rounds"},
			wantErr:   "want key=value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("", tt.overrides)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Expected error containing %q, got %v", tt.wantErr, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr error
	}{
		{"zero clients", func(c *Config) { c.NumClients = 0 }, ErrNoClients},
		{"negative rounds", func(c *Config) { c.NumRounds = -1 }, ErrNegativeRounds},
		{"val split too high", func(c *Config) { c.Dataset.ValSplit = 1.0 }, ErrInvalidValSplit},
		{"gpu device", func(c *Config) { c.ServerDevice = "cuda" }, ErrUnsupportedDevice},
		{"unknown model", func(c *Config) { c.Model.Name = "resnet" }, ErrUnknownModel},
		{"unknown strategy", func(c *Config) { c.Strategy.Name = "fedprox" }, ErrUnknownStrategy},
		{"unknown partitioning", func(c *Config) { c.Dataset.Partitioning = "pathological" }, ErrUnknownPartitioner},
		{"dimension mismatch", func(c *Config) { c.Model.NumFeatures = 99 }, ErrDimensionMismatch},
		{"short cv key", func(c *Config) { c.Output.CVKey = "abcd" }, crypto.ErrBadKeySize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveRunDir(t *testing.T) {
	base := t.TempDir()
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	run, err := ResolveRunDir(base, now)
	if err != nil {
		t.Fatalf("ResolveRunDir failed: %v", err)
	}

	if run.ID == "" || run.Name == "" {
		t.Errorf("run identity incomplete: %+v", run)
	}
	if !strings.HasPrefix(run.Dir, filepath.Join(base, "2026-03-14", "15-09-26-")) {
		t.Errorf("unexpected run dir: %s", run.Dir)
	}

	info, err := os.Stat(run.Dir)
	if err != nil || !info.IsDir() {
		t.Errorf("run dir was not created: %v", err)
	}
}

func TestCVDir(t *testing.T) {
	got := CVDir(filepath.Join("outputs", "2026-03-14", "run"))
	want := filepath.Join("outputs", "2026-03-14", "run", "client_cvs")

	if got != want {
		t.Errorf("CVDir = %q, want %q", got, want)
	}
}
