// Package config resolves the simulation's hierarchical configuration
// from on-disk defaults, environment variables, and command-line
// overrides, and owns the per-run output directory convention.
package config

import (
	"errors"
	"fmt"

	"github.com/fedbench/fedsim/pkg/crypto"
)

var (
	ErrNoClients          = errors.New("num_clients must be positive")
	ErrNegativeRounds     = errors.New("num_rounds must not be negative")
	ErrInvalidValSplit    = errors.New("dataset.val_split must be in [0, 1)")
	ErrUnsupportedDevice  = errors.New("server_device: only \"cpu\" is supported")
	ErrDimensionMismatch  = errors.New("model and dataset dimensions do not match")
	ErrUnknownModel       = errors.New("unknown model name")
	ErrUnknownStrategy    = errors.New("unknown strategy name")
	ErrUnknownPartitioner = errors.New("unknown dataset partitioning")
)

// Recognized component names. Constructors are registered in the
// model, strategy, and dataset packages; validation only gates names.
var (
	ModelNames       = []string{"logreg", "mlp"}
	StrategyNames    = []string{"fedavg", "scaffold"}
	PartitionerNames = []string{"iid", "label-skew", "dirichlet"}
)

type Config struct {
	NumClients   int     `toml:"num_clients" env:"NUM_CLIENTS"`
	NumRounds    int     `toml:"num_rounds" env:"NUM_ROUNDS"`
	NumEpochs    int     `toml:"num_epochs" env:"NUM_EPOCHS"`
	BatchSize    int     `toml:"batch_size" env:"BATCH_SIZE"`
	LearningRate float64 `toml:"learning_rate" env:"LEARNING_RATE"`
	Momentum     float64 `toml:"momentum" env:"MOMENTUM"`
	WeightDecay  float64 `toml:"weight_decay" env:"WEIGHT_DECAY"`
	ServerDevice string  `toml:"server_device" env:"SERVER_DEVICE"`
	LogLevel     string  `toml:"log_level" env:"LOG_LEVEL"`

	Model           ModelConfig    `toml:"model" envPrefix:"MODEL_"`
	Dataset         DatasetConfig  `toml:"dataset" envPrefix:"DATASET_"`
	ClientResources ResourceConfig `toml:"client_resources" envPrefix:"CLIENT_RESOURCES_"`
	Strategy        StrategyConfig `toml:"strategy" envPrefix:"STRATEGY_"`
	Output          OutputConfig   `toml:"output" envPrefix:"OUTPUT_"`
	Monitor         MonitorConfig  `toml:"monitor" envPrefix:"MONITOR_"`
	Events          EventsConfig   `toml:"events" envPrefix:"EVENTS_"`
}

type ModelConfig struct {
	Name        string `toml:"name" env:"NAME"`
	NumFeatures int    `toml:"num_features" env:"NUM_FEATURES"`
	NumClasses  int    `toml:"num_classes" env:"NUM_CLASSES"`
	HiddenDim   int    `toml:"hidden_dim" env:"HIDDEN_DIM"`
	Seed        int64  `toml:"seed" env:"SEED"`
}

type DatasetConfig struct {
	Name             string  `toml:"name" env:"NAME"`
	ValSplit         float64 `toml:"val_split" env:"VAL_SPLIT"`
	Seed             int64   `toml:"seed" env:"SEED"`
	Partitioning     string  `toml:"partitioning" env:"PARTITIONING"`
	Alpha            float64 `toml:"alpha" env:"ALPHA"`
	SamplesPerClient int     `toml:"samples_per_client" env:"SAMPLES_PER_CLIENT"`
	NumFeatures      int     `toml:"num_features" env:"NUM_FEATURES"`
	NumClasses       int     `toml:"num_classes" env:"NUM_CLASSES"`
}

type ResourceConfig struct {
	NumCPUs float64 `toml:"num_cpus" env:"NUM_CPUS"`
	NumGPUs float64 `toml:"num_gpus" env:"NUM_GPUS"`
}

type StrategyConfig struct {
	Name               string  `toml:"name" env:"NAME"`
	FractionFit        float64 `toml:"fraction_fit" env:"FRACTION_FIT"`
	MinFitClients      int     `toml:"min_fit_clients" env:"MIN_FIT_CLIENTS"`
	ServerLearningRate float64 `toml:"server_learning_rate" env:"SERVER_LEARNING_RATE"`
}

type OutputConfig struct {
	Dir string `toml:"dir" env:"DIR"`
	// CVKey, when set, is a hex-encoded AES-256 key used to encrypt
	// persisted control variates at rest.
	CVKey string `toml:"cv_key" env:"CV_KEY"`
}

type MonitorConfig struct {
	Enabled bool   `toml:"enabled" env:"ENABLED"`
	Addr    string `toml:"addr" env:"ADDR"`
}

type EventsConfig struct {
	Enabled  bool   `toml:"enabled" env:"ENABLED"`
	URL      string `toml:"url" env:"URL"`
	ClientID string `toml:"client_id" env:"CLIENT_ID"`
	Username string `toml:"username" env:"USERNAME"`
	Password string `toml:"password" env:"PASSWORD"`
	QoS      int    `toml:"qos" env:"QOS"`
	TimeoutS int    `toml:"timeout_s" env:"TIMEOUT_S"`
}

// Default returns the base configuration every other layer overrides.
func Default() Config {
	return Config{
		NumClients:   10,
		NumRounds:    10,
		NumEpochs:    1,
		BatchSize:    32,
		LearningRate: 0.01,
		Momentum:     0.9,
		WeightDecay:  0.0001,
		ServerDevice: "cpu",
		LogLevel:     "info",
		Model: ModelConfig{
			Name:        "logreg",
			NumFeatures: 16,
			NumClasses:  4,
			HiddenDim:   32,
			Seed:        42,
		},
		Dataset: DatasetConfig{
			Name:             "synthetic",
			ValSplit:         0.1,
			Seed:             42,
			Partitioning:     "iid",
			Alpha:            0.5,
			SamplesPerClient: 200,
			NumFeatures:      16,
			NumClasses:       4,
		},
		ClientResources: ResourceConfig{
			NumCPUs: 1,
			NumGPUs: 0,
		},
		Strategy: StrategyConfig{
			Name:               "scaffold",
			FractionFit:        1.0,
			MinFitClients:      2,
			ServerLearningRate: 1.0,
		},
		Output: OutputConfig{
			Dir: "outputs",
		},
		Monitor: MonitorConfig{
			Enabled: false,
			Addr:    ":8190",
		},
		Events: EventsConfig{
			Enabled:  false,
			URL:      "tcp://localhost:1883",
			ClientID: "fedsim",
			QoS:      1,
			TimeoutS: 10,
		},
	}
}

func (c *Config) Validate() error {
	if c.NumClients <= 0 {
		return ErrNoClients
	}
	if c.NumRounds < 0 {
		return ErrNegativeRounds
	}
	if c.Dataset.ValSplit < 0 || c.Dataset.ValSplit >= 1 {
		return ErrInvalidValSplit
	}
	if c.ServerDevice != "cpu" {
		return fmt.Errorf("%w, got %q", ErrUnsupportedDevice, c.ServerDevice)
	}
	if !contains(ModelNames, c.Model.Name) {
		return fmt.Errorf("%w: %q", ErrUnknownModel, c.Model.Name)
	}
	if !contains(StrategyNames, c.Strategy.Name) {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, c.Strategy.Name)
	}
	if !contains(PartitionerNames, c.Dataset.Partitioning) {
		return fmt.Errorf("%w: %q", ErrUnknownPartitioner, c.Dataset.Partitioning)
	}
	if c.Output.CVKey != "" {
		if _, err := crypto.ParseKey(c.Output.CVKey); err != nil {
			return fmt.Errorf("output.cv_key: %w", err)
		}
	}
	if c.Model.NumFeatures != c.Dataset.NumFeatures || c.Model.NumClasses != c.Dataset.NumClasses {
		return fmt.Errorf("%w: model %dx%d, dataset %dx%d",
			ErrDimensionMismatch,
			c.Model.NumFeatures, c.Model.NumClasses,
			c.Dataset.NumFeatures, c.Dataset.NumClasses)
	}

	return nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}

	return false
}
