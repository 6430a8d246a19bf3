package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/spf13/cobra"

	"github.com/fedbench/fedsim/client"
	"github.com/fedbench/fedsim/config"
	"github.com/fedbench/fedsim/cvstore"
	"github.com/fedbench/fedsim/dataset"
	"github.com/fedbench/fedsim/model"
	"github.com/fedbench/fedsim/monitor"
	monitorapi "github.com/fedbench/fedsim/monitor/api"
	"github.com/fedbench/fedsim/pkg/crypto"
	"github.com/fedbench/fedsim/pkg/events"
	"github.com/fedbench/fedsim/pkg/fl"
	"github.com/fedbench/fedsim/pkg/mqttps"
	"github.com/fedbench/fedsim/server"
	"github.com/fedbench/fedsim/simulation"
	"github.com/fedbench/fedsim/strategy"
)

func NewRunCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "run [key=value ...]",
		Short: "Run a federated learning simulation",
		Long: `Run a federated learning simulation. Positional arguments override
configuration values by dotted path, e.g. "strategy.name=fedavg num_rounds=5".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd.Context(), cfgPath, args)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to the TOML configuration file")

	return cmd
}

// runSimulation is the whole orchestration: a sequential setup phase
// that builds closures from configuration, one blocking call into the
// simulation runner, and result persistence. Any failure propagates to
// the process boundary.
func runSimulation(ctx context.Context, cfgPath string, overrides []string) error {
	cfg, err := config.Load(cfgPath, overrides)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := configureLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// The rendered snapshot never carries the encryption key.
	redacted := *cfg
	redacted.Output.CVKey = ""
	resolved, err := redacted.Marshal()
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	fmt.Println(string(resolved))

	trainLoaders, valLoaders, testLoader, err := dataset.Load(
		cfg.Dataset, cfg.NumClients, cfg.Dataset.ValSplit, cfg.Dataset.Seed, cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to load datasets: %w", err)
	}

	run, err := config.ResolveRunDir(cfg.Output.Dir, time.Now())
	if err != nil {
		return err
	}
	color.Green("Outputs and client control variates saved to: %s", run.Dir)

	cvs, err := buildCVStore(cfg.Output, run.Dir)
	if err != nil {
		return err
	}

	clientFn := client.GenClientFn(trainLoaders, valLoaders, client.Options{
		Epochs:       cfg.NumEpochs,
		LearningRate: cfg.LearningRate,
		Momentum:     cfg.Momentum,
		WeightDecay:  cfg.WeightDecay,
		Model:        cfg.Model,
		CVs:          cvs,
	})

	evaluateFn, err := server.GenEvaluateFn(testLoader, cfg.ServerDevice, cfg.Model)
	if err != nil {
		return err
	}

	strat, err := strategy.New(cfg.Strategy, evaluateFn)
	if err != nil {
		return err
	}

	initialModel, err := model.New(cfg.Model)
	if err != nil {
		return err
	}

	mon := monitor.NewMonitor()
	if cfg.Monitor.Enabled {
		stop := serveMonitor(ctx, logger, cfg.Monitor.Addr, mon)
		defer stop()
	}

	emitter := events.Emitter(events.NewNoopEmitter())
	if cfg.Events.Enabled {
		pub, err := mqttps.NewPublisher(
			cfg.Events.URL, byte(cfg.Events.QoS), cfg.Events.ClientID,
			cfg.Events.Username, cfg.Events.Password,
			time.Duration(cfg.Events.TimeoutS)*time.Second, logger)
		if err != nil {
			return fmt.Errorf("failed to connect event publisher: %w", err)
		}
		defer func() {
			_ = pub.Disconnect(context.Background())
		}()
		emitter = events.NewMQTTEmitter(pub, events.NewTopicBuilder(run.ID))
	}

	history, err := simulation.Start(ctx, simulation.Params{
		RunID:           run.ID,
		ClientFn:        clientFn,
		NumClients:      cfg.NumClients,
		NumRounds:       cfg.NumRounds,
		InitialParams:   initialModel.Parameters(),
		Strategy:        strat,
		ClientResources: cfg.ClientResources,
		Seed:            cfg.Dataset.Seed,
		Logger:          logger,
		Emitter:         emitter,
		Tracker:         mon,
	})
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	pretty, err := prettyjson.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to render history: %w", err)
	}
	fmt.Println(string(pretty))
	color.Green("Outputs and client control variates saved to: %s", run.Dir)

	return saveResults(run.Dir, resolved, history)
}

// buildCVStore opens the run's control-variate store, encrypted at
// rest when a key is configured.
func buildCVStore(out config.OutputConfig, runDir string) (cvstore.Store, error) {
	dir := config.CVDir(runDir)
	if out.CVKey == "" {
		return cvstore.NewFS(dir)
	}

	key, err := crypto.ParseKey(out.CVKey)
	if err != nil {
		return nil, fmt.Errorf("invalid control variate key: %w", err)
	}

	return cvstore.NewEncryptedFS(dir, key)
}

// saveResults persists the run's history and the resolved
// configuration snapshot into the run directory.
func saveResults(runDir string, resolvedConfig []byte, history *fl.History) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "history.json"), data, 0o644); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}

	if err := os.WriteFile(filepath.Join(runDir, "config.toml"), resolvedConfig, 0o644); err != nil {
		return fmt.Errorf("failed to save configuration snapshot: %w", err)
	}

	return nil
}

// serveMonitor starts the read-only progress API and returns its stop
// function.
func serveMonitor(ctx context.Context, logger *slog.Logger, addr string, mon *monitor.Monitor) func() {
	srv := &http.Server{
		Addr:    addr,
		Handler: monitorapi.MakeHandler(mon),
	}

	go func() {
		logger.Info("Monitor listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Monitor server error", slog.Any("error", err))
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Monitor shutdown error", slog.Any("error", err))
		}
	}
}
