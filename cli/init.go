package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fedbench/fedsim/config"
)

// NewInitCmd scaffolds a configuration file interactively.
func NewInitCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a simulation configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(out)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "fedsim.toml", "Where to write the configuration file")

	return cmd
}

func runInit(out string) error {
	cfg := config.Default()

	numClients := strconv.Itoa(cfg.NumClients)
	numRounds := strconv.Itoa(cfg.NumRounds)
	strategyName := cfg.Strategy.Name
	partitioning := cfg.Dataset.Partitioning
	modelName := cfg.Model.Name

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Number of clients").
				Value(&numClients).
				Validate(validatePositiveInt),
			huh.NewInput().
				Title("Number of rounds").
				Value(&numRounds).
				Validate(validateNonNegativeInt),
			huh.NewSelect[string]().
				Title("Aggregation strategy").
				Options(huh.NewOptions(config.StrategyNames...)...).
				Value(&strategyName),
			huh.NewSelect[string]().
				Title("Dataset partitioning").
				Options(huh.NewOptions(config.PartitionerNames...)...).
				Value(&partitioning),
			huh.NewSelect[string]().
				Title("Model").
				Options(huh.NewOptions(config.ModelNames...)...).
				Value(&modelName),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("configuration form aborted: %w", err)
	}

	cfg.NumClients, _ = strconv.Atoi(numClients)
	cfg.NumRounds, _ = strconv.Atoi(numRounds)
	cfg.Strategy.Name = strategyName
	cfg.Dataset.Partitioning = partitioning
	cfg.Model.Name = modelName

	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	color.Green("Configuration written to %s", out)

	return nil
}

func validatePositiveInt(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return fmt.Errorf("want a positive integer, got %q", s)
	}

	return nil
}

func validateNonNegativeInt(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return fmt.Errorf("want a non-negative integer, got %q", s)
	}

	return nil
}
