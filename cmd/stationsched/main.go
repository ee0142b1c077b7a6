package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/prodline/stationsched/pkg/scheduler"
)

var (
	// Version information (set at build time)
	Version = "dev"
	Commit  = ""

	// Global flags
	layoutPath string
	batchPath  string
	outputPath string
	logLevel   string
	budget     time.Duration

	rootCmd = &cobra.Command{
		Use:     "stationsched",
		Short:   "Production station scheduling optimizer",
		Long:    `A command-line interface for scheduling batches of operations across a fixed station layout.`,
		Version: Version,
	}
)

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", Version, Commit)

	rootCmd.PersistentFlags().StringVar(&layoutPath, "layout", "", "path to the layout document (stations, operations, Travel_Times)")
	rootCmd.PersistentFlags().StringVar(&batchPath, "batch", "", "path to the batch request document")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "", "write the resulting schedule here as YAML (default: stdout)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stationsched version %s\n", Version)
		if Commit != "" {
			fmt.Printf("Commit: %s\n", Commit)
		}
	},
}

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a batch request against a layout and print the resulting schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		logger := log.Logger.Level(level)

		if layoutPath == "" {
			return fmt.Errorf("--layout is required")
		}
		if batchPath == "" {
			return fmt.Errorf("--batch is required")
		}

		layout, err := scheduler.LoadLayoutFile(layoutPath)
		if err != nil {
			return err
		}

		req, err := loadBatchRequestFile(batchPath)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), scheduler.DefaultBudget+10*time.Second)
		defer cancel()

		result, err := scheduler.Solve(ctx, layout, req, scheduler.WithLogger(logger))
		if err != nil {
			return err
		}

		return writeResult(result)
	},
}

// batchDocument mirrors scheduler.BatchRequest for YAML loading: a thin
// document shape, validated by scheduler.Build once decoded.
type batchDocument struct {
	SelectedOps    []string           `yaml:"selected_ops"`
	Weights        map[string]int     `yaml:"weights"`
	MaxRuns        map[string]int     `yaml:"max_runs"`
	HorizonMin     float64            `yaml:"horizon_min"`
	StationCaps    map[string]int     `yaml:"station_caps"`
	EarliestStarts map[string]float64 `yaml:"earliest_starts"`
	LatestFinishes map[string]float64 `yaml:"latest_finishes"`
	Precedence     map[string][]string `yaml:"precedence"`
	TimeUnit       int                `yaml:"time_unit"`
}

func loadBatchRequestFile(path string) (scheduler.BatchRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scheduler.BatchRequest{}, fmt.Errorf("reading batch request %s: %w", path, err)
	}
	var doc batchDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return scheduler.BatchRequest{}, fmt.Errorf("parsing batch request %s: %w", path, err)
	}
	return scheduler.BatchRequest{
		SelectedOps:    doc.SelectedOps,
		Weights:        doc.Weights,
		MaxRuns:        doc.MaxRuns,
		HorizonMin:     doc.HorizonMin,
		StationCaps:    doc.StationCaps,
		EarliestStarts: doc.EarliestStarts,
		LatestFinishes: doc.LatestFinishes,
		Precedence:     doc.Precedence,
		TimeUnit:       doc.TimeUnit,
	}, nil
}

// resultDocument is the YAML-serializable projection of scheduler.Result.
type resultDocument struct {
	Status         string             `yaml:"status"`
	HorizonMinutes float64            `yaml:"horizon_minutes"`
	Tasks          []taskEntry        `yaml:"tasks"`
}

type taskEntry struct {
	JobID       string  `yaml:"job_id"`
	TaskIndex   int     `yaml:"task_index"`
	Kind        string  `yaml:"kind"`
	Station     string  `yaml:"station,omitempty"`
	FromStation string  `yaml:"from_station,omitempty"`
	ToStation   string  `yaml:"to_station,omitempty"`
	Present     bool    `yaml:"present"`
	StartMin    float64 `yaml:"start_min,omitempty"`
	EndMin      float64 `yaml:"end_min,omitempty"`
}

func writeResult(result scheduler.Result) error {
	doc := resultDocument{Status: result.Status.String(), HorizonMinutes: result.HorizonMinutes}
	for key, info := range result.TaskMetadata {
		entry := taskEntry{
			JobID: key.JobID, TaskIndex: key.TaskIndex,
			Kind: info.Kind.String(), Station: info.Station,
			FromStation: info.FromStation, ToStation: info.ToStation,
			Present: info.Present,
		}
		if iv, ok := result.Schedule[key]; ok {
			entry.StartMin, entry.EndMin = iv.StartMin, iv.EndMin
		}
		doc.Tasks = append(doc.Tasks, entry)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if outputPath == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(outputPath, out, 0o644)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("stationsched: solve failed")
		os.Exit(1)
	}
}
