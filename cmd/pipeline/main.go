// Command pipeline runs the batch stages from the command line: ingest raw
// claims files, build feature tables, and train models with experiment
// tracking in a local database.
package main

import (
	"fmt"
	"log"
	"os"

	"payer-analytics/internal/config"
	"payer-analytics/internal/core"
	"payer-analytics/internal/database"
	"payer-analytics/internal/pipeline"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dbURL      string
)

func newRunner() (*pipeline.Runner, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDatabase(dbURL)
	if err != nil {
		return nil, err
	}

	return &pipeline.Runner{DB: db, Cfg: cfg}, nil
}

func parseTaskArg(args []string) (core.Task, error) {
	task, err := core.ParseTask(args[0])
	if err != nil {
		return "", fmt.Errorf("%w (expected one of %v)", err, core.AllTasks())
	}
	return task, nil
}

func trainTask(cmd *cobra.Command, runner *pipeline.Runner, task core.Task) error {
	runId, result, err := runner.Train(cmd.Context(), task, nil)
	if err != nil {
		if runId != uuid.Nil {
			return fmt.Errorf("run %s failed: %w", runId, err)
		}
		return err
	}

	fmt.Printf("run %s completed\n", runId)
	for name, value := range result.Metrics {
		fmt.Printf("  %s: %.4f\n", name, value)
	}
	return nil
}

func main() {
	root := &cobra.Command{
		Use:          "pipeline",
		Short:        "Batch pipeline for payer claims analytics",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML pipeline config")
	root.PersistentFlags().StringVar(&dbURL, "db", "data/tracking.db", "tracking database URL (sqlite path or postgres:// URL)")

	root.AddCommand(&cobra.Command{
		Use:   "ingest",
		Short: "Convert raw claims files into interim tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner()
			if err != nil {
				return err
			}
			return runner.Ingest(cmd.Context())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:       "features <task>",
		Short:     "Build the feature table for a task from the interim tables",
		Args:      cobra.ExactArgs(1),
		ValidArgs: taskNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner()
			if err != nil {
				return err
			}
			task, err := parseTaskArg(args)
			if err != nil {
				return err
			}
			_, err = runner.BuildFeatures(cmd.Context(), task)
			return err
		},
	})

	root.AddCommand(&cobra.Command{
		Use:       "train <task>",
		Short:     "Train a task's model from its feature table and record the run",
		Args:      cobra.ExactArgs(1),
		ValidArgs: taskNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner()
			if err != nil {
				return err
			}
			task, err := parseTaskArg(args)
			if err != nil {
				return err
			}
			return trainTask(cmd, runner, task)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:       "run <task>",
		Short:     "Build features and train in one step",
		Args:      cobra.ExactArgs(1),
		ValidArgs: taskNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner()
			if err != nil {
				return err
			}
			task, err := parseTaskArg(args)
			if err != nil {
				return err
			}
			if _, err := runner.BuildFeatures(cmd.Context(), task); err != nil {
				return err
			}
			return trainTask(cmd, runner, task)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Remove interim tables, feature tables, and artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			runner := &pipeline.Runner{Cfg: cfg}
			return runner.Clean()
		},
	})

	log.SetFlags(log.LstdFlags)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func taskNames() []string {
	tasks := core.AllTasks()
	names := make([]string, len(tasks))
	for i, task := range tasks {
		names[i] = string(task)
	}
	return names
}
