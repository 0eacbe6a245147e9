package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/storage"
	"jiraharvest/pkg/transform"
)

var transformCmd = &cobra.Command{
	Use:   "transform [PROJECT...]",
	Short: "Flatten raw issues into per-project JSONL files",
	Long: `Convert raw issue documents into flattened JSONL records.

The transform is incremental and append-only: issues whose keys already
appear in a project's JSONL file are skipped, so it is safe to re-run after
every fetch.`,
	RunE: runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	projects, err := resolveProjects(args)
	if err != nil {
		return err
	}

	records, err := storage.NewStore(cfg.RawDir())
	if err != nil {
		return err
	}

	t := transform.New(records, cfg.ProcessedDir(), log)
	if err := t.TransformProjects(projects); err != nil {
		return fmt.Errorf("transform finished with failures: %w", err)
	}

	return nil
}
