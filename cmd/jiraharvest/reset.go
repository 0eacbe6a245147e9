package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"jiraharvest/pkg/checkpoint"
	"jiraharvest/pkg/config"
	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/storage"
)

var resetAll bool

var resetCmd = &cobra.Command{
	Use:   "reset [PROJECT...]",
	Short: "Delete harvested data and checkpoints",
	Long: `Delete raw artifacts, processed output, and checkpoint entries.

With project keys, only the named projects are reset. The checkpoint entry
for a project is removed only after its artifacts are gone, so a partially
failed reset leaves the project still tracked and re-running the reset
completes it.

With --all, the entire output workspace and checkpoint file are removed.`,
	Example: `  # Reset two projects
  jiraharvest reset SPARK HIVE

  # Reset everything
  jiraharvest reset --all`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVar(&resetAll, "all", false, "reset all projects and checkpoints")
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	if resetAll {
		if len(args) > 0 {
			return errors.New("--all cannot be combined with project keys")
		}
		return resetEverything(cfg, log)
	}

	if len(args) == 0 {
		return errors.New("name projects to reset, or pass --all")
	}

	projects, err := resolveProjects(args)
	if err != nil {
		return err
	}

	checkpoints := checkpoint.NewStore(cfg.CheckpointFile(), log)
	records, err := storage.NewStore(cfg.RawDir())
	if err != nil {
		return err
	}

	state, err := checkpoints.Load()
	if err != nil {
		return err
	}

	var errs []error
	for _, project := range projects {
		if err := resetProject(cfg, log, checkpoints, records, state, project); err != nil {
			log.ErrorWithFields("project reset failed", map[string]interface{}{
				"project": project,
				"error":   err.Error(),
			})
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// resetProject removes a project's artifacts, processed output, and
// checkpoint entry, in that order. The checkpoint entry goes last: if
// artifact removal fails the project stays tracked for a retry.
func resetProject(cfg *config.Config, log logger.Logger, checkpoints *checkpoint.Store, records *storage.Store, state checkpoint.State, project string) error {
	if err := records.RemoveProject(project); err != nil {
		return fmt.Errorf("project %s: %w", project, err)
	}

	processed := filepath.Join(cfg.ProcessedDir(), project+".jsonl")
	if err := os.Remove(processed); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("project %s: failed to remove processed output: %w", project, err)
	}

	if err := checkpoints.Remove(state, project); err != nil {
		return fmt.Errorf("project %s: %w", project, err)
	}

	log.WithField("project", project).Info("project reset")
	return nil
}

// resetEverything removes the raw and processed directories and the
// checkpoint file wholesale.
func resetEverything(cfg *config.Config, log logger.Logger) error {
	if err := os.RemoveAll(cfg.RawDir()); err != nil {
		return fmt.Errorf("failed to remove raw directory: %w", err)
	}
	if err := os.RemoveAll(cfg.ProcessedDir()); err != nil {
		return fmt.Errorf("failed to remove processed directory: %w", err)
	}
	if err := os.Remove(cfg.CheckpointFile()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint file: %w", err)
	}

	log.Info("all projects and checkpoints cleared")
	return nil
}
