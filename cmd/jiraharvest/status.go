package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"jiraharvest/pkg/checkpoint"
	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status [PROJECT...]",
	Short: "Show checkpoint state for tracked projects",
	Long: `Show the checkpoint state and on-disk record counts for tracked projects.

Without arguments every tracked project is listed. "Pending" is the number
of issues still owed from earlier fetch requests; a non-zero value means
the next fetch run will pick those up before anything else.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	checkpoints := checkpoint.NewStore(cfg.CheckpointFile(), log)
	records, err := storage.NewStore(cfg.RawDir())
	if err != nil {
		return err
	}

	state, err := checkpoints.Load()
	if err != nil {
		return err
	}

	projects := args
	if len(projects) == 0 {
		for p := range state {
			projects = append(projects, p)
		}
		sort.Strings(projects)
	} else {
		projects, err = resolveProjects(projects)
		if err != nil {
			return err
		}
	}

	if len(projects) == 0 {
		fmt.Println("No tracked projects. Run 'jiraharvest fetch' to get started.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tCURSOR\tPENDING\tFETCHED\tON DISK\tSTATUS\tUPDATED")

	for _, project := range projects {
		cp, tracked := state[project]
		onDisk, err := records.Count(project)
		if err != nil {
			log.WithError(err).WithField("project", project).Warn("failed to count stored records")
		}

		if !tracked {
			fmt.Fprintf(w, "%s\t-\t-\t-\t%d\t%s\t-\n", project, onDisk, "untracked")
			continue
		}

		updated := "-"
		if !cp.UpdatedAt.IsZero() {
			updated = cp.UpdatedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			project, cp.Cursor, cp.Pending, cp.TotalFetched, onDisk, cp.LastStatus, updated)
	}

	return w.Flush()
}
