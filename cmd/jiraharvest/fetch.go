package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"jiraharvest/pkg/auth"
	"jiraharvest/pkg/checkpoint"
	"jiraharvest/pkg/harvester"
	"jiraharvest/pkg/jira"
	"jiraharvest/pkg/logger"
	"jiraharvest/pkg/storage"
	"jiraharvest/pkg/transform"
)

// defaultProjects are harvested when no project keys are given
var defaultProjects = []string{"SPARK", "HADOOP", "HIVE"}

var (
	fetchLimit     int
	fetchBatchSize int
	fetchUnlimited bool
	fetchRateLimit int
	fetchBaseURL   string
	fetchAccount   string
	fetchTransform bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [PROJECT...]",
	Short: "Fetch new issues for one or more projects",
	Long: `Fetch issues from the remote Jira instance into the raw record store.

--limit N adds N issues to each project's pending obligation before any
network activity, so the request survives a crash and is never double
counted across runs. Interrupted runs resume from the checkpoint; issues
already on disk are never fetched twice.

With --unlimited and no --limit, the harvester backfills each project until
the remote source is exhausted (bounded by fetch.max_issues if configured).`,
	Example: `  # Fetch 100 new issues each for two projects
  jiraharvest fetch SPARK HADOOP --limit 100

  # Resume whatever is still owed from earlier runs
  jiraharvest fetch SPARK --limit 0

  # Full backfill of a small project
  jiraharvest fetch KAFKA --unlimited

  # Fetch and flatten in one go
  jiraharvest fetch SPARK --limit 50 --transform`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().IntVarP(&fetchLimit, "limit", "l", 10, "number of additional issues to fetch per project")
	fetchCmd.Flags().IntVarP(&fetchBatchSize, "batch-size", "b", 0, "issues per search call (default from config)")
	fetchCmd.Flags().BoolVar(&fetchUnlimited, "unlimited", false, "fetch until the remote source is exhausted")
	fetchCmd.Flags().IntVar(&fetchRateLimit, "rate-limit", 0, "requests per minute (default from config)")
	fetchCmd.Flags().StringVar(&fetchBaseURL, "base-url", "", "Jira base URL (default from config)")
	fetchCmd.Flags().StringVarP(&fetchAccount, "account", "a", "", "use stored credentials for this account")
	fetchCmd.Flags().BoolVarP(&fetchTransform, "transform", "t", false, "run the JSONL transform after fetching")
}

func runFetch(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{}
	if fetchBatchSize > 0 {
		flags["batch-size"] = fetchBatchSize
	}
	if fetchRateLimit > 0 {
		flags["requests-per-minute"] = fetchRateLimit
	}
	if fetchBaseURL != "" {
		flags["base-url"] = fetchBaseURL
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	projects, err := resolveProjects(args)
	if err != nil {
		return err
	}

	if fetchLimit < 0 {
		return errors.New("--limit cannot be negative")
	}
	if fetchUnlimited && fetchLimit > 0 && cmd.Flags().Changed("limit") {
		return errors.New("--unlimited and --limit are mutually exclusive")
	}
	if fetchUnlimited {
		fetchLimit = 0
	}

	checkpoints := checkpoint.NewStore(cfg.CheckpointFile(), log)
	records, err := storage.NewStore(cfg.RawDir())
	if err != nil {
		return err
	}

	// Without --unlimited, a zero limit only resumes obligations already on
	// the books. A project with nothing pending would otherwise slide into a
	// full backfill nobody asked for.
	if !fetchUnlimited && fetchLimit == 0 {
		state, err := checkpoints.Load()
		if err != nil {
			return err
		}
		projects = resumableProjects(state, projects, log)
		if len(projects) == 0 {
			fmt.Println("Nothing pending to resume. Use --limit N to request issues or --unlimited for a full backfill.")
			return nil
		}
	}

	client := jira.NewClient(cfg, log)
	attachCredentials(client, log)

	h := harvester.New(client, checkpoints, records, cfg, log)

	addByProject := make(map[string]int, len(projects))
	if fetchLimit > 0 {
		for _, p := range projects {
			addByProject[p] = fetchLimit
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.InfoWithFields("starting fetch", map[string]interface{}{
		"projects":  projects,
		"limit":     fetchLimit,
		"unlimited": fetchUnlimited,
	})

	if err := h.Run(ctx, projects, addByProject); err != nil {
		return fmt.Errorf("fetch finished with failures: %w", err)
	}

	if fetchTransform {
		t := transform.New(records, cfg.ProcessedDir(), log)
		if err := t.TransformProjects(projects); err != nil {
			return fmt.Errorf("transform finished with failures: %w", err)
		}
	}

	return nil
}

// resumableProjects keeps the projects with outstanding pending obligations.
// Projects with nothing owed are skipped with a hint rather than backfilled.
func resumableProjects(state checkpoint.State, projects []string, log logger.Logger) []string {
	resumable := make([]string, 0, len(projects))
	for _, p := range projects {
		cp, ok := state[p]
		if !ok || cp.Pending == 0 {
			log.WithField("project", p).Info("nothing pending, skipping (use --limit or --unlimited to fetch)")
			continue
		}
		resumable = append(resumable, p)
	}
	return resumable
}

// resolveProjects sanitizes and validates project keys, falling back to the
// default project set when none are given.
func resolveProjects(args []string) ([]string, error) {
	keys := args
	if len(keys) == 0 {
		keys = defaultProjects
	}

	projects := make([]string, 0, len(keys))
	for _, arg := range keys {
		key := jira.SanitizeProjectKey(arg)
		if !jira.IsValidProjectKey(key) {
			return nil, fmt.Errorf("invalid project key %q", arg)
		}
		projects = append(projects, key)
	}

	return projects, nil
}

// attachCredentials wires stored credentials into the client when present.
// Anonymous access is fine for public instances, so absence is not an error.
func attachCredentials(client *jira.Client, log logger.Logger) {
	mgr, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("credential manager unavailable, using anonymous access")
		return
	}

	name := fetchAccount
	if name == "" {
		name = "default"
	}

	account, err := mgr.Retrieve(name)
	if err != nil {
		if fetchAccount != "" {
			log.WarnWithFields("stored account not found, using anonymous access", map[string]interface{}{
				"account": fetchAccount,
			})
		}
		return
	}

	client.SetBasicAuth(account.Email, account.APIToken)
	log.WithField("account", account.Name).Debug("using stored credentials")
}
