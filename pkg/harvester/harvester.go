package harvester

import (
	"context"
	"errors"
	"fmt"

	"jiraharvest/pkg/checkpoint"
	"jiraharvest/pkg/config"
	"jiraharvest/pkg/logger"
)

// Harvester drives the per-project fetch loop: it computes how many records
// remain owed, pages through the remote search endpoint, persists each
// fetched record, and advances the checkpoint after every unit of durable
// progress.
type Harvester struct {
	client      IssueClient
	checkpoints *checkpoint.Store
	records     RecordStore
	batchSize   int
	maxIssues   int
	logger      logger.Logger
}

// New creates a Harvester wired to the given client and stores
func New(client IssueClient, checkpoints *checkpoint.Store, records RecordStore, cfg *config.Config, log logger.Logger) *Harvester {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Harvester{
		client:      client,
		checkpoints: checkpoints,
		records:     records,
		batchSize:   cfg.Fetch.BatchSize,
		maxIssues:   cfg.Fetch.MaxIssues,
		logger:      log,
	}
}

// Run sequences the harvest across projects, passing each its additional
// fetch count (0 if absent). A failed project is logged and does not stop
// the remaining projects; the joined failures are returned at the end.
func (h *Harvester) Run(ctx context.Context, projects []string, addByProject map[string]int) error {
	var errs []error

	for _, project := range projects {
		add := addByProject[project]
		if err := h.RunProject(ctx, project, add); err != nil {
			h.logger.ErrorWithFields("project harvest failed", map[string]interface{}{
				"project": project,
				"error":   err.Error(),
			})
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// RunProject harvests one project. When add > 0 the obligation is folded
// into the checkpoint's pending count and persisted before any network call.
// The loop ends when the obligation is cleared, the remote source is
// exhausted, or an unrecoverable error occurs; the checkpoint's last status
// is persisted as success or failed accordingly, and failures propagate.
func (h *Harvester) RunProject(ctx context.Context, project string, add int) error {
	log := h.logger.WithField("project", project)
	log.Info("starting project harvest")

	state, err := h.checkpoints.Load()
	if err != nil {
		return fmt.Errorf("project %s: failed to load checkpoints: %w", project, err)
	}

	if add > 0 {
		if err := h.checkpoints.AddPending(state, project, add); err != nil {
			return fmt.Errorf("project %s: %w", project, err)
		}
	}

	cp := checkpoint.Ensure(state, project)

	// Pending obligations always take priority; the legacy total cap only
	// bounds a backfill that has no obligation.
	bounded := cp.Pending > 0
	capRemaining := 0
	if !bounded && h.maxIssues > 0 {
		capRemaining = h.maxIssues
	}

	log.InfoWithFields("resuming from checkpoint", map[string]interface{}{
		"cursor":        cp.Cursor,
		"pending":       cp.Pending,
		"total_fetched": cp.TotalFetched,
	})

	fetched := 0

	for {
		if err := ctx.Err(); err != nil {
			return h.failProject(state, project, cp, err)
		}

		if bounded && cp.Pending == 0 {
			break // obligation satisfied for this run
		}
		if capRemaining > 0 && fetched >= capRemaining {
			log.InfoWithFields("issue cap reached", map[string]interface{}{"cap": capRemaining})
			break
		}

		pageSize := h.pageSize(cp, bounded, capRemaining, fetched)

		log.DebugWithFields("fetching page", map[string]interface{}{
			"start_at":  cp.Cursor,
			"page_size": pageSize,
		})

		result, err := h.client.SearchIssues(ctx, project, cp.Cursor, pageSize)
		if err != nil {
			return h.failProject(state, project, cp, fmt.Errorf("search at cursor %d: %w", cp.Cursor, err))
		}

		if result.Returned == 0 {
			// Normal terminal condition: the remote sequence is exhausted
			log.InfoWithFields("no more issues", map[string]interface{}{"cursor": cp.Cursor})
			break
		}

		interrupted := false
		for _, summary := range result.Issues {
			if bounded && cp.Pending == 0 {
				interrupted = true
				break
			}
			if capRemaining > 0 && fetched >= capRemaining {
				interrupted = true
				break
			}

			if h.records.Exists(project, summary.Key) {
				// Already fetched in an earlier, interrupted run; the
				// artifact is the ground truth, so just advance past it.
				cp.Cursor++
				if bounded {
					cp.Pending--
				}
				log.DebugWithFields("record already present, skipping", map[string]interface{}{
					"key": summary.Key,
				})
				continue
			}

			issue, err := h.client.GetIssue(ctx, summary.Key)
			if err != nil {
				return h.failProject(state, project, cp, fmt.Errorf("fetch issue %s: %w", summary.Key, err))
			}

			if err := h.records.Put(project, issue.Key, issue.Raw); err != nil {
				return h.failProject(state, project, cp, fmt.Errorf("persist issue %s: %w", issue.Key, err))
			}

			cp.Cursor++
			cp.TotalFetched++
			fetched++
			if bounded {
				cp.Pending--
			}
			cp.LastStatus = checkpoint.StatusRunning

			// Persisting after every record bounds crash loss to a single
			// record's worth of work.
			if err := h.checkpoints.Update(state, project); err != nil {
				return h.failProject(state, project, cp, fmt.Errorf("persist checkpoint after %s: %w", issue.Key, err))
			}
		}

		// Once the whole page is consumed, entries the client dropped at its
		// boundary still occupy remote offsets; the cursor must move past
		// them or every later page would be re-served one position early.
		if dropped := result.Returned - len(result.Issues); dropped > 0 && !interrupted {
			cp.Cursor += dropped
		}

		if err := h.checkpoints.Update(state, project); err != nil {
			return h.failProject(state, project, cp, fmt.Errorf("persist checkpoint at batch boundary: %w", err))
		}

		if bounded && cp.Pending == 0 {
			break
		}
		if result.Returned < pageSize {
			// Short page means the remote sequence is exhausted. The raw
			// page length is what the remote served; kept entries alone
			// would misread a page with dropped entries as the end.
			log.InfoWithFields("end of issues", map[string]interface{}{"cursor": cp.Cursor})
			break
		}
	}

	cp.LastStatus = checkpoint.StatusSuccess
	if err := h.checkpoints.Update(state, project); err != nil {
		return fmt.Errorf("project %s: failed to persist final checkpoint: %w", project, err)
	}

	log.InfoWithFields("project harvest finished", map[string]interface{}{
		"fetched_this_run": fetched,
		"cursor":           cp.Cursor,
		"pending":          cp.Pending,
		"total_fetched":    cp.TotalFetched,
	})

	return nil
}

// pageSize computes how many summaries to request for the next page
func (h *Harvester) pageSize(cp *checkpoint.ProjectCheckpoint, bounded bool, capRemaining, fetched int) int {
	size := h.batchSize

	if bounded && cp.Pending < size {
		size = cp.Pending
	}
	if capRemaining > 0 && capRemaining-fetched < size {
		size = capRemaining - fetched
	}
	if size < 1 {
		size = 1
	}

	return size
}

// failProject durably records the failed status with the current progress
// counters and wraps the cause for the caller. Fetch failures are never
// swallowed: skipping a record would silently desynchronize the cursor and
// pending counters from reality.
func (h *Harvester) failProject(state checkpoint.State, project string, cp *checkpoint.ProjectCheckpoint, cause error) error {
	cp.LastStatus = checkpoint.StatusFailed

	if err := h.checkpoints.Update(state, project); err != nil {
		h.logger.ErrorWithFields("failed to persist failed checkpoint", map[string]interface{}{
			"project": project,
			"error":   err.Error(),
		})
	}

	return fmt.Errorf("project %s: %w", project, cause)
}
