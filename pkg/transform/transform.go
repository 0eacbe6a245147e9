package transform

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"jiraharvest/pkg/logger"
)

// Record is the flattened form of one raw issue document
type Record struct {
	ID          string   `json:"id"`
	Key         string   `json:"key"`
	Project     string   `json:"project"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Assignee    string   `json:"assignee"`
	Reporter    string   `json:"reporter"`
	Labels      []string `json:"labels"`
	Created     string   `json:"created"`
	Updated     string   `json:"updated"`
	Comments    []string `json:"comments"`
	Tasks       Tasks    `json:"tasks"`
}

// Tasks holds derived prompts paired with each flattened record
type Tasks struct {
	Summarization  string `json:"summarization"`
	Classification string `json:"classification"`
	QnA            string `json:"qna"`
}

// rawIssue is the partial schema read out of a raw issue document; absent
// fields stay at their zero values.
type rawIssue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields struct {
		Summary     string   `json:"summary"`
		Description string   `json:"description"`
		Labels      []string `json:"labels"`
		Created     string   `json:"created"`
		Updated     string   `json:"updated"`
		Project     struct {
			Key string `json:"key"`
		} `json:"project"`
		Status struct {
			Name string `json:"name"`
		} `json:"status"`
		Priority struct {
			Name string `json:"name"`
		} `json:"priority"`
		Assignee struct {
			DisplayName string `json:"displayName"`
		} `json:"assignee"`
		Reporter struct {
			DisplayName string `json:"displayName"`
		} `json:"reporter"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
		Comment struct {
			Comments []struct {
				Body string `json:"body"`
			} `json:"comments"`
		} `json:"comment"`
	} `json:"fields"`
}

// FlattenIssue converts one raw issue document into a flattened record.
// Missing or null fields map to empty values rather than errors.
func FlattenIssue(doc []byte) (*Record, error) {
	var raw rawIssue
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse raw issue: %w", err)
	}
	if raw.Key == "" {
		return nil, errors.New("raw issue has no key")
	}

	title := raw.Fields.Summary
	if title == "" {
		title = "Untitled"
	}
	issueType := raw.Fields.IssueType.Name
	if issueType == "" {
		issueType = "Unknown"
	}
	answer := raw.Fields.Description
	if answer == "" {
		answer = "No description provided."
	}

	comments := make([]string, 0, len(raw.Fields.Comment.Comments))
	for _, c := range raw.Fields.Comment.Comments {
		comments = append(comments, c.Body)
	}

	labels := raw.Fields.Labels
	if labels == nil {
		labels = []string{}
	}

	return &Record{
		ID:          raw.ID,
		Key:         raw.Key,
		Project:     raw.Fields.Project.Key,
		Title:       raw.Fields.Summary,
		Description: raw.Fields.Description,
		Status:      raw.Fields.Status.Name,
		Priority:    raw.Fields.Priority.Name,
		Assignee:    raw.Fields.Assignee.DisplayName,
		Reporter:    raw.Fields.Reporter.DisplayName,
		Labels:      labels,
		Created:     raw.Fields.Created,
		Updated:     raw.Fields.Updated,
		Comments:    comments,
		Tasks: Tasks{
			Summarization:  fmt.Sprintf("Summarize the issue titled '%s'", title),
			Classification: fmt.Sprintf("Classify the type of issue: %s", issueType),
			QnA:            fmt.Sprintf("Question: What is the issue about?\nAnswer: %s", answer),
		},
	}, nil
}

// RecordReader is the slice of the raw record store the transformer reads
type RecordReader interface {
	List(project string) ([]string, error)
	Read(project, key string) ([]byte, error)
}

// Transformer incrementally converts raw issue artifacts into per-project
// append-only JSONL files. Keys already present in the output are skipped,
// so re-running only appends records for newly fetched issues.
type Transformer struct {
	records RecordReader
	outDir  string
	logger  logger.Logger
}

// New creates a Transformer writing JSONL files into outDir
func New(records RecordReader, outDir string, log logger.Logger) *Transformer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Transformer{records: records, outDir: outDir, logger: log}
}

// OutputFile returns the JSONL path for a project
func (t *Transformer) OutputFile(project string) string {
	return filepath.Join(t.outDir, project+".jsonl")
}

// TransformProject appends flattened records for all raw issues of one
// project that are not yet in its JSONL file, returning how many were added.
func (t *Transformer) TransformProject(project string) (int, error) {
	log := t.logger.WithField("project", project)

	keys, err := t.records.List(project)
	if err != nil {
		return 0, fmt.Errorf("project %s: %w", project, err)
	}
	if len(keys) == 0 {
		log.Info("no raw data for project, skipping")
		return 0, nil
	}

	processed, err := t.processedKeys(project)
	if err != nil {
		return 0, fmt.Errorf("project %s: %w", project, err)
	}

	var pending []string
	for _, key := range keys {
		if !processed[key] {
			pending = append(pending, key)
		}
	}
	if len(pending) == 0 {
		log.Info("no new issues to transform")
		return 0, nil
	}

	if err := os.MkdirAll(t.outDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create processed directory: %w", err)
	}

	out, err := os.OpenFile(t.OutputFile(project), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open output file: %w", err)
	}
	defer out.Close()

	encoder := json.NewEncoder(out)

	added := 0
	for _, key := range pending {
		doc, err := t.records.Read(project, key)
		if err != nil {
			// A damaged artifact is a data-integrity concern outside this
			// pipeline; report it and move on.
			log.WarnWithFields("failed to read raw issue, skipping", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			continue
		}

		record, err := FlattenIssue(doc)
		if err != nil {
			log.WarnWithFields("failed to flatten raw issue, skipping", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			continue
		}

		if err := encoder.Encode(record); err != nil {
			return added, fmt.Errorf("failed to append record %s: %w", key, err)
		}
		added++
	}

	log.InfoWithFields("transform finished", map[string]interface{}{
		"new_records": added,
		"output":      t.OutputFile(project),
	})

	return added, nil
}

// TransformProjects runs the incremental transform for each project,
// continuing past per-project failures and returning them joined.
func (t *Transformer) TransformProjects(projects []string) error {
	var errs []error

	for _, project := range projects {
		if _, err := t.TransformProject(project); err != nil {
			t.logger.ErrorWithFields("project transform failed", map[string]interface{}{
				"project": project,
				"error":   err.Error(),
			})
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// processedKeys reads the issue keys already present in the project's JSONL
// output. Undecodable lines are counted as unprocessed rather than fatal.
func (t *Transformer) processedKeys(project string) (map[string]bool, error) {
	keys := make(map[string]bool)

	file, err := os.Open(t.OutputFile(project))
	if err != nil {
		if os.IsNotExist(err) {
			return keys, nil
		}
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var record struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		if record.Key != "" {
			keys[record.Key] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan output file: %w", err)
	}

	return keys, nil
}
