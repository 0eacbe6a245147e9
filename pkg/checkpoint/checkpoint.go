package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jiraharvest/pkg/logger"
)

// Status reflects the outcome of the most recent run attempt for a project
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ProjectCheckpoint is the durable progress record for one project
type ProjectCheckpoint struct {
	// Cursor is the offset into the remote ordered result set; it only
	// advances when the record at that position has been persisted or
	// confirmed already present.
	Cursor int `json:"cursor"`
	// Pending counts records still owed from accumulated fetch requests;
	// never negative. Zero means the run's obligations are satisfied, not
	// that the project is exhausted.
	Pending int `json:"pending"`
	// TotalFetched counts records ever successfully persisted
	TotalFetched int `json:"total_fetched"`
	// LastStatus is the outcome of the most recent run attempt
	LastStatus Status    `json:"last_status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// State maps project keys to their checkpoints
type State map[string]*ProjectCheckpoint

// Store persists the full checkpoint state atomically
type Store struct {
	path   string
	logger logger.Logger
}

// NewStore creates a checkpoint store backed by the given file path
func NewStore(path string, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{path: path, logger: log}
}

// Path returns the checkpoint file path
func (s *Store) Path() string {
	return s.path
}

// Load reads the full checkpoint state. A missing file yields empty state.
// An unreadable or corrupt file is logged and treated as empty state rather
// than failing the run.
func (s *Store) Load() (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		s.logger.WarnWithFields("checkpoint file unreadable, starting fresh", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
		return State{}, nil
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.WarnWithFields("checkpoint file corrupt, starting fresh", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
		return State{}, nil
	}
	if state == nil {
		state = State{}
	}

	return state, nil
}

// Save durably persists the full checkpoint state. The write goes to a
// temporary file which then atomically replaces the target, so a crash
// mid-save never leaves a truncated file visible to the next Load.
func (s *Store) Save(state State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(state); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint state: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	return nil
}

// Ensure returns the project's checkpoint, materializing the zero-value
// default in state if absent. The caller decides when to persist.
func Ensure(state State, project string) *ProjectCheckpoint {
	if cp, ok := state[project]; ok {
		return cp
	}
	cp := &ProjectCheckpoint{
		Cursor:       0,
		Pending:      0,
		TotalFetched: 0,
		LastStatus:   StatusUnknown,
	}
	state[project] = cp
	return cp
}

// AddPending increments the project's pending obligation by n and persists
// immediately, before any network activity, so a crash right after the
// request cannot lose it.
func (s *Store) AddPending(state State, project string, n int) error {
	if n < 0 {
		return fmt.Errorf("pending increment must not be negative, got %d", n)
	}

	cp := Ensure(state, project)
	cp.Pending += n
	cp.UpdatedAt = time.Now().UTC()

	if err := s.Save(state); err != nil {
		return fmt.Errorf("failed to persist pending obligation: %w", err)
	}

	s.logger.InfoWithFields("pending obligation recorded", map[string]interface{}{
		"project": project,
		"added":   n,
		"pending": cp.Pending,
	})

	return nil
}

// Update stamps the checkpoint and persists the full state
func (s *Store) Update(state State, project string) error {
	if cp, ok := state[project]; ok {
		cp.UpdatedAt = time.Now().UTC()
	}
	return s.Save(state)
}

// Remove deletes the named projects' entries and persists. Missing entries
// are ignored.
func (s *Store) Remove(state State, projects ...string) error {
	for _, p := range projects {
		delete(state, p)
	}
	return s.Save(state)
}
