package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store is a write-once-per-key artifact store for raw issue documents.
// Artifacts live at <baseDir>/<PROJECT>/<KEY>.json; the presence of the file
// is the authoritative fetched/not-fetched signal during resume.
type Store struct {
	baseDir string
	seen    map[string]bool
	mu      sync.RWMutex
}

// NewStore creates a raw record store rooted at baseDir
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create raw record directory: %w", err)
	}

	return &Store{
		baseDir: baseDir,
		seen:    make(map[string]bool),
	}, nil
}

// BaseDir returns the store's root directory
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) artifactPath(project, key string) string {
	return filepath.Join(s.baseDir, project, key+".json")
}

// Exists reports whether an artifact for the given identity is already
// stored. The filesystem is the ground truth; the in-memory map only spares
// repeated stat calls.
func (s *Store) Exists(project, key string) bool {
	cacheKey := project + "/" + key

	s.mu.RLock()
	hit := s.seen[cacheKey]
	s.mu.RUnlock()
	if hit {
		return true
	}

	if _, err := os.Stat(s.artifactPath(project, key)); err == nil {
		s.mu.Lock()
		s.seen[cacheKey] = true
		s.mu.Unlock()
		return true
	}

	return false
}

// Put durably writes the document for one identity, creating the project
// directory on first use. Writes are all-or-nothing via temp-write then
// atomic rename. An identity that already has an artifact is left untouched.
func (s *Store) Put(project, key string, doc []byte) error {
	if s.Exists(project, key) {
		return nil
	}

	dir := filepath.Join(s.baseDir, project)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	target := s.artifactPath(project, key)
	tempFile := target + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, writeErr := out.Write(doc)
	syncErr := out.Sync()
	closeErr := out.Close()

	if writeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write record data: %w", writeErr)
	}
	if syncErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to sync record file: %w", syncErr)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close record file: %w", closeErr)
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	s.mu.Lock()
	s.seen[project+"/"+key] = true
	s.mu.Unlock()

	return nil
}

// Read returns the stored document for one identity
func (s *Store) Read(project, key string) ([]byte, error) {
	data, err := os.ReadFile(s.artifactPath(project, key))
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s/%s: %w", project, key, err)
	}
	return data, nil
}

// List returns the identity keys stored for a project, sorted. A project
// with no artifacts yields an empty slice.
func (s *Store) List(project string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.baseDir, project))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read project directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)

	return keys, nil
}

// Count returns the number of artifacts stored for a project
func (s *Store) Count(project string) (int, error) {
	keys, err := s.List(project)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// RemoveProject deletes all artifacts for a project
func (s *Store) RemoveProject(project string) error {
	if err := os.RemoveAll(filepath.Join(s.baseDir, project)); err != nil {
		return fmt.Errorf("failed to remove project artifacts: %w", err)
	}

	prefix := project + "/"
	s.mu.Lock()
	for k := range s.seen {
		if strings.HasPrefix(k, prefix) {
			delete(s.seen, k)
		}
	}
	s.mu.Unlock()

	return nil
}
