// Package state persists per-run review state under the cache
// directory so a finished run can be re-rendered without rebuilding.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkgreview/pkgreview/pkg/types"
)

// ErrNoRuns indicates no review run has been recorded yet.
var ErrNoRuns = errors.New("no recorded review runs")

// runRecord is the on-disk shape of one run.
type runRecord struct {
	Meta    types.ReviewMeta           `json:"meta"`
	Jobs    map[string]*types.BuildJob `json:"jobs"`
	Removed []string                   `json:"removed,omitempty"`
}

// Store implements interfaces.RunStore on the filesystem.
type Store struct {
	baseDir string
}

// NewStore creates a run store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// RunDir returns the directory holding one run's files, creating
// nothing.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.baseDir, "runs", runID)
}

// SaveRun writes the run record and points "latest" at it. The record
// is written atomically via a rename.
func (s *Store) SaveRun(meta types.ReviewMeta, jobs map[string]*types.BuildJob, removed []string) error {
	dir := s.RunDir(meta.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	record := runRecord{Meta: meta, Jobs: jobs, Removed: removed}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run state: %w", err)
	}

	tmp := filepath.Join(dir, ".run.json.tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run state: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, "run.json")); err != nil {
		return fmt.Errorf("failed to commit run state: %w", err)
	}

	latest := filepath.Join(s.baseDir, "runs", "latest")
	if err := os.WriteFile(latest, []byte(meta.RunID+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to record latest run: %w", err)
	}
	return nil
}

// LoadRun reads a previously saved run.
func (s *Store) LoadRun(runID string) (*types.ReviewMeta, map[string]*types.BuildJob, []string, error) {
	data, err := os.ReadFile(filepath.Join(s.RunDir(runID), "run.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil, fmt.Errorf("%w: %s", ErrNoRuns, runID)
		}
		return nil, nil, nil, fmt.Errorf("failed to read run state: %w", err)
	}

	var record runRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, nil, nil, fmt.Errorf("corrupt run state for %s: %w", runID, err)
	}
	return &record.Meta, record.Jobs, record.Removed, nil
}

// LatestRunID returns the ID of the most recently saved run.
func (s *Store) LatestRunID() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, "runs", "latest"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoRuns
		}
		return "", fmt.Errorf("failed to read latest run marker: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", ErrNoRuns
	}
	return id, nil
}
