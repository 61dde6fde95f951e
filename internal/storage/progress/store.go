// Package progress persists the resumable batch state as a JSON file.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/psuscan/internal/interfaces"
	"github.com/ternarybob/psuscan/internal/models"
)

// FileStore writes the progress file atomically (temp file, fsync, rename)
type FileStore struct {
	path   string
	logger arbor.ILogger

	mu        sync.Mutex
	watermark int
}

var _ interfaces.ProgressStore = (*FileStore)(nil)

// NewFileStore creates a store for path
func NewFileStore(path string, logger arbor.ILogger) *FileStore {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the progress file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the progress file.
// A missing file yields an empty state. An unreadable file is moved aside
// and an empty state is returned so the batch can start over.
func (s *FileStore) Load() (*models.ProgressState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.NewProgressState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress file: %w", err)
	}

	state := models.NewProgressState()
	if err := json.Unmarshal(data, state); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%s", s.path, time.Now().Format("20060102_150405"))
		if renameErr := os.Rename(s.path, aside); renameErr != nil {
			return nil, fmt.Errorf("progress file is unreadable (%v) and could not be moved aside: %w", err, renameErr)
		}
		s.logger.Warn().Err(err).Str("moved_to", aside).Msg("Progress file unreadable, starting fresh")
		return models.NewProgressState(), nil
	}

	state.Normalize()
	s.watermark = state.Stats.ProcessedTickers
	return state, nil
}

// Save writes state unless it would move the processed count backwards
func (s *FileStore) Save(state *models.ProgressState) error {
	if state == nil {
		return errors.New("nil progress state")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state.Stats.ProcessedTickers < s.watermark {
		s.logger.Debug().
			Int("processed", state.Stats.ProcessedTickers).
			Int("saved", s.watermark).
			Msg("Skipping stale progress save")
		return nil
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	if err := WriteFileAtomic(s.path, data); err != nil {
		return err
	}

	s.watermark = state.Stats.ProcessedTickers
	return nil
}

// Peek reads the progress file without touching it. A missing file yields nil, nil.
func (s *FileStore) Peek() (*models.ProgressState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress file: %w", err)
	}

	state := models.NewProgressState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("progress file %s is unreadable: %w", s.path, err)
	}
	state.Normalize()
	return state, nil
}

// Reset clears the processed watermark
func (s *FileStore) Reset() {
	s.mu.Lock()
	s.watermark = 0
	s.mu.Unlock()
}

// WriteFileAtomic replaces path with data so readers never see a partial file
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
