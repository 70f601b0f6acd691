package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	fileVersion = 1
	dataFile    = "session.json"
)

// ErrCorruptStore is returned when the data file exists but cannot be parsed.
// Remove recovers from it by rewriting the file as an empty layout.
var ErrCorruptStore = errors.New("token store is corrupt")

// fileData is the on-disk layout of a scope.
type fileData struct {
	Version int               `json:"version"`
	Items   map[string]string `json:"items"`
}

// FileStore keeps values in a JSON file under baseDir/<scope>/.
// Writes are atomic (temp file + rename) so a crash never leaves a torn file.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file backed store.
// If baseDir is empty, uses ~/.authsession/
func NewFileStore(baseDir, scope string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".authsession")
	}

	if scope == "" {
		scope = "default"
	}

	dir := filepath.Join(baseDir, scope)

	// Create directory with 0700 permissions
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token store directory: %w", err)
	}

	log.Debug().Str("dir", dir).Msg("token store initialized")

	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the scope's data file.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return "", false, err
	}

	value, ok := data.Items[key]
	return value, ok, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return err
	}

	data.Items[key] = value

	return s.save(data)
}

func (s *FileStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if errors.Is(err, ErrCorruptStore) {
		log.Warn().Err(err).Str("dir", s.dir).Msg("discarding corrupt token store")
		return s.save(emptyData())
	}
	if err != nil {
		return err
	}

	if _, ok := data.Items[key]; !ok {
		return nil
	}

	delete(data.Items, key)

	return s.save(data)
}

// load reads the data file, returning an empty layout if it does not exist yet.
func (s *FileStore) load() (*fileData, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, dataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return emptyData(), nil
		}
		return nil, fmt.Errorf("failed to read token store: %w", err)
	}

	var data fileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse token store: %w: %w", ErrCorruptStore, err)
	}

	if data.Items == nil {
		data.Items = make(map[string]string)
	}

	return &data, nil
}

func emptyData() *fileData {
	return &fileData{Version: fileVersion, Items: make(map[string]string)}
}

// save writes the data file atomically.
func (s *FileStore) save(data *fileData) error {
	data.Version = fileVersion

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token store: %w", err)
	}

	path := filepath.Join(s.dir, dataFile)
	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, raw, 0600); err != nil {
		return fmt.Errorf("failed to write token store: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save token store: %w", err)
	}

	return nil
}
