package migrations

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ProgressStore remembers the last migration completed on each network.
type ProgressStore interface {
	LastCompleted(network string) (int, error)
	SetCompleted(network string, id int) error
}

type progress struct {
	LastCompleted int       `json:"last_completed_migration"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type progressFile struct {
	Networks map[string]progress `json:"networks"`
}

// FileStore keeps migration progress in a JSON file. A missing file means
// nothing ran yet.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) LastCompleted(network string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pf, err := s.read()
	if err != nil {
		return 0, err
	}
	return pf.Networks[network].LastCompleted, nil
}

func (s *FileStore) SetCompleted(network string, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pf, err := s.read()
	if err != nil {
		return err
	}
	pf.Networks[network] = progress{LastCompleted: id, UpdatedAt: time.Now().UTC()}

	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0o644)
}

func (s *FileStore) read() (*progressFile, error) {
	pf := &progressFile{}
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, pf); err != nil {
			return nil, err
		}
	}
	if pf.Networks == nil {
		pf.Networks = map[string]progress{}
	}
	return pf, nil
}
