package locale

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const DefaultProfileName = "CREATOR_X"

// Prefs is the only state that survives between sessions.
type Prefs struct {
	Language    string `json:"language"`
	ProfileName string `json:"profileName,omitempty"`
}

func DefaultPrefs() Prefs {
	return Prefs{Language: Default, ProfileName: DefaultProfileName}
}

func (p Prefs) normalized() Prefs {
	p.Language = Normalize(p.Language)
	p.ProfileName = strings.TrimSpace(p.ProfileName)
	if p.ProfileName == "" {
		p.ProfileName = DefaultProfileName
	}
	return p
}

type PrefsStore interface {
	Load() (Prefs, error)
	Save(Prefs) error
}

// FileStore keeps preferences as a small JSON file. A missing file loads
// as the defaults.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPrefsPath is <user config dir>/captoro/prefs.json.
func DefaultPrefsPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(dir, "captoro", "prefs.json"), nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load() (Prefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultPrefs(), nil
	}
	if err != nil {
		return DefaultPrefs(), fmt.Errorf("read prefs: %w", err)
	}

	var p Prefs
	if err := json.Unmarshal(raw, &p); err != nil {
		return DefaultPrefs(), fmt.Errorf("decode prefs: %w", err)
	}
	return p.normalized(), nil
}

func (s *FileStore) Save(p Prefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(p.normalized(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}

type MemoryStore struct {
	mu    sync.Mutex
	prefs Prefs
	saves int
}

func NewMemoryStore(initial Prefs) *MemoryStore {
	return &MemoryStore{prefs: initial.normalized()}
}

func (s *MemoryStore) Load() (Prefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs, nil
}

func (s *MemoryStore) Save(p Prefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p.normalized()
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
