package history

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/comigor/interview-bot/internal/logger"
)

// FileStore keeps the conversation as a JSON array in a single file.
// Saves go through a temp file and a rename, so readers never observe a
// partial write.
type FileStore struct {
	path   string
	prompt string
	mu     sync.Mutex
}

// NewFileStore returns a store backed by path. The file must exist when
// Load is called; use Init to create it.
func NewFileStore(path, systemPrompt string) *FileStore {
	return &FileStore{path: path, prompt: systemPrompt}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Init creates an empty backing file (and its directory) when none exists.
func (s *FileStore) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	logger.L.Info("created empty history file", "path", s.path)
	return f.Close()
}

// Load reads the conversation. An empty file yields the bootstrap conversation.
func (s *FileStore) Load(_ context.Context) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return decode(data, s.prompt)
}

// Save replaces the file content with conv.
func (s *FileStore) Save(_ context.Context, conv Conversation) error {
	data, err := encode(conv)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	logger.L.Debug("history saved", "path", s.path, "messages", len(conv))
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
