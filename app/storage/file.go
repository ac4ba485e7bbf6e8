package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"nuclight.org/tg-scraper/pkg/mutex"
)

// FileState keeps one cursor file per chat under Dir, each holding the
// last processed message id as plain text. Reads and writes for the
// same chat are serialized, plain file writes are not atomic.
type FileState struct {
	Dir string

	mu mutex.KeyedMutex
}

func NewFileState(dir string) (*FileState, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	return &FileState{Dir: dir}, nil
}

// LastID returns the saved cursor, 0 when no state file exists yet.
func (s *FileState) LastID(_ context.Context, peerID int64) (int64, error) {
	s.mu.Lock(peerID)
	defer s.mu.Unlock(peerID)

	raw, err := os.ReadFile(s.path(peerID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}

		return 0, err
	}

	id, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing state file: %w", err)
	}

	return id, nil
}

// SaveLastID rewrites the whole state file with the new value.
func (s *FileState) SaveLastID(_ context.Context, peerID, id int64) error {
	s.mu.Lock(peerID)
	defer s.mu.Unlock(peerID)

	return os.WriteFile(s.path(peerID), []byte(strconv.FormatInt(id, 10)), 0o644)
}

func (s *FileState) path(peerID int64) string {
	return filepath.Join(s.Dir, strconv.FormatInt(peerID, 10))
}
