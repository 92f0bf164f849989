package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	sessionFileExt = ".json"
	// saveRetries is the fixed retry count for transient write failures.
	// Retrying lives here, in the backend adapter, not in the orchestrator.
	saveRetries    = 2
	saveRetryDelay = 25 * time.Millisecond
)

// FileStore persists one JSON document per session under a directory.
// Writes go to a temp file in the same directory and are atomically
// renamed into place, so readers never observe a partial document.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates the directory if needed and returns a store.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("store directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Dir returns the backing directory.
func (fs *FileStore) Dir() string {
	return fs.dir
}

func (fs *FileStore) path(id string) string {
	return filepath.Join(fs.dir, id+sessionFileExt)
}

// validID rejects ids that could escape the store directory.
func validID(id string) error {
	if id == "" {
		return errors.New("session id is empty")
	}
	if strings.ContainsAny(id, "/\\") || id == "." || id == ".." {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}

// Save writes the document via temp file + rename.
func (fs *FileStore) Save(ctx context.Context, s *Session) error {
	if err := validID(s.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}

	var lastErr error
	for attempt := 0; attempt <= saveRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = fs.writeAtomic(s.ID, data); lastErr == nil {
			return nil
		}
		fs.logger.Warn("session save attempt failed",
			zap.String("session_id", s.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
		time.Sleep(saveRetryDelay)
	}
	return fmt.Errorf("failed to save session %s: %w", s.ID, lastErr)
}

func (fs *FileStore) writeAtomic(id string, data []byte) error {
	tmp, err := os.CreateTemp(fs.dir, id+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, fs.path(id)); err != nil {
		return fmt.Errorf("failed to rename into place: %w", err)
	}
	return nil
}

// Load reads and decodes the document for id.
func (fs *FileStore) Load(ctx context.Context, id string) (*Session, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fs.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &s, nil
}

// Exists reports whether a document exists for id.
func (fs *FileStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := validID(id); err != nil {
		return false, err
	}
	_, err := os.Stat(fs.path(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat session %s: %w", id, err)
}

// List returns all stored session ids, sorted.
func (fs *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, sessionFileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, sessionFileExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the document for id.
func (fs *FileStore) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := os.Remove(fs.path(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
