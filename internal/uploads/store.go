// Package uploads persists uploaded files under a shared directory with
// randomized names.
package uploads

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// DirName is the upload directory created under the system temp dir.
const DirName = "macocr_uploads"

// Store writes uploaded payloads into a single directory. Concurrent
// saves rely on distinct random filenames, so no write-write conflict
// arises; uniqueness is probabilistic, not guaranteed. Files are never
// cleaned up by the store.
type Store struct {
	dir string
}

// NewStore creates the directory if it does not exist yet.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// DefaultDir returns the process-wide upload directory path.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), DirName)
}

// Dir returns the directory files are saved under.
func (s *Store) Dir() string { return s.dir }

// Save writes data under a random UUID-based filename, preserving the
// extension of originalName if it has one. Create and write failures
// are reported separately so callers can surface distinct messages.
func (s *Store) Save(originalName string, data []byte) (path string, err error) {
	name := uuid.New().String()
	if ext := filepath.Ext(originalName); ext != "" {
		name += ext
	}
	path = filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", &CreateError{Path: path, Err: err}
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}
	return path, nil
}

// CreateError reports a failure to create the destination file.
type CreateError struct {
	Path string
	Err  error
}

func (e *CreateError) Error() string { return fmt.Sprintf("create %s: %v", e.Path, e.Err) }
func (e *CreateError) Unwrap() error { return e.Err }

// WriteError reports a failure to write the payload.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Path, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }
