package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Store writes uploads into a single directory owned by the server process.
// The directory is created on first write.
type Store struct {
	RootDir string
}

func NewStore(rootDir string) *Store {
	return &Store{RootDir: rootDir}
}

// Save writes data under filename and returns the absolute path. An existing
// file is never overwritten: a ULID is appended to the name instead.
func (s *Store) Save(filename string, data []byte) (string, error) {
	if err := os.MkdirAll(s.RootDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	target := filepath.Join(s.RootDir, filepath.Base(filename))
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if errors.Is(err, os.ErrExist) {
		target = filepath.Join(s.RootDir, uniqueName(filepath.Base(filename)))
		f, err = os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Base(target), err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("failed to write %s: %w", filepath.Base(target), err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("failed to write %s: %w", filepath.Base(target), err)
	}
	return target, nil
}

func uniqueName(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return stem + "-" + ulid.Make().String() + ext
}
