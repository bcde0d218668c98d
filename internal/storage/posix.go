package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/henondesigns/mollusk/pkg/checksum"
)

// POSIXStorage stores content as a plain file. URIs use the file:// scheme
// or a bare path.
type POSIXStorage struct {
	uri      string
	filepath string
}

// NewPOSIXStorage binds to the file the URI points at.
func NewPOSIXStorage(uri string) (*POSIXStorage, error) {
	path := strings.TrimPrefix(uri, "file://")
	if path == "" {
		return nil, fmt.Errorf("posix storage uri has no path: %q", uri)
	}
	return &POSIXStorage{uri: uri, filepath: path}, nil
}

func (s *POSIXStorage) URI() string { return s.uri }

func (s *POSIXStorage) Exists() (bool, error) {
	_, err := os.Stat(s.filepath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", s.filepath, err)
	}
	return true, nil
}

func (s *POSIXStorage) Write(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.filepath), 0o755); err != nil {
		return fmt.Errorf("creating parent directory for %s: %w", s.filepath, err)
	}
	if err := os.WriteFile(s.filepath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", s.filepath, err)
	}
	return nil
}

func (s *POSIXStorage) Read() ([]byte, error) {
	data, err := os.ReadFile(s.filepath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, s.uri)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.filepath, err)
	}
	return data, nil
}

func (s *POSIXStorage) Delete() error {
	err := os.Remove(s.filepath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", s.filepath, err)
	}
	return nil
}

func (s *POSIXStorage) Checksum() (string, error) {
	sum, err := checksum.SHA256File(s.filepath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNoContent, s.uri)
		}
		return "", err
	}
	return sum, nil
}
