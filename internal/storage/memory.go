package storage

import (
	"fmt"
	"sync"

	"github.com/henondesigns/mollusk/pkg/checksum"
)

// memContents backs every MemoryStorage instance, keyed by URI, so two
// instances bound to the same URI see the same content. Used in tests.
var memContents sync.Map // uri -> []byte

// MemoryStorage keeps content in process memory.
type MemoryStorage struct {
	uri string
}

// NewMemoryStorage binds to the in-memory location named by uri.
func NewMemoryStorage(uri string) *MemoryStorage {
	return &MemoryStorage{uri: uri}
}

func (s *MemoryStorage) URI() string { return s.uri }

func (s *MemoryStorage) Exists() (bool, error) {
	_, ok := memContents.Load(s.uri)
	return ok, nil
}

func (s *MemoryStorage) Write(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	memContents.Store(s.uri, cp)
	return nil
}

func (s *MemoryStorage) Read() ([]byte, error) {
	v, ok := memContents.Load(s.uri)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, s.uri)
	}
	data := v.([]byte)
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *MemoryStorage) Delete() error {
	memContents.Delete(s.uri)
	return nil
}

func (s *MemoryStorage) Checksum() (string, error) {
	data, err := s.Read()
	if err != nil {
		return "", err
	}
	return checksum.SHA256(data), nil
}
