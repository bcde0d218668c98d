// Package storage holds the content backends a FileCopy's bytes live in.
// A FileCopy records a storage class and URI; this package maps that pair
// onto a backend able to read, write, and checksum the content.
package storage

import (
	"errors"
	"fmt"
)

// ErrNoContent is returned when reading a location that holds no content.
var ErrNoContent = errors.New("no content at storage location")

// Storage is one addressable content location.
type Storage interface {
	// URI returns the location this backend instance is bound to.
	URI() string

	// Exists reports whether content is present at the location.
	Exists() (bool, error)

	// Write replaces the content at the location.
	Write(data []byte) error

	// Read returns the content at the location.
	Read() ([]byte, error)

	// Delete removes the content. Deleting an empty location is a no-op.
	Delete() error

	// Checksum returns the hex SHA-256 of the content.
	Checksum() (string, error)
}

// Storage class names persisted on FileCopy entities.
const (
	ClassPOSIX  = "posix"
	ClassMemory = "memory"
)

// Open maps a (storage class, uri) pair onto a backend.
func Open(class, uri string) (Storage, error) {
	switch class {
	case ClassPOSIX:
		return NewPOSIXStorage(uri)
	case ClassMemory:
		return NewMemoryStorage(uri), nil
	default:
		return nil, fmt.Errorf("storage class not recognized: %q", class)
	}
}
