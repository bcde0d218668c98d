// Package mollusk provides the domain operations for managing digital
// objects: Items, their Files, and the FileCopies holding each file's
// content across storage backends. Everything persists through the
// repository façade; this package never talks to the graph adapter
// directly.
package mollusk

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"

	"github.com/henondesigns/mollusk/internal/models"
	"github.com/henondesigns/mollusk/internal/repo"
	"github.com/henondesigns/mollusk/internal/storage"
)

// DefaultMimetype is used when a filename's extension is unrecognized.
const DefaultMimetype = "application/octet-stream"

// Service wraps one repository session with domain-level operations.
type Service struct {
	repo *repo.Repository
	log  *slog.Logger
}

// NewService creates a Service over an open session.
func NewService(r *repo.Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: r, log: log}
}

// Repository exposes the underlying session for callers that need the
// generic entity API.
func (s *Service) Repository() *repo.Repository { return s.repo }

// CreateItem creates a new item with the given title.
func (s *Service) CreateItem(ctx context.Context, title string) (*repo.Entity, error) {
	item, err := s.repo.Create(ctx, models.VariantItem, models.Attributes{
		"title": title,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("created item", "id", item.ID(), "title", title)
	return item, nil
}

// GetItem retrieves an item by identity.
func (s *Service) GetItem(ctx context.Context, id string) (*repo.Entity, error) {
	return s.repo.Get(ctx, models.VariantItem, id)
}

// RenameItem updates an item's title.
func (s *Service) RenameItem(ctx context.Context, id, title string) error {
	return s.repo.UpdateAttributes(ctx, id, models.Attributes{"title": title})
}

// AddFile creates a file entity and relates it to the item. The mimetype
// is guessed from the filename extension when not given.
func (s *Service) AddFile(ctx context.Context, itemID, filename, mimetype string) (*repo.Entity, error) {
	if mimetype == "" {
		mimetype = mime.TypeByExtension(filepath.Ext(filename))
		if mimetype == "" {
			mimetype = DefaultMimetype
		}
	}
	item, err := s.repo.Get(ctx, models.VariantItem, itemID)
	if err != nil {
		return nil, err
	}
	file, err := s.repo.Create(ctx, models.VariantFile, models.Attributes{
		"filename": filename,
		"mimetype": mimetype,
	})
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddRelation(ctx, item.ID(), models.RelationFiles, file.ID()); err != nil {
		return nil, err
	}
	s.log.Info("added file", "item", itemID, "file", file.ID(), "filename", filename)
	return file, nil
}

// Files returns the files related to an item, resolving lazily.
func (s *Service) Files(ctx context.Context, itemID string) ([]*repo.Entity, error) {
	item, err := s.repo.Get(ctx, models.VariantItem, itemID)
	if err != nil {
		return nil, err
	}
	return item.Relation(ctx, models.RelationFiles)
}

// AddCopy creates a file-copy entity bound to a storage location and
// relates it to the file. When the location already holds content, its
// checksum and size are recorded.
func (s *Service) AddCopy(ctx context.Context, fileID, storageClass, uri string) (*repo.Entity, error) {
	file, err := s.repo.Get(ctx, models.VariantFile, fileID)
	if err != nil {
		return nil, err
	}
	backend, err := storage.Open(storageClass, uri)
	if err != nil {
		return nil, fmt.Errorf("adding copy for %s: %w", fileID, err)
	}

	attrs := models.Attributes{
		"storage_class": storageClass,
		"uri":           uri,
	}
	exists, err := backend.Exists()
	if err != nil {
		return nil, err
	}
	if exists {
		sum, err := backend.Checksum()
		if err != nil {
			return nil, err
		}
		data, err := backend.Read()
		if err != nil {
			return nil, err
		}
		attrs["checksum"] = sum
		attrs["size"] = int64(len(data))
	}

	cp, err := s.repo.Create(ctx, models.VariantFileCopy, attrs)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddRelation(ctx, file.ID(), models.RelationCopies, cp.ID()); err != nil {
		return nil, err
	}
	s.log.Info("added copy", "file", fileID, "copy", cp.ID(), "uri", uri)
	return cp, nil
}

// Copies returns the file copies related to a file, resolving lazily.
func (s *Service) Copies(ctx context.Context, fileID string) ([]*repo.Entity, error) {
	file, err := s.repo.Get(ctx, models.VariantFile, fileID)
	if err != nil {
		return nil, err
	}
	return file.Relation(ctx, models.RelationCopies)
}

// WriteContent writes data to a copy's storage location and records the
// resulting checksum and size on the entity.
func (s *Service) WriteContent(ctx context.Context, copyID string, data []byte) error {
	cp, err := s.repo.Get(ctx, models.VariantFileCopy, copyID)
	if err != nil {
		return err
	}
	backend, err := storage.Open(cp.StringAttr("storage_class"), cp.StringAttr("uri"))
	if err != nil {
		return err
	}
	if err := backend.Write(data); err != nil {
		return err
	}
	sum, err := backend.Checksum()
	if err != nil {
		return err
	}
	return s.repo.UpdateAttributes(ctx, copyID, models.Attributes{
		"checksum": sum,
		"size":     int64(len(data)),
	})
}

// ReadContent reads the bytes at a copy's storage location.
func (s *Service) ReadContent(ctx context.Context, copyID string) ([]byte, error) {
	cp, err := s.repo.Get(ctx, models.VariantFileCopy, copyID)
	if err != nil {
		return nil, err
	}
	backend, err := storage.Open(cp.StringAttr("storage_class"), cp.StringAttr("uri"))
	if err != nil {
		return nil, err
	}
	return backend.Read()
}

// VerifyCopy recomputes the checksum at the storage location and compares
// it to the recorded one.
func (s *Service) VerifyCopy(ctx context.Context, copyID string) (bool, error) {
	cp, err := s.repo.Get(ctx, models.VariantFileCopy, copyID)
	if err != nil {
		return false, err
	}
	recorded := cp.StringAttr("checksum")
	if recorded == "" {
		return false, fmt.Errorf("copy %s has no recorded checksum", copyID)
	}
	backend, err := storage.Open(cp.StringAttr("storage_class"), cp.StringAttr("uri"))
	if err != nil {
		return false, err
	}
	actual, err := backend.Checksum()
	if err != nil {
		return false, err
	}
	return actual == recorded, nil
}
