package documents

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"drugscreen/internal/config"
	"drugscreen/internal/services"
	"drugscreen/internal/store"
)

// Catalog is the store surface the service needs.
type Catalog interface {
	PutDocument(ctx context.Context, doc *store.Document) error
	FindDocument(ctx context.Context, id string) (*store.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Document is a fetched document ready to attach to an email.
type Document struct {
	ID       string
	Filename string
	MimeType string
	Content  []byte
}

// Service joins catalog metadata with blob content.
type Service struct {
	catalog Catalog
	blobs   Blob
}

// NewService wires a catalog to a blob backend.
func NewService(catalog Catalog, blobs Blob) *Service {
	return &Service{catalog: catalog, blobs: blobs}
}

// Open builds the blob backend named by cfg.Documents.Driver.
func Open(ctx context.Context, cfg *config.Config, catalog Catalog) (*Service, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "documents", "open", "configuration is required", nil)
	}
	var (
		blobs Blob
		err   error
	)
	switch cfg.Documents.Driver {
	case config.DocumentsDriverFS:
		blobs, err = NewFSBlob(cfg.Documents.FSRoot)
	case config.DocumentsDriverS3:
		blobs, err = NewS3Blob(ctx, S3Config{
			Bucket:    cfg.Documents.S3Bucket,
			Region:    cfg.Documents.S3Region,
			Endpoint:  cfg.Documents.S3Endpoint,
			Prefix:    cfg.Documents.S3Prefix,
			PathStyle: cfg.Documents.S3PathStyle,

			AccessKeyID:     cfg.Documents.S3AccessKeyID,
			SecretAccessKey: cfg.Documents.S3SecretAccessKey,
		})
	case config.DocumentsDriverMemory:
		blobs = NewMemoryBlob()
	default:
		err = services.Wrap(services.ErrConfiguration, "documents", "open", fmt.Sprintf("unknown driver %q", cfg.Documents.Driver), nil)
	}
	if err != nil {
		return nil, err
	}
	return NewService(catalog, blobs), nil
}

// Driver reports the active blob backend.
func (s *Service) Driver() string {
	return s.blobs.Driver()
}

// Fetch resolves a document id. Missing catalog entries and missing bytes
// both yield services.ErrNotFound.
func (s *Service) Fetch(ctx context.Context, id string) (Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Document{}, services.Wrap(services.ErrNotFound, "documents", "fetch", "empty document id", nil)
	}
	meta, err := s.catalog.FindDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	content, err := s.blobs.Get(ctx, meta.BlobKey)
	if err != nil {
		return Document{}, fmt.Errorf("document %s: %w", id, err)
	}
	return Document{ID: meta.ID, Filename: meta.Filename, MimeType: meta.MimeType, Content: content}, nil
}

// Put stores content and records it in the catalog.
func (s *Service) Put(ctx context.Context, filename, mimeType string, content []byte) (*store.Document, error) {
	filename = path.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == "/" {
		return nil, services.Wrap(services.ErrValidation, "documents", "put", "filename is required", nil)
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	id := uuid.NewString()
	key := path.Join("documents", id, filename)
	if err := s.blobs.Put(ctx, key, content, mimeType); err != nil {
		return nil, err
	}
	doc := &store.Document{ID: id, Filename: filename, MimeType: mimeType, BlobKey: key, SizeBytes: int64(len(content))}
	if err := s.catalog.PutDocument(ctx, doc); err != nil {
		_ = s.blobs.Delete(ctx, key)
		return nil, err
	}
	return doc, nil
}

// Delete removes both the catalog entry and its content.
func (s *Service) Delete(ctx context.Context, id string) error {
	meta, err := s.catalog.FindDocument(ctx, id)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, meta.BlobKey); err != nil {
		return err
	}
	return s.catalog.DeleteDocument(ctx, id)
}

// Probe writes, reads back, and removes a small object to prove the backend
// is reachable and writable.
func (s *Service) Probe(ctx context.Context) error {
	key := path.Join("preflight", uuid.NewString())
	payload := []byte("drugscreen preflight")
	if err := s.blobs.Put(ctx, key, payload, "text/plain"); err != nil {
		return err
	}
	defer func() { _ = s.blobs.Delete(ctx, key) }()
	got, err := s.blobs.Get(ctx, key)
	if err != nil {
		return err
	}
	if string(got) != string(payload) {
		return services.Wrap(services.ErrDataIntegrity, "documents", "probe", "read back different bytes", nil)
	}
	return nil
}
