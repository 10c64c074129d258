package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"drugscreen/internal/services"
)

const documentColumns = "id, filename, mime_type, blob_key, size_bytes, created_at"

// PutDocument records catalog metadata for a stored document, assigning an id when empty.
func (s *Store) PutDocument(ctx context.Context, doc *Document) error {
	if doc == nil || doc.BlobKey == "" {
		return services.Wrap(services.ErrValidation, "store", "put document", "blob key is required", nil)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	_, err := s.execWithRetry(ctx, `INSERT INTO documents (`+documentColumns+`)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            filename = excluded.filename,
            mime_type = excluded.mime_type,
            blob_key = excluded.blob_key,
            size_bytes = excluded.size_bytes`,
		doc.ID, doc.Filename, doc.MimeType, doc.BlobKey, doc.SizeBytes, formatTime(doc.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}

// FindDocument loads document metadata. A missing record yields services.ErrNotFound.
func (s *Store) FindDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	var (
		doc        Document
		createdRaw sql.NullString
	)
	err := row.Scan(&doc.ID, &doc.Filename, &doc.MimeType, &doc.BlobKey, &doc.SizeBytes, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "find document", "document "+id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	doc.CreatedAt = parseTimeOrZero(createdRaw)
	return &doc, nil
}

// DeleteDocument removes a catalog entry. Blob bytes are the caller's concern.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
