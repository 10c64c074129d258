package documents_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"drugscreen/internal/config"
	"drugscreen/internal/documents"
	"drugscreen/internal/services"
	"drugscreen/internal/testsupport"
)

func TestServicePutAndFetchFilesystem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc, err := documents.Open(context.Background(), cfg, st)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if svc.Driver() != "fs" {
		t.Fatalf("expected fs driver, got %s", svc.Driver())
	}

	ctx := context.Background()
	doc, err := svc.Put(ctx, "screen-results.pdf", "", []byte("%PDF-1.7"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if doc.MimeType != "application/pdf" || doc.SizeBytes != 8 {
		t.Fatalf("unexpected catalog entry: %+v", doc)
	}
	if _, err := os.Stat(filepath.Join(cfg.Documents.FSRoot, filepath.FromSlash(doc.BlobKey))); err != nil {
		t.Fatalf("expected document bytes on disk: %v", err)
	}

	fetched, err := svc.Fetch(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if fetched.Filename != "screen-results.pdf" || string(fetched.Content) != "%PDF-1.7" {
		t.Fatalf("unexpected fetched document: %+v", fetched)
	}
}

func TestFetchMissingRecordIsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDocumentsDriver(config.DocumentsDriverMemory))
	st := testsupport.MustOpenStore(t, cfg)
	svc, err := documents.Open(context.Background(), cfg, st)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for _, id := range []string{"", "missing"} {
		if _, err := svc.Fetch(context.Background(), id); !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("Fetch(%q): expected not found, got %v", id, err)
		}
	}
}

func TestFetchMissingBytesIsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	blobs := documents.NewMemoryBlob()
	svc := documents.NewService(st, blobs)
	ctx := context.Background()

	doc, err := svc.Put(ctx, "confirm.pdf", "application/pdf", []byte("data"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := blobs.Delete(ctx, doc.BlobKey); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Fetch(ctx, doc.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found when bytes are gone, got %v", err)
	}
}

func TestServiceDeleteRemovesCatalogAndBytes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	blobs := documents.NewMemoryBlob()
	svc := documents.NewService(st, blobs)
	ctx := context.Background()

	doc, err := svc.Put(ctx, "a.pdf", "", []byte("x"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := svc.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := st.FindDocument(ctx, doc.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected catalog entry removed, got %v", err)
	}
	if _, err := blobs.Get(ctx, doc.BlobKey); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected blob removed, got %v", err)
	}
}

func TestPutRejectsEmptyFilename(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := documents.NewService(st, documents.NewMemoryBlob())
	if _, err := svc.Put(context.Background(), "  ", "", nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFSBlobRejectsTraversal(t *testing.T) {
	blobs, err := documents.NewFSBlob(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSBlob failed: %v", err)
	}
	for _, key := range []string{"../escape", "/abs", "a/../../b", ""} {
		if err := blobs.Put(context.Background(), key, []byte("x"), ""); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDocumentsDriver("ftp"))
	st := testsupport.MustOpenStore(t, cfg)
	if _, err := documents.Open(context.Background(), cfg, st); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
