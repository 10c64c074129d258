package documents

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"drugscreen/internal/services"
)

// FSBlob stores objects as files under a root directory.
type FSBlob struct {
	root string
}

// NewFSBlob returns a filesystem blob rooted at root, creating it if needed.
func NewFSBlob(root string) (*FSBlob, error) {
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "documents", "fs", "root directory is required", nil)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create documents root: %w", err)
	}
	return &FSBlob{root: root}, nil
}

func (b *FSBlob) Driver() string { return "fs" }

func (b *FSBlob) pathFor(key string) (string, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "documents", "fs", "invalid key", err)
	}
	return filepath.Join(b.root, filepath.FromSlash(clean)), nil
}

func (b *FSBlob) Put(_ context.Context, key string, data []byte, _ string) error {
	path, err := b.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create document dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit document: %w", err)
	}
	return nil
}

func (b *FSBlob) Get(_ context.Context, key string) ([]byte, error) {
	path, err := b.pathFor(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, "documents", "fs get", key, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}

func (b *FSBlob) Delete(_ context.Context, key string) error {
	path, err := b.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
