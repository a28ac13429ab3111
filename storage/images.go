package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Uploader mirrors stored photos to an object store. NoOp unless configured.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

// LocalImageStore writes downloaded photos under root/<dir>/<name> and hands
// back the public path they are served under.
type LocalImageStore struct {
	root       string
	publicBase string
	mirror     Uploader
}

func NewLocalImageStore(root, publicBase string, mirror Uploader) *LocalImageStore {
	if mirror == nil {
		mirror = &NoOpUploader{}
	}
	return &LocalImageStore{
		root:       root,
		publicBase: strings.TrimRight(publicBase, "/"),
		mirror:     mirror,
	}
}

func (s *LocalImageStore) Save(ctx context.Context, dir, name string, data []byte) (string, error) {
	target := filepath.Join(s.root, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", target, err)
	}

	file := filepath.Join(target, name)
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", file, err)
	}

	key := path.Join(dir, name)
	if err := s.mirror.Upload(ctx, key, bytes.NewReader(data), contentTypeFor(name)); err != nil {
		// The local copy is authoritative; a mirror failure is not.
		log.Printf("Warning: mirror upload %s failed: %v", key, err)
	}

	return s.publicBase + "/" + key, nil
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	default:
		return "image/jpeg"
	}
}

// NoOpUploader skips mirroring entirely.
type NoOpUploader struct{}

func (u *NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	io.Copy(io.Discard, data)
	return nil
}
